package demand

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ErrTooFewSites is returned when there are fewer sites than clusters.
var ErrTooFewSites = errors.New("fewer sites than clusters")

// Charger labels used in cluster profiles.
const (
	ChargerFast      = "fast"
	ChargerOvernight = "overnight"
)

// Clustering is the outcome of grouping site demand profiles.
type Clustering struct {
	// Centers are in original units: 7 fast then 7 overnight daily values.
	// They are ordered by Monday fast demand, ascending.
	Centers [][]float64
	// Labels maps each input site to its 0-based center.
	Labels  []int
	Inertia float64
}

// ClusterProfile is one row of the typical load profile table.
type ClusterProfile struct {
	Cluster int // 1-based
	Weekday int // 1 = Monday
	Charger string
	Count   int
}

// Profiles expands the centers into (cluster, weekday, charger) rows with
// rounded counts, ordered by cluster, charger and weekday.
func (c *Clustering) Profiles() []ClusterProfile {
	out := make([]ClusterProfile, 0, len(c.Centers)*2*DaysPerWeek)
	for ci, center := range c.Centers {
		for t, charger := range []string{ChargerFast, ChargerOvernight} {
			for day := 0; day < DaysPerWeek; day++ {
				out = append(out, ClusterProfile{
					Cluster: ci + 1,
					Weekday: day + 1,
					Charger: charger,
					Count:   int(math.RoundToEven(center[t*DaysPerWeek+day])),
				})
			}
		}
	}
	return out
}

// Cluster groups sites by their standardised weekly demand with k-means++
// and keeps the best of cfg.Restarts runs. The result is deterministic for
// a given seed.
func Cluster(demands []SiteDemand, cfg ClusterConfig) (*Clustering, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := len(demands)
	if n < cfg.K {
		return nil, fmt.Errorf("%w: %d sites, k=%d", ErrTooFewSites, n, cfg.K)
	}
	dim := 2 * DaysPerWeek
	x := mat.NewDense(n, dim, nil)
	for i, d := range demands {
		x.SetRow(i, d.Features())
	}
	mean, scale := standardize(x)

	rng := rand.New(rand.NewSource(cfg.Seed))
	var best *kmeansRun
	for r := 0; r < cfg.Restarts; r++ {
		run := lloyd(x, seedCenters(x, cfg.K, rng), cfg.MaxIter)
		if best == nil || run.inertia < best.inertia {
			best = run
		}
	}

	for _, c := range best.centers {
		for j := range c {
			c[j] = c[j]*scale[j] + mean[j]
		}
	}
	order := make([]int, cfg.K)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return best.centers[order[a]][0] < best.centers[order[b]][0]
	})
	rank := make([]int, cfg.K)
	centers := make([][]float64, cfg.K)
	for newIdx, old := range order {
		rank[old] = newIdx
		centers[newIdx] = best.centers[old]
	}
	labels := make([]int, n)
	for i, l := range best.labels {
		labels[i] = rank[l]
	}
	return &Clustering{Centers: centers, Labels: labels, Inertia: best.inertia}, nil
}

// standardize rescales every column in place to zero mean and unit
// population variance. Constant columns are only centred.
func standardize(x *mat.Dense) (mean, scale []float64) {
	n, dim := x.Dims()
	mean = make([]float64, dim)
	scale = make([]float64, dim)
	col := make([]float64, n)
	for j := 0; j < dim; j++ {
		mat.Col(col, j, x)
		m, v := stat.MeanVariance(col, nil)
		if n > 1 {
			v *= float64(n-1) / float64(n)
		} else {
			v = 0
		}
		sd := math.Sqrt(v)
		if sd == 0 {
			sd = 1
		}
		mean[j], scale[j] = m, sd
		for i := 0; i < n; i++ {
			x.Set(i, j, (col[i]-m)/sd)
		}
	}
	return mean, scale
}

// seedCenters applies k-means++: the first center is drawn uniformly, each
// further one with probability proportional to its squared distance from
// the closest chosen center.
func seedCenters(x *mat.Dense, k int, rng *rand.Rand) [][]float64 {
	n, _ := x.Dims()
	centers := make([][]float64, 0, k)
	centers = append(centers, copyRow(x, rng.Intn(n)))
	d2 := make([]float64, n)
	for len(centers) < k {
		for i := 0; i < n; i++ {
			d2[i] = nearestSq(x.RawRowView(i), centers)
		}
		total := floats.Sum(d2)
		if total == 0 {
			centers = append(centers, copyRow(x, rng.Intn(n)))
			continue
		}
		target := rng.Float64() * total
		pick := n - 1
		acc := 0.0
		for i, v := range d2 {
			acc += v
			if acc > target {
				pick = i
				break
			}
		}
		centers = append(centers, copyRow(x, pick))
	}
	return centers
}

type kmeansRun struct {
	centers [][]float64
	labels  []int
	inertia float64
}

func lloyd(x *mat.Dense, centers [][]float64, maxIter int) *kmeansRun {
	n, dim := x.Dims()
	k := len(centers)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}
	sizes := make([]int, k)
	for it := 0; it < maxIter; it++ {
		changed := false
		for i := 0; i < n; i++ {
			l := nearest(x.RawRowView(i), centers)
			if l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed && it > 0 {
			break
		}
		sums := make([][]float64, k)
		for c := range sums {
			sums[c] = make([]float64, dim)
			sizes[c] = 0
		}
		for i, l := range labels {
			floats.Add(sums[l], x.RawRowView(i))
			sizes[l]++
		}
		for c := range centers {
			// an emptied cluster keeps its previous center
			if sizes[c] == 0 {
				continue
			}
			floats.Scale(1/float64(sizes[c]), sums[c])
			centers[c] = sums[c]
		}
	}
	inertia := 0.0
	for i, l := range labels {
		d := floats.Distance(x.RawRowView(i), centers[l], 2)
		inertia += d * d
	}
	return &kmeansRun{centers: centers, labels: labels, inertia: inertia}
}

func nearest(p []float64, centers [][]float64) int {
	best, bestD := 0, math.Inf(1)
	for c, center := range centers {
		if d := floats.Distance(p, center, 2); d < bestD {
			best, bestD = c, d
		}
	}
	return best
}

func nearestSq(p []float64, centers [][]float64) float64 {
	d := floats.Distance(p, centers[nearest(p, centers)], 2)
	return d * d
}

func copyRow(x *mat.Dense, i int) []float64 {
	return append([]float64(nil), x.RawRowView(i)...)
}
