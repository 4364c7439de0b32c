package assign

import (
	"math"
	"sort"

	"github.com/tidwall/rtree"
	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kilianp07/hpcdemand/core/geo"
)

// Index answers proximity queries over projected site positions. Results
// refer to sites by their input index.
type Index interface {
	// Within returns the sites at distance <= radius, ascending by index.
	Within(p r2.Vec, radius float64) []int
	// Nearest returns the closest site, the lowest index on ties, or -1
	// for an empty index or a non-finite point.
	Nearest(p r2.Vec) int
}

// NewIndex builds the index of the given kind.
func NewIndex(kind IndexKind, pts []r2.Vec) Index {
	if kind == IndexScan {
		return &ScanIndex{pts: pts}
	}
	return NewRTreeIndex(pts)
}

// ScanIndex compares against every site. It is the reference
// implementation and fine for small site sets.
type ScanIndex struct {
	pts []r2.Vec
}

func (s *ScanIndex) Within(p r2.Vec, radius float64) []int {
	var out []int
	for i, q := range s.pts {
		if geo.Distance(p, q) <= radius {
			out = append(out, i)
		}
	}
	return out
}

func (s *ScanIndex) Nearest(p r2.Vec) int {
	best, bestD := -1, math.Inf(1)
	for i, q := range s.pts {
		if d := geo.Distance(p, q); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

// RTreeIndex stores sites as degenerate boxes in an R-tree.
type RTreeIndex struct {
	tr       rtree.RTreeG[int]
	pts      []r2.Vec
	min, max r2.Vec
}

// NewRTreeIndex indexes the given points.
func NewRTreeIndex(pts []r2.Vec) *RTreeIndex {
	idx := &RTreeIndex{pts: pts}
	for i, p := range pts {
		box := [2]float64{p.X, p.Y}
		idx.tr.Insert(box, box, i)
		if i == 0 {
			idx.min, idx.max = p, p
			continue
		}
		idx.min = r2.Vec{X: math.Min(idx.min.X, p.X), Y: math.Min(idx.min.Y, p.Y)}
		idx.max = r2.Vec{X: math.Max(idx.max.X, p.X), Y: math.Max(idx.max.Y, p.Y)}
	}
	return idx
}

func (t *RTreeIndex) Within(p r2.Vec, radius float64) []int {
	var out []int
	t.search(p, radius, func(i int, d float64) {
		if d <= radius {
			out = append(out, i)
		}
	})
	sort.Ints(out)
	return out
}

// Nearest grows a square window around p until it holds a site that is
// closer than the window half-width; no site outside the window can beat it.
func (t *RTreeIndex) Nearest(p r2.Vec) int {
	if len(t.pts) == 0 {
		return -1
	}
	reach := t.farthestCorner(p)
	if math.IsNaN(reach) || math.IsInf(reach, 0) {
		return -1
	}
	r := math.Min(reach, 1000)
	for {
		best, bestD := -1, math.Inf(1)
		t.search(p, r, func(i int, d float64) {
			if d > r {
				return
			}
			if d < bestD || (d == bestD && i < best) {
				best, bestD = i, d
			}
		})
		if best >= 0 || r >= reach {
			return best
		}
		r = math.Min(2*r, reach)
	}
}

func (t *RTreeIndex) search(p r2.Vec, r float64, fn func(i int, d float64)) {
	lo := [2]float64{p.X - r, p.Y - r}
	hi := [2]float64{p.X + r, p.Y + r}
	t.tr.Search(lo, hi, func(_, _ [2]float64, i int) bool {
		fn(i, geo.Distance(p, t.pts[i]))
		return true
	})
}

func (t *RTreeIndex) farthestCorner(p r2.Vec) float64 {
	dx := math.Max(math.Abs(p.X-t.min.X), math.Abs(p.X-t.max.X))
	dy := math.Max(math.Abs(p.Y-t.min.Y), math.Abs(p.Y-t.max.Y))
	return math.Hypot(dx, dy)
}
