package demand

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func flatDemand(id string, fast, overnight int) SiteDemand {
	d := SiteDemand{SiteID: id}
	for day := 0; day < DaysPerWeek; day++ {
		d.FastDaily[day] = fast
		d.OvernightDaily[day] = overnight
	}
	return d
}

// three tight groups, listed high to low so sorting is observable
func groupedDemands() []SiteDemand {
	var out []SiteDemand
	for g, level := range []int{1000, 100, 10} {
		for i := 0; i < 4; i++ {
			out = append(out, flatDemand(fmt.Sprintf("g%d-%d", g, i), level+i, level/10+i))
		}
	}
	return out
}

func TestClusterSeparatesGroups(t *testing.T) {
	res, err := Cluster(groupedDemands(), DefaultClusterConfig())
	require.NoError(t, err)
	require.Len(t, res.Centers, 3)

	// centers ascend by Monday fast demand
	assert.InDelta(t, 11.5, res.Centers[0][0], 1e-9)
	assert.InDelta(t, 101.5, res.Centers[1][0], 1e-9)
	assert.InDelta(t, 1001.5, res.Centers[2][0], 1e-9)

	for i, l := range res.Labels {
		assert.Equal(t, 2-i/4, l, "site %d", i)
	}
}

func TestClusterDeterministic(t *testing.T) {
	d := groupedDemands()
	a, err := Cluster(d, DefaultClusterConfig())
	require.NoError(t, err)
	b, err := Cluster(d, DefaultClusterConfig())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestClusterTooFewSites(t *testing.T) {
	_, err := Cluster([]SiteDemand{flatDemand("a", 1, 1)}, DefaultClusterConfig())
	if !errors.Is(err, ErrTooFewSites) {
		t.Fatalf("expected ErrTooFewSites, got %v", err)
	}
}

func TestClusterIdenticalSites(t *testing.T) {
	d := []SiteDemand{flatDemand("a", 5, 1), flatDemand("b", 5, 1), flatDemand("c", 5, 1)}
	res, err := Cluster(d, DefaultClusterConfig())
	require.NoError(t, err)
	for _, c := range res.Centers {
		assert.InDelta(t, 5.0, c[0], 1e-9)
	}
	assert.InDelta(t, 0.0, res.Inertia, 1e-12)
}

func TestProfilesRows(t *testing.T) {
	c := &Clustering{Centers: [][]float64{
		{1.5, 2, 3, 4, 5, 6, 7, 10, 20, 30, 40, 50, 60, 70.5},
	}}
	rows := c.Profiles()
	require.Len(t, rows, 2*DaysPerWeek)
	assert.Equal(t, ClusterProfile{Cluster: 1, Weekday: 1, Charger: ChargerFast, Count: 2}, rows[0])
	assert.Equal(t, ClusterProfile{Cluster: 1, Weekday: 1, Charger: ChargerOvernight, Count: 10}, rows[7])
	assert.Equal(t, ClusterProfile{Cluster: 1, Weekday: 7, Charger: ChargerOvernight, Count: 70}, rows[13])
}

func TestStandardize(t *testing.T) {
	x := mat.NewDense(4, 2, []float64{
		1, 3,
		2, 3,
		3, 3,
		4, 3,
	})
	mean, scale := standardize(x)
	assert.InDelta(t, 2.5, mean[0], 1e-12)
	// population std of 1..4
	assert.InDelta(t, 1.118033988749895, scale[0], 1e-12)
	assert.Equal(t, 1.0, scale[1], "constant column is only centred")
	assert.InDelta(t, 0.0, x.At(2, 1), 1e-12)
	assert.InDelta(t, -1.3416407864998738, x.At(0, 0), 1e-12)
}

func TestClusterConfigValidate(t *testing.T) {
	c := DefaultClusterConfig()
	assert.Equal(t, 3, c.K)
	assert.Equal(t, 10, c.Restarts)
	assert.Equal(t, 300, c.MaxIter)
	assert.Equal(t, int64(42), c.Seed)
	c.K = -1
	require.Error(t, c.Validate())
}
