package assign

import (
	"errors"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/hpcdemand/core/geo"
	"github.com/kilianp07/hpcdemand/core/model"
)

// Three sites on the 9°E meridian. A and B are 0.5° (~55 km) apart so
// their 40 km buffers overlap around 50.25°N; C stands alone further north.
func testSites() []model.Site {
	return []model.Site{
		{ID: "A", Coord: model.Coordinate{Lat: 50.0, Lon: 9.0}},
		{ID: "B", Coord: model.Coordinate{Lat: 50.5, Lon: 9.0}},
		{ID: "C", Coord: model.Coordinate{Lat: 52.0, Lon: 9.0}},
	}
}

var (
	onlyA   = model.Coordinate{Lat: 49.8, Lon: 9.0}
	aAndB   = model.Coordinate{Lat: 50.25, Lon: 9.0}
	outside = model.Coordinate{Lat: 51.3, Lon: 9.0} // 78 km to C, 89 km to B
	onlyC   = model.Coordinate{Lat: 52.1, Lon: 9.0}
)

func event(trip int64, c model.Coordinate) model.BreakEvent {
	return model.BreakEvent{TripID: trip, Seq: 1, Type: model.BreakShort, Coord: c, Weight: 1}
}

func newAssigner(t *testing.T, cfg Config, opts ...Option) *Assigner {
	t.Helper()
	a, err := New(testSites(), cfg, opts...)
	require.NoError(t, err)
	return a
}

func counts(t *LoadTable) []int {
	out := make([]int, len(t.Counts))
	for i := range out {
		out[i] = t.Count(i)
	}
	return out
}

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.BufferRadiusM != 40000 {
		t.Fatalf("buffer radius = %v, want 40000", cfg.BufferRadiusM)
	}
	if cfg.ProjectedCRS != "EPSG:32632" {
		t.Fatalf("crs = %q, want EPSG:32632", cfg.ProjectedCRS)
	}
	if cfg.BalanceBy != BalanceCount || cfg.Index != IndexRTree || cfg.SharedLoads {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"radius", func(c *Config) { c.BufferRadiusM = -1 }},
		{"crs", func(c *Config) { c.ProjectedCRS = "EPSG:4326" }},
		{"balance", func(c *Config) { c.BalanceBy = "random" }},
		{"index", func(c *Config) { c.Index = "kdtree" }},
		{"checkpoint", func(c *Config) { c.CheckpointEvery = -5 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mod(&c)
			if err := c.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestNewWithoutSites(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	if !errors.Is(err, ErrNoSites) {
		t.Fatalf("expected ErrNoSites, got %v", err)
	}
}

func TestNewUnknownCRS(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ProjectedCRS = "EPSG:3857"
	_, err := New(testSites(), cfg)
	require.Error(t, err)
}

func TestSingleBufferIgnoresLoad(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	table := a.NewLoadTable()
	table.Counts[0][model.BreakShort] = 1000

	res, err := a.Assign(table, []model.BreakEvent{event(1, onlyA)})
	require.NoError(t, err)
	assert.Equal(t, []int{1001, 0, 0}, counts(table))
	assert.Equal(t, model.RuleSingle, res.Assignments[0].Rule)
	assert.Equal(t, "A", res.Assignments[0].SiteID)
}

func TestLowerLoadWins(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	table := a.NewLoadTable()
	table.Counts[0][model.BreakShort] = 2
	table.Counts[1][model.BreakShort] = 5

	res, err := a.Assign(table, []model.BreakEvent{event(1, aAndB)})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 5, 0}, counts(table))
	assert.Equal(t, model.RuleBalanced, res.Assignments[0].Rule)
}

func TestTieGoesToLowestIndex(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	table := a.NewLoadTable()
	table.Counts[0][model.BreakShort] = 4
	table.Counts[1][model.BreakLong] = 4

	res, err := a.Assign(table, []model.BreakEvent{event(1, aAndB)})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Assignments[0].SiteIndex)
}

func TestBalanceByWeight(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BalanceBy = BalanceWeight
	a := newAssigner(t, cfg)
	table := a.NewLoadTable()

	heavy := event(1, aAndB)
	heavy.Weight = 10
	evs := []model.BreakEvent{heavy, event(2, aAndB), event(3, aAndB)}
	_, err := a.Assign(table, evs)
	require.NoError(t, err)

	// first to A (tie), then B twice because A carries weight 10
	assert.Equal(t, []int{1, 2, 0}, counts(table))
	assert.InDelta(t, 10.0, table.Weight(0), 1e-12)
	assert.InDelta(t, 2.0, table.Weight(1), 1e-12)
}

func TestZeroWeightCountsAsOne(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	table := a.NewLoadTable()
	ev := event(1, onlyC)
	ev.Weight = 0
	_, err := a.Assign(table, []model.BreakEvent{ev})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, table.Weight(2), 1e-12)
}

func TestOutsideAllBuffersGoesToNearest(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	table := a.NewLoadTable()
	table.Counts[2][model.BreakShort] = 50

	res, err := a.Assign(table, []model.BreakEvent{event(1, outside)})
	require.NoError(t, err)
	assert.Equal(t, "C", res.Assignments[0].SiteID)
	assert.Equal(t, model.RuleNearest, res.Assignments[0].Rule)
}

func TestNearestMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	sites := make([]model.Site, 40)
	for i := range sites {
		sites[i] = model.Site{
			ID:    string(rune('a' + i%26)),
			Coord: model.Coordinate{Lat: 47.5 + rng.Float64()*7, Lon: 6 + rng.Float64()*9},
		}
	}
	cfg := DefaultConfig()
	cfg.BufferRadiusM = 1 // force the nearest branch
	a, err := New(sites, cfg, WithMapping(true))
	require.NoError(t, err)

	proj, err := geo.ParseCRS(cfg.ProjectedCRS)
	require.NoError(t, err)

	for i := 0; i < 300; i++ {
		c := model.Coordinate{Lat: 47 + rng.Float64()*8, Lon: 5 + rng.Float64()*11}
		table := a.NewLoadTable()
		res, err := a.Assign(table, []model.BreakEvent{event(int64(i), c)})
		require.NoError(t, err)

		p := proj.Project(c)
		want, wantD := -1, 0.0
		for j, s := range sites {
			d := geo.Distance(p, proj.Project(s.Coord))
			if want < 0 || d < wantD {
				want, wantD = j, d
			}
		}
		if res.Assignments[0].SiteIndex != want {
			t.Fatalf("point %v: got site %d, brute force %d", c, res.Assignments[0].SiteIndex, want)
		}
	}
}

func TestEndToEndLoadVector(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	table := a.NewLoadTable()
	table.Counts[1][model.BreakShort] = 3 // B starts busy

	evs := []model.BreakEvent{
		event(1, onlyA),   // A only          -> A=1
		event(2, aAndB),   // A=1 < B=3       -> A=2
		event(3, aAndB),   // A=2 < B=3       -> A=3
		event(4, outside), // no buffer, C    -> C=1
		event(5, onlyC),   // C only          -> C=2
	}
	res, err := a.Assign(table, evs)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 2}, counts(table))
	assert.Equal(t, 2, res.RuleCount(model.RuleSingle))
	assert.Equal(t, 2, res.RuleCount(model.RuleBalanced))
	assert.Equal(t, 1, res.RuleCount(model.RuleNearest))
	assert.Equal(t, 5, res.Assigned)
	assert.Equal(t, 5, table.Cursor)

	loads := table.Loads(a.Sites())
	assert.Equal(t, "C", loads[2].SiteID)
	assert.Equal(t, 2, loads[2].ByType[model.BreakShort])
}

func TestRerunIsIdempotent(t *testing.T) {
	evs := []model.BreakEvent{event(1, aAndB), event(2, aAndB), event(3, outside), event(4, onlyA), event(5, aAndB)}
	for _, kind := range []IndexKind{IndexRTree, IndexScan} {
		cfg := DefaultConfig()
		cfg.Index = kind
		a := newAssigner(t, cfg)

		first := a.NewLoadTable()
		_, err := a.Assign(first, evs)
		require.NoError(t, err)
		second := a.NewLoadTable()
		_, err = a.Assign(second, evs)
		require.NoError(t, err)

		assert.Equal(t, first, second, "index %s", kind)
	}
}

func TestResumeFromCursor(t *testing.T) {
	evs := []model.BreakEvent{event(1, aAndB), event(2, aAndB), event(3, onlyA), event(4, aAndB), event(5, outside), event(6, aAndB)}
	a := newAssigner(t, DefaultConfig())

	full := a.NewLoadTable()
	_, err := a.Assign(full, evs)
	require.NoError(t, err)

	part := a.NewLoadTable()
	_, err = a.Assign(part, evs[:4])
	require.NoError(t, err)
	require.Equal(t, 4, part.Cursor)

	resumed := part.Clone()
	res, err := a.Assign(resumed, evs)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Assigned)
	assert.Equal(t, full, resumed)
}

func TestCursorOutOfRange(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	table := a.NewLoadTable()
	table.Cursor = 3
	_, err := a.Assign(table, []model.BreakEvent{event(1, onlyA)})
	require.Error(t, err)
}

func TestNewRejectsInvalidSite(t *testing.T) {
	sites := testSites()
	sites[1].Coord.Lat = math.NaN()
	_, err := New(sites, DefaultConfig())
	if !errors.Is(err, ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
}

func TestInvalidEventCoordinate(t *testing.T) {
	bad := []model.Coordinate{
		{Lat: math.NaN(), Lon: 9},
		{Lat: 50, Lon: math.Inf(-1)},
	}
	for _, kind := range []IndexKind{IndexRTree, IndexScan} {
		for _, c := range bad {
			cfg := DefaultConfig()
			cfg.Index = kind
			a := newAssigner(t, cfg)
			table := a.NewLoadTable()
			events := []model.BreakEvent{event(1, onlyA), event(2, c), event(3, onlyC)}

			done := make(chan error, 1)
			go func() {
				_, err := a.Assign(table, events)
				done <- err
			}()
			select {
			case err := <-done:
				require.ErrorIs(t, err, ErrInvalidCoordinate, "%s %+v", kind, c)
			case <-time.After(5 * time.Second):
				t.Fatalf("%s: Assign did not return for %+v", kind, c)
			}
			assert.Equal(t, 1, table.Cursor)
			assert.Equal(t, []int{1, 0, 0}, counts(table))
		}
	}
}

func TestTableMismatch(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	_, err := a.Assign(NewLoadTable(2), nil)
	if !errors.Is(err, ErrTableMismatch) {
		t.Fatalf("expected ErrTableMismatch, got %v", err)
	}
}

func TestBoundaryDiscards(t *testing.T) {
	cfg := DefaultConfig()
	proj, err := geo.ParseCRS(cfg.ProjectedCRS)
	require.NoError(t, err)
	// lon/lat box covering A and B but not C
	box := orb.MultiPolygon{{{{8, 49}, {10, 49}, {10, 51}, {8, 51}, {8, 49}}}}
	a := newAssigner(t, cfg, WithBoundary(geo.NewBoundary(box, proj)))

	table := a.NewLoadTable()
	res, err := a.Assign(table, []model.BreakEvent{event(1, onlyA), event(2, onlyC), event(3, aAndB)})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Discarded)
	assert.Equal(t, 1, table.Discarded)
	assert.Equal(t, 2, table.Total())
	assert.Equal(t, 3, table.Cursor)
	assert.Equal(t, 0, table.Count(2))
}

func TestPerTypeCounts(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	table := a.NewLoadTable()
	long := event(1, onlyC)
	long.Type = model.BreakLong
	long.Weight = 3
	_, err := a.Assign(table, []model.BreakEvent{long, event(2, onlyC)})
	require.NoError(t, err)

	l := table.Loads(a.Sites())[2]
	assert.Equal(t, 2, l.Count)
	assert.Equal(t, [model.NumBreakTypes]int{1, 1}, l.ByType)
	assert.InDelta(t, 3.0, l.WeightedByType[model.BreakLong], 1e-12)
	assert.InDelta(t, 4.0, l.Weighted, 1e-12)
}

func TestUnknownBreakType(t *testing.T) {
	a := newAssigner(t, DefaultConfig())
	ev := event(1, onlyA)
	ev.Type = model.BreakType(9)
	_, err := a.Assign(a.NewLoadTable(), []model.BreakEvent{ev})
	require.Error(t, err)
}

func TestWithoutMapping(t *testing.T) {
	a := newAssigner(t, DefaultConfig(), WithMapping(false))
	res, err := a.Assign(a.NewLoadTable(), []model.BreakEvent{event(1, onlyA)})
	require.NoError(t, err)
	assert.Empty(t, res.Assignments)
	assert.Equal(t, 1, res.Assigned)
}

func TestMerge(t *testing.T) {
	a := NewLoadTable(2)
	b := NewLoadTable(2)
	a.Counts[0][model.BreakShort] = 2
	b.Counts[0][model.BreakLong] = 1
	b.Weighted[1][model.BreakLong] = 4
	b.Discarded = 3
	require.NoError(t, a.Merge(b))
	assert.Equal(t, 3, a.Count(0))
	assert.InDelta(t, 4.0, a.Weight(1), 1e-12)
	assert.Equal(t, 3, a.Discarded)
	require.ErrorIs(t, a.Merge(NewLoadTable(3)), ErrTableMismatch)
}
