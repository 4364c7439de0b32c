package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/hpcdemand/core/assign"
	"github.com/kilianp07/hpcdemand/core/audit"
	"github.com/kilianp07/hpcdemand/core/breaks"
	"github.com/kilianp07/hpcdemand/core/metrics"
	"github.com/kilianp07/hpcdemand/core/model"
	"github.com/kilianp07/hpcdemand/internal/eventbus"
)

// corridor is a 2000 km road north along 9°E, one degree of latitude per
// 100 km. A single driver stops every 360 km, alternating short and long,
// and each stop sits on one of the five sites.
func corridor() (*model.Network, []int64, []model.Site) {
	nodes := []model.Node{{ID: 0, Coord: model.Coordinate{Lat: 48, Lon: 9}}}
	var edges []model.Edge
	var path []int64
	for i := int64(1); i <= 20; i++ {
		nodes = append(nodes, model.Node{ID: i, Coord: model.Coordinate{Lat: 48 + float64(i), Lon: 9}})
		edges = append(edges, model.Edge{ID: 100 + i, From: i - 1, To: i, LengthKm: 100})
		path = append(path, 100+i)
	}
	var sites []model.Site
	for i, lat := range []float64{51.6, 55.2, 58.8, 62.4, 66.0} {
		sites = append(sites, model.Site{ID: string(rune('A' + i)), Coord: model.Coordinate{Lat: lat, Lon: 9}})
	}
	return model.NewNetwork(nodes, edges), path, sites
}

func trips(path []int64, n int) []model.Trip {
	out := make([]model.Trip, n)
	for i := range out {
		out[i] = model.Trip{ID: int64(i + 1), EdgePath: path, Driver: model.SingleDriver, Weight: 2}
	}
	return out
}

type recordingSink struct {
	mu      sync.Mutex
	gen     []metrics.BreakGenerationEvent
	passes  []metrics.AssignmentEvent
	loads   []metrics.SiteLoadEvent
	quality []metrics.DataQualityEvent
}

func (s *recordingSink) RecordBreakGeneration(ev metrics.BreakGenerationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen = append(s.gen, ev)
	return nil
}

func (s *recordingSink) RecordAssignment(ev metrics.AssignmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.passes = append(s.passes, ev)
	return nil
}

func (s *recordingSink) RecordSiteLoads(evs []metrics.SiteLoadEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loads = append(s.loads, evs...)
	return nil
}

func (s *recordingSink) RecordDataQuality(evs []metrics.DataQualityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quality = append(s.quality, evs...)
	return nil
}

// flakyStore fails every Append after the first ok calls.
type flakyStore struct {
	audit.Store
	ok    int
	calls int
}

var errDiskFull = errors.New("disk full")

func (s *flakyStore) Append(ctx context.Context, recs ...audit.Record) error {
	s.calls++
	if s.calls > s.ok {
		return errDiskFull
	}
	return s.Store.Append(ctx, recs...)
}

func newPipeline(t *testing.T, cfg assign.Config, opts ...Option) (*Pipeline, []int64) {
	t.Helper()
	net, path, sites := corridor()
	gen, err := breaks.New(breaks.Config{Workers: 2}, net, nil)
	require.NoError(t, err)
	asg, err := assign.New(sites, cfg)
	require.NoError(t, err)
	return New(gen, asg, opts...), path
}

func counts(loads []assign.SiteLoad) []int {
	out := make([]int, len(loads))
	for i, l := range loads {
		out[i] = l.Count
	}
	return out
}

func TestRun(t *testing.T) {
	sink := &recordingSink{}
	p, path := newPipeline(t, assign.Config{}, WithMetrics(sink))

	run, err := p.Run(context.Background(), trips(path, 3))
	require.NoError(t, err)
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, 15, len(run.Batch.Events))
	assert.Equal(t, []int{3, 3, 3, 3, 3}, counts(run.Loads))
	assert.Equal(t, [2]int{3, 0}, run.Loads[0].ByType)
	assert.Equal(t, [2]int{0, 3}, run.Loads[1].ByType)
	assert.Equal(t, 6.0, run.Loads[0].Weighted)

	require.Len(t, run.Passes, 2)
	assert.Equal(t, "short", run.Passes[0].Category)
	assert.Equal(t, 9, run.Passes[0].Assigned)
	assert.Equal(t, "long", run.Passes[1].Category)
	assert.Equal(t, 6, run.Passes[1].Rules[model.RuleSingle])

	require.Len(t, sink.gen, 1)
	assert.Equal(t, run.RunID, sink.gen[0].RunID)
	assert.Equal(t, 9, sink.gen[0].Short)
	assert.Equal(t, 6, sink.gen[0].Long)
	require.Len(t, sink.passes, 2)
	assert.Equal(t, 9, sink.passes[0].Single)
	require.Len(t, sink.loads, 5)
	assert.Equal(t, "B", sink.loads[1].SiteID)
	assert.Equal(t, 3, sink.loads[1].Long)
	assert.Equal(t, 6.0, sink.loads[1].LongWeighted)
	assert.Empty(t, sink.quality)
}

func TestRunSharedLoads(t *testing.T) {
	p, path := newPipeline(t, assign.Config{SharedLoads: true})
	run, err := p.Run(context.Background(), trips(path, 2))
	require.NoError(t, err)
	require.Len(t, run.Passes, 1)
	assert.Equal(t, CategoryAll, run.Passes[0].Category)
	assert.Equal(t, []int{2, 2, 2, 2, 2}, counts(run.Loads))
}

func TestRunReportsDataQuality(t *testing.T) {
	sink := &recordingSink{}
	p, path := newPipeline(t, assign.Config{}, WithMetrics(sink))
	in := trips(path, 2)
	in = append(in, model.Trip{ID: 9, EdgePath: []int64{999}})

	run, err := p.Run(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Batch.Skipped)
	require.Len(t, sink.quality, 1)
	assert.Equal(t, int64(9), sink.quality[0].TripID)
	assert.Contains(t, sink.quality[0].Reason, "unknown edge")
}

func TestRunWritesAudit(t *testing.T) {
	store, err := audit.NewJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"), audit.Rotation{})
	require.NoError(t, err)
	defer store.Close()
	p, path := newPipeline(t, assign.Config{}, WithAudit(store))

	run, err := p.Run(context.Background(), trips(path, 2))
	require.NoError(t, err)
	recs, err := store.Query(context.Background(), audit.Query{RunID: run.RunID})
	require.NoError(t, err)
	assert.Len(t, recs, 10)

	cp, err := store.LoadCheckpoint(context.Background(), run.RunID, "long")
	require.NoError(t, err)
	assert.Equal(t, 4, cp.Cursor)
}

func TestResumeAfterFailure(t *testing.T) {
	ctx := context.Background()
	store, err := audit.NewJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"), audit.Rotation{})
	require.NoError(t, err)
	defer store.Close()
	cfg := assign.Config{CheckpointEvery: 2}

	flaky := &flakyStore{Store: store, ok: 2}
	p, path := newPipeline(t, cfg, WithAudit(flaky))
	in := trips(path, 3)

	// a full run needs five short chunks, the third append fails
	first, err := p.Run(ctx, in)
	require.ErrorIs(t, err, errDiskFull)
	assert.Nil(t, first)

	recs, err := store.Query(ctx, audit.Query{})
	require.NoError(t, err)
	require.Len(t, recs, 4)
	runID := recs[0].RunID
	cp, err := store.LoadCheckpoint(ctx, runID, "short")
	require.NoError(t, err)
	assert.Equal(t, 4, cp.Cursor)

	p, _ = newPipeline(t, cfg, WithAudit(store))
	run, err := p.Resume(ctx, runID, in)
	require.NoError(t, err)
	assert.Equal(t, runID, run.RunID)
	assert.True(t, run.Passes[0].Resumed)
	assert.False(t, run.Passes[1].Resumed)
	assert.Equal(t, 5, run.Passes[0].Assigned)
	assert.Equal(t, []int{3, 3, 3, 3, 3}, counts(run.Loads))

	recs, err = store.Query(ctx, audit.Query{RunID: runID})
	require.NoError(t, err)
	assert.Len(t, recs, 15)
}

func TestResumeRejectsChangedInput(t *testing.T) {
	ctx := context.Background()
	store, err := audit.NewJSONLStore(filepath.Join(t.TempDir(), "audit.jsonl"), audit.Rotation{})
	require.NoError(t, err)
	defer store.Close()
	p, path := newPipeline(t, assign.Config{}, WithAudit(store))

	run, err := p.Run(ctx, trips(path, 3))
	require.NoError(t, err)
	_, err = p.Resume(ctx, run.RunID, trips(path, 2))
	require.ErrorIs(t, err, ErrInputChanged)
}

func TestResumeWithoutCheckpoint(t *testing.T) {
	p, path := newPipeline(t, assign.Config{})
	run, err := p.Resume(context.Background(), "0b6f1c8e-8c52-4b8e-9a3a-2f4f7f0d9c11", trips(path, 1))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 1, 1, 1, 1}, counts(run.Loads))

	_, err = p.Resume(context.Background(), "not-a-uuid", nil)
	require.Error(t, err)
}

func TestRunCancelled(t *testing.T) {
	p, path := newPipeline(t, assign.Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, trips(path, 1))
	require.ErrorIs(t, err, context.Canceled)
}

func TestFingerprint(t *testing.T) {
	evs := []model.BreakEvent{{TripID: 1, Seq: 1, Coord: model.Coordinate{Lat: 50, Lon: 9}}}
	a := fingerprint(evs, 3)
	assert.Equal(t, a, fingerprint(evs, 3))
	assert.NotEqual(t, a, fingerprint(evs, 4))
	moved := []model.BreakEvent{{TripID: 1, Seq: 1, Coord: model.Coordinate{Lat: 50.1, Lon: 9}}}
	assert.NotEqual(t, a, fingerprint(moved, 3))
}

func TestRunPublishesProgress(t *testing.T) {
	bus := eventbus.New[Progress](32)
	ch := bus.Subscribe()
	p, path := newPipeline(t, assign.Config{CheckpointEvery: 4}, WithProgress(bus))

	run, err := p.Run(context.Background(), trips(path, 2))
	require.NoError(t, err)
	bus.Close()

	var got []Progress
	for ev := range ch {
		got = append(got, ev)
	}
	// breaks, short 4/6 and 6/6, long 4/4
	require.Len(t, got, 4)
	assert.Equal(t, Progress{RunID: run.RunID, Stage: StageBreaks, Done: 10, Total: 10}, got[0])
	assert.Equal(t, Progress{RunID: run.RunID, Stage: StageAssign, Category: "short", Done: 4, Total: 6}, got[1])
	assert.Equal(t, 6, got[2].Done)
	assert.Equal(t, Progress{RunID: run.RunID, Stage: StageAssign, Category: "long", Done: 4, Total: 4}, got[3])
}
