package pipeline

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/hpcdemand/core/assign"
	"github.com/kilianp07/hpcdemand/core/audit"
	"github.com/kilianp07/hpcdemand/core/breaks"
	"github.com/kilianp07/hpcdemand/core/logger"
	"github.com/kilianp07/hpcdemand/core/metrics"
	"github.com/kilianp07/hpcdemand/core/model"
	"github.com/kilianp07/hpcdemand/internal/eventbus"
)

// ErrInputChanged is returned when a checkpoint was taken over different events.
var ErrInputChanged = errors.New("inputs changed since checkpoint")

// CategoryAll names the single pass used when loads are shared.
const CategoryAll = "all"

// Pass summarises the assignment of one break category.
type Pass struct {
	Category  string
	Events    int
	Assigned  int
	Discarded int
	Rules     [3]int
	Resumed   bool
	Duration  time.Duration
}

// Run is the outcome of a pipeline run.
type Run struct {
	RunID  string
	Batch  *breaks.Batch
	Passes []Pass
	// Table holds the merged loads of all passes.
	Table *assign.LoadTable
	Loads []assign.SiteLoad
}

// Stages reported in Progress events.
const (
	StageBreaks = "breaks"
	StageAssign = "assign"
)

// Progress reports work done so far. For the breaks stage Done counts
// generated events; for assign it is the category cursor.
type Progress struct {
	RunID    string
	Stage    string
	Category string
	Done     int
	Total    int
}

// Option customises a Pipeline.
type Option func(*Pipeline)

// WithMetrics sets the metrics sink.
func WithMetrics(s metrics.MetricsSink) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.sink = s
		}
	}
}

// WithAudit sets the audit store.
func WithAudit(s audit.Store) Option {
	return func(p *Pipeline) {
		if s != nil {
			p.store = s
		}
	}
}

// WithProgress publishes Progress events on bus.
func WithProgress(bus *eventbus.Bus[Progress]) Option {
	return func(p *Pipeline) { p.progress = bus }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) { p.log = logger.OrNop(l) }
}

// Pipeline wires a generator and an assigner.
type Pipeline struct {
	gen   *breaks.Generator
	asg   *assign.Assigner
	sink  metrics.MetricsSink
	store audit.Store
	log   logger.Logger
	now   func() time.Time

	progress *eventbus.Bus[Progress]
}

// New creates a pipeline. Metrics and audit default to no-ops.
func New(gen *breaks.Generator, asg *assign.Assigner, opts ...Option) *Pipeline {
	p := &Pipeline{
		gen:   gen,
		asg:   asg,
		sink:  metrics.NopSink{},
		store: audit.NopStore{},
		log:   logger.Nop{},
		now:   time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run processes trips under a fresh run id.
func (p *Pipeline) Run(ctx context.Context, trips []model.Trip) (*Run, error) {
	return p.run(ctx, uuid.NewString(), trips, false)
}

// Resume continues runID from its stored checkpoints. Break generation is
// deterministic, so the events are rebuilt and checked against the
// checkpoint fingerprint before folding from the saved cursor.
func (p *Pipeline) Resume(ctx context.Context, runID string, trips []model.Trip) (*Run, error) {
	if _, err := uuid.Parse(runID); err != nil {
		return nil, fmt.Errorf("invalid run id %q: %w", runID, err)
	}
	return p.run(ctx, runID, trips, true)
}

func (p *Pipeline) run(ctx context.Context, runID string, trips []model.Trip, resume bool) (*Run, error) {
	p.log.Infof("run %s: %d trips, %d sites", runID, len(trips), len(p.asg.Sites()))
	start := p.now()
	batch, err := p.gen.Generate(ctx, trips)
	if err != nil {
		return nil, fmt.Errorf("generate breaks: %w", err)
	}
	p.recordGeneration(runID, batch, p.now().Sub(start))
	p.progress.Publish(Progress{RunID: runID, Stage: StageBreaks, Done: len(batch.Events), Total: len(batch.Events)})

	run := &Run{RunID: runID, Batch: batch, Table: p.asg.NewLoadTable()}
	for _, c := range p.categories(batch.Events) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		table, pass, err := p.assign(ctx, runID, c.name, c.events, resume)
		if err != nil {
			return nil, fmt.Errorf("assign %s breaks: %w", c.name, err)
		}
		if err := run.Table.Merge(table); err != nil {
			return nil, err
		}
		run.Passes = append(run.Passes, pass)
	}
	run.Loads = run.Table.Loads(p.asg.Sites())
	p.recordLoads(runID, run.Loads)
	p.log.Infof("run %s: %d breaks assigned, %d discarded", runID, run.Table.Total(), run.Table.Discarded)
	return run, nil
}

type category struct {
	name   string
	events []model.BreakEvent
}

// categories splits events per break type unless loads are shared.
// Event order inside a category follows the batch order.
func (p *Pipeline) categories(events []model.BreakEvent) []category {
	if p.asg.Config().SharedLoads {
		return []category{{name: CategoryAll, events: events}}
	}
	out := make([]category, len(model.BreakTypes))
	for i, t := range model.BreakTypes {
		out[i].name = t.String()
	}
	for _, ev := range events {
		out[ev.Type].events = append(out[ev.Type].events, ev)
	}
	return out
}

func (p *Pipeline) assign(ctx context.Context, runID, cat string, events []model.BreakEvent, resume bool) (*assign.LoadTable, Pass, error) {
	pass := Pass{Category: cat, Events: len(events)}
	fp := fingerprint(events, len(p.asg.Sites()))
	table := p.asg.NewLoadTable()
	if resume {
		cp, err := p.store.LoadCheckpoint(ctx, runID, cat)
		switch {
		case errors.Is(err, audit.ErrNoCheckpoint):
			p.log.Warnf("run %s: no %s checkpoint, starting from scratch", runID, cat)
		case err != nil:
			return nil, pass, err
		default:
			if cp.Fingerprint != fp {
				return nil, pass, ErrInputChanged
			}
			if table, err = cp.Table(len(p.asg.Sites())); err != nil {
				return nil, pass, err
			}
			pass.Resumed = true
			p.log.Infof("run %s: resuming %s breaks at %d/%d", runID, cat, table.Cursor, len(events))
		}
	}

	step := p.asg.Config().CheckpointEvery
	if step <= 0 {
		step = math.MaxInt
	}
	start := p.now()
	for {
		end := len(events)
		if len(events)-table.Cursor > step {
			end = table.Cursor + step
		}
		res, err := p.asg.Assign(table, events[:end])
		if err != nil {
			return nil, pass, err
		}
		pass.Assigned += res.Assigned
		pass.Discarded += res.Discarded
		for r, n := range res.Rules {
			pass.Rules[r] += n
		}
		if len(res.Assignments) > 0 {
			if err := p.store.Append(ctx, audit.FromAssignments(runID, p.now().UTC(), res.Assignments)...); err != nil {
				return nil, pass, fmt.Errorf("audit append: %w", err)
			}
		}
		if err := p.store.SaveCheckpoint(ctx, audit.NewCheckpoint(runID, cat, fp, table)); err != nil {
			return nil, pass, fmt.Errorf("save checkpoint: %w", err)
		}
		p.progress.Publish(Progress{RunID: runID, Stage: StageAssign, Category: cat, Done: table.Cursor, Total: len(events)})
		if table.Cursor >= len(events) {
			break
		}
	}
	pass.Duration = p.now().Sub(start)
	p.recordPass(runID, pass)
	return table, pass, nil
}

func (p *Pipeline) recordGeneration(runID string, b *breaks.Batch, d time.Duration) {
	ts := p.now()
	err := p.sink.RecordBreakGeneration(metrics.BreakGenerationEvent{
		RunID:        runID,
		Trips:        b.Trips,
		Skipped:      b.Skipped,
		Reclassified: b.Reclassified,
		Short:        b.Short,
		Long:         b.Long,
		Duration:     d,
		Time:         ts,
	})
	if err != nil {
		p.log.Errorf("record break generation: %v", err)
	}
	rec, ok := p.sink.(metrics.DataQualityRecorder)
	if !ok || len(b.Warnings) == 0 {
		return
	}
	evs := make([]metrics.DataQualityEvent, len(b.Warnings))
	for i, w := range b.Warnings {
		evs[i] = metrics.DataQualityEvent{RunID: runID, TripID: w.TripID, Reason: w.Err.Error(), Time: ts}
	}
	if err := rec.RecordDataQuality(evs); err != nil {
		p.log.Errorf("record data quality: %v", err)
	}
}

func (p *Pipeline) recordPass(runID string, pass Pass) {
	rec, ok := p.sink.(metrics.AssignmentRecorder)
	if !ok {
		return
	}
	err := rec.RecordAssignment(metrics.AssignmentEvent{
		RunID:     runID,
		Category:  pass.Category,
		Assigned:  pass.Assigned,
		Discarded: pass.Discarded,
		Single:    pass.Rules[model.RuleSingle],
		Balanced:  pass.Rules[model.RuleBalanced],
		Nearest:   pass.Rules[model.RuleNearest],
		Duration:  pass.Duration,
		Time:      p.now(),
	})
	if err != nil {
		p.log.Errorf("record assignment: %v", err)
	}
}

func (p *Pipeline) recordLoads(runID string, loads []assign.SiteLoad) {
	rec, ok := p.sink.(metrics.SiteLoadRecorder)
	if !ok {
		return
	}
	ts := p.now()
	evs := make([]metrics.SiteLoadEvent, len(loads))
	for i, l := range loads {
		evs[i] = metrics.SiteLoadEvent{
			RunID:         runID,
			SiteID:        l.SiteID,
			Short:         l.ByType[model.BreakShort],
			Long:          l.ByType[model.BreakLong],
			ShortWeighted: l.WeightedByType[model.BreakShort],
			LongWeighted:  l.WeightedByType[model.BreakLong],
			Time:          ts,
		}
	}
	if err := rec.RecordSiteLoads(evs); err != nil {
		p.log.Errorf("record site loads: %v", err)
	}
}

// fingerprint hashes the identity and position of every event.
func fingerprint(events []model.BreakEvent, sites int) string {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	put(uint64(sites))
	put(uint64(len(events)))
	for _, ev := range events {
		put(uint64(ev.TripID))
		put(uint64(ev.Seq))
		put(uint64(ev.Type))
		put(math.Float64bits(ev.Coord.Lat))
		put(math.Float64bits(ev.Coord.Lon))
		put(math.Float64bits(ev.Weight))
	}
	return fmt.Sprintf("%016x", h.Sum64())
}
