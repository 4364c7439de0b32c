package assign

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/kilianp07/hpcdemand/core/geo"
	"github.com/kilianp07/hpcdemand/core/logger"
	"github.com/kilianp07/hpcdemand/core/model"
)

var (
	// ErrNoSites is returned when the assigner is built without sites.
	ErrNoSites = errors.New("no candidate sites")
	// ErrTableMismatch is returned when a load table does not match the site set.
	ErrTableMismatch = errors.New("load table does not match site set")
	// ErrInvalidCoordinate is returned for a site or event position that is
	// not a finite WGS84 coordinate.
	ErrInvalidCoordinate = errors.New("invalid coordinate")
)

// Assignment records where one break event went.
type Assignment struct {
	TripID    int64
	Seq       int
	Type      model.BreakType
	SiteIndex int
	SiteID    string
	Rule      model.AssignRule
}

// Result summarises one Assign call.
type Result struct {
	Assignments []Assignment
	Assigned    int
	Discarded   int
	Rules       [3]int
}

// RuleCount returns how many events were decided by rule r.
func (r *Result) RuleCount(rule model.AssignRule) int { return r.Rules[rule] }

// Option customises an Assigner.
type Option func(*Assigner)

// WithBoundary discards events whose projected position is outside b.
func WithBoundary(b *geo.Boundary) Option {
	return func(a *Assigner) { a.boundary = b }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Assigner) { a.log = logger.OrNop(l) }
}

// WithMapping keeps the per-event Assignment list in results.
func WithMapping(keep bool) Option {
	return func(a *Assigner) { a.keepMapping = keep }
}

// Assigner maps break events onto charging sites. It holds no load state;
// loads live in the LoadTable passed to Assign, which must not be shared
// between goroutines.
type Assigner struct {
	cfg         Config
	sites       []model.Site
	proj        *geo.UTM
	index       Index
	boundary    *geo.Boundary
	keepMapping bool
	log         logger.Logger
}

// New projects the sites and builds the spatial index.
func New(sites []model.Site, cfg Config, opts ...Option) (*Assigner, error) {
	if len(sites) == 0 {
		return nil, ErrNoSites
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("assign config: %w", err)
	}
	proj, err := geo.ParseCRS(cfg.ProjectedCRS)
	if err != nil {
		return nil, err
	}
	pts := make([]r2.Vec, len(sites))
	for i, s := range sites {
		p := proj.Project(s.Coord)
		if !s.Coord.Finite() || !finite(p) {
			return nil, fmt.Errorf("site %q %+v: %w", s.ID, s.Coord, ErrInvalidCoordinate)
		}
		pts[i] = p
	}
	a := &Assigner{
		cfg:         cfg,
		sites:       sites,
		proj:        proj,
		index:       NewIndex(cfg.Index, pts),
		keepMapping: true,
		log:         logger.Nop{},
	}
	for _, o := range opts {
		o(a)
	}
	a.log.Debugf("assigner ready: %d sites, radius %.0f m, index %s, crs %s",
		len(sites), cfg.BufferRadiusM, cfg.Index, proj.Code())
	return a, nil
}

// Sites returns the site list in input order.
func (a *Assigner) Sites() []model.Site { return a.sites }

// Config returns the effective configuration.
func (a *Assigner) Config() Config { return a.cfg }

// NewLoadTable returns an empty table sized for the site set.
func (a *Assigner) NewLoadTable() *LoadTable { return NewLoadTable(len(a.sites)) }

// Assign folds over events starting at table.Cursor. Every processed event
// advances the cursor, so a table can be checkpointed between calls and a
// later call with the same events resumes where the previous one stopped.
func (a *Assigner) Assign(table *LoadTable, events []model.BreakEvent) (*Result, error) {
	if table == nil || len(table.Counts) != len(a.sites) || len(table.Weighted) != len(a.sites) {
		return nil, ErrTableMismatch
	}
	if table.Cursor < 0 || table.Cursor > len(events) {
		return nil, fmt.Errorf("cursor %d out of range [0,%d]", table.Cursor, len(events))
	}
	res := &Result{}
	for i := table.Cursor; i < len(events); i++ {
		ev := events[i]
		if !ev.Type.Valid() {
			return res, fmt.Errorf("event %d of trip %d: unknown break type %d", ev.Seq, ev.TripID, ev.Type)
		}
		p := a.proj.Project(ev.Coord)
		if !ev.Coord.Finite() || !finite(p) {
			return res, fmt.Errorf("event %d of trip %d at %+v: %w", ev.Seq, ev.TripID, ev.Coord, ErrInvalidCoordinate)
		}
		if a.boundary != nil && !a.boundary.Contains(p) {
			table.Discarded++
			table.Cursor = i + 1
			res.Discarded++
			continue
		}
		site, rule := a.decide(p, table)
		if site < 0 {
			return res, fmt.Errorf("event %d of trip %d: no site found", ev.Seq, ev.TripID)
		}
		table.add(site, ev)
		table.Cursor = i + 1
		res.Assigned++
		res.Rules[rule]++
		if a.keepMapping {
			res.Assignments = append(res.Assignments, Assignment{
				TripID:    ev.TripID,
				Seq:       ev.Seq,
				Type:      ev.Type,
				SiteIndex: site,
				SiteID:    a.sites[site].ID,
				Rule:      rule,
			})
		}
	}
	a.log.Debugf("assigned %d events (%d single, %d balanced, %d nearest), %d discarded",
		res.Assigned, res.Rules[model.RuleSingle], res.Rules[model.RuleBalanced],
		res.Rules[model.RuleNearest], res.Discarded)
	return res, nil
}

func (a *Assigner) decide(p r2.Vec, table *LoadTable) (int, model.AssignRule) {
	cands := a.index.Within(p, a.cfg.BufferRadiusM)
	switch len(cands) {
	case 0:
		return a.index.Nearest(p), model.RuleNearest
	case 1:
		return cands[0], model.RuleSingle
	}
	best := cands[0]
	bestLoad := table.key(best, a.cfg.BalanceBy)
	for _, c := range cands[1:] {
		// candidates ascend by index, strict comparison keeps the lowest on ties
		if l := table.key(c, a.cfg.BalanceBy); l < bestLoad {
			best, bestLoad = c, l
		}
	}
	return best, model.RuleBalanced
}

func finite(p r2.Vec) bool {
	return !math.IsNaN(p.X) && !math.IsNaN(p.Y) && !math.IsInf(p.X, 0) && !math.IsInf(p.Y, 0)
}
