package breaks

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/hpcdemand/core/logger"
	"github.com/kilianp07/hpcdemand/core/model"
)

// Generator produces break chains for trips on a network.
type Generator struct {
	cfg Config
	reg regulation
	net *model.Network
	log logger.Logger
}

// New returns a Generator. cfg is validated after defaults are applied.
func New(cfg Config, net *model.Network, log logger.Logger) (*Generator, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("break regulation: %w", err)
	}
	return &Generator{cfg: cfg, reg: newRegulation(cfg), net: net, log: logger.OrNop(log)}, nil
}

// Config returns the effective regulation.
func (g *Generator) Config() Config { return g.cfg }

// Chain prepares the break sequence of a trip. Malformed trips yield an
// empty chain whose Err reports the problem.
func (g *Generator) Chain(trip model.Trip) *Chain {
	c := &Chain{trip: trip, reg: g.reg, done: true}
	skip := func(err error) *Chain {
		c.err = &DataQualityError{TripID: trip.ID, Err: err}
		return c
	}
	if trip.OriginOffsetKm < 0 || math.IsNaN(trip.OriginOffsetKm) {
		return skip(fmt.Errorf("%w: negative origin offset", ErrMalformedPath))
	}
	p, err := resolvePath(g.net, trip)
	if err != nil {
		return skip(err)
	}

	mode := trip.Driver
	if mode != model.DoubleDriver {
		mode = model.SingleDriver
	}
	total := trip.OriginOffsetKm + p.lengthKm
	if trip.DistanceKm > 0 {
		total = math.Min(total, trip.DistanceKm)
	}
	end := total
	if mode == model.SingleDriver && total > g.cfg.MaxSingleDriverKm {
		switch g.cfg.OverlongPolicy {
		case OverlongReject:
			return skip(fmt.Errorf("%w: %.1f km", ErrTripTooLong, total))
		case OverlongTruncate:
			end = g.cfg.MaxSingleDriverKm
		default:
			mode = model.DoubleDriver
			c.reclassified = true
		}
	}

	carried := math.Min(trip.OriginOffsetKm, g.cfg.ShortBreakKm)
	c.path = p
	c.offsetKm = trip.OriginOffsetKm
	c.endKm = end - trip.OriginOffsetKm
	c.st = state{mode: mode, sinceShortKm: carried, sinceLongKm: carried}
	if g.cfg.JitterKm > 0 {
		c.rng = rand.New(rand.NewSource(tripSeed(g.cfg.Seed, trip.ID)))
	}
	c.done = c.endKm < 0
	return c
}

// Batch is the outcome of generating breaks for a set of trips.
type Batch struct {
	// Events are ordered by trip id, then sequence.
	Events       []model.BreakEvent
	Warnings     []*DataQualityError
	Trips        int
	Skipped      int
	Reclassified int
	Short        int
	Long         int
}

type tripResult struct {
	id           int64
	events       []model.BreakEvent
	warn         *DataQualityError
	reclassified bool
}

// Generate runs all trips through a bounded worker pool. Trips are
// independent, so the only shared step is the final ordering.
func (g *Generator) Generate(ctx context.Context, trips []model.Trip) (*Batch, error) {
	results := make([]tripResult, len(trips))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(g.cfg.Workers)
	for i := range trips {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			c := g.Chain(trips[i])
			res := tripResult{id: trips[i].ID, events: c.Collect(), reclassified: c.Reclassified()}
			var dq *DataQualityError
			if errors.As(c.Err(), &dq) {
				res.warn = dq
			}
			results[i] = res
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].id < results[j].id })
	b := &Batch{Trips: len(trips)}
	for _, r := range results {
		if r.warn != nil {
			b.Skipped++
			b.Warnings = append(b.Warnings, r.warn)
			g.log.Warnf("skipping trip: %v", r.warn)
			continue
		}
		if r.reclassified {
			b.Reclassified++
		}
		for _, ev := range r.events {
			if ev.Type == model.BreakLong {
				b.Long++
			} else {
				b.Short++
			}
		}
		b.Events = append(b.Events, r.events...)
	}
	g.log.Infof("generated %d breaks (%d short, %d long) for %d trips, %d skipped, %d reclassified",
		len(b.Events), b.Short, b.Long, b.Trips, b.Skipped, b.Reclassified)
	return b, nil
}
