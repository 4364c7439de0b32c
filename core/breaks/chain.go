package breaks

import (
	"math"
	"math/rand"

	"github.com/kilianp07/hpcdemand/core/model"
)

// Chain is the lazy break sequence of one trip. It is consumed with Next
// and cannot be restarted.
type Chain struct {
	trip         model.Trip
	reg          regulation
	path         *path
	st           state
	rng          *rand.Rand
	pathKm       float64
	endKm        float64
	offsetKm     float64
	seq          int
	done         bool
	reclassified bool
	err          error
}

// Next returns the next break, or false once the trip end is reached.
func (c *Chain) Next() (model.BreakEvent, bool) {
	if c.done {
		return model.BreakEvent{}, false
	}
	need := math.Max(c.interval()-c.st.sinceShortKm, 0)
	pos := c.pathKm + need
	if pos > c.endKm+eps {
		c.done = true
		return model.BreakEvent{}, false
	}
	c.st.drive(need)
	c.pathKm = pos
	typ := c.st.stop(c.reg)
	coord, edgeID := c.path.locate(pos)
	c.seq++
	return model.BreakEvent{
		TripID:   c.trip.ID,
		Seq:      c.seq,
		Type:     typ,
		Coord:    coord,
		PathKm:   pos,
		DrivenKm: c.offsetKm + pos,
		EdgeID:   edgeID,
		Driver:   c.st.mode,
		Weight:   c.trip.EffectiveWeight(),
	}, true
}

// Err returns the data-quality warning of a skipped trip, or nil.
func (c *Chain) Err() error { return c.err }

// Mode returns the crew mode the trip is driven with.
func (c *Chain) Mode() model.DriverMode { return c.st.mode }

// Reclassified reports whether an overlong single-driver trip was switched
// to a double crew.
func (c *Chain) Reclassified() bool { return c.reclassified }

// Collect drains the chain.
func (c *Chain) Collect() []model.BreakEvent {
	var out []model.BreakEvent
	for {
		ev, ok := c.Next()
		if !ok {
			return out
		}
		out = append(out, ev)
	}
}

func (c *Chain) interval() float64 {
	if c.rng == nil {
		return c.reg.shortKm
	}
	return c.reg.shortKm + (c.rng.Float64()*2-1)*c.reg.jitterKm
}

// tripSeed mixes the configured seed with the trip id so jitter does not
// depend on the order trips are processed in.
func tripSeed(seed, tripID int64) int64 {
	return int64(uint64(seed) ^ (uint64(tripID) * 0x9E3779B97F4A7C15))
}
