package breaks

import "github.com/kilianp07/hpcdemand/core/model"

const eps = 1e-9

// regulation is the threshold policy derived from Config.
type regulation struct {
	shortKm   float64
	jitterKm  float64
	intervals map[model.DriverMode]int
}

func newRegulation(cfg Config) regulation {
	return regulation{
		shortKm:  cfg.ShortBreakKm,
		jitterKm: cfg.JitterKm,
		intervals: map[model.DriverMode]int{
			model.SingleDriver: cfg.LongRestIntervalsSingle,
			model.DoubleDriver: cfg.LongRestIntervalsDouble,
		},
	}
}

// longRestKm is the driving distance after which a break becomes a long rest.
func (r regulation) longRestKm(mode model.DriverMode) float64 {
	return float64(r.intervals[mode]) * r.shortKm
}

// tolerance absorbs the jitter accumulated over the intervals of a day.
func (r regulation) tolerance(mode model.DriverMode) float64 {
	return float64(r.intervals[mode])*r.jitterKm + eps
}

// state is the per-trip regulation state.
type state struct {
	mode         model.DriverMode
	sinceShortKm float64
	sinceLongKm  float64
}

func (s *state) drive(km float64) {
	s.sinceShortKm += km
	s.sinceLongKm += km
}

// stop takes the due break and returns its type.
func (s *state) stop(r regulation) model.BreakType {
	s.sinceShortKm = 0
	if s.sinceLongKm+r.tolerance(s.mode) >= r.longRestKm(s.mode) {
		s.sinceLongKm = 0
		return model.BreakLong
	}
	return model.BreakShort
}
