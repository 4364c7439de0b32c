package breaks

import (
	"fmt"
	"runtime"
)

// OverlongPolicy selects how single-driver trips beyond the distance limit
// are handled.
type OverlongPolicy string

const (
	// OverlongReclassify drives the trip with a double crew.
	OverlongReclassify OverlongPolicy = "reclassify"
	// OverlongTruncate stops emitting breaks at the distance limit.
	OverlongTruncate OverlongPolicy = "truncate"
	// OverlongReject skips the trip with a data-quality warning.
	OverlongReject OverlongPolicy = "reject"
)

// Default regulation values.
const (
	DefaultShortBreakKm         = 360.0
	DefaultMaxSingleDriverKm    = 4320.0
	DefaultLongRestSingleDriver = 2
	DefaultLongRestDoubleDriver = 4
)

// Config defines the driving regulation applied to trips.
type Config struct {
	ShortBreakKm      float64 `json:"short_break_distance_km"`
	MaxSingleDriverKm float64 `json:"max_single_driver_distance_km"`
	// LongRestIntervalsSingle is the number of break intervals driven by a
	// single driver between two long rests.
	LongRestIntervalsSingle int            `json:"long_rest_intervals_single"`
	LongRestIntervalsDouble int            `json:"long_rest_intervals_double"`
	OverlongPolicy          OverlongPolicy `json:"overlong_policy"`
	// JitterKm spreads break positions uniformly by up to this distance.
	JitterKm float64 `json:"jitter_km"`
	Seed     int64   `json:"seed"`
	Workers  int     `json:"workers"`
}

// DefaultConfig returns the regulation used when nothing is configured.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.ShortBreakKm == 0 {
		c.ShortBreakKm = DefaultShortBreakKm
	}
	if c.MaxSingleDriverKm == 0 {
		c.MaxSingleDriverKm = DefaultMaxSingleDriverKm
	}
	if c.LongRestIntervalsSingle == 0 {
		c.LongRestIntervalsSingle = DefaultLongRestSingleDriver
	}
	if c.LongRestIntervalsDouble == 0 {
		c.LongRestIntervalsDouble = DefaultLongRestDoubleDriver
	}
	if c.OverlongPolicy == "" {
		c.OverlongPolicy = OverlongReclassify
	}
	if c.Workers == 0 {
		c.Workers = runtime.NumCPU()
	}
}

// Validate checks the regulation is consistent.
func (c Config) Validate() error {
	if c.ShortBreakKm <= 0 {
		return fmt.Errorf("short_break_distance_km must be positive")
	}
	if c.MaxSingleDriverKm <= 0 {
		return fmt.Errorf("max_single_driver_distance_km must be positive")
	}
	if c.LongRestIntervalsSingle < 1 || c.LongRestIntervalsDouble < 1 {
		return fmt.Errorf("long rest intervals must be at least 1")
	}
	switch c.OverlongPolicy {
	case OverlongReclassify, OverlongTruncate, OverlongReject:
	default:
		return fmt.Errorf("unknown overlong_policy %q", c.OverlongPolicy)
	}
	if c.JitterKm < 0 {
		return fmt.Errorf("jitter_km must not be negative")
	}
	// jittered intervals must not shift a long rest by a whole interval
	n := max(c.LongRestIntervalsSingle, c.LongRestIntervalsDouble)
	if c.JitterKm*float64(2*n-1) >= c.ShortBreakKm {
		return fmt.Errorf("jitter_km %.1f too large for %d intervals of %.1f km", c.JitterKm, n, c.ShortBreakKm)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1")
	}
	return nil
}
