package assign

import (
	"fmt"

	"github.com/kilianp07/hpcdemand/core/geo"
)

// BalanceKey selects the load compared between competing sites.
type BalanceKey string

const (
	// BalanceCount compares the number of assigned breaks.
	BalanceCount BalanceKey = "count"
	// BalanceWeight compares the summed truck weights of assigned breaks.
	BalanceWeight BalanceKey = "weight"
)

// IndexKind selects the spatial index over sites.
type IndexKind string

const (
	IndexRTree IndexKind = "rtree"
	IndexScan  IndexKind = "scan"
)

// DefaultBufferRadiusM is the catchment radius around a site.
const DefaultBufferRadiusM = 40000.0

// Config defines the assignment settings.
type Config struct {
	BufferRadiusM float64    `json:"buffer_radius_m"`
	ProjectedCRS  string     `json:"projected_crs"`
	BalanceBy     BalanceKey `json:"balance_by"`
	Index         IndexKind  `json:"index"`
	// SharedLoads balances short and long breaks against one load table
	// instead of one table per break category.
	SharedLoads bool `json:"shared_loads"`
	// CheckpointEvery persists the load table after this many events.
	// Zero disables intermediate checkpoints.
	CheckpointEvery int `json:"checkpoint_every"`
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	var c Config
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.BufferRadiusM == 0 {
		c.BufferRadiusM = DefaultBufferRadiusM
	}
	if c.ProjectedCRS == "" {
		c.ProjectedCRS = geo.DefaultCRS
	}
	if c.BalanceBy == "" {
		c.BalanceBy = BalanceCount
	}
	if c.Index == "" {
		c.Index = IndexRTree
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.BufferRadiusM <= 0 {
		return fmt.Errorf("buffer_radius_m must be positive")
	}
	if _, err := geo.ParseCRS(c.ProjectedCRS); err != nil {
		return err
	}
	switch c.BalanceBy {
	case BalanceCount, BalanceWeight:
	default:
		return fmt.Errorf("unknown balance_by %q", c.BalanceBy)
	}
	switch c.Index {
	case IndexRTree, IndexScan:
	default:
		return fmt.Errorf("unknown index %q", c.Index)
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint_every must not be negative")
	}
	return nil
}
