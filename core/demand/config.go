package demand

import (
	"fmt"
	"strings"
)

// Basis selects which site load feeds the scaling.
type Basis string

const (
	// BasisWeighted uses the summed truck flows of the assigned breaks.
	BasisWeighted Basis = "weighted"
	// BasisCount uses the number of assigned breaks.
	BasisCount Basis = "count"
)

// Factors are the multiplicative market assumptions.
type Factors struct {
	BEVShare      float64 `json:"bev_share"`
	TrafficGrowth float64 `json:"traffic_growth"`
	NetworkShare  float64 `json:"network_share"`
	WeeksPerYear  float64 `json:"weeks_per_year"`
}

// DefaultFactors returns the 2035 scenario.
func DefaultFactors() Factors {
	return Factors{BEVShare: 0.74, TrafficGrowth: 1.041, NetworkShare: 0.6, WeeksPerYear: 52}
}

// Product is the combined scale applied to break loads.
func (f Factors) Product() float64 {
	return f.BEVShare * f.TrafficGrowth * f.NetworkShare
}

// Config is the demand section of the application config.
type Config struct {
	Factors Factors `json:"factors"`
	Basis   Basis   `json:"basis"`
	// ExcludeRoads drops toll sections whose road label contains any entry,
	// federal roads ("B") by default.
	ExcludeRoads []string `json:"exclude_roads"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	d := DefaultFactors()
	if c.Factors.BEVShare == 0 {
		c.Factors.BEVShare = d.BEVShare
	}
	if c.Factors.TrafficGrowth == 0 {
		c.Factors.TrafficGrowth = d.TrafficGrowth
	}
	if c.Factors.NetworkShare == 0 {
		c.Factors.NetworkShare = d.NetworkShare
	}
	if c.Factors.WeeksPerYear == 0 {
		c.Factors.WeeksPerYear = d.WeeksPerYear
	}
	if c.Basis == "" {
		c.Basis = BasisWeighted
	}
	if c.ExcludeRoads == nil {
		c.ExcludeRoads = []string{"B"}
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	f := c.Factors
	if f.BEVShare < 0 || f.BEVShare > 1 {
		return fmt.Errorf("bev_share must be within [0,1]")
	}
	if f.NetworkShare < 0 || f.NetworkShare > 1 {
		return fmt.Errorf("network_share must be within [0,1]")
	}
	if f.TrafficGrowth <= 0 {
		return fmt.Errorf("traffic_growth must be positive")
	}
	if f.WeeksPerYear <= 0 {
		return fmt.Errorf("weeks_per_year must be positive")
	}
	switch c.Basis {
	case BasisWeighted, BasisCount:
	default:
		return fmt.Errorf("unknown basis %q", c.Basis)
	}
	for _, r := range c.ExcludeRoads {
		if strings.TrimSpace(r) == "" {
			return fmt.Errorf("exclude_roads entries must not be empty")
		}
	}
	return nil
}

// ClusterConfig controls the k-means grouping of weekly demand.
type ClusterConfig struct {
	Enabled  bool  `json:"enabled"`
	K        int   `json:"k"`
	Restarts int   `json:"restarts"`
	MaxIter  int   `json:"max_iter"`
	Seed     int64 `json:"seed"`
}

// DefaultClusterConfig returns the reference clustering setup.
func DefaultClusterConfig() ClusterConfig {
	c := ClusterConfig{Seed: 42}
	c.SetDefaults()
	return c
}

// SetDefaults fills zero values. A zero seed stays zero.
func (c *ClusterConfig) SetDefaults() {
	if c.K == 0 {
		c.K = 3
	}
	if c.Restarts == 0 {
		c.Restarts = 10
	}
	if c.MaxIter == 0 {
		c.MaxIter = 300
	}
}

// Validate checks the configuration.
func (c ClusterConfig) Validate() error {
	if c.K < 1 {
		return fmt.Errorf("k must be at least 1")
	}
	if c.Restarts < 1 {
		return fmt.Errorf("restarts must be at least 1")
	}
	if c.MaxIter < 1 {
		return fmt.Errorf("max_iter must be at least 1")
	}
	return nil
}
