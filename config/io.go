package config

import (
	"errors"
	"path/filepath"
)

// InputConfig lists the input tables. Trips, nodes, edges and sites are
// required; the rest enable optional stages.
type InputConfig struct {
	Trips string `json:"trips"`
	Nodes string `json:"nodes"`
	Edges string `json:"edges"`
	Sites string `json:"sites"`
	// Boundary is a GeoJSON polygon; breaks outside it are discarded.
	Boundary string `json:"boundary"`
	// Sections holds traffic-count sections with weekday profiles. Demand
	// scaling is skipped without it.
	Sections string `json:"sections"`
	// Counts overrides section profiles with measured counts.
	Counts string `json:"counts"`
}

// Validate checks that required tables are set.
func (c InputConfig) Validate() error {
	var errs []error
	for _, f := range []struct{ name, path string }{
		{"trips", c.Trips}, {"nodes", c.Nodes}, {"edges", c.Edges}, {"sites", c.Sites},
	} {
		if f.path == "" {
			errs = append(errs, errors.New(f.name+" path is required"))
		}
	}
	if c.Counts != "" && c.Sections == "" {
		errs = append(errs, errors.New("counts require sections"))
	}
	return errors.Join(errs...)
}

// OutputConfig names the files written after a run. Empty names skip the
// file.
type OutputConfig struct {
	Dir      string `json:"dir"`
	Breaks   string `json:"breaks"`
	Loads    string `json:"loads"`
	Demand   string `json:"demand"`
	Clusters string `json:"clusters"`
	Summary  string `json:"summary"`
}

// SetDefaults applies the default layout.
func (c *OutputConfig) SetDefaults() {
	if c.Dir == "" {
		c.Dir = "out"
	}
	if c.Loads == "" {
		c.Loads = "site_loads.csv"
	}
	if c.Summary == "" {
		c.Summary = "summary.json"
	}
	if c.Demand == "" {
		c.Demand = "site_demand.csv"
	}
	if c.Clusters == "" {
		c.Clusters = "clusters.csv"
	}
}

// Validate rejects names that escape the output directory.
func (c OutputConfig) Validate() error {
	for _, n := range []string{c.Breaks, c.Loads, c.Demand, c.Clusters, c.Summary} {
		if n != "" && !filepath.IsLocal(n) {
			return errors.New("output file " + n + " must be relative to dir")
		}
	}
	return nil
}

// Path joins name to the output directory, or returns "" for an empty name.
func (c OutputConfig) Path(name string) string {
	if name == "" {
		return ""
	}
	return filepath.Join(c.Dir, name)
}
