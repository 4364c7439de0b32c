package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/hpcdemand/core/assign"
	"github.com/kilianp07/hpcdemand/core/breaks"
	"github.com/kilianp07/hpcdemand/core/demand"
	"github.com/kilianp07/hpcdemand/core/metrics"
	"github.com/kilianp07/hpcdemand/infra/logger"
)

type Config struct {
	Log     logger.Config        `json:"log"`
	Input   InputConfig          `json:"input"`
	Output  OutputConfig         `json:"output"`
	Breaks  breaks.Config        `json:"breaks"`
	Assign  assign.Config        `json:"assign"`
	Demand  demand.Config        `json:"demand"`
	Cluster demand.ClusterConfig `json:"cluster"`
	Metrics metrics.Config       `json:"metrics"`
	Audit   AuditConfig          `json:"audit"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides, K_ASSIGN__BUFFER_RADIUS_M sets
	// assign.buffer_radius_m.
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills zero values in every section.
func (c *Config) SetDefaults() {
	c.Log.SetDefaults()
	c.Output.SetDefaults()
	c.Breaks.SetDefaults()
	c.Assign.SetDefaults()
	c.Demand.SetDefaults()
	c.Cluster.SetDefaults()
	c.Audit.SetDefaults()
}

// Validate checks every section and prefixes errors with the section name.
func (c Config) Validate() error {
	sections := []struct {
		name string
		v    interface{ Validate() error }
	}{
		{"log", c.Log},
		{"input", c.Input},
		{"output", c.Output},
		{"breaks", c.Breaks},
		{"assign", c.Assign},
		{"demand", c.Demand},
		{"cluster", c.Cluster},
		{"metrics", c.Metrics},
		{"audit", c.Audit},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}
