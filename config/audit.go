package config

import (
	"fmt"

	"github.com/kilianp07/hpcdemand/core/audit"
)

// AuditConfig defines settings for the assignment audit store and rotation.
type AuditConfig struct {
	// Backend selects the store type: "jsonl", "sqlite" or "none".
	Backend string `json:"backend"`
	// Path is the file location of the store.
	Path string `json:"path"`
	// MaxSizeMB triggers rotation when the file exceeds this size in megabytes.
	MaxSizeMB int `json:"max_size_mb"`
	// MaxBackups limits the number of rotated files to keep.
	MaxBackups int `json:"max_backups"`
	// MaxAgeDays removes rotated files older than this number of days.
	MaxAgeDays int `json:"max_age_days"`
	// Mapping stores one record per assigned event. Checkpoints are
	// written either way.
	Mapping *bool `json:"mapping"`
}

// SetDefaults applies sane defaults.
func (c *AuditConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "jsonl"
	}
	if c.Path == "" {
		switch c.Backend {
		case "sqlite":
			c.Path = "audit.db"
		default:
			c.Path = "audit.jsonl"
		}
	}
	if c.Mapping == nil {
		on := true
		c.Mapping = &on
	}
}

// Validate checks mandatory fields.
func (c AuditConfig) Validate() error {
	switch c.Backend {
	case "jsonl", "sqlite", "none":
	default:
		return fmt.Errorf("unknown backend %s", c.Backend)
	}
	if c.Backend != "none" && c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.MaxSizeMB < 0 || c.MaxBackups < 0 || c.MaxAgeDays < 0 {
		return fmt.Errorf("rotation limits must not be negative")
	}
	return nil
}

// KeepMapping reports whether per-event records are stored.
func (c AuditConfig) KeepMapping() bool { return c.Mapping == nil || *c.Mapping }

// Rotation returns the rotation limits for audit.Open.
func (c AuditConfig) Rotation() audit.Rotation {
	return audit.Rotation{MaxSizeMB: c.MaxSizeMB, MaxBackups: c.MaxBackups, MaxAgeDays: c.MaxAgeDays}
}
