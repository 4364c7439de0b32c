package logger

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	corelogger "github.com/kilianp07/hpcdemand/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// Config selects the log level and output format.
type Config struct {
	Level  string `json:"level"`
	Format string `json:"format"` // json or console
}

// SetDefaults fills zero values. The format follows APP_ENV when unset.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
		if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
			c.Format = "console"
		}
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	switch c.Format {
	case "json", "console":
		return nil
	default:
		return fmt.Errorf("unknown log format %q", c.Format)
	}
}

var (
	mu      sync.RWMutex
	console = strings.ToLower(os.Getenv("APP_ENV")) == "dev"
)

// Configure applies cfg to every logger created afterwards. The level is
// global to zerolog.
func Configure(cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, _ := zerolog.ParseLevel(cfg.Level)
	zerolog.SetGlobalLevel(lvl)
	mu.Lock()
	console = cfg.Format == "console"
	mu.Unlock()
	return nil
}

// New returns a Logger for the given component writing to stdout.
func New(component string) Logger {
	mu.RLock()
	c := console
	mu.RUnlock()
	if c {
		return NewZerologLogger(component, zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return NewZerologLogger(component, os.Stdout)
}
