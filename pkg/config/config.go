// Package config loads nimmy's runtime configuration: VM tunables,
// persistence backend selection, and ambient-stack settings, from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultMaxSteps bounds a VM run when a config file doesn't override it,
// guarding an embedder against an unbounded script by default.
const DefaultMaxSteps = 10_000_000

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is one of "sqlite" (default), "postgres", "mysql", "mongo".
	Backend string `yaml:"backend"`
	// DSN is the backend-specific connection string. For sqlite this is
	// a file path; empty means in-memory.
	DSN string `yaml:"dsn"`
	// BreakpointCacheDSN, if set, points at a redis instance used as a
	// read-through cache in front of the breakpoint store.
	BreakpointCacheDSN string `yaml:"breakpoint_cache_dsn"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug|info|warn|error
	Format string `yaml:"format"` // text|json
	File   string `yaml:"file"`   // empty = stdout only
}

// MetricsConfig configures pkg/metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"` // e.g. ":9090"
}

// TracingConfig configures pkg/tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	ServiceName  string  `yaml:"service_name"`
	SamplingRate float64 `yaml:"sampling_rate"`
}

// DebugServerConfig configures pkg/debugserver.
type DebugServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config is nimmy's top-level configuration document.
type Config struct {
	MaxSteps    int               `yaml:"max_steps"`
	Store       StoreConfig       `yaml:"store"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
	Tracing     TracingConfig     `yaml:"tracing"`
	DebugServer DebugServerConfig `yaml:"debug_server"`
}

// Default returns nimmy's built-in defaults: bounded steps, sqlite
// in-memory, text logging at info level, metrics and tracing disabled.
func Default() Config {
	return Config{
		MaxSteps: DefaultMaxSteps,
		Store:    StoreConfig{Backend: "sqlite"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads and parses a YAML config file at path, filling any field
// left zero-valued in the file with Default()'s value.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if cfg.MaxSteps == 0 {
		cfg.MaxSteps = DefaultMaxSteps
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "sqlite"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	return cfg, nil
}
