package config

import (
	"fmt"
	"os"
	"time"

	"github.com/me/goshop/internal/solver"
	"gopkg.in/yaml.v3"
)

// SolverConfig bounds every solve started by the server or CLI.
type SolverConfig struct {
	TimeLimit time.Duration `yaml:"time_limit"` // Maximum search time per request
	NodeLimit int64         `yaml:"node_limit"` // Maximum search nodes (0 = unlimited)
	Workers   int           `yaml:"workers"`    // Search goroutines per solve
	TimeUnit  time.Duration `yaml:"time_unit"`  // Real-world length of one time unit
}

// DefaultSolverConfig returns sensible defaults.
func DefaultSolverConfig() SolverConfig {
	return SolverConfig{
		TimeLimit: 30 * time.Second,
		Workers:   1,
		TimeUnit:  time.Hour,
	}
}

// Options converts the config into solver options.
func (c SolverConfig) Options() solver.Options {
	opts := solver.DefaultOptions()
	opts.TimeLimit = c.TimeLimit
	opts.NodeLimit = c.NodeLimit
	if c.Workers > 0 {
		opts.Workers = c.Workers
	}
	return opts
}

// ServerConfig holds configuration for the goshop server.
type ServerConfig struct {
	Addr      string       `yaml:"addr"`       // Listen address (default ":8080")
	LogLevel  string       `yaml:"log_level"`  // Log level: debug, info, warn, error
	LogFormat string       `yaml:"log_format"` // Log format: text, json
	DBPath    string       `yaml:"db"`         // SQLite database path (default ~/.goshop/goshop.db, ":memory:" for testing)
	Solver    SolverConfig `yaml:"solver"`

	// MaxConcurrentSolves caps solves running at once; further POSTs wait.
	MaxConcurrentSolves int `yaml:"max_concurrent_solves"`
}

// DefaultServerConfig returns sensible defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "text",
		Solver:    DefaultSolverConfig(),

		MaxConcurrentSolves: 2,
	}
}

// LoadFile overlays the YAML config file at path onto cfg. Keys missing
// from the file keep their current values.
func LoadFile(path string, cfg *ServerConfig) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Solver.Workers < 0 {
		return fmt.Errorf("config %s: solver.workers must not be negative", path)
	}
	return nil
}
