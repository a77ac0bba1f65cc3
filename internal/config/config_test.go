package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultServerConfig(t *testing.T) {
	cfg := DefaultServerConfig()
	if cfg.Addr != ":8080" {
		t.Errorf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.Solver.TimeLimit != 30*time.Second {
		t.Errorf("TimeLimit = %v, want 30s", cfg.Solver.TimeLimit)
	}
	if cfg.Solver.TimeUnit != time.Hour {
		t.Errorf("TimeUnit = %v, want 1h", cfg.Solver.TimeUnit)
	}
	if cfg.MaxConcurrentSolves != 2 {
		t.Errorf("MaxConcurrentSolves = %d, want 2", cfg.MaxConcurrentSolves)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "goshop.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFile_Overlay(t *testing.T) {
	path := writeConfig(t, "addr: \":9090\"\nsolver:\n  time_limit: 5s\n  workers: 4\n")
	cfg := DefaultServerConfig()
	if err := LoadFile(path, &cfg); err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Addr != ":9090" {
		t.Errorf("Addr = %q, want :9090", cfg.Addr)
	}
	if cfg.Solver.TimeLimit != 5*time.Second {
		t.Errorf("TimeLimit = %v, want 5s", cfg.Solver.TimeLimit)
	}
	if cfg.Solver.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Solver.Workers)
	}
	// Untouched keys keep defaults.
	if cfg.LogLevel != "info" || cfg.Solver.TimeUnit != time.Hour {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	cfg := DefaultServerConfig()
	if err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), &cfg); err == nil {
		t.Error("expected error for missing file")
	}

	path := writeConfig(t, "solver:\n  workers: -2\n")
	err := LoadFile(path, &cfg)
	if err == nil || !strings.Contains(err.Error(), "workers") {
		t.Errorf("error = %v, want workers error", err)
	}
}

func TestSolverConfig_Options(t *testing.T) {
	c := SolverConfig{TimeLimit: time.Second, NodeLimit: 500}
	opts := c.Options()
	if opts.TimeLimit != time.Second || opts.NodeLimit != 500 {
		t.Errorf("Options = %+v", opts)
	}
	if opts.Workers != 1 {
		t.Errorf("Workers = %d, want default 1", opts.Workers)
	}
}
