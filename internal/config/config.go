// Package config defines the reactor's process-startup configuration and
// the stdlib flag.FlagSet wiring used by cmd/reactord. No third-party CLI
// framework (cobra, pflag, urfave/cli) is used: none appears anywhere in
// the reference corpus this project was built from, and flag is sufficient
// for the six scalar knobs the reactor exposes.
package config

import (
	"flag"
	"fmt"
)

// TriggerMode selects edge- vs level-triggered readiness for the listen
// and connection fds. Bit 0 is the connection fd, bit 1 is the listen fd.
type TriggerMode int

const (
	// ModeLevelLevel: both listen and connection fds level-triggered.
	ModeLevelLevel TriggerMode = 0
	// ModeLevelEdge: connection fd edge-triggered, listen fd level.
	ModeLevelEdge TriggerMode = 1
	// ModeEdgeLevel: listen fd edge-triggered, connection fd level.
	ModeEdgeLevel TriggerMode = 2
	// ModeEdgeEdge: both edge-triggered. Any value above this clamps here.
	ModeEdgeEdge TriggerMode = 3
)

// Normalize clamps any mode above ModeEdgeEdge down to ModeEdgeEdge,
// matching the reference server's "treat out-of-range as both-edge"
// behavior rather than rejecting it.
func (m TriggerMode) Normalize() TriggerMode {
	if m > ModeEdgeEdge {
		return ModeEdgeEdge
	}
	if m < ModeLevelLevel {
		return ModeLevelLevel
	}
	return m
}

// ConnEdge reports whether connection fds should be armed edge-triggered.
func (m TriggerMode) ConnEdge() bool { return m.Normalize()&ModeLevelEdge != 0 }

// ListenEdge reports whether the listen fd should be armed edge-triggered.
func (m TriggerMode) ListenEdge() bool { return m.Normalize()&ModeEdgeLevel != 0 }

// Config holds everything the reactor needs to start. Defaults match the
// original demo server: port 10000, mode 5 (clamps to ModeEdgeEdge),
// 60s idle timeout, linger off, 12 workers.
type Config struct {
	Port         int
	TriggerMode  TriggerMode
	IdleTimeoutMS int
	LingerClose  bool
	WorkerCount  int
	SourceRoot   string
}

// Default returns the reference demo configuration.
func Default() *Config {
	return &Config{
		Port:          10000,
		TriggerMode:   TriggerMode(5),
		IdleTimeoutMS: 60000,
		LingerClose:   false,
		WorkerCount:   12,
		SourceRoot:    "./resources",
	}
}

// Parse builds a Config from command-line arguments, seeded with Default().
func Parse(args []string) (*Config, error) {
	cfg := Default()
	fs := flag.NewFlagSet("reactord", flag.ContinueOnError)
	fs.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	mode := fs.Int("mode", int(cfg.TriggerMode), "trigger mode (0-3; values above 3 clamp to 3)")
	fs.IntVar(&cfg.IdleTimeoutMS, "timeout", cfg.IdleTimeoutMS, "idle timeout in milliseconds")
	fs.BoolVar(&cfg.LingerClose, "linger", cfg.LingerClose, "enable SO_LINGER on close")
	fs.IntVar(&cfg.WorkerCount, "workers", cfg.WorkerCount, "worker pool size")
	fs.StringVar(&cfg.SourceRoot, "root", cfg.SourceRoot, "static asset source root")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.TriggerMode = TriggerMode(*mode)
	if cfg.WorkerCount <= 0 {
		return nil, fmt.Errorf("config: workers must be positive, got %d", cfg.WorkerCount)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("config: port out of range: %d", cfg.Port)
	}
	return cfg, nil
}
