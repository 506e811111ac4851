// Package config defines service configuration structures and loading hooks.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the recompute job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of recompute workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize caps the number of configurations with a pending job.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /configs/{ref}/leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ShortHashLength is the length of hash prefixes shown to users.
	ShortHashLength int `koanf:"short_hash_length"`

	// ConfigsDir holds rating configuration files registered at startup.
	ConfigsDir string `koanf:"configs_dir"`

	// DatabaseDSN is the SQLite data source for games and configurations.
	DatabaseDSN string `koanf:"database_dsn"`

	// RecomputeOnStart recomputes every registered configuration at boot.
	RecomputeOnStart bool `koanf:"recompute_on_start"`

	// RecomputeTimeout bounds a single recompute.
	RecomputeTimeout time.Duration `koanf:"recompute_timeout"`
}

// New creates a Config with defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           1024,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          4096,
		MaxLeaderboardLimit: 100,
		ShortHashLength:     8,
		ConfigsDir:          "",
		DatabaseDSN:         "file:mjrating.db?_foreign_keys=on",
		RecomputeOnStart:    true,
		RecomputeTimeout:    2 * time.Minute,
	}
}
