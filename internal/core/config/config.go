package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "FLIGHTSTATS_"

// Config represents the top-level application config.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Database    DatabaseConfig    `koanf:"database"`
	Aggregation AggregationConfig `koanf:"aggregation"`
	Precompute  PrecomputeConfig  `koanf:"precompute"`
}

type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // debug | release
}

type DatabaseConfig struct {
	Type         string `koanf:"type"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// AggregationConfig controls the background consistency check of airport_stats.
type AggregationConfig struct {
	ReconcileEnabled  bool   `koanf:"reconcile_enabled"`
	ReconcileInterval string `koanf:"reconcile_interval"` // parsed and validated on startup
}

// PrecomputeConfig sizes the airport distance batch job.
type PrecomputeConfig struct {
	WorkerCount int `koanf:"worker_count"`
	BatchSize   int `koanf:"batch_size"`
}

// ReconcileEvery returns the parsed reconcile interval. Call after Validate.
func (c AggregationConfig) ReconcileEvery() time.Duration {
	d, _ := time.ParseDuration(c.ReconcileInterval)
	return d
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	srv := c.Server
	check(srv.Port > 0 && srv.Port <= 65535, "invalid server.port %d (must be 1-65535)", srv.Port)
	check(strings.TrimSpace(srv.Host) != "", "server.host is required")
	check(srv.MaxBodySizeMB > 0, "server.max_body_size_mb must be > 0")
	check(srv.Mode == "debug" || srv.Mode == "release", "invalid server.mode %q (must be debug or release)", srv.Mode)

	db := c.Database
	check(strings.TrimSpace(db.DSN) != "", "database.dsn is required")
	check(db.MaxOpenConns > 0, "database.max_open_conns must be > 0")
	check(db.MaxIdleConns > 0 && db.MaxIdleConns <= db.MaxOpenConns,
		"database.max_idle_conns must be between 1 and max_open_conns (%d)", db.MaxOpenConns)
	check(db.Type == "" || db.Type == "postgres", "unsupported database.type %q", db.Type)

	if interval, err := time.ParseDuration(c.Aggregation.ReconcileInterval); err != nil {
		errs = append(errs, fmt.Errorf("invalid aggregation.reconcile_interval %q: %w", c.Aggregation.ReconcileInterval, err))
	} else {
		check(interval > 0, "aggregation.reconcile_interval must be > 0")
	}

	check(c.Precompute.WorkerCount > 0, "precompute.worker_count must be > 0")
	check(c.Precompute.BatchSize > 0, "precompute.batch_size must be > 0")

	return errors.Join(errs...)
}

// Load parses config from defaults, an optional file and env, then validates it.
// A .env file in the working directory is loaded into the environment first
// when present; variables already set win.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                    8080,
		"server.host":                    "0.0.0.0",
		"server.max_body_size_mb":        1,
		"server.mode":                    "release",
		"database.type":                  "postgres",
		"database.dsn":                   "postgres://localhost:5432/flightstats?sslmode=disable",
		"database.max_open_conns":        25,
		"database.max_idle_conns":        25,
		"database.auto_migrate":          true,
		"aggregation.reconcile_enabled":  false,
		"aggregation.reconcile_interval": "10m",
		"precompute.worker_count":        4,
		"precompute.batch_size":          5000,
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}
