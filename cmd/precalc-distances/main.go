// Command precalc-distances fills airport_distances with the great-circle
// distance of every ordered pair of airports.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/flightstats/internal/aggregation"
	corecfg "github.com/aevon-lab/flightstats/internal/core/config"
	"github.com/aevon-lab/flightstats/internal/core/storage/postgres"
	"github.com/aevon-lab/flightstats/internal/migrations"
)

func main() {
	configPath := flag.String("config", "flightstats.yaml", "Path to configuration file")
	truncate := flag.Bool("truncate", false, "Clear airport_distances before computing")
	workers := flag.Int("workers", 0, "Worker goroutines (default precompute.worker_count)")
	batch := flag.Int("batch", 0, "Rows per bulk insert (default precompute.batch_size)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	opts := aggregation.PrecomputeOptions{
		WorkerCount: cfg.Precompute.WorkerCount,
		BatchSize:   cfg.Precompute.BatchSize,
		Truncate:    *truncate,
	}
	if *workers > 0 {
		opts.WorkerCount = *workers
	}
	if *batch > 0 {
		opts.BatchSize = *batch
	}

	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}

	if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
		slog.Error("Failed to run database migrations", "error", err)
		db.Close()
		os.Exit(1)
	}

	dbAdapter, err := postgres.NewAdapterFromDB(db)
	if err != nil {
		slog.Error("Failed to initialize storage adapter", "error", err)
		db.Close()
		os.Exit(1)
	}
	defer dbAdapter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := aggregation.PrecomputeDistances(ctx, dbAdapter, opts)
	if err != nil {
		slog.Error("Distance precomputation failed", "error", err)
		dbAdapter.Close()
		os.Exit(1)
	}
	slog.Info("Distance precomputation finished",
		"run_id", result.RunID,
		"airports", result.Airports,
		"pairs", result.Pairs,
		"unknown", result.Unknown,
		"elapsed", result.Elapsed)
}
