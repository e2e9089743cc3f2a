package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/aevon-lab/flightstats/internal/aggregation"
	corecfg "github.com/aevon-lab/flightstats/internal/core/config"
	"github.com/aevon-lab/flightstats/internal/core/storage/postgres"
	"github.com/aevon-lab/flightstats/internal/ingestion"
	"github.com/aevon-lab/flightstats/internal/migrations"
	"github.com/aevon-lab/flightstats/internal/projection"
	"github.com/aevon-lab/flightstats/internal/server"
)

func main() {
	configPath := flag.String("config", "flightstats.yaml", "Path to configuration file")
	flag.Parse()

	// 0. Initialize Logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 1. Load Configuration
	cfg, err := corecfg.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Server.Mode == "debug" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}
	slog.Info("Loaded config",
		"server", cfg.Server,
		"aggregation", cfg.Aggregation,
		"precompute", cfg.Precompute)

	// 2. Initialize Storage (PostgreSQL)
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

	// 3. Aggregate maintenance runs inside write transactions
	updater := aggregation.NewUpdater()

	// 4. Initialize Ingestion (write path)
	ingestionSvc := ingestion.NewService(dbAdapter, updater, cfg.Server.MaxBodySizeMB)

	// 5. Initialize Projection (read path)
	projectionSvc := projection.NewService(dbAdapter, dbAdapter, dbAdapter)

	// 6. Initialize Server
	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), dbAdapter.DB(), cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	// 7. Start Services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Aggregation.ReconcileEnabled {
		scheduler := aggregation.NewScheduler(
			cfg.Aggregation.ReconcileEvery(),
			aggregation.NewReconciler(dbAdapter, dbAdapter),
		)
		go func() {
			if err := scheduler.Start(ctx); err != nil {
				slog.Error("Scheduler stopped with error", "error", err)
			}
		}()
	} else {
		slog.Info("Reconciliation scheduler disabled by config")
	}

	// Signal handler triggers the shutdown sequence below.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		slog.Info("Signal received, shutting down...")
		cancel()
	}()

	// HTTP server blocks until ctx is cancelled.
	if err := srv.Run(ctx); err != nil {
		slog.Error("Server stopped with error", "error", err)
	}

	slog.Info("Shutdown complete", "clamped_deltas", updater.Clamped())
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
