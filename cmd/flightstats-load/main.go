// Command flightstats-load bulk-loads a YAML fixture of airports, tickets,
// flights and ticket flights, then rebuilds airport_stats.
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
)

func main() {
	configPath := flag.String("config", "flightstats.yaml", "Path to configuration file")
	skipRebuild := flag.Bool("skip-rebuild", false, "Do not rebuild airport_stats after loading")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] fixture.yaml\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))

	if err := run(*configPath, flag.Arg(0), *skipRebuild); err != nil {
		slog.Error("Load failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, fixturePath string, skipRebuild bool) error {
	cfg, err := corecfg.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fx, err := ingestion.LoadFixtureFile(fixturePath)
	if err != nil {
		return err
	}

	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	if err := migrations.RunMigrations(db, cfg.Database.AutoMigrate); err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}
	dbAdapter, err := postgres.NewAdapterFromDB(db)
	if err != nil {
		db.Close()
		return err
	}
	defer dbAdapter.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := ingestion.NewLoader(dbAdapter).Load(ctx, fx); err != nil {
		return err
	}

	if skipRebuild {
		slog.Warn("Skipping rebuild; airport_stats is stale until the next rebuild")
		return nil
	}

	result, err := aggregation.Rebuild(ctx, dbAdapter)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	slog.Info("Rebuild finished",
		"run_id", result.RunID,
		"flights_recounted", result.FlightsRecounted,
		"routes", result.Routes,
		"elapsed", result.Elapsed)
	return nil
}
