package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/storage"
	"github.com/google/uuid"
)

// RebuildResult summarizes one full rebuild.
type RebuildResult struct {
	RunID            string
	FlightsRecounted int64
	Routes           int
	Elapsed          time.Duration
}

// Rebuild recomputes every flight's passenger_count and every route aggregate
// from the base tables in a single transaction.
//
// Existing rows are zeroed first and kept, so routes that lost all their
// flights end up in the same retained-but-empty state the Updater leaves.
// Run it after a bulk load that bypassed the Updater.
func Rebuild(ctx context.Context, store storage.Store) (RebuildResult, error) {
	started := time.Now()
	result := RebuildResult{RunID: uuid.NewString()}

	slog.Info("[Rebuild] Starting full aggregate rebuild", "run_id", result.RunID)

	err := store.WithRebuildTx(ctx, func(ctx context.Context, tx storage.RebuildTx) error {
		recounted, err := tx.RecountPassengers(ctx)
		if err != nil {
			return fmt.Errorf("recount passengers: %w", err)
		}
		result.FlightsRecounted = recounted

		if err := tx.ResetRouteStats(ctx); err != nil {
			return fmt.Errorf("reset route stats: %w", err)
		}

		totals, err := tx.AggregateRoutes(ctx, aggregation.RouteFilter{})
		if err != nil {
			return fmt.Errorf("aggregate routes: %w", err)
		}

		now := time.Now().UTC()
		for _, t := range totals {
			stats, err := t.Stats()
			if err != nil {
				return fmt.Errorf("route %s: %w", t.Route, err)
			}
			if km, found, err := tx.LookupDistance(ctx, t.Route); err != nil {
				return fmt.Errorf("lookup distance %s: %w", t.Route, err)
			} else if found {
				stats.DistanceKm = km
			}
			stats.UpdatedAt = now

			if err := tx.UpsertRouteStats(ctx, stats); err != nil {
				return fmt.Errorf("upsert route %s: %w", t.Route, err)
			}
		}
		result.Routes = len(totals)
		return nil
	})
	result.Elapsed = time.Since(started)
	if err != nil {
		slog.Error("[Rebuild] Rebuild failed, nothing was changed", "run_id", result.RunID, "error", err)
		return result, err
	}

	slog.Info("[Rebuild] Rebuild complete",
		"run_id", result.RunID,
		"routes", result.Routes,
		"flights_recounted", result.FlightsRecounted,
		"elapsed", result.Elapsed)
	return result, nil
}
