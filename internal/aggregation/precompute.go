package aggregation

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/geo"
	"github.com/aevon-lab/flightstats/internal/core/storage"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPrecomputeBatchSize   = 5000
	defaultPrecomputeWorkerCount = 4
)

// PrecomputeOptions controls one run of the distance precomputation job.
type PrecomputeOptions struct {
	WorkerCount int
	BatchSize   int
	// Truncate clears airport_distances first. Without it a rerun appends a
	// second copy of every pair.
	Truncate bool
}

// DefaultPrecomputeOptions returns defaults suitable for a few thousand airports.
func DefaultPrecomputeOptions() PrecomputeOptions {
	return PrecomputeOptions{
		WorkerCount: defaultPrecomputeWorkerCount,
		BatchSize:   defaultPrecomputeBatchSize,
	}
}

func (o PrecomputeOptions) normalized() PrecomputeOptions {
	n := o
	if n.WorkerCount <= 0 {
		n.WorkerCount = defaultPrecomputeWorkerCount
	}
	if n.BatchSize <= 0 {
		n.BatchSize = defaultPrecomputeBatchSize
	}
	return n
}

// PrecomputeResult summarizes one run.
type PrecomputeResult struct {
	RunID    string
	Airports int
	Pairs    int64
	// Unknown counts pairs stored with the 0 sentinel because an airport has
	// no coordinates.
	Unknown int64
	Elapsed time.Duration
}

// PrecomputeDistances computes the haversine distance of every ordered pair
// of distinct airports and appends it to the distance table.
//
// Work is split by departure airport; each worker flushes rows in batches of
// opts.BatchSize. The first failure cancels the remaining workers, but
// batches already appended stay appended.
func PrecomputeDistances(ctx context.Context, store storage.DistanceStore, opts PrecomputeOptions) (PrecomputeResult, error) {
	opts = opts.normalized()
	started := time.Now()
	result := PrecomputeResult{RunID: uuid.NewString()}

	airports, err := store.ListAirports(ctx, false)
	if err != nil {
		return result, fmt.Errorf("precompute: list airports: %w", err)
	}
	result.Airports = len(airports)

	slog.Info("[Precompute] Starting distance precomputation",
		"run_id", result.RunID,
		"airports", len(airports),
		"pairs", len(airports)*(len(airports)-1),
		"workers", opts.WorkerCount,
		"batch_size", opts.BatchSize,
		"truncate", opts.Truncate,
	)

	if opts.Truncate {
		if err := store.TruncateDistances(ctx); err != nil {
			return result, fmt.Errorf("precompute: truncate: %w", err)
		}
	}

	var pairs, unknown atomic.Int64
	computedAt := time.Now().UTC()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.WorkerCount)
	for i := range airports {
		dep := airports[i]
		g.Go(func() error {
			n, u, err := appendFrom(gctx, store, dep, airports, opts.BatchSize, computedAt)
			pairs.Add(n)
			unknown.Add(u)
			return err
		})
	}
	err = g.Wait()

	result.Pairs = pairs.Load()
	result.Unknown = unknown.Load()
	result.Elapsed = time.Since(started)
	if err != nil {
		return result, fmt.Errorf("precompute: %w", err)
	}

	slog.Info("[Precompute] Distance precomputation complete",
		"run_id", result.RunID,
		"pairs", result.Pairs,
		"unknown", result.Unknown,
		"elapsed", result.Elapsed,
	)
	return result, nil
}

// appendFrom writes every pair departing from dep and returns how many rows
// were appended and how many of those carry the unknown-distance sentinel.
func appendFrom(
	ctx context.Context,
	store storage.DistanceStore,
	dep v1.Airport,
	airports []v1.Airport,
	batchSize int,
	computedAt time.Time,
) (int64, int64, error) {
	from := geo.PointOf(dep.Latitude, dep.Longitude)
	batch := make([]storage.AirportDistance, 0, min(batchSize, len(airports)))
	var appended, unknown, pending int64

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := store.AppendDistances(ctx, batch); err != nil {
			return fmt.Errorf("append distances from %s: %w", dep.Code, err)
		}
		appended += int64(len(batch))
		unknown += pending
		batch, pending = batch[:0], 0
		return nil
	}

	for _, arr := range airports {
		if arr.Code == dep.Code {
			continue
		}
		to := geo.PointOf(arr.Latitude, arr.Longitude)
		km, err := geo.Distance(from, to)
		if err != nil {
			return appended, unknown, fmt.Errorf("%s-%s: %w", dep.Code, arr.Code, err)
		}
		if from == nil || to == nil {
			pending++
		}
		batch = append(batch, storage.AirportDistance{
			Departure:  dep.Code,
			Arrival:    arr.Code,
			DistanceKm: km,
			ComputedAt: computedAt,
		})
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return appended, unknown, err
			}
		}
	}
	if err := flush(); err != nil {
		return appended, unknown, err
	}

	slog.Debug("[Precompute] Departure airport done", "airport", dep.Code, "pairs", appended)
	return appended, unknown, nil
}
