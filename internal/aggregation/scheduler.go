package aggregation

import (
	"context"
	"log/slog"
	"time"
)

// maxLoggedDrifts caps how many drifted fields one tick logs individually.
const maxLoggedDrifts = 20

// Scheduler runs the Reconciler on a periodic interval.
// It only reports drift; fixing it is an explicit Rebuild.
type Scheduler struct {
	interval   time.Duration
	reconciler *Reconciler
	lastDrift  chan int
}

// NewScheduler creates a periodic reconciliation scheduler.
func NewScheduler(interval time.Duration, reconciler *Reconciler) *Scheduler {
	return &Scheduler{
		interval:   interval,
		reconciler: reconciler,
		lastDrift:  make(chan int, 1),
	}
}

// Start checks once immediately and then on every tick.
// Runs until context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting reconciliation scheduler", "interval", s.interval)

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")
			return nil
		}
	}
}

// LastDrift returns the drift count of the most recent completed check, and
// false if no check has completed since the last call.
func (s *Scheduler) LastDrift() (int, bool) {
	select {
	case n := <-s.lastDrift:
		return n, true
	default:
		return 0, false
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	started := time.Now()
	drifts, err := s.reconciler.Check(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("[Scheduler] Reconciliation failed", "error", err)
		return
	}

	s.publish(len(drifts))

	if len(drifts) == 0 {
		slog.Debug("[Scheduler] Aggregates consistent", "elapsed", time.Since(started))
		return
	}

	for i, d := range drifts {
		if i == maxLoggedDrifts {
			slog.Warn("[Scheduler] Further drift omitted", "omitted", len(drifts)-maxLoggedDrifts)
			break
		}
		slog.Warn("[Scheduler] Aggregate drift",
			"route", d.Route.String(),
			"field", d.Field,
			"cached", d.Cached,
			"live", d.Live)
	}
	slog.Warn("[Scheduler] Aggregates drifted from base tables, run a rebuild",
		"drifted_fields", len(drifts),
		"elapsed", time.Since(started))
}

// publish replaces any unread value with n.
func (s *Scheduler) publish(n int) {
	select {
	case <-s.lastDrift:
	default:
	}
	s.lastDrift <- n
}
