package aggregation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/route"
	"github.com/aevon-lab/flightstats/internal/core/storage"
)

// Drift is one field on which the cached aggregate disagrees with the base tables.
type Drift struct {
	Route  route.Key
	Field  string
	Cached int64
	Live   int64
}

func (d Drift) String() string {
	return fmt.Sprintf("%s %s cached=%d live=%d", d.Route, d.Field, d.Cached, d.Live)
}

// Reconciler cross-checks airport_stats against the live aggregation.
// Distances are not compared: the cache may hold a precomputed value.
type Reconciler struct {
	cache storage.RouteStatsReader
	live  storage.RouteAggregator
}

// NewReconciler creates a Reconciler.
func NewReconciler(cache storage.RouteStatsReader, live storage.RouteAggregator) *Reconciler {
	return &Reconciler{cache: cache, live: live}
}

// Check returns every drifted field, ordered by route and field. An empty
// result means the cache is consistent. Flight time is compared at
// microsecond precision, the resolution airport_stats stores.
func (r *Reconciler) Check(ctx context.Context) ([]Drift, error) {
	cached, err := r.cache.ListRouteStats(ctx, aggregation.RouteFilter{})
	if err != nil {
		return nil, fmt.Errorf("reconcile: list cached stats: %w", err)
	}
	totals, err := r.live.AggregateRoutes(ctx, aggregation.RouteFilter{})
	if err != nil {
		return nil, fmt.Errorf("reconcile: aggregate live stats: %w", err)
	}

	live := make(map[route.Key]aggregation.RouteTotals, len(totals))
	for _, t := range totals {
		live[t.Route] = t
	}

	var drifts []Drift
	seen := make(map[route.Key]bool, len(cached))
	for _, c := range cached {
		seen[c.Route] = true
		drifts = append(drifts, compareRoute(c.Route, snapshotOf(c), liveSnapshot(live[c.Route]))...)
	}
	for key, t := range live {
		if seen[key] {
			continue
		}
		drifts = append(drifts, compareRoute(key, routeSnapshot{}, liveSnapshot(t))...)
	}

	sort.Slice(drifts, func(i, j int) bool {
		if drifts[i].Route != drifts[j].Route {
			return drifts[i].Route.String() < drifts[j].Route.String()
		}
		return drifts[i].Field < drifts[j].Field
	})
	return drifts, nil
}

type routeSnapshot struct {
	flights    int64
	passengers int64
	flightTime int64 // microseconds
}

func snapshotOf(s aggregation.RouteStats) routeSnapshot {
	return routeSnapshot{
		flights:    s.FlightsCount,
		passengers: s.PassengersCount,
		flightTime: s.FlightTime.Microseconds(),
	}
}

func liveSnapshot(t aggregation.RouteTotals) routeSnapshot {
	mean := aggregation.MeanDuration(t.TotalFlightTime.Truncate(time.Microsecond), t.FlightsCount)
	return routeSnapshot{
		flights:    t.FlightsCount,
		passengers: t.PassengersCount,
		flightTime: mean.Microseconds(),
	}
}

func compareRoute(key route.Key, cached, live routeSnapshot) []Drift {
	var out []Drift
	add := func(field string, c, l int64) {
		if c != l {
			out = append(out, Drift{Route: key, Field: field, Cached: c, Live: l})
		}
	}
	add("flights_count", cached.flights, live.flights)
	add("passengers_count", cached.passengers, live.passengers)
	add("flight_time_us", cached.flightTime, live.flightTime)
	return out
}
