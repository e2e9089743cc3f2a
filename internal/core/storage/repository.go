package storage

import (
	"context"
	"errors"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/route"
)

var (
	// ErrNotFound is returned when a flight, ticket flight or airport does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicate is returned when a row with the same key already exists.
	ErrDuplicate = errors.New("already exists")
)

// Tx is one unit of work against the base tables and the aggregate table.
// Everything written through a Tx commits or rolls back together.
//
// Lock order inside a Tx is flight row before route row.
type Tx interface {
	InsertAirports(ctx context.Context, airports []v1.Airport) error
	GetAirport(ctx context.Context, code string) (*v1.Airport, error)
	// LookupDistance reads the precomputed distance for a route. The second
	// result is false when the pair has not been precomputed.
	LookupDistance(ctx context.Context, key route.Key) (float64, bool, error)
	InsertTicket(ctx context.Context, ticket *v1.Ticket) error

	InsertFlight(ctx context.Context, flight *v1.Flight) error
	// LockFlight returns the flight and holds its row lock until the Tx ends.
	LockFlight(ctx context.Context, flightID int64) (*v1.Flight, error)
	UpdateFlightStatus(ctx context.Context, flightID int64, update v1.FlightStatusUpdate) error
	SetFlightPassengerCount(ctx context.Context, flightID int64, count int64) error
	// DeleteFlight removes the flight and cascades to its ticket flights.
	DeleteFlight(ctx context.Context, flightID int64) error

	InsertTicketFlight(ctx context.Context, tf *v1.TicketFlight) error
	DeleteTicketFlight(ctx context.Context, ticketNo string, flightID int64) error

	// LockRouteStats returns the route's aggregate row, or nil if absent, and
	// holds its row lock until the Tx ends.
	LockRouteStats(ctx context.Context, key route.Key) (*aggregation.RouteStats, error)
	// InsertRouteStats creates the row. It reports false, without error, when
	// a concurrent transaction created the same route first.
	InsertRouteStats(ctx context.Context, stats aggregation.RouteStats) (bool, error)
	UpdateRouteStats(ctx context.Context, stats aggregation.RouteStats) error
}

// RebuildTx extends Tx with the bulk operations used by a full rebuild.
type RebuildTx interface {
	Tx
	// RecountPassengers sets every flight's passenger_count to its distinct
	// ticket count and returns how many flights changed.
	RecountPassengers(ctx context.Context) (int64, error)
	// ResetRouteStats zeroes the counters of every aggregate row.
	ResetRouteStats(ctx context.Context) error
	// UpsertRouteStats writes the row, replacing any existing values.
	UpsertRouteStats(ctx context.Context, stats aggregation.RouteStats) error
	AggregateRoutes(ctx context.Context, filter aggregation.RouteFilter) ([]aggregation.RouteTotals, error)
}

// Store opens transactions.
type Store interface {
	// WithTx runs fn in a transaction. fn's error rolls everything back.
	WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	WithRebuildTx(ctx context.Context, fn func(ctx context.Context, tx RebuildTx) error) error
}

// RouteStatsReader serves the fast path: rows of the aggregate table.
type RouteStatsReader interface {
	ListRouteStats(ctx context.Context, filter aggregation.RouteFilter) ([]aggregation.RouteStats, error)
}

// RouteAggregator serves the live path: grouped aggregation over base tables.
type RouteAggregator interface {
	AggregateRoutes(ctx context.Context, filter aggregation.RouteFilter) ([]aggregation.RouteTotals, error)
}

// AirportReader lists airports.
type AirportReader interface {
	ListAirports(ctx context.Context, sortedByName bool) ([]v1.Airport, error)
}

// AirportDistance is one row of the precomputed pairwise distance table.
type AirportDistance struct {
	Departure  string
	Arrival    string
	DistanceKm float64
	ComputedAt time.Time
}

// DistanceStore persists precomputed airport-pair distances.
type DistanceStore interface {
	AirportReader
	// AppendDistances bulk-inserts rows. It never upserts: rerunning without
	// TruncateDistances duplicates pairs.
	AppendDistances(ctx context.Context, rows []AirportDistance) error
	TruncateDistances(ctx context.Context) error
}
