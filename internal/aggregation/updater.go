package aggregation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/geo"
	"github.com/aevon-lab/flightstats/internal/core/route"
)

// maxRaceRetries bounds how often an insert may lose to a concurrent insert
// of the same route before the handler gives up.
const maxRaceRetries = 3

var (
	// ErrMissingScheduleData marks a flight without both scheduled timestamps.
	// Such flights never contribute to a route aggregate; handlers skip them
	// without failing the base-table write.
	ErrMissingScheduleData = errors.New("flight has no scheduled departure/arrival")

	// ErrAggregateRowRaceLost is returned when the create-on-first-write path
	// keeps losing to concurrent creators of the same route.
	ErrAggregateRowRaceLost = errors.New("aggregate row race lost")
)

// Tx is the slice of a storage transaction the Updater works through.
// storage.Tx satisfies it.
type Tx interface {
	GetAirport(ctx context.Context, code string) (*v1.Airport, error)
	LookupDistance(ctx context.Context, key route.Key) (float64, bool, error)
	LockFlight(ctx context.Context, flightID int64) (*v1.Flight, error)
	SetFlightPassengerCount(ctx context.Context, flightID int64, count int64) error
	LockRouteStats(ctx context.Context, key route.Key) (*aggregation.RouteStats, error)
	InsertRouteStats(ctx context.Context, stats aggregation.RouteStats) (bool, error)
	UpdateRouteStats(ctx context.Context, stats aggregation.RouteStats) error
}

// Updater keeps airport_stats consistent with flights and ticket_flights.
//
// Every handler runs inside the caller's transaction, right after the base
// write it reacts to, and touches at most one aggregate row. Callers must
// invoke the matching handler for every base mutation; there is no
// background catch-up.
type Updater struct {
	nowFn   func() time.Time
	clamped atomic.Int64
}

// NewUpdater creates an Updater.
func NewUpdater() *Updater {
	return &Updater{
		nowFn: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// Clamped returns how many counter updates have been floored at zero since
// the Updater was created. Non-zero means the cache had drifted.
func (u *Updater) Clamped() int64 {
	return u.clamped.Load()
}

// OnTicketFlightCreated counts one more passenger on the flight and its route.
// The ticket flight row must already be written in tx.
func (u *Updater) OnTicketFlightCreated(ctx context.Context, tx Tx, ticketNo string, flightID int64) error {
	flight, err := tx.LockFlight(ctx, flightID)
	if err != nil {
		return fmt.Errorf("ticket flight created: lock flight %d: %w", flightID, err)
	}

	flight.PassengerCount++
	if err := tx.SetFlightPassengerCount(ctx, flightID, flight.PassengerCount); err != nil {
		return fmt.Errorf("ticket flight created: set passenger count: %w", err)
	}

	duration, ok := flight.ScheduledDuration()
	if !ok {
		u.logUnscheduled("ticket_flight_created", flight)
		return nil
	}

	now := u.nowFn()
	key := route.For(flight.DepartureAirport, flight.ArrivalAirport)
	err = u.applyToRoute(ctx, tx, key,
		func(s aggregation.RouteStats) (aggregation.RouteStats, []aggregation.Clamp) {
			return s.AddPassengers(1, now), nil
		},
		func() (aggregation.Seed, error) {
			return u.seedFor(ctx, tx, flight, 1, duration)
		},
	)
	if err != nil {
		return fmt.Errorf("ticket flight created: %w", err)
	}

	slog.Debug("[Updater] Ticket flight applied",
		"ticket_no", ticketNo,
		"flight_id", flightID,
		"route", key.String(),
		"flight_passengers", flight.PassengerCount)
	return nil
}

// OnTicketFlightDeleted counts one passenger less on the flight and its route.
// Both counters floor at zero; a route without a row is left alone.
func (u *Updater) OnTicketFlightDeleted(ctx context.Context, tx Tx, ticketNo string, flightID int64) error {
	flight, err := tx.LockFlight(ctx, flightID)
	if err != nil {
		return fmt.Errorf("ticket flight deleted: lock flight %d: %w", flightID, err)
	}

	key := route.For(flight.DepartureAirport, flight.ArrivalAirport)
	if flight.PassengerCount > 0 {
		flight.PassengerCount--
		if err := tx.SetFlightPassengerCount(ctx, flightID, flight.PassengerCount); err != nil {
			return fmt.Errorf("ticket flight deleted: set passenger count: %w", err)
		}
	} else {
		u.recordClamps(key, []aggregation.Clamp{{Field: "flight.passenger_count", Value: -1}})
	}

	if !flight.HasSchedule() {
		u.logUnscheduled("ticket_flight_deleted", flight)
		return nil
	}

	now := u.nowFn()
	err = u.applyToRoute(ctx, tx, key,
		func(s aggregation.RouteStats) (aggregation.RouteStats, []aggregation.Clamp) {
			return s.RemovePassengers(1, now)
		},
		nil,
	)
	if err != nil {
		return fmt.Errorf("ticket flight deleted: %w", err)
	}

	slog.Debug("[Updater] Ticket flight removed",
		"ticket_no", ticketNo,
		"flight_id", flightID,
		"route", key.String(),
		"flight_passengers", flight.PassengerCount)
	return nil
}

// OnFlightCreated adds a newly written flight to its route aggregate.
// Flights without a schedule are skipped.
func (u *Updater) OnFlightCreated(ctx context.Context, tx Tx, flight *v1.Flight) error {
	duration, ok := flight.ScheduledDuration()
	if !ok {
		u.logUnscheduled("flight_created", flight)
		return nil
	}

	now := u.nowFn()
	key := route.For(flight.DepartureAirport, flight.ArrivalAirport)
	err := u.applyToRoute(ctx, tx, key,
		func(s aggregation.RouteStats) (aggregation.RouteStats, []aggregation.Clamp) {
			return s.AddFlight(flight.PassengerCount, duration, now), nil
		},
		func() (aggregation.Seed, error) {
			return u.seedFor(ctx, tx, flight, flight.PassengerCount, duration)
		},
	)
	if err != nil {
		return fmt.Errorf("flight created: %w", err)
	}

	slog.Debug("[Updater] Flight applied", "flight_id", flight.ID, "route", key.String(), "duration", duration)
	return nil
}

// OnFlightDeleted removes a deleted flight's contribution from its route.
// flight must be the row as it was before deletion, including its
// passenger_count. A route without a row is a no-op.
func (u *Updater) OnFlightDeleted(ctx context.Context, tx Tx, flight *v1.Flight) error {
	if !flight.HasSchedule() {
		u.logUnscheduled("flight_deleted", flight)
		return nil
	}

	removed, ok := flight.ActualDuration()
	if !ok {
		removed, _ = flight.ScheduledDuration()
	}

	now := u.nowFn()
	key := route.For(flight.DepartureAirport, flight.ArrivalAirport)
	err := u.applyToRoute(ctx, tx, key,
		func(s aggregation.RouteStats) (aggregation.RouteStats, []aggregation.Clamp) {
			return s.RemoveFlight(flight.PassengerCount, removed, now)
		},
		nil,
	)
	if err != nil {
		return fmt.Errorf("flight deleted: %w", err)
	}

	slog.Debug("[Updater] Flight removed", "flight_id", flight.ID, "route", key.String(), "duration", removed)
	return nil
}

// applyToRoute locks the route row and applies mutate to it. When the row is
// absent and seed is non-nil, it inserts a fresh row instead; losing that
// insert to a concurrent transaction retries the whole step as an update.
func (u *Updater) applyToRoute(
	ctx context.Context,
	tx Tx,
	key route.Key,
	mutate func(aggregation.RouteStats) (aggregation.RouteStats, []aggregation.Clamp),
	seed func() (aggregation.Seed, error),
) error {
	for attempt := 1; attempt <= maxRaceRetries; attempt++ {
		current, err := tx.LockRouteStats(ctx, key)
		if err != nil {
			return fmt.Errorf("lock route %s: %w", key, err)
		}

		if current != nil {
			next, clamps := mutate(*current)
			u.recordClamps(key, clamps)
			if err := tx.UpdateRouteStats(ctx, next); err != nil {
				return fmt.Errorf("update route %s: %w", key, err)
			}
			return nil
		}

		if seed == nil {
			return nil
		}

		s, err := seed()
		if err != nil {
			return fmt.Errorf("seed route %s: %w", key, err)
		}

		inserted, err := tx.InsertRouteStats(ctx, aggregation.NewRouteStats(s, u.nowFn()))
		if err != nil {
			return fmt.Errorf("insert route %s: %w", key, err)
		}
		if inserted {
			slog.Info("[Updater] Route aggregate created", "route", key.String(), "distance_km", s.DistanceKm)
			return nil
		}

		slog.Debug("[Updater] Route insert lost race, retrying as update",
			"route", key.String(),
			"attempt", attempt)
	}

	return fmt.Errorf("%w: route %s after %d attempts", ErrAggregateRowRaceLost, key, maxRaceRetries)
}

// seedFor gathers what a new route row needs beyond the flight itself:
// airport names and the route distance. A precomputed distance wins over
// evaluating the formula.
func (u *Updater) seedFor(
	ctx context.Context,
	tx Tx,
	flight *v1.Flight,
	passengers int64,
	duration time.Duration,
) (aggregation.Seed, error) {
	key := route.For(flight.DepartureAirport, flight.ArrivalAirport)

	dep, err := tx.GetAirport(ctx, key.Departure)
	if err != nil {
		return aggregation.Seed{}, fmt.Errorf("departure airport %s: %w", key.Departure, err)
	}
	arr, err := tx.GetAirport(ctx, key.Arrival)
	if err != nil {
		return aggregation.Seed{}, fmt.Errorf("arrival airport %s: %w", key.Arrival, err)
	}

	distance, found, err := tx.LookupDistance(ctx, key)
	if err != nil {
		return aggregation.Seed{}, fmt.Errorf("lookup distance: %w", err)
	}
	if !found {
		distance, err = geo.Distance(
			geo.PointOf(dep.Latitude, dep.Longitude),
			geo.PointOf(arr.Latitude, arr.Longitude),
		)
		if err != nil {
			return aggregation.Seed{}, err
		}
	}

	return aggregation.Seed{
		Route:                key,
		DepartureAirportName: dep.Name,
		ArrivalAirportName:   arr.Name,
		DistanceKm:           distance,
		Passengers:           passengers,
		Duration:             duration,
	}, nil
}

func (u *Updater) recordClamps(key route.Key, clamps []aggregation.Clamp) {
	for _, c := range clamps {
		u.clamped.Add(1)
		slog.Warn("[Updater] Counter floored at zero",
			"route", key.String(),
			"field", c.Field,
			"pre_floor", c.Value)
	}
}

func (u *Updater) logUnscheduled(event string, flight *v1.Flight) {
	slog.Warn("[Updater] Skipping route aggregate",
		"event", event,
		"flight_id", flight.ID,
		"reason", ErrMissingScheduleData.Error())
}
