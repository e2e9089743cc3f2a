package aggregation

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	coreagg "github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/route"
	"github.com/aevon-lab/flightstats/internal/core/storage"
	"github.com/aevon-lab/flightstats/internal/core/storage/memory"
	"github.com/stretchr/testify/require"
)

var baseDay = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// testEnv composes base writes with updater calls the same way the write
// path does: one transaction per mutation.
type testEnv struct {
	t       *testing.T
	ctx     context.Context
	store   *memory.Store
	updater *Updater
	nextID  atomic.Int64
	tickets atomic.Int64
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		t:       t,
		ctx:     context.Background(),
		store:   memory.NewStore(),
		updater: NewUpdater(),
	}
	airports := []v1.Airport{
		{Code: "DEP", Name: v1.LocalizedText{"en": "Departure"}, Latitude: ptr(0.0), Longitude: ptr(0.0)},
		{Code: "ARR", Name: v1.LocalizedText{"en": "Arrival"}, Latitude: ptr(0.0), Longitude: ptr(1.0)},
		{Code: "OTH", Name: v1.LocalizedText{"en": "Other"}, Latitude: ptr(1.0), Longitude: ptr(0.0)},
		{Code: "NOC", Name: v1.LocalizedText{"en": "No Coordinates"}},
	}
	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertAirports(ctx, airports)
	}))
	return e
}

func (e *testEnv) newFlight(dep, arr string, departAt time.Time, d time.Duration) *v1.Flight {
	id := e.nextID.Add(1)
	return &v1.Flight{
		ID:                 id,
		FlightNo:           fmt.Sprintf("PG%04d", id),
		ScheduledDeparture: departAt,
		ScheduledArrival:   departAt.Add(d),
		DepartureAirport:   dep,
		ArrivalAirport:     arr,
		Status:             v1.StatusScheduled,
	}
}

func (e *testEnv) createFlight(f *v1.Flight) {
	e.t.Helper()
	require.NoError(e.t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertFlight(ctx, f); err != nil {
			return err
		}
		return e.updater.OnFlightCreated(ctx, tx, f)
	}))
}

func (e *testEnv) flight(dep, arr string, departAt time.Time, d time.Duration) int64 {
	e.t.Helper()
	f := e.newFlight(dep, arr, departAt, d)
	e.createFlight(f)
	return f.ID
}

func (e *testEnv) addTicket(flightID int64) string {
	e.t.Helper()
	ticketNo, err := e.tryAddTicket(flightID)
	require.NoError(e.t, err)
	return ticketNo
}

func (e *testEnv) tryAddTicket(flightID int64) (string, error) {
	ticketNo := fmt.Sprintf("T%012d", e.tickets.Add(1))
	err := e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertTicket(ctx, &v1.Ticket{TicketNo: ticketNo}); err != nil {
			return err
		}
		tf := &v1.TicketFlight{TicketNo: ticketNo, FlightID: flightID, FareCondition: v1.FareEconomy}
		if err := tx.InsertTicketFlight(ctx, tf); err != nil {
			return err
		}
		return e.updater.OnTicketFlightCreated(ctx, tx, ticketNo, flightID)
	})
	return ticketNo, err
}

func (e *testEnv) removeTicket(ticketNo string, flightID int64) {
	e.t.Helper()
	require.NoError(e.t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.DeleteTicketFlight(ctx, ticketNo, flightID); err != nil {
			return err
		}
		return e.updater.OnTicketFlightDeleted(ctx, tx, ticketNo, flightID)
	}))
}

func (e *testEnv) deleteFlight(flightID int64) {
	e.t.Helper()
	require.NoError(e.t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		f, err := tx.LockFlight(ctx, flightID)
		if err != nil {
			return err
		}
		if err := tx.DeleteFlight(ctx, flightID); err != nil {
			return err
		}
		return e.updater.OnFlightDeleted(ctx, tx, f)
	}))
}

func (e *testEnv) stats(dep, arr string) (coreagg.RouteStats, bool) {
	e.t.Helper()
	rows, err := e.store.ListRouteStats(e.ctx, coreagg.RouteFilter{DepartureCode: dep, ArrivalCode: arr})
	require.NoError(e.t, err)
	for _, r := range rows {
		if r.Route == route.For(dep, arr) {
			return r, true
		}
	}
	return coreagg.RouteStats{}, false
}

func (e *testEnv) mustStats(dep, arr string) coreagg.RouteStats {
	e.t.Helper()
	s, ok := e.stats(dep, arr)
	require.True(e.t, ok, "no aggregate row for %s-%s", dep, arr)
	return s
}

func (e *testEnv) passengerCount(flightID int64) int64 {
	e.t.Helper()
	f, ok := e.store.Flight(flightID)
	require.True(e.t, ok, "flight %d missing", flightID)
	return f.PassengerCount
}

func (e *testEnv) requireConsistent() {
	e.t.Helper()
	drifts, err := NewReconciler(e.store, e.store).Check(e.ctx)
	require.NoError(e.t, err)
	require.Empty(e.t, drifts)
}
