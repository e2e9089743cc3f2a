package aggregation

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	coreagg "github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdater_FirstTicketCreatesRouteThenDeleteKeepsFlight(t *testing.T) {
	e := newTestEnv(t)

	// Flight written without the updater, so the first ticket creates the row.
	f := e.newFlight("DEP", "ARR", baseDay.Add(10*time.Hour), 2*time.Hour)
	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertFlight(ctx, f)
	}))
	_, ok := e.stats("DEP", "ARR")
	require.False(t, ok)

	t1 := e.addTicket(f.ID)
	assert.Equal(t, int64(1), e.passengerCount(f.ID))

	s := e.mustStats("DEP", "ARR")
	assert.Equal(t, int64(1), s.FlightsCount)
	assert.Equal(t, int64(1), s.PassengersCount)
	assert.Equal(t, 2*time.Hour, s.FlightTime)
	assert.InDelta(t, 111.19, s.DistanceKm, 0.01)
	assert.Equal(t, "Departure", s.DepartureAirportName["en"])
	assert.Equal(t, "Arrival", s.ArrivalAirportName["en"])

	e.removeTicket(t1, f.ID)
	assert.Zero(t, e.passengerCount(f.ID))

	s = e.mustStats("DEP", "ARR")
	assert.Zero(t, s.PassengersCount)
	assert.Equal(t, int64(1), s.FlightsCount)
	assert.Zero(t, e.updater.Clamped())
}

func TestUpdater_TwoFlightsWithOneTicketEach(t *testing.T) {
	e := newTestEnv(t)

	f1 := e.flight("DEP", "ARR", baseDay.Add(8*time.Hour), 2*time.Hour)
	f2 := e.flight("DEP", "ARR", baseDay.Add(9*time.Hour), 4*time.Hour)
	e.addTicket(f1)
	e.addTicket(f2)

	s := e.mustStats("DEP", "ARR")
	assert.Equal(t, int64(2), s.FlightsCount)
	assert.Equal(t, int64(2), s.PassengersCount)
	assert.Equal(t, 3*time.Hour, s.FlightTime)
	e.requireConsistent()
}

func TestUpdater_AverageOverCreatesAndDelete(t *testing.T) {
	e := newTestEnv(t)

	e.flight("DEP", "ARR", baseDay, 2*time.Hour)
	mid := e.flight("DEP", "ARR", baseDay.Add(time.Hour), 4*time.Hour)
	e.flight("DEP", "ARR", baseDay.Add(2*time.Hour), 6*time.Hour)

	s := e.mustStats("DEP", "ARR")
	assert.Equal(t, int64(3), s.FlightsCount)
	assert.Equal(t, 4*time.Hour, s.FlightTime)

	e.deleteFlight(mid)
	s = e.mustStats("DEP", "ARR")
	assert.Equal(t, int64(2), s.FlightsCount)
	assert.Equal(t, 4*time.Hour, s.FlightTime)
	e.requireConsistent()
}

func TestUpdater_DeleteLastFlightRetainsZeroedRow(t *testing.T) {
	e := newTestEnv(t)

	id := e.flight("DEP", "ARR", baseDay, 2*time.Hour)
	e.addTicket(id)
	e.addTicket(id)

	e.deleteFlight(id)

	s := e.mustStats("DEP", "ARR")
	assert.Zero(t, s.FlightsCount)
	assert.Zero(t, s.PassengersCount)
	assert.Zero(t, s.FlightTime)
	assert.InDelta(t, 111.19, s.DistanceKm, 0.01)
	e.requireConsistent()
}

func TestUpdater_DeleteFlightSubtractsItsPassengers(t *testing.T) {
	e := newTestEnv(t)

	keep := e.flight("DEP", "ARR", baseDay, 2*time.Hour)
	drop := e.flight("DEP", "ARR", baseDay.Add(time.Hour), 2*time.Hour)
	e.addTicket(keep)
	e.addTicket(drop)
	e.addTicket(drop)

	e.deleteFlight(drop)

	s := e.mustStats("DEP", "ARR")
	assert.Equal(t, int64(1), s.FlightsCount)
	assert.Equal(t, int64(1), s.PassengersCount)
	e.requireConsistent()
}

func TestUpdater_TicketDeleteFloorsAtZero(t *testing.T) {
	e := newTestEnv(t)
	id := e.flight("DEP", "ARR", baseDay, time.Hour)

	// A delete with no matching increment, as a drifted cache would see it.
	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return e.updater.OnTicketFlightDeleted(ctx, tx, "T-missing", id)
	}))

	assert.Zero(t, e.passengerCount(id))
	assert.Zero(t, e.mustStats("DEP", "ARR").PassengersCount)
	assert.Equal(t, int64(2), e.updater.Clamped())
}

func TestUpdater_FlightDeleteWithoutRowIsNoop(t *testing.T) {
	e := newTestEnv(t)
	f := e.newFlight("DEP", "OTH", baseDay, time.Hour)

	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return e.updater.OnFlightDeleted(ctx, tx, f)
	}))
	_, ok := e.stats("DEP", "OTH")
	assert.False(t, ok)
	assert.Zero(t, e.updater.Clamped())
}

func TestUpdater_TicketDeleteWithoutRowIsNoop(t *testing.T) {
	e := newTestEnv(t)
	f := e.newFlight("DEP", "OTH", baseDay, time.Hour)
	f.PassengerCount = 1
	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertFlight(ctx, f)
	}))

	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return e.updater.OnTicketFlightDeleted(ctx, tx, "T1", f.ID)
	}))

	assert.Zero(t, e.passengerCount(f.ID))
	_, ok := e.stats("DEP", "OTH")
	assert.False(t, ok)
}

func TestUpdater_UnknownFlightFails(t *testing.T) {
	e := newTestEnv(t)
	err := e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return e.updater.OnTicketFlightCreated(ctx, tx, "T1", 4040)
	})
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestUpdater_UnscheduledFlightsNeverContribute(t *testing.T) {
	e := newTestEnv(t)

	f := &v1.Flight{ID: 900, FlightNo: "PG0900", DepartureAirport: "DEP", ArrivalAirport: "ARR", Status: v1.StatusScheduled}
	e.createFlight(f)
	_, ok := e.stats("DEP", "ARR")
	require.False(t, ok)

	ticketNo := e.addTicket(f.ID)
	assert.Equal(t, int64(1), e.passengerCount(f.ID))
	_, ok = e.stats("DEP", "ARR")
	assert.False(t, ok)

	e.removeTicket(ticketNo, f.ID)
	assert.Zero(t, e.passengerCount(f.ID))

	e.deleteFlight(f.ID)
	_, ok = e.stats("DEP", "ARR")
	assert.False(t, ok)
	assert.Zero(t, e.updater.Clamped())
	e.requireConsistent()
}

func TestUpdater_UnknownCoordinatesSeedZeroDistance(t *testing.T) {
	e := newTestEnv(t)
	e.flight("DEP", "NOC", baseDay, time.Hour)

	s := e.mustStats("DEP", "NOC")
	assert.Zero(t, s.DistanceKm)
	assert.Equal(t, int64(1), s.FlightsCount)
}

func TestUpdater_PrecomputedDistanceWins(t *testing.T) {
	e := newTestEnv(t)
	require.NoError(t, e.store.AppendDistances(e.ctx, []storage.AirportDistance{
		{Departure: "DEP", Arrival: "ARR", DistanceKm: 123.4},
	}))

	e.flight("DEP", "ARR", baseDay, time.Hour)
	assert.Equal(t, 123.4, e.mustStats("DEP", "ARR").DistanceKm)
}

func TestUpdater_RoutesAreDirectional(t *testing.T) {
	e := newTestEnv(t)
	e.flight("DEP", "ARR", baseDay, time.Hour)
	e.flight("ARR", "DEP", baseDay, 3*time.Hour)

	assert.Equal(t, time.Hour, e.mustStats("DEP", "ARR").FlightTime)
	assert.Equal(t, 3*time.Hour, e.mustStats("ARR", "DEP").FlightTime)
}

// racingTx makes InsertRouteStats lose as if another transaction had just
// created the row.
type racingTx struct {
	storage.Tx
	losses     int
	seedWinner bool
	inserts    int
}

func (r *racingTx) InsertRouteStats(ctx context.Context, stats coreagg.RouteStats) (bool, error) {
	r.inserts++
	if r.inserts > r.losses {
		return r.Tx.InsertRouteStats(ctx, stats)
	}
	if r.seedWinner && r.inserts == 1 {
		if _, err := r.Tx.InsertRouteStats(ctx, stats); err != nil {
			return false, err
		}
	}
	return false, nil
}

func TestUpdater_LostInsertRetriesAsIncrement(t *testing.T) {
	e := newTestEnv(t)
	f := e.newFlight("DEP", "ARR", baseDay, 2*time.Hour)
	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertFlight(ctx, f)
	}))

	rt := &racingTx{losses: 1, seedWinner: true}
	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		rt.Tx = tx
		return e.updater.OnTicketFlightCreated(ctx, rt, "T1", f.ID)
	}))

	assert.Equal(t, 1, rt.inserts)
	s := e.mustStats("DEP", "ARR")
	// The winner's seed passenger plus ours.
	assert.Equal(t, int64(2), s.PassengersCount)
	assert.Equal(t, int64(1), s.FlightsCount)
}

func TestUpdater_RaceLostTooOftenRollsBack(t *testing.T) {
	e := newTestEnv(t)
	f := e.newFlight("DEP", "ARR", baseDay, 2*time.Hour)
	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertFlight(ctx, f)
	}))

	rt := &racingTx{losses: maxRaceRetries}
	err := e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		rt.Tx = tx
		return e.updater.OnTicketFlightCreated(ctx, rt, "T1", f.ID)
	})
	require.ErrorIs(t, err, ErrAggregateRowRaceLost)
	assert.Equal(t, maxRaceRetries, rt.inserts)

	assert.Zero(t, e.passengerCount(f.ID), "flight counter must roll back with the aggregate")
	_, ok := e.stats("DEP", "ARR")
	assert.False(t, ok)
}

func TestUpdater_ConcurrentFirstTicketsOnNewRoute(t *testing.T) {
	e := newTestEnv(t)

	const flights, perFlight = 4, 25
	ids := make([]int64, flights)
	require.NoError(t, e.store.WithTx(e.ctx, func(ctx context.Context, tx storage.Tx) error {
		for i := range ids {
			f := e.newFlight("DEP", "ARR", baseDay.Add(time.Duration(i)*time.Hour), 2*time.Hour)
			if err := tx.InsertFlight(ctx, f); err != nil {
				return err
			}
			ids[i] = f.ID
		}
		return nil
	}))

	var wg sync.WaitGroup
	errs := make(chan error, flights*perFlight)
	for _, id := range ids {
		for range perFlight {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := e.tryAddTicket(id); err != nil {
					errs <- err
				}
			}()
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	s := e.mustStats("DEP", "ARR")
	assert.Equal(t, int64(flights*perFlight), s.PassengersCount)
	// Only the first ticket creates the row; later ones increment.
	assert.Equal(t, int64(1), s.FlightsCount)
	for _, id := range ids {
		assert.Equal(t, int64(perFlight), e.passengerCount(id))
	}
}

func TestUpdater_DifferentRoutesInParallel(t *testing.T) {
	e := newTestEnv(t)
	routes := [][2]string{{"DEP", "ARR"}, {"ARR", "DEP"}, {"DEP", "OTH"}, {"OTH", "ARR"}}

	var wg sync.WaitGroup
	for _, r := range routes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 10 {
				id := e.flight(r[0], r[1], baseDay.Add(time.Duration(i)*time.Hour), time.Duration(i+1)*time.Hour)
				e.addTicket(id)
			}
		}()
	}
	wg.Wait()

	for _, r := range routes {
		s := e.mustStats(r[0], r[1])
		assert.Equal(t, int64(10), s.FlightsCount)
		assert.Equal(t, int64(10), s.PassengersCount)
		assert.Equal(t, 5*time.Hour+30*time.Minute, s.FlightTime)
	}
	e.requireConsistent()
}

func TestUpdater_RandomSequencesStayConsistent(t *testing.T) {
	e := newTestEnv(t)
	rng := rand.New(rand.NewSource(42))
	codes := []string{"DEP", "ARR", "OTH", "NOC"}

	type tf struct {
		ticketNo string
		flightID int64
	}
	var flights []int64
	var tickets []tf

	for step := range 400 {
		switch op := rng.Intn(10); {
		case op < 3 || len(flights) == 0:
			dep := codes[rng.Intn(len(codes))]
			arr := codes[rng.Intn(len(codes))]
			if dep == arr {
				continue
			}
			d := time.Duration(30+rng.Intn(600)) * time.Minute
			flights = append(flights, e.flight(dep, arr, baseDay.Add(time.Duration(step)*time.Minute), d))
		case op < 7:
			id := flights[rng.Intn(len(flights))]
			tickets = append(tickets, tf{ticketNo: e.addTicket(id), flightID: id})
		case op < 9:
			if len(tickets) == 0 {
				continue
			}
			i := rng.Intn(len(tickets))
			e.removeTicket(tickets[i].ticketNo, tickets[i].flightID)
			tickets = append(tickets[:i], tickets[i+1:]...)
		default:
			i := rng.Intn(len(flights))
			id := flights[i]
			e.deleteFlight(id)
			flights = append(flights[:i], flights[i+1:]...)
			kept := tickets[:0]
			for _, t := range tickets {
				if t.flightID != id {
					kept = append(kept, t)
				}
			}
			tickets = kept
		}
		if step%20 == 0 {
			e.requireConsistent()
		}
	}
	e.requireConsistent()
	assert.Zero(t, e.updater.Clamped())
}
