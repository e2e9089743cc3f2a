package aggregation

import (
	"testing"
	"time"

	"github.com/aevon-lab/flightstats/internal/core/geo"
	"github.com/aevon-lab/flightstats/internal/core/route"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 2, 7, 10, 0, 0, 0, time.UTC)

func seedFor(d time.Duration, passengers int64) Seed {
	return Seed{
		Route:      route.For("DEP", "ARR"),
		DistanceKm: 100,
		Passengers: passengers,
		Duration:   d,
	}
}

func TestRouteStats_AverageOfThreeFlights(t *testing.T) {
	s := NewRouteStats(seedFor(2*time.Hour, 0), testNow)
	s = s.AddFlight(0, 4*time.Hour, testNow)
	s = s.AddFlight(0, 6*time.Hour, testNow)

	assert.Equal(t, int64(3), s.FlightsCount)
	assert.Equal(t, 4*time.Hour, s.FlightTime)
	assert.Equal(t, 12*time.Hour, s.TotalFlightTime)

	s, clamps := s.RemoveFlight(0, 4*time.Hour, testNow)
	assert.Empty(t, clamps)
	assert.Equal(t, int64(2), s.FlightsCount)
	assert.Equal(t, 4*time.Hour, s.FlightTime)
}

func TestRouteStats_TwoFlightsAverage(t *testing.T) {
	s := NewRouteStats(seedFor(2*time.Hour, 1), testNow)
	s = s.AddFlight(1, 4*time.Hour, testNow)

	assert.Equal(t, int64(2), s.FlightsCount)
	assert.Equal(t, int64(2), s.PassengersCount)
	assert.Equal(t, 3*time.Hour, s.FlightTime)
}

func TestRouteStats_IncrementalMeanMatchesFormula(t *testing.T) {
	durations := []time.Duration{
		95 * time.Minute, 2 * time.Hour, 3*time.Hour + 10*time.Minute, 50 * time.Minute, 7 * time.Hour,
	}

	s := NewRouteStats(seedFor(durations[0], 0), testNow)
	oldAvg := durations[0]
	for i, d := range durations[1:] {
		s = s.AddFlight(0, d, testNow)
		n := time.Duration(i + 2)
		want := (oldAvg*(n-1) + d) / n
		// The formula on the rounded mean can lose sub-nanosecond remainders;
		// the persisted sum never does.
		assert.InDelta(t, float64(want), float64(s.FlightTime), float64(n), "after %d flights", n)
		oldAvg = s.FlightTime
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	assert.Equal(t, sum/time.Duration(len(durations)), s.FlightTime)
}

func TestRouteStats_RemoveLastFlightZeroesAndRetains(t *testing.T) {
	s := NewRouteStats(seedFor(2*time.Hour, 3), testNow)

	s, clamps := s.RemoveFlight(3, 2*time.Hour, testNow)
	assert.Empty(t, clamps)
	assert.Equal(t, route.For("DEP", "ARR"), s.Route)
	assert.Equal(t, 100.0, s.DistanceKm)
	assert.Zero(t, s.FlightsCount)
	assert.Zero(t, s.PassengersCount)
	assert.Zero(t, s.FlightTime)
	assert.Zero(t, s.TotalFlightTime)

	// A zeroed row comes back to life with the next flight.
	s = s.AddFlight(0, 90*time.Minute, testNow)
	assert.Equal(t, int64(1), s.FlightsCount)
	assert.Equal(t, 90*time.Minute, s.FlightTime)
}

func TestRouteStats_RemovePassengersFloorsAtZero(t *testing.T) {
	s := NewRouteStats(seedFor(time.Hour, 0), testNow)

	s, clamps := s.RemovePassengers(1, testNow)
	assert.Zero(t, s.PassengersCount)
	require.Len(t, clamps, 1)
	assert.Equal(t, Clamp{Field: "passengers_count", Value: -1}, clamps[0])

	s = s.AddPassengers(2, testNow)
	s, clamps = s.RemovePassengers(1, testNow)
	assert.Empty(t, clamps)
	assert.Equal(t, int64(1), s.PassengersCount)
}

func TestRouteStats_RemoveFlightFloorsPassengers(t *testing.T) {
	s := NewRouteStats(seedFor(time.Hour, 1), testNow)
	s = s.AddFlight(0, time.Hour, testNow)

	s, clamps := s.RemoveFlight(5, time.Hour, testNow)
	assert.Zero(t, s.PassengersCount)
	require.Len(t, clamps, 1)
	assert.Equal(t, "passengers_count", clamps[0].Field)
}

func TestRouteStats_RemoveLongerActualDurationFloorsTotal(t *testing.T) {
	s := NewRouteStats(seedFor(time.Hour, 0), testNow)
	s = s.AddFlight(0, time.Hour, testNow)

	s, clamps := s.RemoveFlight(0, 3*time.Hour, testNow)
	require.Len(t, clamps, 1)
	assert.Equal(t, "total_flight_time", clamps[0].Field)
	assert.Zero(t, s.TotalFlightTime)
	assert.Zero(t, s.FlightTime)
}

func TestMeanDuration(t *testing.T) {
	assert.Zero(t, MeanDuration(time.Hour, 0))
	assert.Equal(t, 30*time.Minute, MeanDuration(time.Hour, 2))
}

func TestRouteTotals_Stats(t *testing.T) {
	totals := RouteTotals{
		Route:           route.For("SVO", "LED"),
		Departure:       &geo.Point{Lat: 0, Lon: 0},
		Arrival:         &geo.Point{Lat: 0, Lon: 1},
		FlightsCount:    2,
		PassengersCount: 5,
		TotalFlightTime: 6 * time.Hour,
	}

	s, err := totals.Stats()
	require.NoError(t, err)
	assert.InDelta(t, 111.19, s.DistanceKm, 0.01)
	assert.Equal(t, 3*time.Hour, s.FlightTime)
	assert.Equal(t, int64(5), s.PassengersCount)

	totals.Arrival = &geo.Point{Lat: 100, Lon: 0}
	_, err = totals.Stats()
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)

	totals.Arrival = nil
	s, err = totals.Stats()
	require.NoError(t, err)
	assert.Zero(t, s.DistanceKm)
}

func TestRouteFilter_Matches(t *testing.T) {
	k := route.For("SVO", "LED")
	assert.True(t, RouteFilter{}.Matches(k))
	assert.True(t, RouteFilter{DepartureCode: "SVO"}.Matches(k))
	assert.False(t, RouteFilter{DepartureCode: "LED"}.Matches(k))
	assert.False(t, RouteFilter{ArrivalCode: "SVO"}.Matches(k))
	assert.True(t, RouteFilter{DepartureCode: "SVO", ArrivalCode: "LED"}.Matches(k))
}
