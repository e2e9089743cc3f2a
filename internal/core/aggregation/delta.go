package aggregation

import (
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/route"
)

// Clamp records a counter that would have gone negative and was floored to 0.
// On a consistent store this never happens; callers log and count it.
type Clamp struct {
	Field string
	Value int64 // pre-floor value
}

// Seed describes the first contribution to a route that has no row yet.
type Seed struct {
	Route                route.Key
	DepartureAirportName v1.LocalizedText
	ArrivalAirportName   v1.LocalizedText
	DistanceKm           float64
	Passengers           int64
	Duration             time.Duration
}

// NewRouteStats builds the row for a route's first flight.
func NewRouteStats(seed Seed, now time.Time) RouteStats {
	return RouteStats{
		Route:                seed.Route,
		DepartureAirportName: seed.DepartureAirportName,
		ArrivalAirportName:   seed.ArrivalAirportName,
		DistanceKm:           seed.DistanceKm,
		FlightsCount:         1,
		PassengersCount:      seed.Passengers,
		FlightTime:           seed.Duration,
		TotalFlightTime:      seed.Duration,
		UpdatedAt:            now,
	}
}

// AddPassengers applies n new ticket flights. Distance is left untouched.
func (s RouteStats) AddPassengers(n int64, now time.Time) RouteStats {
	s.PassengersCount += n
	s.UpdatedAt = now
	return s
}

// RemovePassengers removes n ticket flights, flooring at 0.
func (s RouteStats) RemovePassengers(n int64, now time.Time) (RouteStats, []Clamp) {
	var clamps []Clamp
	s.PassengersCount, clamps = floor("passengers_count", s.PassengersCount-n, clamps)
	s.UpdatedAt = now
	return s, clamps
}

// AddFlight folds a new flight into the route.
//
// The mean follows new_avg = (old_avg*(n-1) + d) / n, evaluated on the
// persisted sum so it stays exact.
func (s RouteStats) AddFlight(passengers int64, d time.Duration, now time.Time) RouteStats {
	s.FlightsCount++
	s.PassengersCount += passengers
	s.TotalFlightTime += d
	s.FlightTime = MeanDuration(s.TotalFlightTime, s.FlightsCount)
	s.UpdatedAt = now
	return s
}

// RemoveFlight takes a flight out of the route.
//
// With more than one flight the mean is reversed as
// new_avg = (old_avg*old_n - removed) / new_n. Removing the last flight zeroes
// the counters and keeps the row, so route identity and distance survive.
func (s RouteStats) RemoveFlight(passengers int64, removed time.Duration, now time.Time) (RouteStats, []Clamp) {
	s.UpdatedAt = now
	if s.FlightsCount <= 1 {
		s.FlightsCount = 0
		s.PassengersCount = 0
		s.FlightTime = 0
		s.TotalFlightTime = 0
		return s, nil
	}

	var clamps []Clamp
	s.FlightsCount--
	s.PassengersCount, clamps = floor("passengers_count", s.PassengersCount-passengers, clamps)

	var total int64
	total, clamps = floor("total_flight_time", int64(s.TotalFlightTime-removed), clamps)
	s.TotalFlightTime = time.Duration(total)
	s.FlightTime = MeanDuration(s.TotalFlightTime, s.FlightsCount)
	return s, clamps
}

// MeanDuration returns total / n, or 0 when n is not positive.
func MeanDuration(total time.Duration, n int64) time.Duration {
	if n <= 0 {
		return 0
	}
	return total / time.Duration(n)
}

func floor(field string, v int64, clamps []Clamp) (int64, []Clamp) {
	if v < 0 {
		return 0, append(clamps, Clamp{Field: field, Value: v})
	}
	return v, clamps
}
