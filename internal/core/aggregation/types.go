package aggregation

import (
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/geo"
	"github.com/aevon-lab/flightstats/internal/core/route"
)

// RouteStats is one airport_stats row: the cached summary of a directional route.
//
// FlightTime is always TotalFlightTime / FlightsCount (zero when there are no
// flights). The sum is persisted so the mean is derived exactly instead of
// being folded through repeated rounding.
type RouteStats struct {
	Route                route.Key
	DepartureAirportName v1.LocalizedText
	ArrivalAirportName   v1.LocalizedText
	DistanceKm           float64
	FlightsCount         int64
	PassengersCount      int64
	FlightTime           time.Duration // mean contributed duration
	TotalFlightTime      time.Duration // sum of contributed durations
	UpdatedAt            time.Time
}

// ToRouteStat converts the cached row to its public shape.
func (s RouteStats) ToRouteStat() v1.RouteStat {
	return v1.RouteStat{
		DepartureAirport:     s.Route.Departure,
		DepartureAirportName: s.DepartureAirportName,
		ArrivalAirport:       s.Route.Arrival,
		ArrivalAirportName:   s.ArrivalAirportName,
		DistanceKm:           s.DistanceKm,
		FlightsCount:         s.FlightsCount,
		PassengersCount:      s.PassengersCount,
		FlightTime:           v1.FlightTime(s.FlightTime),
	}
}

// RouteTotals is one group of the live aggregation query: raw sums over the
// scheduled flights of a route, before distance and mean are derived.
type RouteTotals struct {
	Route                route.Key
	DepartureAirportName v1.LocalizedText
	ArrivalAirportName   v1.LocalizedText
	Departure            *geo.Point
	Arrival              *geo.Point
	FlightsCount         int64
	PassengersCount      int64 // distinct (ticket_no, flight_id) pairs
	TotalFlightTime      time.Duration
}

// Stats derives the RouteStats the cache should hold for these totals.
func (t RouteTotals) Stats() (RouteStats, error) {
	distance, err := geo.Distance(t.Departure, t.Arrival)
	if err != nil {
		return RouteStats{}, err
	}
	return RouteStats{
		Route:                t.Route,
		DepartureAirportName: t.DepartureAirportName,
		ArrivalAirportName:   t.ArrivalAirportName,
		DistanceKm:           distance,
		FlightsCount:         t.FlightsCount,
		PassengersCount:      t.PassengersCount,
		FlightTime:           MeanDuration(t.TotalFlightTime, t.FlightsCount),
		TotalFlightTime:      t.TotalFlightTime,
	}, nil
}

// RouteFilter narrows the live aggregation. Empty fields match everything.
// FromDate/ToDate bound scheduled_departure inclusively.
type RouteFilter struct {
	DepartureCode string
	ArrivalCode   string
	FromDate      *time.Time
	ToDate        *time.Time
}

// HasDateRange reports whether the filter bounds scheduled departure.
func (f RouteFilter) HasDateRange() bool {
	return f.FromDate != nil || f.ToDate != nil
}

// Matches reports whether a route passes the airport filters.
func (f RouteFilter) Matches(k route.Key) bool {
	if f.DepartureCode != "" && f.DepartureCode != k.Departure {
		return false
	}
	if f.ArrivalCode != "" && f.ArrivalCode != k.Arrival {
		return false
	}
	return true
}
