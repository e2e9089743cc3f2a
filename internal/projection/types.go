package projection

import (
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
)

// Source selects where route statistics are read from.
type Source string

const (
	// SourceCache reads the airport_stats table. It only holds all-time totals.
	SourceCache Source = "cache"
	// SourceLive runs the grouped aggregation over flights and ticket_flights.
	SourceLive Source = "live"
)

// Sort fields accepted by GetRouteStats.
const (
	SortDepartureAirport = "departure_airport"
	SortArrivalAirport   = "arrival_airport"
	SortDistanceKm       = "distance_km"
	SortFlightsCount     = "flights_count"
	SortPassengersCount  = "passengers_count"
	SortFlightTime       = "flight_time"
)

// Sort directions.
const (
	OrderAsc  = "asc"
	OrderDesc = "desc"
)

// RouteStatsQuery holds the filters and ordering for a route statistics read.
// Zero values mean "no filter", route-key order and the cache source.
type RouteStatsQuery struct {
	DepartureAirport string
	ArrivalAirport   string
	FromDate         *time.Time
	ToDate           *time.Time
	SortField        string
	SortOrder        string
	Source           Source
}

// RouteStatsResponse is the body of GET /v1/airport-statistics.
type RouteStatsResponse struct {
	Source Source         `json:"source"`
	Count  int            `json:"count"`
	Routes []v1.RouteStat `json:"routes"`
}

// AirportsResponse is the body of GET /v1/airports.
type AirportsResponse struct {
	Count    int          `json:"count"`
	Airports []v1.Airport `json:"airports"`
}
