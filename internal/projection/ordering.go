package projection

import (
	"cmp"
	"slices"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
)

// sortKeys is the allow-list of sort fields.
var sortKeys = map[string]func(a, b v1.RouteStat) int{
	SortDepartureAirport: func(a, b v1.RouteStat) int { return cmp.Compare(a.DepartureAirport, b.DepartureAirport) },
	SortArrivalAirport:   func(a, b v1.RouteStat) int { return cmp.Compare(a.ArrivalAirport, b.ArrivalAirport) },
	SortDistanceKm:       func(a, b v1.RouteStat) int { return cmp.Compare(a.DistanceKm, b.DistanceKm) },
	SortFlightsCount:     func(a, b v1.RouteStat) int { return cmp.Compare(a.FlightsCount, b.FlightsCount) },
	SortPassengersCount:  func(a, b v1.RouteStat) int { return cmp.Compare(a.PassengersCount, b.PassengersCount) },
	SortFlightTime:       func(a, b v1.RouteStat) int { return cmp.Compare(a.FlightTime, b.FlightTime) },
}

// compareRouteKey orders by departure then arrival code.
func compareRouteKey(a, b v1.RouteStat) int {
	if c := cmp.Compare(a.DepartureAirport, b.DepartureAirport); c != 0 {
		return c
	}
	return cmp.Compare(a.ArrivalAirport, b.ArrivalAirport)
}

// sortRouteStats orders routes by field, breaking ties by route key.
// The direction applies to field only; the tiebreak is always ascending.
// An empty field sorts by route key alone.
func sortRouteStats(routes []v1.RouteStat, field string, desc bool) {
	key, ok := sortKeys[field]
	if !ok {
		if desc {
			slices.SortStableFunc(routes, func(a, b v1.RouteStat) int { return compareRouteKey(b, a) })
			return
		}
		slices.SortStableFunc(routes, compareRouteKey)
		return
	}
	slices.SortStableFunc(routes, func(a, b v1.RouteStat) int {
		c := key(a, b)
		if desc {
			c = -c
		}
		if c != 0 {
			return c
		}
		return compareRouteKey(a, b)
	})
}
