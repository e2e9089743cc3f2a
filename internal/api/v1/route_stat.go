package v1

import (
	"encoding/json"
	"fmt"
	"time"
)

// RouteStat is the public shape of one route's statistics, served from either
// the cached aggregate table or the live aggregation query.
type RouteStat struct {
	DepartureAirport     string        `json:"departure_airport"`
	DepartureAirportName LocalizedText `json:"departure_airport_name"`
	ArrivalAirport       string        `json:"arrival_airport"`
	ArrivalAirportName   LocalizedText `json:"arrival_airport_name"`
	DistanceKm           float64       `json:"distance_km"`
	FlightsCount         int64         `json:"flights_count"`
	PassengersCount      int64         `json:"passengers_count"`
	FlightTime           FlightTime    `json:"flight_time"`
}

// MarshalJSON adds flight_time_seconds next to the formatted flight_time.
func (r RouteStat) MarshalJSON() ([]byte, error) {
	type plain RouteStat
	return json.Marshal(struct {
		plain
		FlightTimeSeconds float64 `json:"flight_time_seconds"`
	}{
		plain:             plain(r),
		FlightTimeSeconds: time.Duration(r.FlightTime).Seconds(),
	})
}

// FlightTime is an average flight duration. It serializes as "HH:MM:SS",
// prefixed with "D " when longer than a day.
type FlightTime time.Duration

// String formats the duration like "02:30:00" or "1 02:30:00".
func (d FlightTime) String() string {
	total := time.Duration(d).Round(time.Second)
	sign := ""
	if total < 0 {
		sign = "-"
		total = -total
	}
	days := total / (24 * time.Hour)
	total -= days * 24 * time.Hour
	h := total / time.Hour
	total -= h * time.Hour
	m := total / time.Minute
	total -= m * time.Minute
	s := total / time.Second

	if days > 0 {
		return fmt.Sprintf("%s%d %02d:%02d:%02d", sign, days, h, m, s)
	}
	return fmt.Sprintf("%s%02d:%02d:%02d", sign, h, m, s)
}

// MarshalJSON implements json.Marshaler.
func (d FlightTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}
