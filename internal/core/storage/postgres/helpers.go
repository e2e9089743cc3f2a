package postgres

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/geo"
	"github.com/aevon-lab/flightstats/internal/core/route"
	"github.com/aevon-lab/flightstats/internal/core/storage"
	"github.com/lib/pq"
)

type scanner interface {
	Scan(dest ...interface{}) error
}

// marshalText encodes a localized name for a JSONB column.
// Nil produces an empty object rather than SQL NULL.
func marshalText(t v1.LocalizedText) ([]byte, error) {
	if t == nil {
		return []byte("{}"), nil
	}
	b, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal localized text: %w", err)
	}
	return b, nil
}

func unmarshalText(b []byte) (v1.LocalizedText, error) {
	if len(b) == 0 {
		return nil, nil
	}
	var t v1.LocalizedText
	if err := json.Unmarshal(b, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal localized text: %w", err)
	}
	return t, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// nullTime maps the zero time to NULL.
func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func nullTimePtr(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return nullTime(*t)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func pointOf(lat, lon sql.NullFloat64) *geo.Point {
	return geo.PointOf(floatPtr(lat), floatPtr(lon))
}

func micros(d time.Duration) int64 {
	return d.Microseconds()
}

func fromMicros(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}

// mapWriteError turns constraint violations into storage sentinels.
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Name() {
		case "unique_violation":
			return fmt.Errorf("%w: %s", storage.ErrDuplicate, pqErr.Detail)
		case "foreign_key_violation":
			return fmt.Errorf("%w: %s", storage.ErrNotFound, pqErr.Detail)
		}
	}
	return err
}

// requireAffected returns storage.ErrNotFound when res touched no row.
func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", what, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	}
	return nil
}

func scanAirport(row scanner) (*v1.Airport, error) {
	var (
		a        v1.Airport
		nameJSON []byte
		cityJSON []byte
		lat, lon sql.NullFloat64
		timezone sql.NullString
	)
	if err := row.Scan(&a.Code, &nameJSON, &cityJSON, &lat, &lon, &timezone); err != nil {
		return nil, err
	}

	var err error
	if a.Name, err = unmarshalText(nameJSON); err != nil {
		return nil, err
	}
	if a.City, err = unmarshalText(cityJSON); err != nil {
		return nil, err
	}
	a.Latitude = floatPtr(lat)
	a.Longitude = floatPtr(lon)
	a.Timezone = timezone.String
	return &a, nil
}

func scanFlight(row scanner) (*v1.Flight, error) {
	var (
		f                    v1.Flight
		schedDep, schedArr   sql.NullTime
		actualDep, actualArr sql.NullTime
		aircraft             sql.NullString
		status               string
	)
	if err := row.Scan(
		&f.ID,
		&f.FlightNo,
		&schedDep,
		&schedArr,
		&actualDep,
		&actualArr,
		&f.DepartureAirport,
		&f.ArrivalAirport,
		&aircraft,
		&status,
		&f.PassengerCount,
	); err != nil {
		return nil, err
	}

	f.ScheduledDeparture = schedDep.Time
	f.ScheduledArrival = schedArr.Time
	f.ActualDeparture = timePtr(actualDep)
	f.ActualArrival = timePtr(actualArr)
	f.AircraftCode = aircraft.String
	f.Status = v1.FlightStatus(status)
	return &f, nil
}

func scanRouteStats(row scanner) (*aggregation.RouteStats, error) {
	var (
		s                 aggregation.RouteStats
		routeKey          string
		depCode, arrCode  string
		depName, arrName  []byte
		flightUs, totalUs int64
	)
	if err := row.Scan(
		&routeKey,
		&depCode,
		&arrCode,
		&depName,
		&arrName,
		&s.DistanceKm,
		&s.FlightsCount,
		&s.PassengersCount,
		&flightUs,
		&totalUs,
		&s.UpdatedAt,
	); err != nil {
		return nil, err
	}

	s.Route = route.For(depCode, arrCode)
	if s.Route.String() != routeKey {
		return nil, fmt.Errorf("route key %q does not match airports %s/%s", routeKey, depCode, arrCode)
	}

	var err error
	if s.DepartureAirportName, err = unmarshalText(depName); err != nil {
		return nil, err
	}
	if s.ArrivalAirportName, err = unmarshalText(arrName); err != nil {
		return nil, err
	}
	s.FlightTime = fromMicros(flightUs)
	s.TotalFlightTime = fromMicros(totalUs)
	return &s, nil
}

// routeStatsArgs returns the eleven insert/upsert parameters in column order.
func routeStatsArgs(s aggregation.RouteStats) ([]interface{}, error) {
	depName, err := marshalText(s.DepartureAirportName)
	if err != nil {
		return nil, err
	}
	arrName, err := marshalText(s.ArrivalAirportName)
	if err != nil {
		return nil, err
	}
	return []interface{}{
		s.Route.String(),
		s.Route.Departure,
		s.Route.Arrival,
		depName,
		arrName,
		s.DistanceKm,
		s.FlightsCount,
		s.PassengersCount,
		micros(s.FlightTime),
		micros(s.TotalFlightTime),
		s.UpdatedAt,
	}, nil
}

func scanRouteTotals(row scanner) (*aggregation.RouteTotals, error) {
	var (
		t                aggregation.RouteTotals
		depCode, arrCode string
		depName, arrName []byte
		depLat, depLon   sql.NullFloat64
		arrLat, arrLon   sql.NullFloat64
		totalUs          int64
	)
	if err := row.Scan(
		&depCode,
		&arrCode,
		&depName,
		&arrName,
		&depLat,
		&depLon,
		&arrLat,
		&arrLon,
		&t.FlightsCount,
		&t.PassengersCount,
		&totalUs,
	); err != nil {
		return nil, err
	}

	t.Route = route.For(depCode, arrCode)
	var err error
	if t.DepartureAirportName, err = unmarshalText(depName); err != nil {
		return nil, err
	}
	if t.ArrivalAirportName, err = unmarshalText(arrName); err != nil {
		return nil, err
	}
	t.Departure = pointOf(depLat, depLon)
	t.Arrival = pointOf(arrLat, arrLon)
	t.TotalFlightTime = fromMicros(totalUs)
	return &t, nil
}
