package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/route"
	"github.com/aevon-lab/flightstats/internal/core/storage"
)

// pgTx implements storage.RebuildTx on one *sql.Tx.
type pgTx struct {
	tx *sql.Tx
}

var _ storage.RebuildTx = (*pgTx)(nil)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

func (t *pgTx) InsertAirports(ctx context.Context, airports []v1.Airport) error {
	stmt, err := t.tx.PrepareContext(ctx, queryInsertAirport)
	if err != nil {
		return fmt.Errorf("insert airports: prepare: %w", err)
	}
	defer stmt.Close()

	for _, a := range airports {
		name, err := marshalText(a.Name)
		if err != nil {
			return err
		}
		city, err := marshalText(a.City)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			a.Code,
			name,
			city,
			nullFloat(a.Latitude),
			nullFloat(a.Longitude),
			a.Timezone,
		); err != nil {
			return fmt.Errorf("insert airport %s: %w", a.Code, mapWriteError(err))
		}
	}
	return nil
}

func (t *pgTx) GetAirport(ctx context.Context, code string) (*v1.Airport, error) {
	airport, err := scanAirport(t.tx.QueryRowContext(ctx, querySelectAirport, code))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("airport %s: %w", code, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get airport %s: %w", code, err)
	}
	return airport, nil
}

func (t *pgTx) LookupDistance(ctx context.Context, key route.Key) (float64, bool, error) {
	var km float64
	err := t.tx.QueryRowContext(ctx, queryLookupDistance, key.Departure, key.Arrival).Scan(&km)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("lookup distance %s: %w", key, err)
	}
	return km, true, nil
}

func (t *pgTx) InsertTicket(ctx context.Context, ticket *v1.Ticket) error {
	if _, err := t.tx.ExecContext(ctx, queryInsertTicket,
		ticket.TicketNo,
		ticket.BookRef,
		ticket.PassengerID,
		ticket.PassengerName,
	); err != nil {
		return fmt.Errorf("insert ticket %s: %w", ticket.TicketNo, mapWriteError(err))
	}
	return nil
}

func (t *pgTx) InsertFlight(ctx context.Context, f *v1.Flight) error {
	if _, err := t.tx.ExecContext(ctx, queryInsertFlight,
		f.ID,
		f.FlightNo,
		nullTime(f.ScheduledDeparture),
		nullTime(f.ScheduledArrival),
		nullTimePtr(f.ActualDeparture),
		nullTimePtr(f.ActualArrival),
		f.DepartureAirport,
		f.ArrivalAirport,
		f.AircraftCode,
		string(f.Status),
		f.PassengerCount,
	); err != nil {
		return fmt.Errorf("insert flight %d: %w", f.ID, mapWriteError(err))
	}
	return nil
}

func (t *pgTx) LockFlight(ctx context.Context, flightID int64) (*v1.Flight, error) {
	f, err := scanFlight(t.tx.QueryRowContext(ctx, querySelectFlightForUpdate, flightID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("flight %d: %w", flightID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lock flight %d: %w", flightID, err)
	}
	return f, nil
}

func (t *pgTx) UpdateFlightStatus(ctx context.Context, flightID int64, update v1.FlightStatusUpdate) error {
	res, err := t.tx.ExecContext(ctx, queryUpdateFlightStatus,
		flightID,
		string(update.Status),
		nullTimePtr(update.ActualDeparture),
		nullTimePtr(update.ActualArrival),
	)
	if err != nil {
		return fmt.Errorf("update flight %d status: %w", flightID, err)
	}
	return requireAffected(res, fmt.Sprintf("flight %d", flightID))
}

func (t *pgTx) SetFlightPassengerCount(ctx context.Context, flightID int64, count int64) error {
	res, err := t.tx.ExecContext(ctx, queryUpdateFlightPassengerCount, flightID, count)
	if err != nil {
		return fmt.Errorf("set flight %d passenger count: %w", flightID, err)
	}
	return requireAffected(res, fmt.Sprintf("flight %d", flightID))
}

func (t *pgTx) DeleteFlight(ctx context.Context, flightID int64) error {
	res, err := t.tx.ExecContext(ctx, queryDeleteFlight, flightID)
	if err != nil {
		return fmt.Errorf("delete flight %d: %w", flightID, err)
	}
	return requireAffected(res, fmt.Sprintf("flight %d", flightID))
}

func (t *pgTx) InsertTicketFlight(ctx context.Context, tf *v1.TicketFlight) error {
	if _, err := t.tx.ExecContext(ctx, queryInsertTicketFlight,
		tf.TicketNo,
		tf.FlightID,
		string(tf.FareCondition),
		tf.Amount,
	); err != nil {
		return fmt.Errorf("insert ticket flight %s/%d: %w", tf.TicketNo, tf.FlightID, mapWriteError(err))
	}
	return nil
}

func (t *pgTx) DeleteTicketFlight(ctx context.Context, ticketNo string, flightID int64) error {
	res, err := t.tx.ExecContext(ctx, queryDeleteTicketFlight, ticketNo, flightID)
	if err != nil {
		return fmt.Errorf("delete ticket flight %s/%d: %w", ticketNo, flightID, err)
	}
	return requireAffected(res, fmt.Sprintf("ticket flight %s/%d", ticketNo, flightID))
}

func (t *pgTx) LockRouteStats(ctx context.Context, key route.Key) (*aggregation.RouteStats, error) {
	s, err := scanRouteStats(t.tx.QueryRowContext(ctx, querySelectRouteStatsForUpdate, key.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lock route stats %s: %w", key, err)
	}
	return s, nil
}

func (t *pgTx) InsertRouteStats(ctx context.Context, stats aggregation.RouteStats) (bool, error) {
	args, err := routeStatsArgs(stats)
	if err != nil {
		return false, err
	}

	var routeKey string
	err = t.tx.QueryRowContext(ctx, queryInsertRouteStats, args...).Scan(&routeKey)
	if errors.Is(err, sql.ErrNoRows) {
		// ON CONFLICT DO NOTHING - another transaction created the route.
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert route stats %s: %w", stats.Route, err)
	}
	return true, nil
}

func (t *pgTx) UpdateRouteStats(ctx context.Context, stats aggregation.RouteStats) error {
	res, err := t.tx.ExecContext(ctx, queryUpdateRouteCounters,
		stats.Route.String(),
		stats.FlightsCount,
		stats.PassengersCount,
		micros(stats.FlightTime),
		micros(stats.TotalFlightTime),
		stats.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update route stats %s: %w", stats.Route, err)
	}
	return requireAffected(res, fmt.Sprintf("route %s", stats.Route))
}

func (t *pgTx) RecountPassengers(ctx context.Context) (int64, error) {
	res, err := t.tx.ExecContext(ctx, queryRecountPassengers)
	if err != nil {
		return 0, fmt.Errorf("recount passengers: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("recount passengers: rows affected: %w", err)
	}
	return n, nil
}

func (t *pgTx) ResetRouteStats(ctx context.Context) error {
	if _, err := t.tx.ExecContext(ctx, queryResetRouteStats, time.Now().UTC()); err != nil {
		return fmt.Errorf("reset route stats: %w", err)
	}
	return nil
}

func (t *pgTx) UpsertRouteStats(ctx context.Context, stats aggregation.RouteStats) error {
	args, err := routeStatsArgs(stats)
	if err != nil {
		return err
	}
	if _, err := t.tx.ExecContext(ctx, queryUpsertRouteStats, args...); err != nil {
		return fmt.Errorf("upsert route stats %s: %w", stats.Route, err)
	}
	return nil
}

func (t *pgTx) AggregateRoutes(ctx context.Context, filter aggregation.RouteFilter) ([]aggregation.RouteTotals, error) {
	return aggregateRoutes(ctx, t.tx, filter)
}

// aggregateRoutes runs the live grouped query on db or an open transaction.
// Filters are always bound parameters.
func aggregateRoutes(ctx context.Context, q queryer, filter aggregation.RouteFilter) ([]aggregation.RouteTotals, error) {
	var from, to sql.NullTime
	if filter.FromDate != nil {
		from = sql.NullTime{Time: *filter.FromDate, Valid: true}
	}
	if filter.ToDate != nil {
		to = sql.NullTime{Time: *filter.ToDate, Valid: true}
	}

	rows, err := q.QueryContext(ctx, queryAggregateRoutes, filter.DepartureCode, filter.ArrivalCode, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate routes: %w", err)
	}
	defer rows.Close()

	var out []aggregation.RouteTotals
	for rows.Next() {
		t, err := scanRouteTotals(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan route totals: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating route totals: %w", err)
	}
	return out, nil
}
