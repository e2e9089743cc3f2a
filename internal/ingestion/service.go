package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/storage"
	"github.com/gin-gonic/gin"
)

// Service is the write path. Every mutation opens one transaction, performs
// the base write and calls the Updater with that same transaction, so the
// base row and its aggregate delta commit or roll back together.
type Service struct {
	store            storage.Store
	updater          *aggregation.Updater
	maxBodySizeBytes int
}

func NewService(store storage.Store, updater *aggregation.Updater, maxBodySizeMB int) *Service {
	if store == nil {
		panic("ingestion: store must not be nil")
	}
	if updater == nil {
		panic("ingestion: updater must not be nil")
	}
	if maxBodySizeMB <= 0 {
		maxBodySizeMB = 1 // default to 1MB
	}
	return &Service{
		store:            store,
		updater:          updater,
		maxBodySizeBytes: maxBodySizeMB * 1024 * 1024,
	}
}

// RegisterRoutes registers the write routes.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.POST("/v1/airports", s.CreateAirportsHandler)
	r.POST("/v1/tickets", s.CreateTicketHandler)
	r.POST("/v1/flights", s.CreateFlightHandler)
	r.PATCH("/v1/flights/:flight_id", s.UpdateFlightStatusHandler)
	r.DELETE("/v1/flights/:flight_id", s.DeleteFlightHandler)
	r.POST("/v1/ticket-flights", s.CreateTicketFlightHandler)
	r.DELETE("/v1/ticket-flights/:ticket_no/:flight_id", s.DeleteTicketFlightHandler)
}

// CreateAirports validates and inserts airports in one transaction.
// Airports never affect route aggregates until a flight references them.
func (s *Service) CreateAirports(ctx context.Context, airports []v1.Airport) error {
	for i := range airports {
		if err := airports[i].Validate(); err != nil {
			return &ValidationError{Err: err}
		}
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertAirports(ctx, airports)
	})
}

func (s *Service) CreateTicket(ctx context.Context, ticket *v1.Ticket) error {
	if err := ticket.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertTicket(ctx, ticket)
	})
}

// CreateFlight inserts the flight and adds it to its route aggregate.
// PassengerCount on input is ignored: a new flight has no ticket flights.
func (s *Service) CreateFlight(ctx context.Context, flight *v1.Flight) error {
	if err := flight.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	flight.PassengerCount = 0

	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if err := tx.InsertFlight(ctx, flight); err != nil {
			return err
		}
		return s.updater.OnFlightCreated(ctx, tx, flight)
	})
}

// UpdateFlightStatus changes status and actual times. Aggregates only use
// the schedule, so no delta is applied.
func (s *Service) UpdateFlightStatus(ctx context.Context, flightID int64, update v1.FlightStatusUpdate) (*v1.Flight, error) {
	if err := update.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	var updated *v1.Flight
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		flight, err := tx.LockFlight(ctx, flightID)
		if err != nil {
			return err
		}
		if err := tx.UpdateFlightStatus(ctx, flightID, update); err != nil {
			return err
		}
		flight.Status = update.Status
		flight.ActualDeparture = update.ActualDeparture
		flight.ActualArrival = update.ActualArrival
		updated = flight
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteFlight removes the flight's contribution from its route, then the
// flight and its ticket flights.
func (s *Service) DeleteFlight(ctx context.Context, flightID int64) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		flight, err := tx.LockFlight(ctx, flightID)
		if err != nil {
			return err
		}
		if err := s.updater.OnFlightDeleted(ctx, tx, flight); err != nil {
			return err
		}
		if err := tx.DeleteFlight(ctx, flightID); err != nil {
			return err
		}
		slog.Info("[Ingestion] Flight deleted",
			"flight_id", flightID,
			"passengers_removed", flight.PassengerCount)
		return nil
	})
}

// CreateTicketFlight books a ticket onto a flight.
//
// The flight row is locked before the insert: the foreign key check would
// otherwise take a key-share lock first, and two concurrent bookings
// upgrading it to FOR UPDATE deadlock.
func (s *Service) CreateTicketFlight(ctx context.Context, tf *v1.TicketFlight) error {
	if err := tf.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.LockFlight(ctx, tf.FlightID); err != nil {
			return err
		}
		if err := tx.InsertTicketFlight(ctx, tf); err != nil {
			return err
		}
		return s.updater.OnTicketFlightCreated(ctx, tx, tf.TicketNo, tf.FlightID)
	})
}

func (s *Service) DeleteTicketFlight(ctx context.Context, ticketNo string, flightID int64) error {
	if ticketNo == "" || flightID <= 0 {
		return &ValidationError{Err: fmt.Errorf("ticket_no and a positive flight_id are required")}
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.LockFlight(ctx, flightID); err != nil {
			return err
		}
		if err := tx.DeleteTicketFlight(ctx, ticketNo, flightID); err != nil {
			return err
		}
		return s.updater.OnTicketFlightDeleted(ctx, tx, ticketNo, flightID)
	})
}

// ValidationError wraps input rejected before any transaction is opened.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
