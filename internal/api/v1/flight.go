package v1

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FlightStatus is the operational state of a flight.
type FlightStatus string

const (
	StatusScheduled FlightStatus = "Scheduled"
	StatusDelayed   FlightStatus = "Delayed"
	StatusArrived   FlightStatus = "Arrived"
	StatusOnTime    FlightStatus = "On Time"
	StatusCancelled FlightStatus = "Cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s FlightStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusDelayed, StatusArrived, StatusOnTime, StatusCancelled:
		return true
	}
	return false
}

// FareCondition is the cabin class of a ticket flight.
type FareCondition string

const (
	FareEconomy  FareCondition = "Economy"
	FareComfort  FareCondition = "Comfort"
	FareBusiness FareCondition = "Business"
)

// Valid reports whether c is one of the known fare conditions.
func (c FareCondition) Valid() bool {
	switch c {
	case FareEconomy, FareComfort, FareBusiness:
		return true
	}
	return false
}

// Flight is a single scheduled leg between two airports.
type Flight struct {
	ID       int64  `json:"flight_id"`
	FlightNo string `json:"flight_no"`

	// ScheduledDeparture and ScheduledArrival are zero when the flight is not
	// yet schedulable. Route aggregates ignore such flights.
	ScheduledDeparture time.Time `json:"scheduled_departure"`
	ScheduledArrival   time.Time `json:"scheduled_arrival"`

	// ActualDeparture and ActualArrival are populated after the flight occurs.
	ActualDeparture *time.Time `json:"actual_departure,omitempty"`
	ActualArrival   *time.Time `json:"actual_arrival,omitempty"`

	DepartureAirport string       `json:"departure_airport"`
	ArrivalAirport   string       `json:"arrival_airport"`
	AircraftCode     string       `json:"aircraft_code"`
	Status           FlightStatus `json:"status"`

	// PassengerCount is maintained by ticket flight handling. It is ignored
	// on input to the write API.
	PassengerCount int64 `json:"passenger_count"`
}

// HasSchedule reports whether both scheduled timestamps are set.
func (f *Flight) HasSchedule() bool {
	return !f.ScheduledDeparture.IsZero() && !f.ScheduledArrival.IsZero()
}

// ScheduledDuration returns scheduled_arrival - scheduled_departure.
// The second result is false when the flight has no schedule.
func (f *Flight) ScheduledDuration() (time.Duration, bool) {
	if !f.HasSchedule() {
		return 0, false
	}
	return f.ScheduledArrival.Sub(f.ScheduledDeparture), true
}

// ActualDuration returns actual_arrival - actual_departure when both are set.
func (f *Flight) ActualDuration() (time.Duration, bool) {
	if f.ActualDeparture == nil || f.ActualArrival == nil {
		return 0, false
	}
	return f.ActualArrival.Sub(*f.ActualDeparture), true
}

// Validate ensures the flight has the fields the write path needs.
func (f *Flight) Validate() error {
	if f.ID <= 0 {
		return fmt.Errorf("flight_id must be positive")
	}
	if strings.TrimSpace(f.FlightNo) == "" {
		return fmt.Errorf("flight_no is required")
	}
	if f.DepartureAirport == "" || f.ArrivalAirport == "" {
		return fmt.Errorf("departure_airport and arrival_airport are required")
	}
	if f.Status == "" {
		f.Status = StatusScheduled
	}
	if !f.Status.Valid() {
		return fmt.Errorf("invalid status %q", f.Status)
	}
	if f.HasSchedule() && !f.ScheduledArrival.After(f.ScheduledDeparture) {
		return fmt.Errorf("scheduled_arrival must be after scheduled_departure")
	}
	return nil
}

// Ticket is the passenger document a ticket flight refers to.
type Ticket struct {
	TicketNo      string `json:"ticket_no"`
	BookRef       string `json:"book_ref"`
	PassengerID   string `json:"passenger_id"`
	PassengerName string `json:"passenger_name"`
}

// Validate ensures the ticket has its identifier.
func (t *Ticket) Validate() error {
	if strings.TrimSpace(t.TicketNo) == "" {
		return fmt.Errorf("ticket_no is required")
	}
	return nil
}

// TicketFlight links a ticket to a flight. Each (ticket, flight) pair is one
// passenger on that flight.
type TicketFlight struct {
	TicketNo      string          `json:"ticket_no"`
	FlightID      int64           `json:"flight_id"`
	FareCondition FareCondition   `json:"fare_condition"`
	Amount        decimal.Decimal `json:"amount"`
}

// Validate ensures the ticket flight references a ticket and flight.
func (tf *TicketFlight) Validate() error {
	if strings.TrimSpace(tf.TicketNo) == "" {
		return fmt.Errorf("ticket_no is required")
	}
	if tf.FlightID <= 0 {
		return fmt.Errorf("flight_id must be positive")
	}
	if tf.FareCondition == "" {
		tf.FareCondition = FareEconomy
	}
	if !tf.FareCondition.Valid() {
		return fmt.Errorf("invalid fare_condition %q", tf.FareCondition)
	}
	if tf.Amount.IsNegative() {
		return fmt.Errorf("amount must not be negative")
	}
	return nil
}

// FlightStatusUpdate carries the mutable operational fields of a flight.
type FlightStatusUpdate struct {
	Status          FlightStatus `json:"status"`
	ActualDeparture *time.Time   `json:"actual_departure,omitempty"`
	ActualArrival   *time.Time   `json:"actual_arrival,omitempty"`
}

// Validate checks the status value and actual time ordering.
func (u *FlightStatusUpdate) Validate() error {
	if !u.Status.Valid() {
		return fmt.Errorf("invalid status %q", u.Status)
	}
	if u.ActualDeparture != nil && u.ActualArrival != nil && u.ActualArrival.Before(*u.ActualDeparture) {
		return fmt.Errorf("actual_arrival must not be before actual_departure")
	}
	return nil
}
