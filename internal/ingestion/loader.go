package ingestion

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/storage"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Fixture is a batch of base entities for bulk loading, in dependency order.
type Fixture struct {
	Airports      []v1.Airport
	Tickets       []v1.Ticket
	Flights       []v1.Flight
	TicketFlights []v1.TicketFlight
}

// LoadResult counts the rows a Load inserted.
type LoadResult struct {
	Airports      int
	Tickets       int
	Flights       int
	TicketFlights int
	Elapsed       time.Duration
}

// Loader inserts base entities without touching airport_stats. It is the
// entry point for historical imports: callers run aggregation.Rebuild once
// loading is finished.
type Loader struct {
	store storage.Store
}

func NewLoader(store storage.Store) *Loader {
	if store == nil {
		panic("ingestion: loader store must not be nil")
	}
	return &Loader{store: store}
}

// Load validates every entity, then inserts the fixture in one transaction.
// Flight passenger counts are taken as given and corrected by Rebuild.
func (l *Loader) Load(ctx context.Context, fx Fixture) (LoadResult, error) {
	if err := fx.validate(); err != nil {
		return LoadResult{}, &ValidationError{Err: err}
	}

	start := time.Now()
	err := l.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if len(fx.Airports) > 0 {
			if err := tx.InsertAirports(ctx, fx.Airports); err != nil {
				return fmt.Errorf("load airports: %w", err)
			}
		}
		for i := range fx.Tickets {
			if err := tx.InsertTicket(ctx, &fx.Tickets[i]); err != nil {
				return fmt.Errorf("load tickets: %w", err)
			}
		}
		for i := range fx.Flights {
			if err := tx.InsertFlight(ctx, &fx.Flights[i]); err != nil {
				return fmt.Errorf("load flights: %w", err)
			}
		}
		for i := range fx.TicketFlights {
			if err := tx.InsertTicketFlight(ctx, &fx.TicketFlights[i]); err != nil {
				return fmt.Errorf("load ticket flights: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return LoadResult{}, err
	}

	result := LoadResult{
		Airports:      len(fx.Airports),
		Tickets:       len(fx.Tickets),
		Flights:       len(fx.Flights),
		TicketFlights: len(fx.TicketFlights),
		Elapsed:       time.Since(start),
	}
	slog.Info("[Loader] Fixture loaded",
		"airports", result.Airports,
		"tickets", result.Tickets,
		"flights", result.Flights,
		"ticket_flights", result.TicketFlights,
		"elapsed", result.Elapsed)
	return result, nil
}

func (fx *Fixture) validate() error {
	for i := range fx.Airports {
		if err := fx.Airports[i].Validate(); err != nil {
			return fmt.Errorf("airports[%d]: %w", i, err)
		}
	}
	for i := range fx.Tickets {
		if err := fx.Tickets[i].Validate(); err != nil {
			return fmt.Errorf("tickets[%d]: %w", i, err)
		}
	}
	for i := range fx.Flights {
		if err := fx.Flights[i].Validate(); err != nil {
			return fmt.Errorf("flights[%d]: %w", i, err)
		}
	}
	for i := range fx.TicketFlights {
		if err := fx.TicketFlights[i].Validate(); err != nil {
			return fmt.Errorf("ticket_flights[%d]: %w", i, err)
		}
	}
	return nil
}

// YAML document layout. Amounts are strings so NUMERIC values survive
// without float rounding.
type fixtureDoc struct {
	Airports []struct {
		Code      string            `yaml:"code"`
		Name      map[string]string `yaml:"name"`
		City      map[string]string `yaml:"city"`
		Latitude  *float64          `yaml:"latitude"`
		Longitude *float64          `yaml:"longitude"`
		Timezone  string            `yaml:"timezone"`
	} `yaml:"airports"`

	Tickets []struct {
		TicketNo      string `yaml:"ticket_no"`
		BookRef       string `yaml:"book_ref"`
		PassengerID   string `yaml:"passenger_id"`
		PassengerName string `yaml:"passenger_name"`
	} `yaml:"tickets"`

	Flights []struct {
		ID                 int64      `yaml:"flight_id"`
		FlightNo           string     `yaml:"flight_no"`
		ScheduledDeparture *time.Time `yaml:"scheduled_departure"`
		ScheduledArrival   *time.Time `yaml:"scheduled_arrival"`
		ActualDeparture    *time.Time `yaml:"actual_departure"`
		ActualArrival      *time.Time `yaml:"actual_arrival"`
		DepartureAirport   string     `yaml:"departure_airport"`
		ArrivalAirport     string     `yaml:"arrival_airport"`
		AircraftCode       string     `yaml:"aircraft_code"`
		Status             string     `yaml:"status"`
		PassengerCount     int64      `yaml:"passenger_count"`
	} `yaml:"flights"`

	TicketFlights []struct {
		TicketNo      string `yaml:"ticket_no"`
		FlightID      int64  `yaml:"flight_id"`
		FareCondition string `yaml:"fare_condition"`
		Amount        string `yaml:"amount"`
	} `yaml:"ticket_flights"`
}

// ParseFixture decodes a YAML fixture document.
func ParseFixture(r io.Reader) (Fixture, error) {
	var doc fixtureDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if err == io.EOF {
			return Fixture{}, nil
		}
		return Fixture{}, fmt.Errorf("failed to decode fixture: %w", err)
	}

	var fx Fixture
	for _, a := range doc.Airports {
		fx.Airports = append(fx.Airports, v1.Airport{
			Code:      a.Code,
			Name:      a.Name,
			City:      a.City,
			Latitude:  a.Latitude,
			Longitude: a.Longitude,
			Timezone:  a.Timezone,
		})
	}
	for _, t := range doc.Tickets {
		fx.Tickets = append(fx.Tickets, v1.Ticket{
			TicketNo:      t.TicketNo,
			BookRef:       t.BookRef,
			PassengerID:   t.PassengerID,
			PassengerName: t.PassengerName,
		})
	}
	for _, f := range doc.Flights {
		flight := v1.Flight{
			ID:               f.ID,
			FlightNo:         f.FlightNo,
			ActualDeparture:  utcPtr(f.ActualDeparture),
			ActualArrival:    utcPtr(f.ActualArrival),
			DepartureAirport: f.DepartureAirport,
			ArrivalAirport:   f.ArrivalAirport,
			AircraftCode:     f.AircraftCode,
			Status:           v1.FlightStatus(f.Status),
			PassengerCount:   f.PassengerCount,
		}
		if f.ScheduledDeparture != nil {
			flight.ScheduledDeparture = f.ScheduledDeparture.UTC()
		}
		if f.ScheduledArrival != nil {
			flight.ScheduledArrival = f.ScheduledArrival.UTC()
		}
		fx.Flights = append(fx.Flights, flight)
	}
	for i, tf := range doc.TicketFlights {
		amount := decimal.Zero
		if tf.Amount != "" {
			var err error
			amount, err = decimal.NewFromString(tf.Amount)
			if err != nil {
				return Fixture{}, fmt.Errorf("ticket_flights[%d]: invalid amount %q: %w", i, tf.Amount, err)
			}
		}
		fx.TicketFlights = append(fx.TicketFlights, v1.TicketFlight{
			TicketNo:      tf.TicketNo,
			FlightID:      tf.FlightID,
			FareCondition: v1.FareCondition(tf.FareCondition),
			Amount:        amount,
		})
	}
	return fx, nil
}

// LoadFixtureFile reads and decodes a YAML fixture from disk.
func LoadFixtureFile(path string) (Fixture, error) {
	f, err := os.Open(path)
	if err != nil {
		return Fixture{}, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()
	return ParseFixture(f)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
