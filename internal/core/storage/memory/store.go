// Package memory is an in-process implementation of the storage interfaces.
//
// Writers serialize per route on one of route.StripeCount stripes, held from
// first touch until the transaction ends. Readers of route data take every
// stripe, so they only ever observe committed state.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/geo"
	"github.com/aevon-lab/flightstats/internal/core/route"
	"github.com/aevon-lab/flightstats/internal/core/storage"
)

type ticketFlightKey struct {
	ticketNo string
	flightID int64
}

// Store holds every table in maps.
type Store struct {
	stripes [route.StripeCount]sync.Mutex

	// mu guards the maps below for the duration of a single operation.
	mu            sync.Mutex
	airports      map[string]v1.Airport
	tickets       map[string]v1.Ticket
	flights       map[int64]v1.Flight
	ticketFlights map[ticketFlightKey]v1.TicketFlight
	stats         map[route.Key]aggregation.RouteStats
	distances     []storage.AirportDistance
}

var (
	_ storage.Store            = (*Store)(nil)
	_ storage.RouteStatsReader = (*Store)(nil)
	_ storage.RouteAggregator  = (*Store)(nil)
	_ storage.DistanceStore    = (*Store)(nil)
	_ storage.RebuildTx        = (*tx)(nil)
)

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		airports:      make(map[string]v1.Airport),
		tickets:       make(map[string]v1.Ticket),
		flights:       make(map[int64]v1.Flight),
		ticketFlights: make(map[ticketFlightKey]v1.TicketFlight),
		stats:         make(map[route.Key]aggregation.RouteStats),
	}
}

// WithTx runs fn in a transaction. If fn fails every write it made is undone.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.begin()
	return t.finish(fn(ctx, t))
}

// WithRebuildTx runs fn holding every stripe.
func (s *Store) WithRebuildTx(ctx context.Context, fn func(ctx context.Context, tx storage.RebuildTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t := s.begin()
	t.lockAll()
	return t.finish(fn(ctx, t))
}

// ListRouteStats returns committed aggregate rows matching the airport
// filters, ordered by route key. Date bounds do not apply to the cache.
func (s *Store) ListRouteStats(ctx context.Context, filter aggregation.RouteFilter) ([]aggregation.RouteStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := s.begin()
	t.lockAll()
	defer t.release()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]aggregation.RouteStats, 0, len(s.stats))
	for key, row := range s.stats {
		if filter.Matches(key) {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Route.String() < out[j].Route.String()
	})
	return out, nil
}

// AggregateRoutes groups committed flights by route.
func (s *Store) AggregateRoutes(ctx context.Context, filter aggregation.RouteFilter) ([]aggregation.RouteTotals, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := s.begin()
	t.lockAll()
	defer t.release()
	return t.AggregateRoutes(ctx, filter)
}

// ListAirports returns all airports ordered by English name then code, or by
// code alone.
func (s *Store) ListAirports(ctx context.Context, sortedByName bool) ([]v1.Airport, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]v1.Airport, 0, len(s.airports))
	for _, a := range s.airports {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if sortedByName {
			ni, nj := out[i].Name["en"], out[j].Name["en"]
			if ni != nj {
				return ni < nj
			}
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

// AppendDistances appends rows. Existing pairs are not replaced.
func (s *Store) AppendDistances(ctx context.Context, rows []storage.AirportDistance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distances = append(s.distances, rows...)
	return nil
}

// TruncateDistances removes every precomputed distance.
func (s *Store) TruncateDistances(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distances = nil
	return nil
}

// Distances returns a copy of the precomputed distance rows.
func (s *Store) Distances() []storage.AirportDistance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]storage.AirportDistance(nil), s.distances...)
}

// Flight returns a copy of the stored flight.
func (s *Store) Flight(flightID int64) (v1.Flight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[flightID]
	return f, ok
}

func (s *Store) begin() *tx {
	return &tx{store: s, held: make(map[int]bool)}
}

// tx tracks the stripes it holds and an undo log.
type tx struct {
	store *Store
	held  map[int]bool
	undo  []func()
}

func (t *tx) finish(err error) error {
	if err != nil {
		t.rollback()
	}
	t.release()
	return err
}

func (t *tx) rollback() {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *tx) release() {
	for i := range t.store.stripes {
		if t.held[i] {
			t.store.stripes[i].Unlock()
		}
	}
	t.held = nil
}

// lockRoute acquires the route's stripe once per transaction.
func (t *tx) lockRoute(key route.Key) {
	i := route.Stripe(key)
	if t.held[i] {
		return
	}
	t.store.stripes[i].Lock()
	t.held[i] = true
}

// lockAll acquires every stripe in index order. It must be called before
// any other stripe is held.
func (t *tx) lockAll() {
	for i := range t.store.stripes {
		t.store.stripes[i].Lock()
		t.held[i] = true
	}
}

// flightRoute returns the route of an existing flight without locking it.
func (t *tx) flightRoute(flightID int64) (route.Key, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	f, ok := t.store.flights[flightID]
	if !ok {
		return route.Key{}, fmt.Errorf("flight %d: %w", flightID, storage.ErrNotFound)
	}
	return route.For(f.DepartureAirport, f.ArrivalAirport), nil
}

func (t *tx) InsertAirports(_ context.Context, airports []v1.Airport) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]bool, len(airports))
	for _, a := range airports {
		if _, ok := s.airports[a.Code]; ok || seen[a.Code] {
			return fmt.Errorf("airport %s: %w", a.Code, storage.ErrDuplicate)
		}
		seen[a.Code] = true
	}
	for _, a := range airports {
		code := a.Code
		s.airports[code] = a
		t.undo = append(t.undo, func() { delete(s.airports, code) })
	}
	return nil
}

func (t *tx) GetAirport(_ context.Context, code string) (*v1.Airport, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	a, ok := t.store.airports[code]
	if !ok {
		return nil, fmt.Errorf("airport %s: %w", code, storage.ErrNotFound)
	}
	return &a, nil
}

// LookupDistance returns the most recently appended distance for the pair.
func (t *tx) LookupDistance(_ context.Context, key route.Key) (float64, bool, error) {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	for i := len(t.store.distances) - 1; i >= 0; i-- {
		d := t.store.distances[i]
		if d.Departure == key.Departure && d.Arrival == key.Arrival {
			return d.DistanceKm, true, nil
		}
	}
	return 0, false, nil
}

func (t *tx) InsertTicket(_ context.Context, ticket *v1.Ticket) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.TicketNo]; ok {
		return fmt.Errorf("ticket %s: %w", ticket.TicketNo, storage.ErrDuplicate)
	}
	no := ticket.TicketNo
	s.tickets[no] = *ticket
	t.undo = append(t.undo, func() { delete(s.tickets, no) })
	return nil
}

func (t *tx) InsertFlight(_ context.Context, flight *v1.Flight) error {
	t.lockRoute(route.For(flight.DepartureAirport, flight.ArrivalAirport))

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.flights[flight.ID]; ok {
		return fmt.Errorf("flight %d: %w", flight.ID, storage.ErrDuplicate)
	}
	for _, code := range []string{flight.DepartureAirport, flight.ArrivalAirport} {
		if _, ok := s.airports[code]; !ok {
			return fmt.Errorf("airport %s: %w", code, storage.ErrNotFound)
		}
	}
	id := flight.ID
	s.flights[id] = *flight
	t.undo = append(t.undo, func() { delete(s.flights, id) })
	return nil
}

func (t *tx) LockFlight(_ context.Context, flightID int64) (*v1.Flight, error) {
	key, err := t.flightRoute(flightID)
	if err != nil {
		return nil, err
	}
	t.lockRoute(key)

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	f, ok := t.store.flights[flightID]
	if !ok {
		// Deleted while we waited for the stripe.
		return nil, fmt.Errorf("flight %d: %w", flightID, storage.ErrNotFound)
	}
	return &f, nil
}

func (t *tx) UpdateFlightStatus(ctx context.Context, flightID int64, update v1.FlightStatusUpdate) error {
	if _, err := t.LockFlight(ctx, flightID); err != nil {
		return err
	}
	t.modifyFlight(flightID, func(f *v1.Flight) {
		f.Status = update.Status
		f.ActualDeparture = update.ActualDeparture
		f.ActualArrival = update.ActualArrival
	})
	return nil
}

func (t *tx) SetFlightPassengerCount(ctx context.Context, flightID int64, count int64) error {
	if _, err := t.LockFlight(ctx, flightID); err != nil {
		return err
	}
	t.modifyFlight(flightID, func(f *v1.Flight) {
		f.PassengerCount = count
	})
	return nil
}

func (t *tx) modifyFlight(flightID int64, fn func(f *v1.Flight)) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.flights[flightID]
	next := prev
	fn(&next)
	s.flights[flightID] = next
	t.undo = append(t.undo, func() { s.flights[flightID] = prev })
}

// DeleteFlight removes the flight and cascades to its ticket flights.
func (t *tx) DeleteFlight(ctx context.Context, flightID int64) error {
	if _, err := t.LockFlight(ctx, flightID); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, tf := range s.ticketFlights {
		if k.flightID != flightID {
			continue
		}
		k, tf := k, tf
		delete(s.ticketFlights, k)
		t.undo = append(t.undo, func() { s.ticketFlights[k] = tf })
	}
	prev := s.flights[flightID]
	delete(s.flights, flightID)
	t.undo = append(t.undo, func() { s.flights[flightID] = prev })
	return nil
}

func (t *tx) InsertTicketFlight(ctx context.Context, tf *v1.TicketFlight) error {
	if _, err := t.LockFlight(ctx, tf.FlightID); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[tf.TicketNo]; !ok {
		return fmt.Errorf("ticket %s: %w", tf.TicketNo, storage.ErrNotFound)
	}
	k := ticketFlightKey{ticketNo: tf.TicketNo, flightID: tf.FlightID}
	if _, ok := s.ticketFlights[k]; ok {
		return fmt.Errorf("ticket flight %s/%d: %w", tf.TicketNo, tf.FlightID, storage.ErrDuplicate)
	}
	s.ticketFlights[k] = *tf
	t.undo = append(t.undo, func() { delete(s.ticketFlights, k) })
	return nil
}

func (t *tx) DeleteTicketFlight(ctx context.Context, ticketNo string, flightID int64) error {
	if _, err := t.LockFlight(ctx, flightID); err != nil {
		return err
	}

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	k := ticketFlightKey{ticketNo: ticketNo, flightID: flightID}
	prev, ok := s.ticketFlights[k]
	if !ok {
		return fmt.Errorf("ticket flight %s/%d: %w", ticketNo, flightID, storage.ErrNotFound)
	}
	delete(s.ticketFlights, k)
	t.undo = append(t.undo, func() { s.ticketFlights[k] = prev })
	return nil
}

func (t *tx) LockRouteStats(_ context.Context, key route.Key) (*aggregation.RouteStats, error) {
	t.lockRoute(key)

	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	row, ok := t.store.stats[key]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (t *tx) InsertRouteStats(_ context.Context, stats aggregation.RouteStats) (bool, error) {
	t.lockRoute(stats.Route)

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stats[stats.Route]; ok {
		return false, nil
	}
	key := stats.Route
	s.stats[key] = stats
	t.undo = append(t.undo, func() { delete(s.stats, key) })
	return true, nil
}

func (t *tx) UpdateRouteStats(_ context.Context, stats aggregation.RouteStats) error {
	t.lockRoute(stats.Route)

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.stats[stats.Route]
	if !ok {
		return fmt.Errorf("route %s: %w", stats.Route, storage.ErrNotFound)
	}
	key := stats.Route
	s.stats[key] = stats
	t.undo = append(t.undo, func() { s.stats[key] = prev })
	return nil
}

func (t *tx) RecountPassengers(_ context.Context) (int64, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int64]int64, len(s.flights))
	for k := range s.ticketFlights {
		counts[k.flightID]++
	}

	var changed int64
	for id, f := range s.flights {
		if f.PassengerCount == counts[id] {
			continue
		}
		id, prev := id, f
		f.PassengerCount = counts[id]
		s.flights[id] = f
		t.undo = append(t.undo, func() { s.flights[id] = prev })
		changed++
	}
	return changed, nil
}

func (t *tx) ResetRouteStats(_ context.Context) error {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, prev := range s.stats {
		key, prev := key, prev
		zeroed := prev
		zeroed.FlightsCount = 0
		zeroed.PassengersCount = 0
		zeroed.FlightTime = 0
		zeroed.TotalFlightTime = 0
		s.stats[key] = zeroed
		t.undo = append(t.undo, func() { s.stats[key] = prev })
	}
	return nil
}

func (t *tx) UpsertRouteStats(_ context.Context, stats aggregation.RouteStats) error {
	t.lockRoute(stats.Route)

	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()
	key := stats.Route
	prev, existed := s.stats[key]
	s.stats[key] = stats
	t.undo = append(t.undo, func() {
		if existed {
			s.stats[key] = prev
		} else {
			delete(s.stats, key)
		}
	})
	return nil
}

// AggregateRoutes groups scheduled flights by route, counting distinct
// ticket flights as passengers.
func (t *tx) AggregateRoutes(_ context.Context, filter aggregation.RouteFilter) ([]aggregation.RouteTotals, error) {
	s := t.store
	s.mu.Lock()
	defer s.mu.Unlock()

	passengers := make(map[int64]int64, len(s.flights))
	for k := range s.ticketFlights {
		passengers[k.flightID]++
	}

	groups := make(map[route.Key]*aggregation.RouteTotals)
	for id, f := range s.flights {
		d, ok := f.ScheduledDuration()
		if !ok {
			continue
		}
		if filter.FromDate != nil && f.ScheduledDeparture.Before(*filter.FromDate) {
			continue
		}
		if filter.ToDate != nil && f.ScheduledDeparture.After(*filter.ToDate) {
			continue
		}
		key := route.For(f.DepartureAirport, f.ArrivalAirport)
		if !filter.Matches(key) {
			continue
		}

		g, ok := groups[key]
		if !ok {
			dep, arr := s.airports[key.Departure], s.airports[key.Arrival]
			g = &aggregation.RouteTotals{
				Route:                key,
				DepartureAirportName: dep.Name,
				ArrivalAirportName:   arr.Name,
				Departure:            pointOf(dep),
				Arrival:              pointOf(arr),
			}
			groups[key] = g
		}
		g.FlightsCount++
		g.PassengersCount += passengers[id]
		g.TotalFlightTime += d
	}

	out := make([]aggregation.RouteTotals, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Route.String() < out[j].Route.String()
	})
	return out, nil
}

func pointOf(a v1.Airport) *geo.Point {
	return geo.PointOf(a.Latitude, a.Longitude)
}
