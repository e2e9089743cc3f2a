package projection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	coreagg "github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/storage"
)

var (
	// ErrInvalidQuery marks request validation errors that should return HTTP 400.
	ErrInvalidQuery = errors.New("invalid route statistics query")

	// ErrUnknownSortField marks a sort field or order outside the allow-list.
	ErrUnknownSortField = errors.New("unknown sort field")
)

// Service implements the read path.
// Route statistics come from the airport_stats cache unless the query needs
// a date range or asks for the live aggregation explicitly.
type Service struct {
	cache    storage.RouteStatsReader
	live     storage.RouteAggregator
	airports storage.AirportReader
}

// NewService creates a new projection service.
func NewService(cache storage.RouteStatsReader, live storage.RouteAggregator, airports storage.AirportReader) *Service {
	if cache == nil || live == nil || airports == nil {
		panic("projection: readers must not be nil")
	}
	return &Service{
		cache:    cache,
		live:     live,
		airports: airports,
	}
}

// GetRouteStats returns statistics for every route matching q, ordered by
// the requested sort field and then by route key.
func (s *Service) GetRouteStats(ctx context.Context, q RouteStatsQuery) ([]v1.RouteStat, error) {
	q, err := normalizeAndValidate(q)
	if err != nil {
		return nil, err
	}

	filter := coreagg.RouteFilter{
		DepartureCode: q.DepartureAirport,
		ArrivalCode:   q.ArrivalAirport,
		FromDate:      q.FromDate,
		ToDate:        q.ToDate,
	}

	start := time.Now()
	var stats []coreagg.RouteStats
	switch q.Source {
	case SourceLive:
		stats, err = s.loadLive(ctx, filter)
	default:
		stats, err = s.loadCached(ctx, filter)
	}
	if err != nil {
		return nil, err
	}

	routes := make([]v1.RouteStat, 0, len(stats))
	for _, st := range stats {
		routes = append(routes, st.ToRouteStat())
	}
	sortRouteStats(routes, q.SortField, q.SortOrder == OrderDesc)

	slog.Debug("[Projection] Route statistics served",
		"source", q.Source,
		"routes", len(routes),
		"elapsed", time.Since(start))
	return routes, nil
}

// EffectiveSource reports which source GetRouteStats reads for q.
func EffectiveSource(q RouteStatsQuery) Source {
	if q.Source == SourceLive || q.FromDate != nil || q.ToDate != nil {
		return SourceLive
	}
	return SourceCache
}

// GetAirports lists airports by English name then code, or by code.
func (s *Service) GetAirports(ctx context.Context, sortedByName bool) ([]v1.Airport, error) {
	airports, err := s.airports.ListAirports(ctx, sortedByName)
	if err != nil {
		return nil, fmt.Errorf("list airports: %w", err)
	}
	return airports, nil
}

// loadCached reads airport_stats. Rows zeroed by their last flight's
// deletion are retained in the table but are not live routes.
func (s *Service) loadCached(ctx context.Context, filter coreagg.RouteFilter) ([]coreagg.RouteStats, error) {
	rows, err := s.cache.ListRouteStats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query route stats cache: %w", err)
	}
	out := rows[:0]
	for _, r := range rows {
		if r.FlightsCount > 0 {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Service) loadLive(ctx context.Context, filter coreagg.RouteFilter) ([]coreagg.RouteStats, error) {
	totals, err := s.live.AggregateRoutes(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("aggregate routes: %w", err)
	}
	out := make([]coreagg.RouteStats, 0, len(totals))
	for _, t := range totals {
		st, err := t.Stats()
		if err != nil {
			return nil, fmt.Errorf("route %s: %w", t.Route, err)
		}
		out = append(out, st)
	}
	return out, nil
}

func normalizeAndValidate(q RouteStatsQuery) (RouteStatsQuery, error) {
	switch q.Source {
	case "", SourceCache, SourceLive:
	default:
		return q, invalidQueryf("invalid source: %s (must be cache or live)", q.Source)
	}
	q.Source = EffectiveSource(q)

	if q.FromDate != nil && q.ToDate != nil && q.ToDate.Before(*q.FromDate) {
		return q, invalidQueryf("to_date must not be before from_date")
	}

	if q.SortField != "" {
		if _, ok := sortKeys[q.SortField]; !ok {
			return q, fmt.Errorf("%w: %q", ErrUnknownSortField, q.SortField)
		}
	}
	switch q.SortOrder {
	case "":
		q.SortOrder = OrderAsc
	case OrderAsc, OrderDesc:
	default:
		return q, fmt.Errorf("%w: invalid sort order %q (must be asc or desc)", ErrUnknownSortField, q.SortOrder)
	}
	return q, nil
}

func invalidQueryf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidQuery, fmt.Sprintf(format, args...))
}
