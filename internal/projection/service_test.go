package projection

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	coreagg "github.com/aevon-lab/flightstats/internal/core/aggregation"
	"github.com/aevon-lab/flightstats/internal/core/geo"
	"github.com/aevon-lab/flightstats/internal/core/route"
	storagemocks "github.com/aevon-lab/flightstats/internal/mocks/storage"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type testMocks struct {
	cache    *storagemocks.RouteStatsReader
	live     *storagemocks.RouteAggregator
	airports *storagemocks.AirportReader
}

func newTestService(t *testing.T) (*Service, testMocks) {
	t.Helper()
	m := testMocks{
		cache:    storagemocks.NewRouteStatsReader(t),
		live:     storagemocks.NewRouteAggregator(t),
		airports: storagemocks.NewAirportReader(t),
	}
	return NewService(m.cache, m.live, m.airports), m
}

func cachedRow(dep, arr string, flights int64, mean time.Duration) coreagg.RouteStats {
	return coreagg.RouteStats{
		Route:           route.For(dep, arr),
		DistanceKm:      600,
		FlightsCount:    flights,
		FlightTime:      mean,
		TotalFlightTime: mean * time.Duration(flights),
	}
}

func TestService_GetRouteStats_Validation(t *testing.T) {
	svc, _ := newTestService(t)
	from := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	to := from.Add(-time.Hour)

	tests := []struct {
		name    string
		query   RouteStatsQuery
		wantErr error
	}{
		{name: "unknown sort field", query: RouteStatsQuery{SortField: "fare"}, wantErr: ErrUnknownSortField},
		{name: "unknown sort order", query: RouteStatsQuery{SortField: SortFlightsCount, SortOrder: "up"}, wantErr: ErrUnknownSortField},
		{name: "to before from", query: RouteStatsQuery{FromDate: &from, ToDate: &to}, wantErr: ErrInvalidQuery},
		{name: "unknown source", query: RouteStatsQuery{Source: "replica"}, wantErr: ErrInvalidQuery},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.GetRouteStats(context.Background(), tc.query)
			require.Error(t, err)
			require.True(t, errors.Is(err, tc.wantErr), "got %v", err)
		})
	}
}

func TestService_GetRouteStats_CacheSkipsZeroedRows(t *testing.T) {
	svc, m := newTestService(t)
	filter := coreagg.RouteFilter{DepartureCode: "SVO"}

	m.cache.EXPECT().
		ListRouteStats(mock.Anything, filter).
		Return([]coreagg.RouteStats{
			cachedRow("SVO", "LED", 2, 90*time.Minute),
			cachedRow("SVO", "AER", 0, 0),
			cachedRow("SVO", "KZN", 1, 95*time.Minute),
		}, nil).
		Once()

	routes, err := svc.GetRouteStats(context.Background(), RouteStatsQuery{
		DepartureAirport: "SVO",
		SortField:        SortFlightTime,
		SortOrder:        OrderDesc,
	})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	require.Equal(t, "KZN", routes[0].ArrivalAirport)
	require.Equal(t, "LED", routes[1].ArrivalAirport)
	require.Equal(t, v1.FlightTime(90*time.Minute), routes[1].FlightTime)
}

func TestService_GetRouteStats_DateRangeUsesLivePath(t *testing.T) {
	svc, m := newTestService(t)
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	filter := coreagg.RouteFilter{FromDate: &from}

	m.live.EXPECT().
		AggregateRoutes(mock.Anything, filter).
		Return([]coreagg.RouteTotals{{
			Route:           route.For("SVO", "LED"),
			Departure:       &geo.Point{Lat: 55.972, Lon: 37.414},
			Arrival:         &geo.Point{Lat: 59.8, Lon: 30.262},
			FlightsCount:    2,
			PassengersCount: 3,
			TotalFlightTime: 3 * time.Hour,
		}}, nil).
		Once()

	routes, err := svc.GetRouteStats(context.Background(), RouteStatsQuery{FromDate: &from})
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Equal(t, int64(3), routes[0].PassengersCount)
	require.Equal(t, v1.FlightTime(90*time.Minute), routes[0].FlightTime)
	require.InDelta(t, 599.3, routes[0].DistanceKm, 0.5)
}

func TestService_GetRouteStats_ExplicitLiveSource(t *testing.T) {
	svc, m := newTestService(t)

	m.live.EXPECT().
		AggregateRoutes(mock.Anything, coreagg.RouteFilter{}).
		Return([]coreagg.RouteTotals{
			{Route: route.For("LED", "SVO"), FlightsCount: 1},
			{Route: route.For("DME", "LED"), FlightsCount: 1},
		}, nil).
		Once()

	routes, err := svc.GetRouteStats(context.Background(), RouteStatsQuery{Source: SourceLive})
	require.NoError(t, err)
	require.Len(t, routes, 2)
	require.Equal(t, "DME", routes[0].DepartureAirport, "default order is route key")
	require.Zero(t, routes[0].DistanceKm, "missing coordinates give zero distance")
}

func TestService_GetRouteStats_LiveInvalidCoordinates(t *testing.T) {
	svc, m := newTestService(t)

	m.live.EXPECT().
		AggregateRoutes(mock.Anything, coreagg.RouteFilter{}).
		Return([]coreagg.RouteTotals{{
			Route:     route.For("SVO", "LED"),
			Departure: &geo.Point{Lat: 95, Lon: 0},
			Arrival:   &geo.Point{Lat: 59.8, Lon: 30.262},
		}}, nil).
		Once()

	_, err := svc.GetRouteStats(context.Background(), RouteStatsQuery{Source: SourceLive})
	require.ErrorIs(t, err, geo.ErrInvalidCoordinate)
}

func TestService_GetRouteStats_StoreErrors(t *testing.T) {
	t.Run("cache", func(t *testing.T) {
		svc, m := newTestService(t)
		m.cache.EXPECT().
			ListRouteStats(mock.Anything, coreagg.RouteFilter{}).
			Return(nil, fmt.Errorf("db failure")).
			Once()

		_, err := svc.GetRouteStats(context.Background(), RouteStatsQuery{})
		require.ErrorContains(t, err, "query route stats cache")
	})

	t.Run("live", func(t *testing.T) {
		svc, m := newTestService(t)
		m.live.EXPECT().
			AggregateRoutes(mock.Anything, coreagg.RouteFilter{}).
			Return(nil, fmt.Errorf("db failure")).
			Once()

		_, err := svc.GetRouteStats(context.Background(), RouteStatsQuery{Source: SourceLive})
		require.ErrorContains(t, err, "aggregate routes")
	})
}

func TestService_GetAirports(t *testing.T) {
	svc, m := newTestService(t)

	m.airports.EXPECT().
		ListAirports(mock.Anything, true).
		Return([]v1.Airport{{Code: "LED"}, {Code: "SVO"}}, nil).
		Once()

	airports, err := svc.GetAirports(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, airports, 2)
}

func TestEffectiveSource(t *testing.T) {
	now := time.Now()
	require.Equal(t, SourceCache, EffectiveSource(RouteStatsQuery{}))
	require.Equal(t, SourceCache, EffectiveSource(RouteStatsQuery{Source: SourceCache}))
	require.Equal(t, SourceLive, EffectiveSource(RouteStatsQuery{Source: SourceLive}))
	require.Equal(t, SourceLive, EffectiveSource(RouteStatsQuery{ToDate: &now}))
}
