package mocks

//go:generate mockery --name RouteStatsReader --srcpkg github.com/aevon-lab/flightstats/internal/core/storage --output ./storage --outpkg storagemocks --filename route_stats_reader.go --with-expecter
//go:generate mockery --name RouteAggregator --srcpkg github.com/aevon-lab/flightstats/internal/core/storage --output ./storage --outpkg storagemocks --filename route_aggregator.go --with-expecter
//go:generate mockery --name AirportReader --srcpkg github.com/aevon-lab/flightstats/internal/core/storage --output ./storage --outpkg storagemocks --filename airport_reader.go --with-expecter
