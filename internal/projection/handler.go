package projection

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	httperr "github.com/aevon-lab/flightstats/internal/core/errors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all projection API routes on the given router.
func (s *Service) RegisterRoutes(r gin.IRouter) {
	r.GET("/v1/airports", s.HandleListAirports)
	r.GET("/v1/airport-statistics", s.HandleRouteStats)
}

// HandleListAirports handles GET /v1/airports
// Query parameters: sort (name|code, default code)
func (s *Service) HandleListAirports(c *gin.Context) {
	sortBy := c.DefaultQuery("sort", "code")
	if sortBy != "name" && sortBy != "code" {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownSortFieldError,
			Message:   "Invalid query parameters",
			Details:   fmt.Sprintf("sort must be name or code, got %q", sortBy),
		})
		return
	}

	airports, err := s.GetAirports(c.Request.Context(), sortBy == "name")
	if err != nil {
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to list airports",
			Details:   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, AirportsResponse{Count: len(airports), Airports: airports})
}

// HandleRouteStats handles GET /v1/airport-statistics
// Query parameters: departure_airport, arrival_airport, from_date, to_date,
// sort_field, sort_order, source
func (s *Service) HandleRouteStats(c *gin.Context) {
	var query struct {
		DepartureAirport string `form:"departure_airport"`
		ArrivalAirport   string `form:"arrival_airport"`
		FromDate         string `form:"from_date"`
		ToDate           string `form:"to_date"`
		SortField        string `form:"sort_field"`
		SortOrder        string `form:"sort_order"`
		Source           string `form:"source"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid query parameters",
			Details:   err.Error(),
		})
		return
	}

	from, err := parseDate("from_date", query.FromDate)
	if err != nil {
		writeQueryError(c, err)
		return
	}
	to, err := parseDate("to_date", query.ToDate)
	if err != nil {
		writeQueryError(c, err)
		return
	}

	req := RouteStatsQuery{
		DepartureAirport: strings.ToUpper(strings.TrimSpace(query.DepartureAirport)),
		ArrivalAirport:   strings.ToUpper(strings.TrimSpace(query.ArrivalAirport)),
		FromDate:         from,
		ToDate:           to,
		SortField:        query.SortField,
		SortOrder:        strings.ToLower(query.SortOrder),
		Source:           Source(strings.ToLower(query.Source)),
	}

	routes, err := s.GetRouteStats(c.Request.Context(), req)
	if err != nil {
		writeQueryError(c, err)
		return
	}

	c.JSON(http.StatusOK, RouteStatsResponse{
		Source: EffectiveSource(req),
		Count:  len(routes),
		Routes: routes,
	})
}

func parseDate(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, invalidQueryf("%s must be RFC3339: %v", name, err)
	}
	t = t.UTC()
	return &t, nil
}

func writeQueryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrUnknownSortField):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpUnknownSortFieldError,
			Message:   "Unknown sort field",
			Details:   err.Error(),
		})
	case errors.Is(err, ErrInvalidQuery):
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{
			ErrorType: httperr.HttpInvalidRequestError,
			Message:   "Invalid route statistics query",
			Details:   err.Error(),
		})
	default:
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{
			ErrorType: httperr.HttpInternalError,
			Message:   "Failed to query route statistics",
			Details:   err.Error(),
		})
	}
}
