package ingestion

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	v1 "github.com/aevon-lab/flightstats/internal/api/v1"
	"github.com/aevon-lab/flightstats/internal/aggregation"
	httperr "github.com/aevon-lab/flightstats/internal/core/errors"
	"github.com/aevon-lab/flightstats/internal/core/storage"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed  = "Failed to read request body"
	msgInvalidJSON     = "Invalid JSON body"
	msgPersistFailed   = "Failed to persist change"
	msgDuplicate       = "Resource already exists"
	msgNotFound        = "Resource not found"
	msgInvalidFlightID = "flight_id must be a positive integer"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

func (s *Service) CreateAirportsHandler(c *gin.Context) {
	var airports []v1.Airport
	if ierr := s.bindJSON(c, &airports); ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := s.CreateAirports(c.Request.Context(), airports); err != nil {
		writeError(c, mapServiceError(err, "airports"))
		return
	}

	slog.Info("[Ingestion] Airports created", "count", len(airports))
	c.JSON(http.StatusCreated, gin.H{"created": len(airports)})
}

func (s *Service) CreateTicketHandler(c *gin.Context) {
	var ticket v1.Ticket
	if ierr := s.bindJSON(c, &ticket); ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := s.CreateTicket(c.Request.Context(), &ticket); err != nil {
		writeError(c, mapServiceError(err, "ticket "+ticket.TicketNo))
		return
	}

	c.JSON(http.StatusCreated, ticket)
}

func (s *Service) CreateFlightHandler(c *gin.Context) {
	var flight v1.Flight
	if ierr := s.bindJSON(c, &flight); ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := s.CreateFlight(c.Request.Context(), &flight); err != nil {
		writeError(c, mapServiceError(err, "flight "+strconv.FormatInt(flight.ID, 10)))
		return
	}

	slog.Info("[Ingestion] Flight created",
		"flight_id", flight.ID,
		"route", flight.DepartureAirport+"-"+flight.ArrivalAirport)
	c.JSON(http.StatusCreated, flight)
}

func (s *Service) UpdateFlightStatusHandler(c *gin.Context) {
	flightID, ierr := parseFlightID(c.Param("flight_id"))
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	var update v1.FlightStatusUpdate
	if ierr := s.bindJSON(c, &update); ierr != nil {
		writeError(c, ierr)
		return
	}

	flight, err := s.UpdateFlightStatus(c.Request.Context(), flightID, update)
	if err != nil {
		writeError(c, mapServiceError(err, "flight "+c.Param("flight_id")))
		return
	}

	c.JSON(http.StatusOK, flight)
}

func (s *Service) DeleteFlightHandler(c *gin.Context) {
	flightID, ierr := parseFlightID(c.Param("flight_id"))
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := s.DeleteFlight(c.Request.Context(), flightID); err != nil {
		writeError(c, mapServiceError(err, "flight "+c.Param("flight_id")))
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Service) CreateTicketFlightHandler(c *gin.Context) {
	var tf v1.TicketFlight
	if ierr := s.bindJSON(c, &tf); ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := s.CreateTicketFlight(c.Request.Context(), &tf); err != nil {
		writeError(c, mapServiceError(err, "ticket flight "+tf.TicketNo+"/"+strconv.FormatInt(tf.FlightID, 10)))
		return
	}

	c.JSON(http.StatusCreated, tf)
}

func (s *Service) DeleteTicketFlightHandler(c *gin.Context) {
	ticketNo := c.Param("ticket_no")
	flightID, ierr := parseFlightID(c.Param("flight_id"))
	if ierr != nil {
		writeError(c, ierr)
		return
	}

	if err := s.DeleteTicketFlight(c.Request.Context(), ticketNo, flightID); err != nil {
		writeError(c, mapServiceError(err, "ticket flight "+ticketNo+"/"+c.Param("flight_id")))
		return
	}

	c.Status(http.StatusNoContent)
}

// bindJSON reads the size-limited request body and decodes it into dst.
func (s *Service) bindJSON(c *gin.Context, dst interface{}) *ingestionError {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		return &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpInvalidJsonError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}

	c.Request.Body = io.NopCloser(bytes.NewReader(bodyBytes))

	if err := c.ShouldBindJSON(dst); err != nil {
		slog.Warn("[Ingestion] Invalid JSON body received", "error", err, "payload_size", len(bodyBytes))
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidJsonError,
			message:    msgInvalidJSON,
		}
	}
	return nil
}

func parseFlightID(raw string) (int64, *ingestionError) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidRequestError,
			message:    msgInvalidFlightID,
			details:    map[string]interface{}{"flight_id": raw},
		}
	}
	return id, nil
}

// mapServiceError turns a write-path error into its HTTP shape.
func mapServiceError(err error, resource string) *ingestionError {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		return &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpInvalidRequestError,
			message:    verr.Error(),
		}
	case errors.Is(err, storage.ErrDuplicate):
		slog.Info("[Ingestion] Duplicate rejected", "resource", resource)
		return &ingestionError{
			statusCode: http.StatusConflict,
			errorType:  httperr.HttpDuplicateError,
			message:    msgDuplicate,
			details:    map[string]interface{}{"resource": resource},
		}
	case errors.Is(err, storage.ErrNotFound):
		return &ingestionError{
			statusCode: http.StatusNotFound,
			errorType:  httperr.HttpNotFoundError,
			message:    msgNotFound,
			details:    map[string]interface{}{"resource": resource, "reason": err.Error()},
		}
	case errors.Is(err, aggregation.ErrAggregateRowRaceLost):
		slog.Error("[Ingestion] Route aggregate contention", "resource", resource, "error", err)
		return &ingestionError{
			statusCode: http.StatusServiceUnavailable,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		}
	}

	slog.Error("[Ingestion] Failed to persist change", "resource", resource, "error", err)
	return &ingestionError{
		statusCode: http.StatusInternalServerError,
		errorType:  httperr.HttpInternalError,
		message:    msgPersistFailed,
	}
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
