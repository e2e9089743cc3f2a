package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func getHealth(t *testing.T, s *Server) (int, map[string]string) {
	t.Helper()
	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	return resp.Code, body
}

func TestHealth(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := New(":0", db, "release")

	mock.ExpectPing()
	code, body := getHealth(t, s)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "healthy", body["status"])

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	code, body = getHealth(t, s)
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "database unreachable", body["error"])

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealth_NoDatabase(t *testing.T) {
	s := New(":0", nil, "release")
	code, body := getHealth(t, s)
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "healthy", body["status"])
}

func TestRequestID(t *testing.T) {
	s := New(":0", nil, "release")

	resp := httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health", nil))
	_, err := uuid.Parse(resp.Header().Get(RequestIDHeader))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "client-id-1")
	resp = httptest.NewRecorder()
	s.Engine.ServeHTTP(resp, req)
	require.Equal(t, "client-id-1", resp.Header().Get(RequestIDHeader))
}
