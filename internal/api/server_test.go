package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/router-for-me/toolgate/internal/logging"
	"github.com/router-for-me/toolgate/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	return NewServer("127.0.0.1:0", session.NewStore(nil), logging.NewRingBuffer(10))
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := get(t, newTestServer(), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ok")
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestSessionsEndpoint(t *testing.T) {
	store := session.NewStore(nil)
	store.Observe("sess-1")
	store.SetModel("sess-1", "gpt-4o")
	s := NewServer("127.0.0.1:0", store, nil)

	rec := get(t, s, "/v0/sessions")
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		LastSeen string         `json:"lastSeen"`
		Sessions []session.Info `json:"sessions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, "sess-1", payload.LastSeen)
	require.Len(t, payload.Sessions, 1)
	assert.Equal(t, "gpt-4o", payload.Sessions[0].Model)
}

func TestLogsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(), "/v0/logs?n=5")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "entries")
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
