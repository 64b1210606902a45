package health

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) HealthResponse {
	t.Helper()
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestHandlers(t *testing.T) {
	tests := []struct {
		name       string
		probe      Probe
		checks     []*mockCheck
		wantCode   int
		wantStatus string
		wantChecks map[string]string
	}{
		{
			name:       "no checks",
			probe:      Liveness,
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "liveness ok",
			probe:      Liveness,
			checks:     []*mockCheck{{name: "process"}},
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
			wantChecks: map[string]string{"process": "ok"},
		},
		{
			name:       "liveness failing",
			probe:      Liveness,
			checks:     []*mockCheck{{name: "process", err: errors.New("deadlocked")}},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"process": "error"},
		},
		{
			name:  "readiness with one dependency down",
			probe: Readiness,
			checks: []*mockCheck{
				{name: "postgres"},
				{name: "redis", err: errors.New("connection timeout")},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
			wantChecks: map[string]string{"postgres": "ok", "redis": "error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(WithFailureThreshold(1))
			for _, c := range tt.checks {
				h.Add(c, tt.probe)
			}

			handler := h.LivenessHandler()
			if tt.probe == Readiness {
				handler = h.ReadinessHandler()
			}
			w := httptest.NewRecorder()
			handler(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.wantCode, w.Code)
			resp := decodeResponse(t, w)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Len(t, resp.Checks, len(tt.wantChecks))
			for name, status := range tt.wantChecks {
				assert.Equal(t, status, resp.Checks[name].Status, name)
				assert.NotEmpty(t, resp.Checks[name].Latency, name)
			}
			if tt.wantStatus == "unhealthy" {
				assert.Contains(t, resp.Message, "health checks failed")
			}
		})
	}
}

func TestMount(t *testing.T) {
	h := New(WithFailureThreshold(1), WithService("session-concierge", "1.2.3"))
	h.Add(&mockCheck{name: "process"}, Liveness)
	h.Add(&mockCheck{name: "vector-store", err: errors.New("dial tcp: refused")}, Readiness)

	router := chi.NewRouter()
	h.Mount(router)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	live := decodeResponse(t, w)
	assert.Equal(t, "session-concierge", live.Service)
	assert.Equal(t, "1.2.3", live.Version)
	assert.False(t, live.Timestamp.IsZero())

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready := decodeResponse(t, w)
	assert.Equal(t, "dial tcp: refused", ready.Checks["vector-store"].Error)
}
