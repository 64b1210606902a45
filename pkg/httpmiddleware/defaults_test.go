package httpmiddleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 60*time.Second, config.Timeout)
	require.NotNil(t, config.CORS)
	require.NotNil(t, config.RateLimit)
	assert.True(t, config.EnableCorrelationID)
	assert.True(t, config.EnableRecovery)
	assert.False(t, config.EnableLogging, "logging requires a logger")
	assert.False(t, config.EnableRateLimit)
}

func TestStreamingConfig(t *testing.T) {
	streaming := StreamingConfig(DefaultConfig())
	assert.False(t, streaming.EnableTimeout)
	assert.False(t, streaming.EnableCompression)
	assert.True(t, streaming.EnableCorrelationID)
}

func TestApplyWithDefaults(t *testing.T) {
	var buf bytes.Buffer
	config := DefaultConfig()
	config.Logger = logger.NewLogger(logger.Config{Level: logger.DebugLevel, Format: "json", Service: "test", Output: &buf})
	config.EnableLogging = true

	var capturedID string
	router := chi.NewRouter()
	ApplyToRouter(router, config)
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		capturedID = r.Header.Get(logger.CorrelationIDHeader)
		_, _ = w.Write([]byte("test response"))
	})

	t.Run("request passes through the stack", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/test", nil))

		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Equal(t, "test response", recorder.Body.String())
		assert.NotEmpty(t, capturedID)
		assert.Contains(t, buf.String(), "HTTP response sent")
		assert.Contains(t, buf.String(), capturedID)
	})

	t.Run("ping endpoint is available", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))
		assert.Equal(t, http.StatusOK, recorder.Code)
	})
}

func TestApplyMinimalConfig(t *testing.T) {
	router := chi.NewRouter()
	ApplyToRouter(router, Config{EnableCorrelationID: true})
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/test", nil))
	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get(logger.CorrelationIDHeader))

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusNotFound, recorder.Code, "no heartbeat without the flag")
}

func TestApplyRateLimit(t *testing.T) {
	config := Config{
		EnableHeartbeat: true,
		EnableRateLimit: true,
		RateLimit:       &RateLimitConfig{RequestsPerMinute: 1, Burst: 1},
	}
	router := chi.NewRouter()
	ApplyToRouter(router, config)
	router.Get("/test", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		recorder := httptest.NewRecorder()
		router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/test", nil))
		codes = append(codes, recorder.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, recorder.Code, "heartbeat is exempt from rate limiting")
}

func TestStripPrefixIntegration(t *testing.T) {
	router := chi.NewRouter()
	ApplyToRouter(router, Config{StripPrefix: "/concierge", EnableStripPrefix: true})
	router.Get("/api/catalog", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.URL.Path))
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/concierge/api/catalog", nil))
	assert.Equal(t, "/api/catalog", recorder.Body.String())
}
