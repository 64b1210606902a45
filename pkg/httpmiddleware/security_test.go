package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultCORSConfig(t *testing.T) {
	config := DefaultCORSConfig()

	assert.NotEmpty(t, config.AllowedMethods)
	assert.Contains(t, config.AllowedHeaders, "X-Correlation-ID")
	assert.Contains(t, config.ExposedHeaders, "X-Correlation-ID")
	assert.NotEmpty(t, config.AllowedOrigins)
	assert.Positive(t, config.MaxAge)
}

func TestCORSConfigForOrigins(t *testing.T) {
	assert.Equal(t, []string{"https://*", "http://*"}, CORSConfigForOrigins(nil).AllowedOrigins)
	assert.Equal(t, []string{"https://app.example.com"}, CORSConfigForOrigins([]string{"https://app.example.com"}).AllowedOrigins)
}

func TestCORSMiddleware(t *testing.T) {
	handler := CORS(CORSConfigForOrigins([]string{"https://app.example.com"}))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin gets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
		req.Header.Set("Origin", "https://app.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		assert.Equal(t, "https://app.example.com", recorder.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("unknown origin gets none", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/search", nil)
		req.Header.Set("Origin", "https://evil.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		recorder := httptest.NewRecorder()

		handler.ServeHTTP(recorder, req)

		assert.Empty(t, recorder.Header().Get("Access-Control-Allow-Origin"))
	})
}

func TestSecurityMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("default options", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		Security(nil)(next).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, recorder.Code)
	})

	t.Run("api options set headers", func(t *testing.T) {
		recorder := httptest.NewRecorder()
		Security(APISecurityOptions(false))(next).ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, "DENY", recorder.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", recorder.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "no-referrer", recorder.Header().Get("Referrer-Policy"))
	})
}
