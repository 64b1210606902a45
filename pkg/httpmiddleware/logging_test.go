package httpmiddleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

func logEntries(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestHTTPLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: logger.InfoLevel, Format: "json", Output: &buf})

	var seenID string
	handler := CorrelationID()(NewHTTPLogger(log).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = logger.GetCorrelationIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/search", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	require.NotEmpty(t, seenID)

	entries := logEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0]["level"])
	assert.Equal(t, "HTTP response sent", entries[0]["msg"])
	assert.Equal(t, "418", entries[0]["http_status"])
	assert.Equal(t, "15", entries[0]["response_bytes"])
	assert.Equal(t, "/api/search", entries[0]["http_path"])
	assert.Equal(t, seenID, entries[0][logger.CorrelationIDFieldKey])
}

func TestHTTPLogger_ServerErrorsWarn(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewLogger(logger.Config{Level: logger.InfoLevel, Format: "json", Output: &buf})

	handler := NewHTTPLogger(log).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/catalog", nil))

	entries := logEntries(t, &buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "warning", entries[0]["level"])
	assert.Equal(t, "502", entries[0]["http_status"])
}
