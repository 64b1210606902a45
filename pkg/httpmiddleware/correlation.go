package httpmiddleware

import (
	"net/http"

	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// CorrelationID middleware ensures every request carries a correlation ID in
// both its header and context. A client-supplied ID is kept only when it is a
// valid UUID; anything else is replaced. The ID is echoed on the response.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, correlationID := logger.EnsureHTTPCorrelationID(r)
			w.Header().Set(logger.CorrelationIDHeader, correlationID)
			next.ServeHTTP(w, r)
		})
	}
}
