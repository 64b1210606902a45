package httpmiddleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/unrolled/secure"
)

// CORSConfig represents CORS configuration options
type CORSConfig struct {
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowedOrigins   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           int
}

// DefaultCORSConfig returns a default CORS configuration
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Authorization", logger.CorrelationIDHeader},
		AllowedOrigins:   []string{"https://*", "http://*"},
		ExposedHeaders:   []string{logger.CorrelationIDHeader, "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}
}

// CORSConfigForOrigins returns the default configuration restricted to origins.
// An empty list keeps the permissive default.
func CORSConfigForOrigins(origins []string) CORSConfig {
	c := DefaultCORSConfig()
	if len(origins) > 0 {
		c.AllowedOrigins = origins
	}
	return c
}

// CORS middleware configures Cross-Origin Resource Sharing
func CORS(config CORSConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedMethods:   config.AllowedMethods,
		AllowedHeaders:   config.AllowedHeaders,
		AllowedOrigins:   config.AllowedOrigins,
		ExposedHeaders:   config.ExposedHeaders,
		AllowCredentials: config.AllowCredentials,
		MaxAge:           config.MaxAge,
	})
}

// APISecurityOptions are the header settings used for the JSON API.
func APISecurityOptions(isDevelopment bool) *secure.Options {
	return &secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		ReferrerPolicy:     "no-referrer",
		IsDevelopment:      isDevelopment,
	}
}

// Security middleware adds security headers
func Security(opts *secure.Options) func(http.Handler) http.Handler {
	var s *secure.Secure
	if opts == nil {
		s = secure.New()
	} else {
		s = secure.New(*opts)
	}

	return s.Handler
}
