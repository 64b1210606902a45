package httpmiddleware

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/unrolled/secure"
)

// Config holds configuration for HTTP middleware application.
// Use DefaultConfig() for sensible defaults, then customize as needed.
type Config struct {
	Logger      logger.Logger    // Required for logging middleware
	StripPrefix string           // Path prefix to strip (e.g., "/api/v1")
	CORS        *CORSConfig      // CORS configuration
	Security    *secure.Options  // Security headers configuration
	RateLimit   *RateLimitConfig // Per-client rate limiting
	Timeout     time.Duration    // Request timeout duration

	EnableCorrelationID bool // Add correlation ID to requests
	EnableLogging       bool // Log HTTP requests (requires Logger)
	EnableRecovery      bool // Recover from panics
	EnableCORS          bool // Enable CORS headers
	EnableSecurity      bool // Add security headers
	EnableRateLimit     bool // Reject clients over RateLimit with 429
	EnableCompression   bool // Compress responses
	EnableHeartbeat     bool // Add /ping health endpoint
	EnableRealIP        bool // Extract real client IP
	EnableTimeout       bool // Add request timeouts
	EnableStripPrefix   bool // Strip path prefix (requires StripPrefix)
}

// DefaultConfig returns a production-ready middleware configuration.
// Logging is disabled by default - set Logger and EnableLogging=true to enable.
func DefaultConfig() Config {
	corsConfig := DefaultCORSConfig()
	return Config{
		CORS:    &corsConfig,
		Timeout: 60 * time.Second,
		RateLimit: &RateLimitConfig{
			RequestsPerMinute: 120,
			Burst:             20,
		},

		EnableCorrelationID: true,
		EnableRecovery:      true,
		EnableCORS:          true,
		EnableSecurity:      true,
		EnableRateLimit:     false,
		EnableCompression:   true,
		EnableHeartbeat:     true,
		EnableRealIP:        true,
		EnableTimeout:       true,
	}
}

// ApplyToRouter applies the configured middleware to a Chi router in the recommended order.
// Middleware is applied in execution order (first applied = outermost layer).
//
// Execution order:
//  1. CorrelationID
//  2. Security
//  3. RealIP
//  4. Logging
//  5. Recovery
//  6. Heartbeat (/ping, answered before rate limiting)
//  7. RateLimit
//  8. StripPrefix
//  9. CORS
//  10. Timeout
//  11. Compression
//
// Streaming routes such as websockets should be mounted in a group that
// skips Timeout and Compression; see StreamingConfig.
func ApplyToRouter(router chi.Router, config Config) {
	applyMiddlewareInOrder(router, config)
}

// WithLogger is a convenience function that applies middleware with logging enabled.
// Uses DefaultConfig() with the provided logger and EnableLogging=true.
func WithLogger(router chi.Router, log logger.Logger) {
	config := DefaultConfig()
	config.Logger = log
	config.EnableLogging = true
	ApplyToRouter(router, config)
}

// StreamingConfig returns a copy of config with the middleware that buffers or
// cuts off long-lived responses turned off.
func StreamingConfig(config Config) Config {
	config.EnableTimeout = false
	config.EnableCompression = false
	return config
}

func applyMiddlewareInOrder(router chi.Router, config Config) {
	if config.EnableCorrelationID {
		router.Use(CorrelationID())
	}

	if config.EnableSecurity {
		router.Use(Security(config.Security))
	}

	if config.EnableRealIP {
		router.Use(middleware.RealIP)
	}

	if config.EnableLogging && config.Logger != nil {
		httpLogger := NewHTTPLogger(config.Logger)
		router.Use(httpLogger.Middleware)
	}

	if config.EnableRecovery {
		if config.Logger != nil {
			router.Use(Recovery(config.Logger))
		} else {
			router.Use(middleware.Recoverer)
		}
	}

	if config.EnableHeartbeat {
		router.Use(middleware.Heartbeat("/ping"))
	}

	if config.EnableRateLimit && config.RateLimit != nil {
		router.Use(RateLimit(*config.RateLimit))
	}

	if config.EnableStripPrefix && config.StripPrefix != "" {
		router.Use(StripPrefix(config.StripPrefix))
	}

	if config.EnableCORS && config.CORS != nil {
		router.Use(CORS(*config.CORS))
	}

	if config.EnableTimeout {
		router.Use(middleware.Timeout(config.Timeout))
	}

	if config.EnableCompression {
		router.Use(middleware.Compress(5))
	}
}
