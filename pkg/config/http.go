package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// HTTPServerConfig holds HTTP server settings
type HTTPServerConfig struct {
	// Port is the TCP port for the HTTP server to listen on
	Port int `env:"HTTP_PORT" yaml:"port" default:"8080"`

	ReadTimeout  time.Duration `env:"HTTP_READ_TIMEOUT" yaml:"read_timeout" default:"15s"`
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" yaml:"write_timeout" default:"90s"`
	IdleTimeout  time.Duration `env:"HTTP_IDLE_TIMEOUT" yaml:"idle_timeout" default:"60s"`

	// RequestTimeout bounds a single request, including the LLM call of an assisted search
	RequestTimeout time.Duration `env:"HTTP_REQUEST_TIMEOUT" yaml:"request_timeout" default:"60s"`

	// MaxHeaderBytes controls the maximum number of bytes the server will read parsing request headers
	MaxHeaderBytes int `env:"HTTP_MAX_HEADER_BYTES" yaml:"max_header_bytes" default:"1048576"`

	// MaxBodyBytes caps JSON request bodies
	MaxBodyBytes int64 `env:"HTTP_MAX_BODY_BYTES" yaml:"max_body_bytes" default:"65536"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" yaml:"cors_allowed_origins" default:"http://localhost:3000,http://localhost:8080"`

	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" yaml:"rate_limit_enabled" default:"true"`
	// RateLimitRPM is requests per minute per client IP
	RateLimitRPM   int `env:"RATE_LIMIT_RPM" yaml:"rate_limit_rpm" default:"120"`
	RateLimitBurst int `env:"RATE_LIMIT_BURST" yaml:"rate_limit_burst" default:"20"`
}

// Validate checks HTTPServerConfig for valid port range and limits
func (h HTTPServerConfig) Validate() error {
	var result error
	if h.Port < 1 || h.Port > 65535 {
		result = multierror.Append(result, fmt.Errorf("http port must be between 1-65535, got %d", h.Port))
	}
	if h.RequestTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("request_timeout must be greater than 0"))
	}
	if h.MaxBodyBytes <= 0 {
		result = multierror.Append(result, fmt.Errorf("max_body_bytes must be greater than 0"))
	}
	if h.RateLimitEnabled && h.RateLimitRPM <= 0 {
		result = multierror.Append(result, fmt.Errorf("rate_limit_rpm must be greater than 0 when rate limiting is enabled"))
	}
	return result
}
