package config

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// LoggingConfig holds logger settings shared by every command.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error
	Level string `env:"LOG_LEVEL" yaml:"level" default:"info"`
	// Format is json or text
	Format string `env:"LOG_FORMAT" yaml:"format" default:"json"`
}

// Validate checks the level and format values.
func (c LoggingConfig) Validate() error {
	var result error

	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		result = multierror.Append(result, fmt.Errorf("log level must be one of [debug, info, warn, error], got %q", c.Level))
	}

	if c.Format != "json" && c.Format != "text" {
		result = multierror.Append(result, fmt.Errorf("log format must be either 'json' or 'text', got %q", c.Format))
	}

	return result
}
