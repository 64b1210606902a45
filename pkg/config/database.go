package config

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
)

// DatabaseConfig holds Postgres connection settings
type DatabaseConfig struct {
	// URL is the complete database URL (takes precedence if provided)
	URL string `env:"DATABASE_URL" yaml:"url"`

	// Connection components (used if URL is not provided)
	Host     string `env:"DB_HOST" yaml:"host" default:"localhost"`
	Port     int    `env:"DB_PORT" yaml:"port" default:"5432"`
	Database string `env:"DB_NAME" yaml:"database" default:"concierge"`
	Username string `env:"DB_USER" yaml:"username" default:"postgres"`
	Password string `env:"DB_PASSWORD" yaml:"-"`
	SSLMode  string `env:"DB_SSLMODE" yaml:"sslmode" default:"disable"`

	// Connection pool settings
	MaxConnections   int           `env:"DB_MAX_CONNECTIONS" yaml:"max_connections" default:"25"`
	MinConnections   int           `env:"DB_MIN_CONNECTIONS" yaml:"min_connections" default:"2"`
	MaxIdleTime      time.Duration `env:"DB_MAX_IDLE_TIME" yaml:"max_idle_time" default:"5m"`
	MaxLifetime      time.Duration `env:"DB_MAX_LIFETIME" yaml:"max_lifetime" default:"30m"`
	ConnectTimeout   time.Duration `env:"DB_CONNECT_TIMEOUT" yaml:"connect_timeout" default:"10s"`
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" yaml:"statement_timeout" default:"30s"`
}

// GetConnectionString returns the database connection string
func (d DatabaseConfig) GetConnectionString() string {
	if d.URL != "" {
		return d.URL
	}

	user := url.User(d.Username)
	if d.Password != "" {
		user = url.UserPassword(d.Username, d.Password)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     "/" + d.Database,
		RawQuery: url.Values{"sslmode": []string{d.SSLMode}}.Encode(),
	}
	return u.String()
}

// Validate checks DatabaseConfig for valid settings
func (d DatabaseConfig) Validate() error {
	var result error

	if d.URL == "" {
		if d.Host == "" {
			result = multierror.Append(result, fmt.Errorf("database host is required"))
		}
		if d.Port < 1 || d.Port > 65535 {
			result = multierror.Append(result, fmt.Errorf("database port must be between 1-65535, got %d", d.Port))
		}
		if d.Database == "" {
			result = multierror.Append(result, fmt.Errorf("database name is required"))
		}
		if d.Username == "" {
			result = multierror.Append(result, fmt.Errorf("database username is required"))
		}
	}

	if d.MaxConnections < 1 {
		result = multierror.Append(result, fmt.Errorf("max_connections must be positive, got %d", d.MaxConnections))
	}
	if d.MinConnections < 0 {
		result = multierror.Append(result, fmt.Errorf("min_connections must be non-negative, got %d", d.MinConnections))
	}
	if d.MinConnections > d.MaxConnections {
		result = multierror.Append(result, fmt.Errorf("min_connections (%d) cannot exceed max_connections (%d)", d.MinConnections, d.MaxConnections))
	}

	return result
}

// GetConnectionConfig returns a pgxpool connection string with pool settings
// appended as query parameters.
func (d DatabaseConfig) GetConnectionConfig() (string, error) {
	u, err := url.Parse(d.GetConnectionString())
	if err != nil {
		return "", fmt.Errorf("failed to parse database url: %w", err)
	}

	q := u.Query()
	q.Set("pool_max_conns", strconv.Itoa(d.MaxConnections))
	q.Set("pool_min_conns", strconv.Itoa(d.MinConnections))
	if d.MaxIdleTime > 0 {
		q.Set("pool_max_conn_idle_time", d.MaxIdleTime.String())
	}
	if d.MaxLifetime > 0 {
		q.Set("pool_max_conn_lifetime", d.MaxLifetime.String())
	}
	if d.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(d.ConnectTimeout.Seconds())))
	}
	if d.StatementTimeout > 0 {
		q.Set("statement_timeout", strconv.FormatInt(d.StatementTimeout.Milliseconds(), 10))
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}
