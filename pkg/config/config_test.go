package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type retrievalSection struct {
	IndexName string  `env:"TEST_INDEX_NAME" yaml:"index_name" default:"documents"`
	Threshold float64 `env:"TEST_THRESHOLD" yaml:"threshold" default:"0.1"`
	TopK      int     `env:"TEST_TOP_K" yaml:"top_k" default:"5"`
}

type testConfig struct {
	Logging   LoggingConfig    `yaml:"logging"`
	HTTP      HTTPServerConfig `yaml:"http"`
	Database  DatabaseConfig   `yaml:"database"`
	Metrics   MetricsConfig    `yaml:"metrics"`
	Retrieval retrievalSection `yaml:"retrieval"`

	APIKey   string        `env:"TEST_API_KEY" yaml:"api_key" required:"true"`
	Timeout  time.Duration `env:"TEST_TIMEOUT" yaml:"timeout" default:"30s"`
	Features []string      `env:"TEST_FEATURES" yaml:"features"`
}

func (c *testConfig) Validate() error {
	var result error
	if err := c.Logging.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	return result
}

func TestGetConfigFromEnvVars_Defaults(t *testing.T) {
	t.Setenv("TEST_API_KEY", "key")

	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, 60*time.Second, cfg.HTTP.RequestTimeout)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:8080"}, cfg.HTTP.CORSAllowedOrigins)
	assert.True(t, cfg.HTTP.RateLimitEnabled)
	assert.Equal(t, "documents", cfg.Retrieval.IndexName)
	assert.InDelta(t, 0.1, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 25, cfg.Database.MaxConnections)
	assert.Equal(t, 5*time.Minute, cfg.Database.MaxIdleTime)
	assert.Nil(t, cfg.Features)
}

func TestGetConfigFromEnvVars_Overrides(t *testing.T) {
	t.Setenv("TEST_API_KEY", "key")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HTTP_PORT", "3000")
	t.Setenv("TEST_THRESHOLD", "0.2")
	t.Setenv("TEST_TIMEOUT", "2m")
	t.Setenv("TEST_FEATURES", "a, b,,c")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	var cfg testConfig
	require.NoError(t, GetConfigFromEnvVars(&cfg))

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 3000, cfg.HTTP.Port)
	assert.InDelta(t, 0.2, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, []string{"a", "b", "c"}, cfg.Features)
	assert.False(t, cfg.HTTP.RateLimitEnabled, "explicit false from env must not be replaced by the default")
}

func TestGetConfigFromEnvVars_MissingRequired(t *testing.T) {
	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_API_KEY")
	assert.Equal(t, testConfig{}, cfg, "config is reset when required fields are missing")
}

func TestGetConfigFromEnvVars_InvalidValue(t *testing.T) {
	t.Setenv("TEST_API_KEY", "key")
	t.Setenv("TEST_TOP_K", "many")

	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TEST_TOP_K")
}

func TestGetConfigFromEnvVars_Validation(t *testing.T) {
	t.Setenv("TEST_API_KEY", "key")
	t.Setenv("LOG_FORMAT", "xml")

	var cfg testConfig
	err := GetConfigFromEnvVars(&cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
	assert.Contains(t, err.Error(), "log format")
}

func TestGetConfig_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
api_key: from-file
logging:
  level: warn
retrieval:
  index_name: session_embeddings
  threshold: 0.2
http:
  port: 9000
`), 0o600))

	t.Setenv("HTTP_PORT", "9100")

	var cfg testConfig
	require.NoError(t, GetConfig(&cfg, path, false))

	assert.Equal(t, "from-file", cfg.APIKey)
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "session_embeddings", cfg.Retrieval.IndexName)
	assert.InDelta(t, 0.2, cfg.Retrieval.Threshold, 1e-9)
	assert.Equal(t, 9100, cfg.HTTP.Port, "env overrides file")
	assert.Equal(t, 5, cfg.Retrieval.TopK, "defaults fill the gaps")
}

func TestGetConfig_FileErrors(t *testing.T) {
	t.Setenv("TEST_API_KEY", "env-key")

	t.Run("missing file allowed", func(t *testing.T) {
		var cfg testConfig
		require.NoError(t, GetConfig(&cfg, "/does/not/exist.yaml", true))
		assert.Equal(t, "env-key", cfg.APIKey)
	})

	t.Run("missing file not allowed", func(t *testing.T) {
		var cfg testConfig
		err := GetConfig(&cfg, "/does/not/exist.yaml", false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to read file")
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("logging: [unclosed"), 0o600))

		var cfg testConfig
		err := GetConfig(&cfg, path, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to unmarshal YAML")
	})
}

func TestDatabaseConfig(t *testing.T) {
	t.Run("components", func(t *testing.T) {
		d := DatabaseConfig{Host: "db", Port: 5433, Database: "concierge", Username: "app", Password: "secret", SSLMode: "disable", MaxConnections: 10, MinConnections: 1}
		assert.Equal(t, "postgres://app:secret@db:5433/concierge?sslmode=disable", d.GetConnectionString())
		assert.NoError(t, d.Validate())
	})

	t.Run("url wins", func(t *testing.T) {
		d := DatabaseConfig{URL: "postgres://u@h/db", Host: "ignored"}
		assert.Equal(t, "postgres://u@h/db", d.GetConnectionString())
	})

	t.Run("pool parameters", func(t *testing.T) {
		d := DatabaseConfig{URL: "postgres://u@h/db?sslmode=require", MaxConnections: 8, MinConnections: 2, ConnectTimeout: 5 * time.Second}
		conn, err := d.GetConnectionConfig()
		require.NoError(t, err)
		assert.Contains(t, conn, "sslmode=require")
		assert.Contains(t, conn, "pool_max_conns=8")
		assert.Contains(t, conn, "pool_min_conns=2")
		assert.Contains(t, conn, "connect_timeout=5")
	})

	t.Run("invalid pool", func(t *testing.T) {
		d := DatabaseConfig{URL: "postgres://u@h/db", MaxConnections: 1, MinConnections: 3}
		err := d.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})
}

func TestMetricsConfigValidate(t *testing.T) {
	assert.NoError(t, MetricsConfig{ExposeMetrics: false, Port: 0}.Validate())
	assert.Error(t, MetricsConfig{ExposeMetrics: true, Port: 70000}.Validate())
}
