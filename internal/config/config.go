// Package config defines the application configuration shared by every
// concierge command.
package config

import (
	"fmt"
	"io"
	"strings"

	"github.com/hashicorp/go-multierror"

	pkgconfig "github.com/lewisedginton/session_concierge/pkg/config"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// AppConfig holds all application configuration
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"session-concierge"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`
	// BasePath is stripped from incoming requests when served behind a proxy prefix
	BasePath string `env:"HTTP_BASE_PATH" yaml:"base_path"`

	Logging  pkgconfig.LoggingConfig    `yaml:"logging"`
	HTTP     pkgconfig.HTTPServerConfig `yaml:"http"`
	Metrics  pkgconfig.MetricsConfig    `yaml:"metrics"`
	Database pkgconfig.DatabaseConfig   `yaml:"database"`
	Health   HealthConfig               `yaml:"health"`

	LLM       LLMConfig       `yaml:"llm"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	Gemini    GeminiConfig    `yaml:"gemini"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Vector    VectorConfig    `yaml:"vector"`

	Redis   RedisConfig   `yaml:"redis"`
	Storage StorageConfig `yaml:"storage"`
	Memory  MemoryConfig  `yaml:"memory"`

	Slack    SlackConfig    `yaml:"slack"`
	Telegram TelegramConfig `yaml:"telegram"`
	MCP      MCPConfig      `yaml:"mcp"`
}

// Load reads path (optional) and the environment into a validated AppConfig.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig
	if err := pkgconfig.GetConfig(&cfg, path, false); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return &cfg, nil
}

// Validate validates the configuration and returns an error if invalid
func (c *AppConfig) Validate() error {
	var result error

	for _, v := range []pkgconfig.Validator{c.Logging, c.HTTP, c.Metrics, c.LLM, c.Embedding, c.Retrieval} {
		if err := v.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if c.NeedsDatabase() {
		if err := c.Database.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	}

	switch c.Memory.Backend {
	case MemoryBackendPostgres, MemoryBackendSQLite, MemoryBackendFile:
	default:
		result = multierror.Append(result, fmt.Errorf("memory backend must be one of [postgres, sqlite, file], got %q", c.Memory.Backend))
	}
	if c.Memory.HistoryLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory history_limit must be greater than 0"))
	}
	if c.Memory.AgentHistoryLimit <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory agent_history_limit must be greater than 0"))
	}

	if c.Vector.Backend != VectorBackendPGVector && c.Vector.Backend != VectorBackendMemory {
		result = multierror.Append(result, fmt.Errorf("vector backend must be one of [pgvector, memory], got %q", c.Vector.Backend))
	}

	switch c.Storage.Backend {
	case "local", "":
	case "s3":
		if c.Storage.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("storage s3_bucket is required for the s3 backend"))
		}
	case "git":
		if c.Storage.GitPath == "" {
			result = multierror.Append(result, fmt.Errorf("storage git_path is required for the git backend"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("storage backend must be one of [local, s3, git], got %q", c.Storage.Backend))
	}

	if c.Retrieval.ResultCacheEnabled && !c.Redis.Enabled() {
		result = multierror.Append(result, fmt.Errorf("search result cache requires REDIS_ADDR"))
	}

	return result
}

// NeedsDatabase reports whether any backend stores data in Postgres.
func (c *AppConfig) NeedsDatabase() bool {
	return c.Memory.Backend == MemoryBackendPostgres || c.Vector.Backend == VectorBackendPGVector
}

// ValidateProviderKeys checks that the API keys for the selected providers are
// present. Commands that never call a model (migrate, history) skip it.
func (c *AppConfig) ValidateProviderKeys() error {
	var result error
	keys := map[string]string{
		ProviderOpenAI: c.OpenAI.APIKey,
		ProviderClaude: c.Anthropic.APIKey,
		ProviderGemini: c.Gemini.APIKey,
	}
	if keys[c.LLM.Provider] == "" && !(c.LLM.Provider == ProviderGemini && c.Gemini.UseVertex()) {
		result = multierror.Append(result, fmt.Errorf("api key for llm provider %q is not set", c.LLM.Provider))
	}
	if keys[c.Embedding.Provider] == "" && !(c.Embedding.Provider == ProviderGemini && c.Gemini.UseVertex()) {
		result = multierror.Append(result, fmt.Errorf("api key for embedding provider %q is not set", c.Embedding.Provider))
	}
	return result
}

// GetLogLevel returns the parsed logger level
func (c *AppConfig) GetLogLevel() logger.Level {
	return logger.ParseLevel(c.Logging.Level)
}

// NewLogger builds the process logger from the logging section. A nil out
// writes to stdout; the stdio MCP server passes stderr.
func (c *AppConfig) NewLogger(out io.Writer) logger.Logger {
	return logger.NewLogger(logger.Config{
		Level:   c.GetLogLevel(),
		Format:  c.Logging.Format,
		Service: c.ServiceName,
		Output:  out,
	})
}

// IsProduction returns true if running in production environment
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// IsDevelopment returns true if running in development environment
func (c *AppConfig) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "dev" || env == "local"
}

// LogConfig logs the non-secret configuration
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("port", c.HTTP.Port),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.StringField("embedding_provider", c.Embedding.Provider),
		logger.StringField("embedding_model", c.Embedding.Model),
		logger.StringField("search_strategy", c.Retrieval.Strategy),
		logger.StringField("search_index", c.Retrieval.IndexName),
		logger.Float64Field("search_threshold", c.Retrieval.EffectiveThreshold()),
		logger.StringField("vector_backend", c.Vector.Backend),
		logger.StringField("memory_backend", c.Memory.Backend),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.StringField("log_level", c.Logging.Level),
		logger.StringField("log_format", c.Logging.Format),
		logger.BoolField("redis_configured", c.Redis.Enabled()),
		logger.BoolField("rate_limit_enabled", c.HTTP.RateLimitEnabled),
		logger.BoolField("mcp_enabled", c.MCP.Enabled),
		logger.BoolField("slack_enabled", c.Slack.Enabled()),
		logger.BoolField("telegram_enabled", c.Telegram.Enabled()),
	)
}
