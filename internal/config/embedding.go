package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// EmbeddingConfig selects the embedding backend. It is independent of the
// chat provider so a Claude deployment can still embed with OpenAI.
type EmbeddingConfig struct {
	Provider  string `env:"EMBEDDING_PROVIDER" yaml:"provider" default:"openai"`
	Model     string `env:"EMBEDDING_MODEL" yaml:"model" default:"text-embedding-3-small"`
	Dimension int    `env:"EMBEDDING_DIMENSION" yaml:"dimension" default:"1536"`
	// BatchSize applies to indexing jobs; queries always embed one text
	BatchSize int `env:"EMBEDDING_BATCH_SIZE" yaml:"batch_size" default:"64"`

	CacheEnabled bool          `env:"EMBEDDING_CACHE_ENABLED" yaml:"cache_enabled" default:"true"`
	CacheTTL     time.Duration `env:"EMBEDDING_CACHE_TTL" yaml:"cache_ttl" default:"24h"`
}

func (c EmbeddingConfig) Validate() error {
	var result error
	if c.Provider != ProviderOpenAI && c.Provider != ProviderGemini {
		result = multierror.Append(result, fmt.Errorf("embedding provider must be one of [openai, gemini], got %q", c.Provider))
	}
	if c.Dimension <= 0 {
		result = multierror.Append(result, fmt.Errorf("embedding dimension must be greater than 0"))
	}
	if c.BatchSize <= 0 {
		result = multierror.Append(result, fmt.Errorf("embedding batch_size must be greater than 0"))
	}
	return result
}
