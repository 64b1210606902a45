package config

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Matching strategies
const (
	StrategyDirect   = "direct"
	StrategyAssisted = "assisted"
)

// Well known index names
const (
	IndexSessions  = "session_embeddings"
	IndexDocuments = "documents"
)

// RetrievalConfig holds the search pipeline settings.
type RetrievalConfig struct {
	Strategy  string `env:"SEARCH_STRATEGY" yaml:"strategy" default:"assisted"`
	IndexName string `env:"SEARCH_INDEX" yaml:"index_name" default:"documents"`
	// Threshold is the minimum score a hit must exceed; 0 picks the per-index default
	Threshold float64 `env:"SEARCH_THRESHOLD" yaml:"threshold"`
	TopK      int     `env:"SEARCH_TOP_K" yaml:"top_k" default:"5"`
	MaxTopK   int     `env:"SEARCH_MAX_TOP_K" yaml:"max_top_k" default:"20"`

	CatalogPath string `env:"CATALOG_PATH" yaml:"catalog_path" default:"catalog/sessions.json"`

	ResultCacheEnabled bool          `env:"SEARCH_CACHE_ENABLED" yaml:"result_cache_enabled" default:"false"`
	ResultCacheTTL     time.Duration `env:"SEARCH_CACHE_TTL" yaml:"result_cache_ttl" default:"10m"`
}

// DefaultThreshold returns the score threshold used for indexName.
func DefaultThreshold(indexName string) float64 {
	if indexName == IndexSessions {
		return 0.2
	}
	return 0.1
}

// EffectiveThreshold resolves the configured threshold.
func (c RetrievalConfig) EffectiveThreshold() float64 {
	if c.Threshold > 0 {
		return c.Threshold
	}
	return DefaultThreshold(c.IndexName)
}

func (c RetrievalConfig) Validate() error {
	var result error
	if c.Strategy != StrategyDirect && c.Strategy != StrategyAssisted {
		result = multierror.Append(result, fmt.Errorf("search strategy must be one of [direct, assisted], got %q", c.Strategy))
	}
	if c.IndexName == "" {
		result = multierror.Append(result, fmt.Errorf("search index_name is required"))
	}
	if c.Threshold < 0 || c.Threshold >= 1 {
		result = multierror.Append(result, fmt.Errorf("search threshold must be in [0, 1), got %v", c.Threshold))
	}
	if c.TopK <= 0 || c.TopK > c.MaxTopK {
		result = multierror.Append(result, fmt.Errorf("search top_k must be between 1 and %d, got %d", c.MaxTopK, c.TopK))
	}
	return result
}
