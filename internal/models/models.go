// Package models selects the text-generation and embedding backends named in
// the application configuration.
package models

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"google.golang.org/adk/model"

	"github.com/lewisedginton/session_concierge/internal/config"
	"github.com/lewisedginton/session_concierge/internal/embedding"
	"github.com/lewisedginton/session_concierge/internal/models/anthropic"
	"github.com/lewisedginton/session_concierge/internal/models/gemini"
	"github.com/lewisedginton/session_concierge/internal/models/openai"
	"github.com/lewisedginton/session_concierge/internal/textgen"
	"github.com/lewisedginton/session_concierge/pkg/logger"
	"github.com/lewisedginton/session_concierge/pkg/metrics"
)

// NewGenerator builds the generator for cfg.LLM.Provider.
func NewGenerator(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (textgen.Generator, error) {
	log.Info("Initialising text generator", logger.StringField("provider", cfg.LLM.Provider))

	switch cfg.LLM.Provider {
	case config.ProviderOpenAI:
		return openai.New(cfg.OpenAI.Model, openai.Options{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.APIBaseURL,
			Timeout: cfg.OpenAI.Timeout,
			Logger:  log,
		})
	case config.ProviderClaude:
		return anthropic.NewClaudeModel(cfg.Anthropic.APIKey, cfg.Anthropic.Model, anthropic.Options{
			BaseURL: cfg.Anthropic.APIBaseURL,
			Timeout: cfg.Anthropic.Timeout,
			Logger:  log,
		})
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, geminiOptions(cfg, log))
		if err != nil {
			return nil, err
		}
		return gemini.New(client, cfg.Gemini.Model, log)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}

// NewAgentModel builds the conversational agent's model for
// cfg.LLM.Provider. Every provider adapter serves both contracts.
func NewAgentModel(ctx context.Context, cfg *config.AppConfig, log logger.Logger) (model.LLM, error) {
	g, err := NewGenerator(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	llm, ok := g.(model.LLM)
	if !ok {
		return nil, fmt.Errorf("llm provider %s cannot drive the agent", cfg.LLM.Provider)
	}
	return llm, nil
}

// NewEmbedder builds the embedder for cfg.Embedding.Provider, wrapped in the
// embedding cache when enabled. rdb may be nil.
func NewEmbedder(ctx context.Context, cfg *config.AppConfig, rdb redis.UniversalClient, m *metrics.Metrics, log logger.Logger) (embedding.Embedder, error) {
	var (
		e   embedding.Embedder
		err error
	)
	switch cfg.Embedding.Provider {
	case config.ProviderOpenAI:
		e, err = openai.NewEmbedder(cfg.Embedding.Model, cfg.Embedding.Dimension, openai.Options{
			APIKey:  cfg.OpenAI.APIKey,
			BaseURL: cfg.OpenAI.APIBaseURL,
			Timeout: cfg.OpenAI.Timeout,
		})
	case config.ProviderGemini:
		client, cerr := gemini.NewClient(ctx, geminiOptions(cfg, log))
		if cerr != nil {
			return nil, cerr
		}
		e, err = gemini.NewEmbedder(client, cfg.Embedding.Model, cfg.Embedding.Dimension)
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, err
	}

	if !cfg.Embedding.CacheEnabled {
		return e, nil
	}
	return embedding.NewCachedEmbedder(e, embedding.CacheOptions{
		TTL:       cfg.Embedding.CacheTTL,
		Redis:     rdb,
		KeyPrefix: cfg.Redis.KeyPrefix,
		Metrics:   m,
		Logger:    log,
	}), nil
}

func geminiOptions(cfg *config.AppConfig, log logger.Logger) gemini.Options {
	return gemini.Options{
		APIKey:   cfg.Gemini.APIKey,
		Project:  cfg.Gemini.Project,
		Location: cfg.Gemini.Region,
		Logger:   log,
	}
}
