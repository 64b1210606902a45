package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VECTOR_BACKEND", "memory")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "session-concierge", cfg.ServiceName)
	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, StrategyAssisted, cfg.Retrieval.Strategy)
	assert.Equal(t, IndexDocuments, cfg.Retrieval.IndexName)
	assert.InDelta(t, 0.1, cfg.Retrieval.EffectiveThreshold(), 1e-9)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 1536, cfg.Embedding.Dimension)
	assert.Equal(t, MemoryBackendSQLite, cfg.Memory.Backend)
	assert.Equal(t, 50, cfg.Memory.HistoryLimit)
	assert.Equal(t, 10, cfg.Memory.AgentHistoryLimit)
	assert.Equal(t, "/mcp", cfg.MCP.Path)
	assert.False(t, cfg.Redis.Enabled())
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_YAMLAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "concierge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
environment: production
llm:
  provider: claude
retrieval:
  strategy: direct
  index_name: session_embeddings
vector:
  backend: memory
memory:
  backend: file
`), 0o600))
	t.Setenv("SEARCH_TOP_K", "8")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, ProviderClaude, cfg.LLM.Provider)
	assert.Equal(t, StrategyDirect, cfg.Retrieval.Strategy)
	assert.InDelta(t, 0.2, cfg.Retrieval.EffectiveThreshold(), 1e-9)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	assert.Equal(t, MemoryBackendFile, cfg.Memory.Backend)
}

func TestLoad_ValidationErrors(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "mistral")
	t.Setenv("SEARCH_STRATEGY", "fuzzy")
	t.Setenv("MEMORY_BACKEND", "mongo")
	t.Setenv("SEARCH_CACHE_ENABLED", "true")
	t.Setenv("VECTOR_BACKEND", "memory")

	_, err := Load("")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "llm provider")
	assert.Contains(t, msg, "search strategy")
	assert.Contains(t, msg, "memory backend")
	assert.Contains(t, msg, "REDIS_ADDR")
}

func TestRetrievalConfig_Threshold(t *testing.T) {
	tests := []struct {
		name string
		cfg  RetrievalConfig
		want float64
	}{
		{"documents default", RetrievalConfig{IndexName: IndexDocuments}, 0.1},
		{"sessions default", RetrievalConfig{IndexName: IndexSessions}, 0.2},
		{"explicit", RetrievalConfig{IndexName: IndexSessions, Threshold: 0.35}, 0.35},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.cfg.EffectiveThreshold(), 1e-9)
		})
	}

	assert.Error(t, RetrievalConfig{Strategy: StrategyDirect, IndexName: "x", TopK: 50, MaxTopK: 20}.Validate())
	assert.Error(t, RetrievalConfig{Strategy: StrategyDirect, IndexName: "x", TopK: 5, MaxTopK: 20, Threshold: 1}.Validate())
	assert.NoError(t, RetrievalConfig{Strategy: StrategyDirect, IndexName: "x", TopK: 5, MaxTopK: 20}.Validate())
}

func TestValidateProviderKeys(t *testing.T) {
	cfg := &AppConfig{
		LLM:       LLMConfig{Provider: ProviderClaude},
		Embedding: EmbeddingConfig{Provider: ProviderOpenAI},
	}
	err := cfg.ValidateProviderKeys()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `llm provider "claude"`)
	assert.Contains(t, err.Error(), `embedding provider "openai"`)

	cfg.Anthropic.APIKey = "a"
	cfg.OpenAI.APIKey = "o"
	assert.NoError(t, cfg.ValidateProviderKeys())

	vertex := &AppConfig{
		LLM:       LLMConfig{Provider: ProviderGemini},
		Embedding: EmbeddingConfig{Provider: ProviderGemini},
		Gemini:    GeminiConfig{Project: "p", Region: "europe-west1"},
	}
	assert.NoError(t, vertex.ValidateProviderKeys())
}
