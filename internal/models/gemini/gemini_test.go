package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lewisedginton/session_concierge/internal/embedding"
	"github.com/lewisedginton/session_concierge/internal/textgen"
)

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key is required")
}

func TestGenerateConfig(t *testing.T) {
	cfg := generateConfig(textgen.Request{System: "rules", MaxTokens: 256})
	require.NotNil(t, cfg.Temperature)
	assert.Equal(t, float32(0), *cfg.Temperature)
	assert.Equal(t, int32(256), cfg.MaxOutputTokens)
	require.NotNil(t, cfg.SystemInstruction)
	assert.Equal(t, "rules", cfg.SystemInstruction.Parts[0].Text)

	cfg = generateConfig(textgen.Request{})
	assert.Nil(t, cfg.SystemInstruction)
	assert.Zero(t, cfg.MaxOutputTokens)
}

func TestEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "text-embedding-004"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"embeddings": []map[string]any{
				{"values": []float32{0.1, 0.2}},
				{"values": []float32{0.3, 0.4}},
			},
		})
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), Options{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	e, err := NewEmbedder(client, "text-embedding-004", 2)
	require.NoError(t, err)

	out, err := e.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, out)

	e3, err := NewEmbedder(client, "text-embedding-004", 3)
	require.NoError(t, err)
	_, err = e3.Embed(context.Background(), []string{"a", "b"})
	assert.ErrorIs(t, err, embedding.ErrDimensionMismatch)
}

func TestNewEmbedder_Validation(t *testing.T) {
	_, err := NewEmbedder(nil, "", 3)
	assert.Error(t, err)
	_, err = NewEmbedder(nil, "m", 0)
	assert.Error(t, err)
}
