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
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

func TestAgentConfig(t *testing.T) {
	search := &genai.Tool{GoogleSearch: &genai.GoogleSearch{}}
	req := &model.LLMRequest{
		Config: &genai.GenerateContentConfig{
			MaxOutputTokens: 512,
			Tools: []*genai.Tool{
				search,
				{FunctionDeclarations: []*genai.FunctionDeclaration{{Name: "find_sessions"}}},
			},
		},
	}

	cfg := agentConfig(req)
	assert.Equal(t, int32(512), cfg.MaxOutputTokens)
	require.Len(t, cfg.Tools, 2)
	assert.Same(t, search, cfg.Tools[0])
	require.Len(t, cfg.Tools[1].FunctionDeclarations, 1)
	assert.Equal(t, "find_sessions", cfg.Tools[1].FunctionDeclarations[0].Name)
	assert.Len(t, req.Config.Tools, 2, "the request config is not modified")

	assert.Empty(t, agentConfig(&model.LLMRequest{}).Tools)
}

func TestGenerateContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "gemini-2.5-flash:generateContent"), r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"role": "model", "parts": []map[string]any{
					{"functionCall": map[string]any{"name": "find_sessions", "args": map[string]any{"query": "Go"}}},
				}},
				"finishReason": "STOP",
			}},
			"usageMetadata": map[string]any{"totalTokenCount": 9},
		})
	}))
	defer srv.Close()

	client, err := NewClient(context.Background(), Options{APIKey: "k", BaseURL: srv.URL})
	require.NoError(t, err)
	m, err := New(client, "gemini-2.5-flash", nil)
	require.NoError(t, err)

	req := &model.LLMRequest{Contents: []*genai.Content{genai.NewContentFromText("any Go talks?", genai.RoleUser)}}
	var got []*model.LLMResponse
	for resp, err := range m.GenerateContent(context.Background(), req, false) {
		require.NoError(t, err)
		got = append(got, resp)
	}
	require.Len(t, got, 1)
	assert.True(t, got[0].TurnComplete)
	assert.Equal(t, genai.FinishReasonStop, got[0].FinishReason)
	assert.Equal(t, int32(9), got[0].UsageMetadata.TotalTokenCount)
	require.Len(t, got[0].Content.Parts, 1)
	assert.Equal(t, "find_sessions", got[0].Content.Parts[0].FunctionCall.Name)

	for _, err := range m.GenerateContent(context.Background(), req, true) {
		assert.Error(t, err)
	}
}
