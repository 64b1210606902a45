package llmrequest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

type describedTool struct{ decl *genai.FunctionDeclaration }

func (d describedTool) Declaration() *genai.FunctionDeclaration { return d.decl }

func TestSystemText(t *testing.T) {
	assert.Empty(t, SystemText(nil))
	assert.Empty(t, SystemText(&model.LLMRequest{}))

	req := &model.LLMRequest{Config: &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: "Be brief."}, nil, {Text: "Count sessions."}}},
	}}
	assert.Equal(t, "Be brief.\n\nCount sessions.", SystemText(req))
}

func TestDeclarations(t *testing.T) {
	fromConfig := &genai.FunctionDeclaration{Name: "find_sessions", Description: "config"}
	req := &model.LLMRequest{
		Config: &genai.GenerateContentConfig{Tools: []*genai.Tool{
			nil,
			{FunctionDeclarations: []*genai.FunctionDeclaration{fromConfig, nil, {}}},
		}},
		Tools: map[string]any{
			"find_sessions": describedTool{&genai.FunctionDeclaration{Name: "find_sessions", Description: "tool"}},
			"other":         describedTool{&genai.FunctionDeclaration{Name: "other"}},
			"opaque":        struct{}{},
		},
	}

	decls := Declarations(req)
	require.Len(t, decls, 2)
	assert.Same(t, fromConfig, decls[0])
	assert.Equal(t, "other", decls[1].Name)
	assert.Nil(t, Declarations(nil))
}

func TestParameters(t *testing.T) {
	t.Run("json schema", func(t *testing.T) {
		schema, err := Parameters(&genai.FunctionDeclaration{
			Name: "find_sessions",
			ParametersJsonSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"query": map[string]any{"type": "string"}},
				"required":   []string{"query"},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "object", schema["type"])
		assert.Contains(t, schema["properties"], "query")
	})

	t.Run("genai schema types are lowered", func(t *testing.T) {
		schema, err := Parameters(&genai.FunctionDeclaration{
			Name: "find_sessions",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"query": {Type: genai.TypeString},
					"tags":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
				},
			},
		})
		require.NoError(t, err)
		assert.Equal(t, "object", schema["type"])
		props := schema["properties"].(map[string]any)
		assert.Equal(t, "string", props["query"].(map[string]any)["type"])
		tags := props["tags"].(map[string]any)
		assert.Equal(t, "array", tags["type"])
		assert.Equal(t, "string", tags["items"].(map[string]any)["type"])
	})

	t.Run("no parameters", func(t *testing.T) {
		schema, err := Parameters(&genai.FunctionDeclaration{Name: "ping"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"type": "object", "properties": map[string]any{}}, schema)
	})
}
