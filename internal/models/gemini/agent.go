package gemini

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/lewisedginton/session_concierge/internal/models/llmrequest"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// GenerateContent runs one agent model call. Only non-streaming calls are
// supported.
func (m *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		if stream {
			yield(nil, fmt.Errorf("streaming not supported"))
			return
		}

		resp, err := m.generateContent(ctx, req)
		yield(resp, err)
	}
}

func (m *Model) generateContent(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	resp, err := m.client.Models.GenerateContent(ctx, m.modelName, req.Contents, agentConfig(req))
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0] == nil {
		return nil, fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]

	content := candidate.Content
	if content == nil {
		content = &genai.Content{}
	}
	content.Role = genai.RoleModel

	m.logger.Debug("Agent content generated",
		logger.IntField("parts", len(content.Parts)),
		logger.StringField("finish_reason", string(candidate.FinishReason)))
	return &model.LLMResponse{
		Content:       content,
		UsageMetadata: resp.UsageMetadata,
		FinishReason:  candidate.FinishReason,
		TurnComplete:  true,
	}, nil
}

// agentConfig copies the request config with every declared tool attached
// as a single function tool.
func agentConfig(req *model.LLMRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if req.Config != nil {
		copied := *req.Config
		cfg = &copied
	}

	var tools []*genai.Tool
	for _, t := range cfg.Tools {
		if t != nil && len(t.FunctionDeclarations) == 0 {
			tools = append(tools, t)
		}
	}
	if decls := llmrequest.Declarations(req); len(decls) > 0 {
		tools = append(tools, &genai.Tool{FunctionDeclarations: decls})
	}
	cfg.Tools = tools
	return cfg
}
