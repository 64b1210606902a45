package anthropic

import (
	"context"
	"fmt"
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/goccy/go-json"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/lewisedginton/session_concierge/internal/models/llmrequest"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// GenerateContent runs one agent model call. Streaming is not supported.
func (c *ClaudeModel) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		if stream {
			yield(nil, fmt.Errorf("streaming not supported"))
			return
		}

		resp, err := c.generateContent(ctx, req)
		yield(resp, err)
	}
}

func (c *ClaudeModel) generateContent(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params, err := c.agentParams(req)
	if err != nil {
		return nil, fmt.Errorf("failed to transform request: %w", err)
	}

	c.logger.Debug("Sending agent request", logger.IntField("messages", len(params.Messages)), logger.IntField("tools", len(params.Tools)))
	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("claude api error: %w", err)
	}

	return toLLMResponse(msg)
}

func (c *ClaudeModel) agentParams(req *model.LLMRequest) (anthropic.MessageNewParams, error) {
	msgs, err := toMessages(req.Contents)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.modelName),
		MaxTokens: 4000,
		Messages:  msgs,
	}
	if system := llmrequest.SystemText(req); system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if req.Config != nil {
		if req.Config.MaxOutputTokens > 0 {
			params.MaxTokens = int64(req.Config.MaxOutputTokens)
		}
		if req.Config.Temperature != nil {
			params.Temperature = anthropic.Float(float64(*req.Config.Temperature))
		}
	}

	for _, decl := range llmrequest.Declarations(req) {
		schema, err := llmrequest.Parameters(decl)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        decl.Name,
				Description: anthropic.String(decl.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: schema["properties"],
					Required:   requiredFields(schema["required"]),
				},
			},
		})
	}
	return params, nil
}

func requiredFields(v any) []string {
	switch fields := v.(type) {
	case []string:
		return fields
	case []any:
		out := make([]string, 0, len(fields))
		for _, f := range fields {
			if s, ok := f.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// toMessages converts contents to alternating Claude messages. Consecutive
// contents with the same role are merged into one message.
func toMessages(contents []*genai.Content) ([]anthropic.MessageParam, error) {
	var msgs []anthropic.MessageParam
	for _, content := range contents {
		if content == nil {
			continue
		}
		blocks, err := toBlocks(content.Parts)
		if err != nil {
			return nil, err
		}
		if len(blocks) == 0 {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if content.Role == genai.RoleModel {
			role = anthropic.MessageParamRoleAssistant
		}
		if n := len(msgs); n > 0 && msgs[n-1].Role == role {
			msgs[n-1].Content = append(msgs[n-1].Content, blocks...)
			continue
		}
		msgs = append(msgs, anthropic.MessageParam{Role: role, Content: blocks})
	}
	return msgs, nil
}

// toBlocks converts parts to content blocks. Tool use and tool result blocks
// are paired by call id, falling back to the tool name when a call has none.
func toBlocks(parts []*genai.Part) ([]anthropic.ContentBlockParamUnion, error) {
	var blocks []anthropic.ContentBlockParamUnion
	for _, part := range parts {
		switch {
		case part == nil || part.Thought:
			continue
		case part.FunctionCall != nil:
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(toolUseID(part.FunctionCall.ID, part.FunctionCall.Name), args, part.FunctionCall.Name))
		case part.FunctionResponse != nil:
			data, err := json.Marshal(part.FunctionResponse.Response)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal function response: %w", err)
			}
			id := toolUseID(part.FunctionResponse.ID, part.FunctionResponse.Name)
			blocks = append(blocks, anthropic.NewToolResultBlock(id, string(data), false))
		case part.Text != "":
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		}
	}
	return blocks, nil
}

func toolUseID(id, name string) string {
	if id != "" {
		return id
	}
	return name
}

func toLLMResponse(msg *anthropic.Message) (*model.LLMResponse, error) {
	if msg == nil {
		return nil, fmt.Errorf("message is nil")
	}

	var parts []*genai.Part
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parts = append(parts, &genai.Part{Text: block.Text})
			}
		case "tool_use":
			args := map[string]any{}
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, fmt.Errorf("failed to unmarshal tool input: %w", err)
				}
			}
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   block.ID,
				Name: block.Name,
				Args: args,
			}})
		}
	}

	return &model.LLMResponse{
		Content: &genai.Content{Role: genai.RoleModel, Parts: parts},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(msg.Usage.InputTokens),
			CandidatesTokenCount: int32(msg.Usage.OutputTokens),
			TotalTokenCount:      int32(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		FinishReason: finishReason(msg.StopReason),
		TurnComplete: true,
	}, nil
}

func finishReason(reason anthropic.StopReason) genai.FinishReason {
	switch reason {
	case anthropic.StopReasonEndTurn, anthropic.StopReasonStopSequence, anthropic.StopReasonToolUse:
		return genai.FinishReasonStop
	case anthropic.StopReasonMaxTokens:
		return genai.FinishReasonMaxTokens
	case anthropic.StopReasonRefusal:
		return genai.FinishReasonSafety
	default:
		return genai.FinishReasonOther
	}
}
