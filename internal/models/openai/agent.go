package openai

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/goccy/go-json"
	"github.com/openai/openai-go"
	"google.golang.org/adk/model"
	"google.golang.org/genai"

	"github.com/lewisedginton/session_concierge/internal/models/llmrequest"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// Finish reasons as the chat completions API reports them.
const (
	finishReasonStop          = "stop"
	finishReasonLength        = "length"
	finishReasonToolCalls     = "tool_calls"
	finishReasonContentFilter = "content_filter"
	finishReasonFunctionCall  = "function_call"
)

// GenerateContent runs one agent model call. Only non-streaming calls are
// supported.
func (o *Model) GenerateContent(ctx context.Context, req *model.LLMRequest, stream bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		if stream {
			yield(nil, fmt.Errorf("streaming not supported"))
			return
		}

		resp, err := o.generateContent(ctx, req)
		yield(resp, err)
	}
}

func (o *Model) generateContent(ctx context.Context, req *model.LLMRequest) (*model.LLMResponse, error) {
	params, err := o.agentParams(req)
	if err != nil {
		return nil, fmt.Errorf("failed to transform request: %w", err)
	}

	completion, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai API error: %w", err)
	}

	resp, err := toLLMResponse(completion)
	if err != nil {
		return nil, fmt.Errorf("failed to transform response: %w", err)
	}
	o.logger.Debug("Agent completion finished",
		logger.IntField("parts", len(resp.Content.Parts)),
		logger.StringField("finish_reason", string(resp.FinishReason)))
	return resp, nil
}

func (o *Model) agentParams(req *model.LLMRequest) (openai.ChatCompletionNewParams, error) {
	var msgs []openai.ChatCompletionMessageParamUnion
	if system := llmrequest.SystemText(req); system != "" {
		msgs = append(msgs, openai.SystemMessage(system))
	}
	for _, content := range req.Contents {
		converted, err := contentMessages(content)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		msgs = append(msgs, converted...)
	}

	maxTokens := int64(4096)
	if req.Config != nil && req.Config.MaxOutputTokens > 0 {
		maxTokens = int64(req.Config.MaxOutputTokens)
	}
	params := openai.ChatCompletionNewParams{
		Model:     o.modelName,
		Messages:  msgs,
		MaxTokens: openai.Int(maxTokens),
	}
	if req.Config != nil && req.Config.Temperature != nil {
		params.Temperature = openai.Float(float64(*req.Config.Temperature))
	}

	for _, decl := range llmrequest.Declarations(req) {
		schema, err := llmrequest.Parameters(decl)
		if err != nil {
			return openai.ChatCompletionNewParams{}, err
		}
		params.Tools = append(params.Tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        decl.Name,
				Description: openai.String(decl.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return params, nil
}

// contentMessages converts one content to chat messages. A user content
// carrying function responses yields one tool message per response, ahead
// of any text it also carries.
func contentMessages(content *genai.Content) ([]openai.ChatCompletionMessageParamUnion, error) {
	if content == nil {
		return nil, nil
	}

	var (
		texts []string
		calls []openai.ChatCompletionMessageToolCallParam
		msgs  []openai.ChatCompletionMessageParamUnion
	)
	for _, part := range content.Parts {
		switch {
		case part == nil || part.Thought:
			continue
		case part.FunctionResponse != nil:
			data, err := json.Marshal(part.FunctionResponse.Response)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool result: %w", err)
			}
			msgs = append(msgs, openai.ToolMessage(string(data), part.FunctionResponse.ID))
		case part.FunctionCall != nil:
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]any{}
			}
			data, err := json.Marshal(args)
			if err != nil {
				return nil, fmt.Errorf("failed to marshal function args: %w", err)
			}
			calls = append(calls, openai.ChatCompletionMessageToolCallParam{
				ID: part.FunctionCall.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      part.FunctionCall.Name,
					Arguments: string(data),
				},
			})
		case part.Text != "":
			texts = append(texts, part.Text)
		}
	}
	text := strings.Join(texts, "\n")

	if content.Role == genai.RoleModel {
		if text == "" && len(calls) == 0 {
			return msgs, nil
		}
		assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: calls}
		if text != "" {
			assistant.Content.OfString = openai.String(text)
		}
		return append(msgs, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}), nil
	}

	if text != "" {
		msgs = append(msgs, openai.UserMessage(text))
	}
	return msgs, nil
}

func toLLMResponse(completion *openai.ChatCompletion) (*model.LLMResponse, error) {
	if completion == nil || len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}
	choice := completion.Choices[0]

	var parts []*genai.Part
	if choice.Message.Content != "" {
		parts = append(parts, &genai.Part{Text: choice.Message.Content})
	}
	for _, call := range choice.Message.ToolCalls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool arguments: %w", err)
			}
		}
		parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: args,
		}})
	}

	resp := &model.LLMResponse{
		Content:      &genai.Content{Role: genai.RoleModel, Parts: parts},
		FinishReason: finishReason(choice.FinishReason),
		TurnComplete: true,
	}
	if completion.Usage.TotalTokens > 0 {
		resp.UsageMetadata = &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     int32(completion.Usage.PromptTokens),
			CandidatesTokenCount: int32(completion.Usage.CompletionTokens),
			TotalTokenCount:      int32(completion.Usage.TotalTokens),
		}
	}
	return resp, nil
}

func finishReason(reason string) genai.FinishReason {
	switch reason {
	case finishReasonStop, finishReasonToolCalls, finishReasonFunctionCall:
		return genai.FinishReasonStop
	case finishReasonLength:
		return genai.FinishReasonMaxTokens
	case finishReasonContentFilter:
		return genai.FinishReasonSafety
	default:
		return genai.FinishReasonOther
	}
}
