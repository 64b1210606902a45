// Package agenttest provides a scripted model for exercising agents without
// a provider.
package agenttest

import (
	"context"
	"errors"
	"iter"
	"sync"

	"google.golang.org/adk/model"
	"google.golang.org/genai"
)

// ErrScriptExhausted is yielded once every scripted response has been used.
var ErrScriptExhausted = errors.New("no scripted response left")

// ScriptedModel implements model.LLM by replaying queued responses and
// recording each request it receives.
type ScriptedModel struct {
	mu        sync.Mutex
	responses []*model.LLMResponse
	requests  []*model.LLMRequest
}

// NewScriptedModel queues responses in the order they will be returned.
func NewScriptedModel(responses ...*model.LLMResponse) *ScriptedModel {
	return &ScriptedModel{responses: responses}
}

func (m *ScriptedModel) Name() string { return "scripted" }

func (m *ScriptedModel) GenerateContent(_ context.Context, req *model.LLMRequest, _ bool) iter.Seq2[*model.LLMResponse, error] {
	return func(yield func(*model.LLMResponse, error) bool) {
		m.mu.Lock()
		m.requests = append(m.requests, req)
		if len(m.responses) == 0 {
			m.mu.Unlock()
			yield(nil, ErrScriptExhausted)
			return
		}
		resp := m.responses[0]
		m.responses = m.responses[1:]
		m.mu.Unlock()

		yield(resp, nil)
	}
}

// Requests returns the requests seen so far.
func (m *ScriptedModel) Requests() []*model.LLMRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*model.LLMRequest(nil), m.requests...)
}

// Reply is a final text answer.
func Reply(text string) *model.LLMResponse {
	return &model.LLMResponse{
		Content:      genai.NewContentFromText(text, genai.RoleModel),
		TurnComplete: true,
	}
}

// CallTool is a response asking for one function call.
func CallTool(id, name string, args map[string]any) *model.LLMResponse {
	return &model.LLMResponse{
		Content: &genai.Content{
			Role:  genai.RoleModel,
			Parts: []*genai.Part{{FunctionCall: &genai.FunctionCall{ID: id, Name: name, Args: args}}},
		},
		TurnComplete: true,
	}
}

// Failure is a response carrying a provider error.
func Failure(code, message string) *model.LLMResponse {
	return &model.LLMResponse{ErrorCode: code, ErrorMessage: message, TurnComplete: true}
}
