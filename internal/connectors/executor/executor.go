// Package executor answers chat messages by running the concierge agent over
// the user's conversation thread.
package executor

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/adk/agent"
	"google.golang.org/adk/runner"
	"google.golang.org/adk/session"
	"google.golang.org/genai"

	"github.com/lewisedginton/session_concierge/internal/agents"
	"github.com/lewisedginton/session_concierge/internal/search"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// AgentFactory creates an agent whose search tool is scoped by opts.
type AgentFactory func(opts agents.ToolOptions) (agent.Agent, error)

type Executor struct {
	agentFactory   AgentFactory
	appName        string
	sessionService session.Service
	logger         logger.Logger
}

func NewExecutor(agentFactory AgentFactory, appName string, sessionService session.Service, log logger.Logger) (*Executor, error) {
	if agentFactory == nil {
		return nil, fmt.Errorf("agent factory cannot be nil")
	}
	if sessionService == nil {
		return nil, fmt.Errorf("session service cannot be nil")
	}
	if appName == "" {
		return nil, fmt.Errorf("app name is required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	return &Executor{
		agentFactory:   agentFactory,
		appName:        appName,
		sessionService: sessionService,
		logger:         log.WithFields(logger.StringField("component", "executor")),
	}, nil
}

// Execute runs one user turn through the agent. When the agent searched, the
// last result is rendered with f below the agent's reply.
func (e *Executor) Execute(ctx context.Context, req MessageRequest, f Formatter) (MessageResponse, error) {
	if req.UserID == "" {
		return MessageResponse{}, fmt.Errorf("userID is required")
	}
	if req.ThreadID == "" {
		return MessageResponse{}, fmt.Errorf("threadID is required")
	}
	if strings.TrimSpace(req.Message) == "" {
		return MessageResponse{}, fmt.Errorf("message is required")
	}
	if f == nil {
		f = PlainFormatter{}
	}

	if err := e.ensureSession(ctx, req.UserID, req.ThreadID); err != nil {
		return MessageResponse{}, err
	}

	// the tool runs on the runner's goroutine; results is read after Run drains
	var results []search.Result
	agentInstance, err := e.agentFactory(agents.ToolOptions{
		ThreadID: req.ThreadID,
		TopK:     req.TopK,
		OnResult: func(res search.Result) { results = append(results, res) },
		Logger:   e.logger,
	})
	if err != nil {
		return MessageResponse{}, fmt.Errorf("failed to create agent instance: %w", err)
	}

	r, err := runner.New(runner.Config{
		AppName:        e.appName,
		SessionService: e.sessionService,
		Agent:          agentInstance,
	})
	if err != nil {
		return MessageResponse{}, fmt.Errorf("failed to create runner: %w", err)
	}

	content := genai.NewContentFromText(req.Message, genai.RoleUser)
	runConfig := agent.RunConfig{StreamingMode: agent.StreamingModeNone}

	var reply strings.Builder
	for event, err := range r.Run(ctx, req.UserID, req.ThreadID, content, runConfig) {
		if err != nil {
			return MessageResponse{}, fmt.Errorf("failed to execute agent: %w", err)
		}
		if event == nil || event.Partial || event.Author == "user" {
			continue
		}
		if event.ErrorMessage != "" {
			return MessageResponse{}, fmt.Errorf("failed to execute agent: agent error [%s]: %s", event.ErrorCode, event.ErrorMessage)
		}
		if event.Content == nil {
			continue
		}
		for _, part := range event.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				reply.WriteString(part.Text)
			}
		}
	}

	resp := MessageResponse{Reply: strings.TrimSpace(reply.String())}
	if n := len(results); n > 0 {
		last := results[n-1]
		resp.Result = &last
	}
	resp.Text = compose(resp.Reply, resp.Result, f)
	if resp.Text == "" {
		return MessageResponse{}, fmt.Errorf("agent returned no reply")
	}

	fields := []logger.LogField{
		logger.ThreadIDField(req.ThreadID),
		logger.IntField("searches", len(results)),
		logger.IntField("reply_length", len(resp.Reply)),
	}
	if resp.Result != nil {
		fields = append(fields, logger.SearchIDField(resp.Result.ID))
	}
	e.logger.Info("Answered message", fields...)
	return resp, nil
}

// compose puts the rendered sessions under the reply; the agent only says
// how many it found.
func compose(reply string, res *search.Result, f Formatter) string {
	if res == nil {
		return reply
	}
	rendered := f.FormatResult(*res)
	if reply == "" {
		return rendered
	}
	return reply + "\n\n" + rendered
}

func (e *Executor) ensureSession(ctx context.Context, userID, threadID string) error {
	_, err := e.sessionService.Get(ctx, &session.GetRequest{
		AppName:   e.appName,
		UserID:    userID,
		SessionID: threadID,
	})
	if err == nil {
		return nil
	}

	e.logger.Debug("Session not loaded, creating it", logger.ThreadIDField(threadID), logger.ErrorField(err))
	_, err = e.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   e.appName,
		UserID:    userID,
		SessionID: threadID,
	})
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// StartThread creates an empty thread, used when a user asks for a fresh conversation.
func (e *Executor) StartThread(ctx context.Context, userID, threadID string) error {
	_, err := e.sessionService.Create(ctx, &session.CreateRequest{
		AppName:   e.appName,
		UserID:    userID,
		SessionID: threadID,
	})
	if err != nil {
		return fmt.Errorf("failed to start thread: %w", err)
	}
	e.logger.Info("Started thread", logger.ThreadIDField(threadID))
	return nil
}
