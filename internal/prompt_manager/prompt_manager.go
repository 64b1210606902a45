// Package prompt_manager provides access to prompt overrides stored via a
// FileProvider backend.
package prompt_manager

import (
	"context"
	"fmt"
	"strings"

	"github.com/lewisedginton/session_concierge/internal/storage_manager"
)

const (
	matcherPromptPath = "matcher.md"
	agentPromptPath   = "agent.md"
)

// PromptManager reads prompt files from the prompts namespace.
type PromptManager struct {
	provider storage_manager.FileProvider
}

// New creates a new PromptManager with the given file provider.
func New(provider storage_manager.FileProvider) *PromptManager {
	if provider == nil {
		panic("file provider cannot be nil")
	}
	return &PromptManager{
		provider: provider,
	}
}

// MatcherInstructions returns the system instructions for the assisted
// matcher from matcher.md, or "" when no override is stored.
func (m *PromptManager) MatcherInstructions(ctx context.Context) (string, error) {
	return m.optional(ctx, matcherPromptPath)
}

// AgentInstructions returns the concierge agent's instruction override from
// agent.md, or "" when none is stored.
func (m *PromptManager) AgentInstructions(ctx context.Context) (string, error) {
	return m.optional(ctx, agentPromptPath)
}

func (m *PromptManager) optional(ctx context.Context, file string) (string, error) {
	exists, err := m.provider.Exists(ctx, file)
	if err != nil {
		return "", fmt.Errorf("failed to check prompt %s: %w", file, err)
	}
	if !exists {
		return "", nil
	}

	data, err := m.provider.Read(ctx, file)
	if err != nil {
		return "", fmt.Errorf("failed to read prompt %s: %w", file, err)
	}
	return strings.TrimSpace(string(data)), nil
}
