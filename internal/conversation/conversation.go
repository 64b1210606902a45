// Package conversation rebuilds a thread's history for display.
package conversation

import (
	"context"
	"fmt"

	"github.com/lewisedginton/session_concierge/internal/memory_store"
	"github.com/lewisedginton/session_concierge/internal/messages"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// DefaultHistoryLimit is how many stored messages a thread view loads.
const DefaultHistoryLimit = 50

// emptyAgentState is the serialized agent state; the assistant keeps none.
const emptyAgentState = "{}"

// AgentState is what a chat client needs to resume a thread.
type AgentState struct {
	ThreadID     string `json:"threadId"`
	ThreadExists bool   `json:"threadExists"`
	State        string `json:"state"`
	// Messages is the legacy-dialect history encoded as a JSON string.
	Messages string `json:"messages"`
}

// Service reads threads from a memory store.
type Service struct {
	store        memory_store.Store
	historyLimit int
	log          logger.Logger
}

// New creates a Service. historyLimit <= 0 selects DefaultHistoryLimit.
func New(store memory_store.Store, historyLimit int, log logger.Logger) *Service {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Service{store: store, historyLimit: historyLimit, log: log}
}

// Messages returns the recent history of a thread in the legacy dialect.
// A thread with no history yields an empty slice.
func (s *Service) Messages(ctx context.Context, threadID string) ([]messages.LegacyMessage, error) {
	legacy, _, err := s.load(ctx, threadID)
	return legacy, err
}

// LoadAgentState returns the resumable state of a thread.
func (s *Service) LoadAgentState(ctx context.Context, threadID string) (AgentState, error) {
	legacy, exists, err := s.load(ctx, threadID)
	if err != nil {
		return AgentState{}, err
	}

	encoded, err := messages.MarshalLegacy(legacy)
	if err != nil {
		return AgentState{}, fmt.Errorf("failed to encode thread messages: %w", err)
	}

	return AgentState{
		ThreadID:     threadID,
		ThreadExists: exists,
		State:        emptyAgentState,
		Messages:     string(encoded),
	}, nil
}

func (s *Service) load(ctx context.Context, threadID string) ([]messages.LegacyMessage, bool, error) {
	stored, exists, err := s.store.Query(ctx, threadID, s.historyLimit)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load thread: %w", err)
	}

	legacy, err := messages.MemoryToLegacy(stored)
	if err != nil {
		return nil, exists, err
	}

	s.log.Debug("Loaded thread history",
		logger.ThreadIDField(threadID),
		logger.BoolField("exists", exists),
		logger.IntField("stored", len(stored)),
		logger.IntField("legacy", len(legacy)))
	return legacy, exists, nil
}
