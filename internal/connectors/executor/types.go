package executor

import "github.com/lewisedginton/session_concierge/internal/search"

// MessageRequest represents an incoming chat message for the agent
type MessageRequest struct {
	UserID   string // Unique identifier for the user
	ThreadID string // Conversation thread the turn belongs to
	Message  string // The user's message text
	TopK     int    // 0 selects the service default
}

// MessageResponse represents the agent's answer
type MessageResponse struct {
	Text   string         `json:"text"`             // Reply plus rendered sessions, formatted for the platform
	Reply  string         `json:"reply"`            // The agent's own words
	Result *search.Result `json:"result,omitempty"` // The last search the agent ran, nil when it did not search
}
