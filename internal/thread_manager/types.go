package thread_manager //nolint:revive // var-naming: using underscores for domain clarity

import (
	"time"

	"github.com/lewisedginton/session_concierge/internal/storage_manager"
	"github.com/lewisedginton/session_concierge/pkg/logger"
)

// DefaultMetadataFile is where the thread index is kept inside the provider.
const DefaultMetadataFile = "chat_threads.json"

// ThreadInfo records one conversation thread opened from a chat platform.
type ThreadInfo struct {
	ThreadID   string    `json:"thread_id"` // e.g. "slack_U123_D456"
	Connector  string    `json:"connector"` // "slack" or "telegram"
	UserID     string    `json:"user_id"`
	ChannelID  string    `json:"channel_id"`
	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Config holds configuration for the thread manager
type Config struct {
	MetadataFile string // relative to FileProvider; defaults to DefaultMetadataFile
	FileProvider storage_manager.FileProvider
	Logger       logger.Logger
}

// metadataStore is the layout of the metadata file.
type metadataStore struct {
	// connector -> conversation key -> threads, oldest first
	Threads map[string]map[string][]ThreadInfo `json:"threads"`
}
