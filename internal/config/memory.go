package config

// Memory store backends
const (
	MemoryBackendPostgres = "postgres"
	MemoryBackendSQLite   = "sqlite"
	MemoryBackendFile     = "file"
)

// Vector index backends
const (
	VectorBackendPGVector = "pgvector"
	VectorBackendMemory   = "memory"
)

// MemoryConfig selects where conversation history is kept.
type MemoryConfig struct {
	Backend    string `env:"MEMORY_BACKEND" yaml:"backend" default:"sqlite"`
	SQLitePath string `env:"MEMORY_SQLITE_PATH" yaml:"sqlite_path" default:"./data/memory.db"`
	// HistoryLimit is how many stored messages a thread view loads
	HistoryLimit int `env:"MEMORY_HISTORY_LIMIT" yaml:"history_limit" default:"50"`
	// AgentHistoryLimit is how many stored messages are replayed to the agent
	AgentHistoryLimit int `env:"MEMORY_AGENT_HISTORY_LIMIT" yaml:"agent_history_limit" default:"10"`
}

// VectorConfig selects the vector index backend.
type VectorConfig struct {
	Backend string `env:"VECTOR_BACKEND" yaml:"backend" default:"pgvector"`
}
