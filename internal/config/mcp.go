package config

// MCPConfig holds Model Context Protocol server configuration
type MCPConfig struct {
	// Enabled mounts the streamable HTTP endpoint on the API server
	Enabled bool   `env:"MCP_ENABLED" yaml:"enabled" default:"false"`
	Path    string `env:"MCP_PATH" yaml:"path" default:"/mcp"`
	// Stateless disables MCP session tracking for load balanced deployments
	Stateless bool `env:"MCP_STATELESS" yaml:"stateless"`
}
