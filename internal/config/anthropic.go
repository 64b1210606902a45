package config

import "time"

// AnthropicConfig holds Anthropic-specific configuration
type AnthropicConfig struct {
	APIKey     string        `env:"ANTHROPIC_API_KEY" yaml:"-"`
	Model      string        `env:"CLAUDE_MODEL" yaml:"model" default:"claude-sonnet-4-5-20250929"`
	APIBaseURL string        `env:"ANTHROPIC_API_URL" yaml:"api_base_url" default:"https://api.anthropic.com"`
	Timeout    time.Duration `env:"ANTHROPIC_TIMEOUT" yaml:"timeout" default:"60s"`
}
