package config

import "time"

// OpenAIConfig holds OpenAI-specific configuration
type OpenAIConfig struct {
	APIKey     string        `env:"OPENAI_API_KEY" yaml:"-"`
	Model      string        `env:"OPENAI_MODEL" yaml:"model" default:"gpt-4o"`
	APIBaseURL string        `env:"OPENAI_API_URL" yaml:"api_base_url" default:"https://api.openai.com/v1"`
	Timeout    time.Duration `env:"OPENAI_TIMEOUT" yaml:"timeout" default:"60s"`
}
