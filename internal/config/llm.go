package config

import "fmt"

// LLM provider constants
const (
	ProviderClaude = "claude"
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// LLMConfig holds LLM provider selection configuration
type LLMConfig struct {
	// Provider specifies which LLM provider to use: "claude", "gemini", or "openai"
	Provider string `env:"LLM_PROVIDER" yaml:"provider" default:"openai"`
	// MaxTokens bounds a single extraction response
	MaxTokens int `env:"LLM_MAX_TOKENS" yaml:"max_tokens" default:"4096"`
}

func (c LLMConfig) Validate() error {
	switch c.Provider {
	case ProviderClaude, ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("llm provider must be one of [claude, gemini, openai], got %q", c.Provider)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("llm max_tokens must be greater than 0")
	}
	return nil
}
