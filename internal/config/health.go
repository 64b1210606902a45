package config

import "time"

// HealthConfig holds health check configuration
type HealthConfig struct {
	Timeout          time.Duration `env:"HEALTH_TIMEOUT" yaml:"timeout" default:"10s"`
	FailureThreshold int           `env:"HEALTH_FAILURE_THRESHOLD" yaml:"failure_threshold" default:"3"`
	// LLMCheckURL is probed on readiness when set
	LLMCheckURL string `env:"HEALTH_LLM_CHECK_URL" yaml:"llm_check_url"`
}
