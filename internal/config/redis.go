package config

import "time"

// RedisConfig holds Redis configuration. Caches are disabled when Addr is empty.
type RedisConfig struct {
	Addr      string        `env:"REDIS_ADDR" yaml:"addr"`
	Password  string        `env:"REDIS_PASSWORD" yaml:"-"`
	Database  int           `env:"REDIS_DATABASE" yaml:"database" default:"0"`
	Timeout   time.Duration `env:"REDIS_TIMEOUT" yaml:"timeout" default:"5s"`
	KeyPrefix string        `env:"REDIS_KEY_PREFIX" yaml:"key_prefix" default:"concierge:"`
}

// Enabled returns true if a Redis address is configured
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}
