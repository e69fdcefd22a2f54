// Package config loads server configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds application configuration. Timer values default to the
// engine's standard windows; only load tests should override them.
type Config struct {
	Port      string `env:"PORT" envDefault:"8010"`
	RedisURL  string `env:"REDIS_URL"` // empty disables the snapshot mirror
	JWTSecret string `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`

	ActionTimeoutMs      int64 `env:"ACTION_TIMEOUT_MS" envDefault:"10000"`
	DeathChoiceTimeoutMs int64 `env:"DEATH_CHOICE_TIMEOUT_MS" envDefault:"5000"`
	DraftTimeoutMs       int64 `env:"DRAFT_TIMEOUT_MS" envDefault:"60000"`
	GracePeriodMs        int64 `env:"GRACE_PERIOD_MS" envDefault:"500"`
}

// Load parses configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}
