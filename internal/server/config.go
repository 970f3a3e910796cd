// Package server provides configuration helpers that define runtime
// defaults, validation, and rate-limiting parameters for the GrooveChat
// service.
package server

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `envconfig:"RATE_LIMIT_BURST" default:"5"`
	RefillInterval time.Duration `envconfig:"RATE_LIMIT_REFILL_INTERVAL" default:"1s"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port           string          `envconfig:"SERVER_PORT" default:":8080"`
	AllowedOrigins []string        `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:8080"`
	MaxMessageSize int64           `envconfig:"MAX_MESSAGE_SIZE" default:"512"`
	Rooms          []string        `envconfig:"CHAT_ROOMS"`
	StaticDir      string          `envconfig:"STATIC_DIR" default:"public"`
	RateLimit      RateLimitConfig
}

// NewConfig creates a Config instance populated with default values for all
// settings.
func NewConfig() *Config {
	cfg := &Config{
		Port:           ":8080",
		AllowedOrigins: []string{"http://localhost:8080"},
		MaxMessageSize: 512,
		StaticDir:      "public",
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
	}
	return cfg
}

// LoadConfig populates a Config from environment variables, falling back to
// defaults for anything unset, and sanitizes the result.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	sanitizeConfig(&cfg)
	return &cfg, nil
}

// sanitizeConfig clamps unusable values back to their defaults so a bad
// environment never produces a server that cannot accept messages.
func sanitizeConfig(cfg *Config) {
	if cfg.Port == "" {
		cfg.Port = ":8080"
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = 5
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = time.Second
	}
	if cfg.StaticDir == "" {
		cfg.StaticDir = "public"
	}
}
