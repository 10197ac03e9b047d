package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// RelayConfig holds the relay server configuration.
type RelayConfig struct {
	Addr            string        `env:"RELAY_ADDR" json:"addr"`
	MaxConnections  int           `env:"RELAY_MAX_CONNECTIONS" json:"max_connections"`
	MaxQueuedTurns  int           `env:"RELAY_MAX_QUEUED_TURNS" json:"max_queued_turns"`
	PingInterval    time.Duration `env:"RELAY_PING_INTERVAL" json:"ping_interval"`
	WriteTimeout    time.Duration `env:"RELAY_WRITE_TIMEOUT" json:"write_timeout"`
	ReadBufferSize  int           `env:"RELAY_READ_BUFFER_SIZE" json:"read_buffer_size"`
	WriteBufferSize int           `env:"RELAY_WRITE_BUFFER_SIZE" json:"write_buffer_size"`
	LogLevel        string        `env:"RELAY_LOG_LEVEL" json:"log_level"`
	LogPretty       bool          `env:"RELAY_LOG_PRETTY" json:"log_pretty"`
	// AdminKey enables the admin routes when set.
	AdminKey string `env:"RELAY_ADMIN_KEY" json:"-"`

	Store StoreConfig `json:"store"`
	Auth  AuthConfig  `json:"auth"`
	AI    AIConfig    `json:"ai"`
}

// StoreConfig selects the message store driver.
type StoreConfig struct {
	Driver      string `env:"RELAY_STORE_DRIVER" json:"driver"` // sqlite, postgres, mysql, redis
	DSN         string `env:"RELAY_STORE_DSN" json:"-"`
	RedisPrefix string `env:"RELAY_REDIS_PREFIX" json:"redis_prefix"`
}

// AuthConfig configures token signing.
type AuthConfig struct {
	Secret   string        `env:"RELAY_JWT_SECRET" json:"-"`
	TokenTTL time.Duration `env:"RELAY_TOKEN_TTL" json:"token_ttl"`
}

// AIConfig selects the reply generator.
type AIConfig struct {
	Provider  string        `env:"RELAY_AI_PROVIDER" json:"provider"` // mock, openai
	Model     string        `env:"RELAY_AI_MODEL" json:"model"`
	APIKey    string        `env:"RELAY_AI_API_KEY" json:"-"`
	BaseURL   string        `env:"RELAY_AI_BASE_URL" json:"base_url"`
	CharDelay time.Duration `env:"RELAY_AI_CHAR_DELAY" json:"char_delay"`
}

// DefaultConfig returns the default relay configuration.
func DefaultConfig() *RelayConfig {
	return &RelayConfig{
		Addr:            ":3333",
		MaxConnections:  1000,
		MaxQueuedTurns:  16,
		PingInterval:    30 * time.Second,
		WriteTimeout:    10 * time.Second,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		LogLevel:        "info",
		Store: StoreConfig{
			Driver:      "sqlite",
			DSN:         "relay.db",
			RedisPrefix: "relay",
		},
		Auth: AuthConfig{
			TokenTTL: 30 * 24 * time.Hour,
		},
		AI: AIConfig{
			Provider: "mock",
			Model:    "gpt-4o-mini",
		},
	}
}

// Load overlays environment variables on top of DefaultConfig.
func Load() (*RelayConfig, error) {
	cfg := DefaultConfig()
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings the server cannot start with.
func (c *RelayConfig) Validate() error {
	if c.Auth.Secret == "" {
		return fmt.Errorf("RELAY_JWT_SECRET is required")
	}
	if c.MaxQueuedTurns <= 0 {
		return fmt.Errorf("max queued turns must be positive, got %d", c.MaxQueuedTurns)
	}
	if c.PingInterval <= 0 {
		return fmt.Errorf("ping interval must be positive, got %s", c.PingInterval)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "mysql", "redis":
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.AI.Provider {
	case "mock":
	case "openai":
		if c.AI.APIKey == "" {
			return fmt.Errorf("RELAY_AI_API_KEY is required for provider openai")
		}
	default:
		return fmt.Errorf("unknown ai provider %q", c.AI.Provider)
	}
	return nil
}
