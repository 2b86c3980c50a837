// Package config handles loading application configuration from environment variables.
// All settings have sensible defaults for local development.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/hay-kot/criterio"
	"github.com/joho/godotenv"
)

// Config holds all application settings loaded from environment variables.
type Config struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	DatabasePath       string        `env:"DATABASE_PATH" envDefault:"./commune.db"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"change-me-in-production"` // #nosec G101 -- intentional dev default
	TokenDuration      time.Duration `env:"TOKEN_DURATION" envDefault:"168h"`
	CookieSecure       bool          `env:"COOKIE_SECURE" envDefault:"false"`
	RateLimitPerMinute int           `env:"RATE_LIMIT_PER_MINUTE" envDefault:"10"`
	CORSAllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://localhost:5173" envSeparator:","`
	TrustedProxies     []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	// Real-time channels
	HeartbeatInterval time.Duration `env:"SSE_HEARTBEAT_INTERVAL" envDefault:"30s"`
	StreamBufferSize  int           `env:"SSE_BUFFER_SIZE" envDefault:"256"`
	ChatHistorySize   int           `env:"CHAT_HISTORY_SIZE" envDefault:"100"`

	// Cross-instance relay; empty RedisURL keeps fan-out process-local.
	RedisURL   string `env:"REDIS_URL"`
	InstanceID string `env:"INSTANCE_ID"`

	// Bootstrap administrator, created or promoted at startup when both are set.
	AdminEmail    string `env:"ADMIN_EMAIL"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
	AdminName     string `env:"ADMIN_NAME" envDefault:"Admin"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryDSNFrontend string `env:"SENTRY_DSN_FRONTEND"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"production"`
}

// Load reads an optional .env file, then parses the environment into a
// Config and validates it.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that have no safe fallback.
func (c *Config) Validate() error {
	var errs criterio.FieldErrorsBuilder

	if c.Port == "" {
		errs = errs.Append("PORT", errors.New("must not be empty"))
	}
	if c.DatabasePath == "" {
		errs = errs.Append("DATABASE_PATH", errors.New("must not be empty"))
	}
	if c.JWTSecret == "" {
		errs = errs.Append("JWT_SECRET", errors.New("must not be empty"))
	}
	if c.TokenDuration <= 0 {
		errs = errs.Append("TOKEN_DURATION", errors.New("must be positive"))
	}
	if c.RateLimitPerMinute < 1 {
		errs = errs.Append("RATE_LIMIT_PER_MINUTE", errors.New("must be at least 1"))
	}
	if c.HeartbeatInterval <= 0 {
		errs = errs.Append("SSE_HEARTBEAT_INTERVAL", errors.New("must be positive"))
	}
	if c.StreamBufferSize < c.ChatHistorySize {
		errs = errs.Append("SSE_BUFFER_SIZE", fmt.Errorf("must hold the chat history (%d)", c.ChatHistorySize))
	}
	if c.ChatHistorySize < 1 {
		errs = errs.Append("CHAT_HISTORY_SIZE", errors.New("must be at least 1"))
	}
	if (c.AdminEmail == "") != (c.AdminPassword == "") {
		errs = errs.Append("ADMIN_EMAIL", errors.New("ADMIN_EMAIL and ADMIN_PASSWORD must be set together"))
	}

	return errs.ToError()
}
