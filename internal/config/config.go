// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor
// principles, with an optional .env file for local development.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/smartlink/smartlink/internal/auth"
)

// minChallengeSecretLen keeps the HMAC key out of brute-force range.
const minChallengeSecretLen = 16

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache and audit stream (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Public origin for short, safe and challenge URLs (e.g., https://go.example)
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Per-IP rate limiting on the public short-link routes
	RateLimitRedirectEnabled bool `env:"RATE_LIMIT_REDIRECT_ENABLED" envDefault:"true"`
	RateLimitRedirectRPS     int  `env:"RATE_LIMIT_REDIRECT_RPS" envDefault:"100"`
	RateLimitRedirectBurst   int  `env:"RATE_LIMIT_REDIRECT_BURST" envDefault:"20"`

	// Management API. An empty hash disables /api/v1 entirely.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`

	// JavaScript challenge
	ChallengeSecret string        `env:"CHALLENGE_SECRET,required"`
	ChallengeTTL    time.Duration `env:"CHALLENGE_TTL" envDefault:"5m"`

	// Audit pipeline
	AuditWorkerEnabled bool `env:"AUDIT_WORKER_ENABLED" envDefault:"true"`
	AuditBatchSize     int  `env:"AUDIT_BATCH_SIZE" envDefault:"500"`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AdminAPIEnabled reports whether the management API should be mounted.
func (c *Config) AdminAPIEnabled() bool {
	return c.AdminTokenHash != ""
}

// Validate checks values env tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("BASE_URL must be an absolute http(s) URL, got %q", c.BaseURL))
	}
	if len(c.ChallengeSecret) < minChallengeSecretLen {
		errs = append(errs, fmt.Errorf("CHALLENGE_SECRET must be at least %d bytes", minChallengeSecretLen))
	}
	if c.ChallengeTTL <= 0 {
		errs = append(errs, errors.New("CHALLENGE_TTL must be positive"))
	}
	if c.AuditBatchSize <= 0 {
		errs = append(errs, errors.New("AUDIT_BATCH_SIZE must be positive"))
	}
	if c.RateLimitRedirectEnabled && (c.RateLimitRedirectRPS <= 0 || c.RateLimitRedirectBurst <= 0) {
		errs = append(errs, errors.New("RATE_LIMIT_REDIRECT_RPS and RATE_LIMIT_REDIRECT_BURST must be positive"))
	}
	if c.AdminTokenHash != "" {
		if err := auth.ValidateHash(c.AdminTokenHash); err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_TOKEN_HASH: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Load reads the optional dotenv files (default ".env"), parses environment
// variables and validates the result. Variables already set in the
// environment win over dotenv values; a missing dotenv file is not an error.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
