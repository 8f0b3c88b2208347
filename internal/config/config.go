// Package config loads and validates the server configuration from the
// environment, with an optional .env file for development.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/asesson/job-Application-Tracker/internal/validator"
)

var (
	ErrMissingConfig     = errors.New("missing required configuration")
	ErrInvalidConfig     = errors.New("invalid configuration value")
	ErrSessionSecretSize = errors.New("session secret must be at least 32 characters")
	ErrValidationFailed  = errors.New("configuration validation failed")
)

// Environment represents the deployment environment.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration.
type Config struct {
	Server       ServerConfig
	OIDC         OIDCConfig
	Security     SecurityConfig
	Database     DatabaseConfig
	Google       GoogleConfig
	RateLimiting RateLimitConfig
	Sync         SyncConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        int
	BaseURL     string
	Environment Environment
}

// OIDCConfig holds the login provider settings.
type OIDCConfig struct {
	Issuer       string
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// SecurityConfig holds security-related configuration.
type SecurityConfig struct {
	SessionSecret string
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string
}

// GoogleConfig holds the Google Calendar OAuth application credentials
// and the timezone stamped on timed events pushed to Google.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TimeZone     string
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RPS   float64
	Burst int
}

// SyncConfig bounds the advisory auto-sync interval users may configure.
type SyncConfig struct {
	MinInterval int
	MaxInterval int
}

// envReader accumulates the names of required variables that were absent so
// Load can report them all at once.
type envReader struct {
	missing []string
}

func (r *envReader) required(key string) string {
	v := os.Getenv(key)
	if v == "" {
		r.missing = append(r.missing, key)
	}
	return v
}

func (r *envReader) optional(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (r *envReader) intVal(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return n, nil
}

func (r *envReader) floatVal(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrInvalidConfig, key, err)
	}
	return f, nil
}

// Load reads the configuration from the environment. A .env file is merged
// in first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var (
		env envReader
		cfg Config
		err error
	)

	if cfg.Server.Port, err = env.intVal("PORT", 8080); err != nil {
		return nil, err
	}
	cfg.Server.BaseURL = env.required("BASE_URL")
	cfg.Server.Environment = Environment(strings.ToLower(env.optional("ENVIRONMENT", "production")))

	cfg.OIDC.Issuer = env.required("OIDC_ISSUER")
	cfg.OIDC.ClientID = env.required("OIDC_CLIENT_ID")
	cfg.OIDC.ClientSecret = env.required("OIDC_CLIENT_SECRET")
	cfg.OIDC.RedirectURL = env.required("OIDC_REDIRECT_URL")

	cfg.Security.SessionSecret = env.required("SESSION_SECRET")
	if cfg.Security.SessionSecret != "" && len(cfg.Security.SessionSecret) < 32 {
		return nil, ErrSessionSecretSize
	}

	cfg.Database.Path = env.optional("DATABASE_PATH", "./data/jobtracker.db")

	cfg.Google.ClientID = env.required("GOOGLE_CLIENT_ID")
	cfg.Google.ClientSecret = env.required("GOOGLE_CLIENT_SECRET")
	cfg.Google.RedirectURL = env.optional("GOOGLE_REDIRECT_URL",
		strings.TrimSuffix(cfg.Server.BaseURL, "/")+"/api/google/callback")
	cfg.Google.TimeZone = env.optional("GOOGLE_CALENDAR_TIMEZONE", "UTC")

	if cfg.RateLimiting.RPS, err = env.floatVal("RATE_LIMIT_RPS", 10.0); err != nil {
		return nil, err
	}
	if cfg.RateLimiting.Burst, err = env.intVal("RATE_LIMIT_BURST", 20); err != nil {
		return nil, err
	}

	// Minutes.
	if cfg.Sync.MinInterval, err = env.intVal("MIN_SYNC_INTERVAL", 15); err != nil {
		return nil, err
	}
	if cfg.Sync.MaxInterval, err = env.intVal("MAX_SYNC_INTERVAL", 1440); err != nil {
		return nil, err
	}

	if len(env.missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, strings.Join(env.missing, ", "))
	}

	return &cfg, nil
}

// Validate checks the configured URLs and probes the OIDC issuer's
// discovery endpoint. Development relaxes the HTTPS and private-address
// restrictions so local issuers work.
func (c *Config) Validate(ctx context.Context) error {
	var opts []validator.Option
	if c.IsDevelopment() {
		opts = append(opts, validator.WithAllowPrivateIPs())
	}
	v := validator.New(opts...)

	urls := []struct {
		name  string
		value string
	}{
		{"BASE_URL", c.Server.BaseURL},
		{"OIDC_REDIRECT_URL", c.OIDC.RedirectURL},
		{"GOOGLE_REDIRECT_URL", c.Google.RedirectURL},
	}
	for _, u := range urls {
		if err := v.ValidateURL(u.value, c.IsProduction()); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrValidationFailed, u.name, err)
		}
	}

	if err := v.ValidateOIDCIssuer(ctx, c.OIDC.Issuer); err != nil {
		return fmt.Errorf("%w: OIDC_ISSUER: %w", ErrValidationFailed, err)
	}

	return nil
}

// ClampSyncInterval bounds a requested auto-sync interval to the
// configured range.
func (c *Config) ClampSyncInterval(minutes int) int {
	if minutes < c.Sync.MinInterval {
		return c.Sync.MinInterval
	}
	if minutes > c.Sync.MaxInterval {
		return c.Sync.MaxInterval
	}
	return minutes
}

// IsDevelopment reports whether the server runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Environment == EnvDevelopment
}

// IsProduction reports whether the server runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Environment == EnvProduction
}
