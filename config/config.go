package config

import (
	"log/slog"
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - authapi.go: Remote auth service client configuration
//   - session.go: Session token storage and inspector configuration
//   - database.go: Redis and PostgreSQL configuration
//   - stub.go: Local auth stub server configuration
type AppConfig struct {
	// IsDev controls development mode behavior (text logs, debug level unless LOG_LEVEL is set).
	// Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error. Empty means info, or debug in dev mode.
	LogLevel string `env:"LOG_LEVEL"`

	// Remote auth service client configuration
	AuthAPI AuthAPIConfig

	// Session token storage and inspector configuration
	Store   StoreConfig
	Session SessionConfig

	// Backing stores
	Redis    RedisConfig `envPrefix:"REDIS_"`
	Postgres DBConfig    `envPrefix:"DB_"`

	// Local auth stub server configuration
	Stub StubConfig
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.AuthAPI.Sanitize()
	c.Store.Sanitize()
	c.Session.Sanitize()
	c.Stub.Sanitize()

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.detectDevMode()
}

// SlogLevel maps LogLevel to a slog.Level; unknown values fall back to info.
// An unset level defaults to debug in dev mode.
func (c *AppConfig) SlogLevel() slog.Level {
	var level slog.Level
	switch c.LogLevel {
	case "":
		level = slog.LevelInfo
		if c.IsDev {
			level = slog.LevelDebug
		}
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return level
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
