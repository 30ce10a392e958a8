package config

import (
	"strings"
	"time"
)

// UserStore selects where the auth stub keeps accounts.
type UserStore string

const (
	UserStoreMemory   UserStore = "memory"
	UserStorePostgres UserStore = "postgres"
)

// StubConfig contains the local auth stub server configuration.
type StubConfig struct {
	Addr string `env:"STUB_ADDR" envDefault:":8081"`
	// JWTSecret signs issued tokens with HS256. Required; there is no default secret.
	JWTSecret string        `env:"STUB_JWT_SECRET"`
	TokenTTL  time.Duration `env:"STUB_TOKEN_TTL"  envDefault:"1h"`
	UserStore UserStore     `env:"STUB_USER_STORE" envDefault:"memory"`
	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `env:"STUB_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Sanitize normalizes the user store and enforces positive durations.
func (c *StubConfig) Sanitize() {
	c.UserStore = UserStore(strings.ToLower(strings.TrimSpace(string(c.UserStore))))
	if c.UserStore != UserStorePostgres {
		c.UserStore = UserStoreMemory
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = time.Hour
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}
