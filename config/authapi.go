package config

import (
	"strings"
	"time"
)

const defaultAuthAPITimeout = 10 * time.Second

// AuthAPIConfig contains the remote auth service client configuration.
type AuthAPIConfig struct {
	// BaseURL is the scheme and host of the auth service, without a trailing path.
	BaseURL string        `env:"AUTH_API_BASE_URL" envDefault:"http://localhost:8081"`
	Timeout time.Duration `env:"AUTH_API_TIMEOUT"  envDefault:"10s"`
}

// Sanitize trims the base URL and enforces a positive timeout.
func (c *AuthAPIConfig) Sanitize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.Timeout <= 0 {
		c.Timeout = defaultAuthAPITimeout
	}
}
