package config

import (
	"strings"
	"time"
)

// StoreBackend selects where the session token is persisted.
type StoreBackend string

const (
	StoreBackendRedis  StoreBackend = "redis"
	StoreBackendMemory StoreBackend = "memory"
)

// StoreConfig contains session token persistence configuration.
type StoreConfig struct {
	// Backend is redis or memory. Memory keeps the token only for the life of the process.
	Backend StoreBackend `env:"STORE_BACKEND" envDefault:"redis"`
	// TokenKey is the key the token is stored under.
	TokenKey string `env:"SESSION_TOKEN_KEY" envDefault:"authToken"`
	// KeyPrefix namespaces keys in Redis.
	KeyPrefix string `env:"SESSION_KEY_PREFIX" envDefault:"tokenlab:"`
	// TTL expires the persisted token in Redis; zero keeps it until cleared.
	TTL time.Duration `env:"SESSION_STORE_TTL" envDefault:"0s"`
}

// Sanitize normalizes the backend name and restores defaults for blank values.
func (c *StoreConfig) Sanitize() {
	c.Backend = StoreBackend(strings.ToLower(strings.TrimSpace(string(c.Backend))))
	if c.Backend != StoreBackendMemory {
		c.Backend = StoreBackendRedis
	}
	c.TokenKey = strings.TrimSpace(c.TokenKey)
	if c.TokenKey == "" {
		c.TokenKey = "authToken"
	}
	if c.TTL < 0 {
		c.TTL = 0
	}
}

// SessionConfig contains token inspector behavior.
type SessionConfig struct {
	// TickInterval is how often the expiry countdown refreshes.
	TickInterval time.Duration `env:"SESSION_TICK_INTERVAL" envDefault:"1s"`
	// BaselineOnLoad treats a decodable persisted token as the tamper reference at startup.
	BaselineOnLoad bool `env:"SESSION_BASELINE_ON_LOAD" envDefault:"false"`
	// PersistTimeout bounds each background write to the token store.
	PersistTimeout time.Duration `env:"SESSION_PERSIST_TIMEOUT" envDefault:"5s"`
}

// Sanitize clamps the tick interval to at least 100ms.
func (c *SessionConfig) Sanitize() {
	const minTick = 100 * time.Millisecond
	if c.TickInterval < minTick {
		c.TickInterval = minTick
	}
	if c.PersistTimeout <= 0 {
		c.PersistTimeout = 5 * time.Second
	}
}
