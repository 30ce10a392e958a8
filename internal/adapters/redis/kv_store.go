// Package redis provides Redis-based adapters for tokenlab.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/tokenlab/internal/ports"
)

var _ ports.KeyValueStore = (*KeyValueStore)(nil)

// DefaultPrefix namespaces tokenlab keys in a shared Redis.
const DefaultPrefix = "tokenlab:"

// KeyValueStore is a Redis-backed ports.KeyValueStore.
// Values are stored as plain strings; a zero TTL keeps them until removed.
type KeyValueStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// KeyValueStoreOptions configures a KeyValueStore.
type KeyValueStoreOptions struct {
	Prefix string
	TTL    time.Duration
}

// NewKeyValueStore creates a Redis key-value store using DefaultPrefix.
func NewKeyValueStore(client redis.UniversalClient) *KeyValueStore {
	return NewKeyValueStoreWithOptions(client, KeyValueStoreOptions{Prefix: DefaultPrefix})
}

// NewKeyValueStoreWithOptions creates a Redis key-value store with a custom prefix and TTL.
func NewKeyValueStoreWithOptions(client redis.UniversalClient, opts KeyValueStoreOptions) *KeyValueStore {
	ttl := opts.TTL
	if ttl < 0 {
		ttl = 0
	}
	return &KeyValueStore{
		client: client,
		prefix: opts.Prefix,
		ttl:    ttl,
	}
}

func (s *KeyValueStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == "" {
		return "", false, ErrEmptyKey
	}

	val, err := s.client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return val, true, nil
}

func (s *KeyValueStore) Set(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if err := s.client.Set(ctx, s.prefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (s *KeyValueStore) Remove(ctx context.Context, key string) error {
	if key == "" {
		return nil // Nothing to remove
	}
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

// ErrEmptyKey is returned when a read or write is attempted without a key.
var ErrEmptyKey = errors.New("key cannot be empty")
