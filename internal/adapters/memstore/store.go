// Package memstore provides a process-local key-value store. It backs the
// interactive shell when no Redis is configured and stands in for Redis in tests.
package memstore

import (
	"context"
	"sync"

	"github.com/target/tokenlab/internal/ports"
)

var _ ports.KeyValueStore = (*Store)(nil)

// Store is an in-memory ports.KeyValueStore.
type Store struct {
	mu     sync.RWMutex
	values map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *Store) Set(_ context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *Store) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}
