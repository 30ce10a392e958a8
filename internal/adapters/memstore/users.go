package memstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	domainauth "github.com/target/tokenlab/internal/domain/auth"
	"github.com/target/tokenlab/internal/ports"
)

var _ ports.UserRepository = (*UserRepo)(nil)

// UserRepo is an in-memory ports.UserRepository keyed by lower-cased email.
type UserRepo struct {
	mu    sync.RWMutex
	users map[string]domainauth.User
}

// NewUserRepo creates an empty UserRepo.
func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]domainauth.User)}
}

func (r *UserRepo) Create(_ context.Context, u domainauth.User) error {
	key := strings.ToLower(u.Email)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[key]; exists {
		return fmt.Errorf("create user %s: %w", u.Email, ports.ErrEmailTaken)
	}
	r.users[key] = u
	return nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (domainauth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[strings.ToLower(email)]
	if !ok {
		return domainauth.User{}, ports.ErrUserNotFound
	}
	return u, nil
}
