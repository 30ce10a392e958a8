// Package ports defines interfaces (hexagonal ports) for the session engine's collaborators.
// Implementations live in internal/adapters; orchestration in internal/service.
package ports

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/target/tokenlab/internal/domain/auth"
)

// KeyValueStore persists small string values such as the session token.
type KeyValueStore interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// AuthAPI is the remote authentication/profile service.
type AuthAPI interface {
	Register(ctx context.Context, in domainauth.Registration) (domainauth.Response, error)
	Login(ctx context.Context, in domainauth.Credentials) (domainauth.Response, error)
	// Profile and AdminDashboard send token verbatim as a bearer credential.
	Profile(ctx context.Context, token string) (domainauth.Response, error)
	AdminDashboard(ctx context.Context, token string) (domainauth.Response, error)
}

// Clock supplies wall-clock readings.
type Clock interface {
	Now() time.Time
}

// ErrUserNotFound is returned by UserRepository lookups that match nothing.
var ErrUserNotFound = errors.New("user not found")

// ErrEmailTaken is returned by UserRepository.Create for a duplicate email.
var ErrEmailTaken = errors.New("email already registered")

// UserRepository stores accounts for the local auth stub.
type UserRepository interface {
	Create(ctx context.Context, u domainauth.User) error
	FindByEmail(ctx context.Context, email string) (domainauth.User, error)
}
