// Package mocks provides mock implementations of the tokenlab ports for tests.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for the port interfaces.
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	store := mocks.NewMockKeyValueStore(ctrl)
//	store.EXPECT().Set(gomock.Any(), "authToken", gomock.Any()).Return(nil)
package mocks

// Generate mock for KeyValueStore interface from internal/ports package.
// This creates MockKeyValueStore with methods: Get, Set, Remove
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=key_value_store_mock.go github.com/target/tokenlab/internal/ports KeyValueStore

// Generate mock for AuthAPI interface from internal/ports package.
// This creates MockAuthAPI with methods: Register, Login, Profile, AdminDashboard
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_api_mock.go github.com/target/tokenlab/internal/ports AuthAPI

// Generate mock for UserRepository interface from internal/ports package.
// This creates MockUserRepository with methods: Create, FindByEmail
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=user_repository_mock.go github.com/target/tokenlab/internal/ports UserRepository
