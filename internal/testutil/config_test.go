package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/tokenlab/internal/domain/token"
)

func TestDefaultTestDBConfig(t *testing.T) {
	t.Run("defaults to local test database port 55432", func(t *testing.T) {
		t.Setenv("TEST_DB_HOST", "")
		t.Setenv("TEST_DB_PORT", "")
		t.Setenv("TEST_DB_USER", "")

		cfg := DefaultTestDBConfig()
		assert.Equal(t, "localhost", cfg.Host)
		assert.Equal(t, "55432", cfg.Port)
		assert.Equal(t, "tokenlab", cfg.User)
	})

	t.Run("respects TEST_DB_PORT environment variable", func(t *testing.T) {
		t.Setenv("TEST_DB_PORT", "5432")
		t.Setenv("DB_SSL_MODE", "")

		cfg := DefaultTestDBConfig()
		assert.Equal(t, "5432", cfg.Port)
		assert.Contains(t, cfg.DSN(), "localhost:5432")
		assert.Contains(t, cfg.DSN(), "sslmode=disable")
	})
}

func TestTokenBuilder(t *testing.T) {
	t.Run("default token decodes with lifetime and role", func(t *testing.T) {
		claims, err := token.Decode(NewToken().Build())
		require.NoError(t, err)

		role, ok := claims.Role()
		require.True(t, ok)
		assert.Equal(t, token.RoleUser, role)

		iat, _ := claims.IssuedAt()
		exp, _ := claims.ExpiresAt()
		assert.Equal(t, int64(3600), exp-iat)
	})

	t.Run("overrides apply", func(t *testing.T) {
		issued := TestTime().Add(time.Minute)
		claims, err := token.Decode(NewToken().
			WithRole(token.RoleAdmin).
			WithLifetime(issued, 10*time.Second).
			Without("sub").
			Build())
		require.NoError(t, err)

		role, _ := claims.Role()
		assert.Equal(t, token.RoleAdmin, role)
		exp, _ := claims.ExpiresAt()
		assert.Equal(t, issued.Unix()+10, exp)
		assert.NotContains(t, claims, "sub")
	})
}

func TestSetupMiniRedis(t *testing.T) {
	mr, client := SetupMiniRedis(t)
	require.NoError(t, client.Set(t.Context(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}
