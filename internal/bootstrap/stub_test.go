package bootstrap

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/tokenlab/config"
	"github.com/target/tokenlab/internal/testutil"
)

func TestNewStubServer_RequiresSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Stub.JWTSecret = ""

	_, err := NewStubServer(context.Background(), StubOptions{Config: cfg})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token issuer")
}

func TestNewStubServer_RequiresConfig(t *testing.T) {
	_, err := NewStubServer(context.Background(), StubOptions{})
	require.Error(t, err)
}

func TestStubServer_ServeUntilCancelled(t *testing.T) {
	stub, err := NewStubServer(context.Background(), StubOptions{Config: testConfig()})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- stub.Serve(ctx, ln) }()

	url := "http://" + ln.Addr().String() + "/healthz"
	require.Eventually(t, func() bool {
		resp, getErr := http.Get(url) //nolint:noctx // test probe
		if getErr != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	require.NoError(t, stub.Close())
}

func TestStubServer_ListenError(t *testing.T) {
	stub, err := NewStubServer(context.Background(), StubOptions{Config: testConfig()})
	require.NoError(t, err)

	err = stub.ListenAndServe(context.Background(), "127.0.0.1:notaport")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listen 127.0.0.1:notaport")
}

func TestNewStubServer_Postgres(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testConfig()
	cfg.Stub.UserStore = config.UserStorePostgres
	cfg.Postgres.RunMigrationsOnStart = true

	stub, err := NewStubServer(context.Background(), StubOptions{Config: cfg, DB: db})
	require.NoError(t, err)
	require.NoError(t, stub.Close())
}
