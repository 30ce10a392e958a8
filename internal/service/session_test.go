package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/tokenlab/internal/adapters/memstore"
	"github.com/target/tokenlab/internal/domain/token"
	"github.com/target/tokenlab/internal/mocks"
	"github.com/target/tokenlab/internal/ports"
	"github.com/target/tokenlab/internal/testutil"
	"go.uber.org/mock/gomock"
)

func newTestSession(t *testing.T, store ports.KeyValueStore, baseline bool) *SessionStore {
	t.Helper()
	s := NewSessionStore(SessionStoreOptions{Store: store, BaselineOnLoad: baseline})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

// flush waits for background writes to reach the store.
func flush(t *testing.T, s *SessionStore) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Close(ctx))
}

func storedToken(t *testing.T, store ports.KeyValueStore) (string, bool) {
	t.Helper()
	v, ok, err := store.Get(context.Background(), DefaultTokenKey)
	require.NoError(t, err)
	return v, ok
}

func TestSessionStore_StartsEmpty(t *testing.T) {
	s := newTestSession(t, memstore.New(), false)

	snap := s.Snapshot()
	assert.Equal(t, StateEmpty, snap.State)
	assert.False(t, snap.HasToken())
	assert.False(t, snap.Tampered)
	assert.Nil(t, snap.Claims)
}

func TestSessionStore_Establish(t *testing.T) {
	t.Run("decodable token becomes the reference", func(t *testing.T) {
		store := memstore.New()
		s := newTestSession(t, store, false)
		tok := testutil.NewToken().Build()

		snap, err := s.Establish(tok)
		require.NoError(t, err)
		assert.Equal(t, StateActive, snap.State)
		assert.Equal(t, tok, snap.Token)
		assert.Equal(t, tok, snap.Original)
		assert.False(t, snap.Tampered)
		role, _ := snap.Claims.Role()
		assert.Equal(t, token.RoleUser, role)

		flush(t, s)
		got, ok := storedToken(t, store)
		require.True(t, ok)
		assert.Equal(t, tok, got)
	})

	t.Run("second login keeps the first reference", func(t *testing.T) {
		s := newTestSession(t, memstore.New(), false)
		first := testutil.NewToken().Build()
		_, err := s.Establish(first)
		require.NoError(t, err)
		_, err = s.CorruptSignature()
		require.NoError(t, err)

		fresh := testutil.NewToken().WithSubject("second@example.com").Build()
		snap, err := s.Establish(fresh)
		require.NoError(t, err)
		assert.Equal(t, fresh, snap.Token)
		assert.Equal(t, first, snap.Original)
		assert.True(t, snap.Tampered)
	})

	t.Run("login after clear takes a new reference", func(t *testing.T) {
		s := newTestSession(t, memstore.New(), false)
		_, err := s.Establish(testutil.NewToken().Build())
		require.NoError(t, err)
		s.Clear()

		fresh := testutil.NewToken().WithSubject("second@example.com").Build()
		snap, err := s.Establish(fresh)
		require.NoError(t, err)
		assert.Equal(t, fresh, snap.Original)
		assert.False(t, snap.Tampered)
	})

	t.Run("undecodable token is active without a reference", func(t *testing.T) {
		s := newTestSession(t, memstore.New(), false)

		snap, err := s.Establish("not-a-jwt")
		require.NoError(t, err)
		assert.Equal(t, StateActive, snap.State)
		assert.Empty(t, snap.Original)
		assert.False(t, snap.Decodable())
		assert.ErrorIs(t, snap.DecodeErr, token.ErrUndecodableToken)
	})

	t.Run("empty token is rejected", func(t *testing.T) {
		s := newTestSession(t, memstore.New(), false)
		snap, err := s.Establish("")
		require.Error(t, err)
		assert.Equal(t, StateEmpty, snap.State)
	})
}

func TestSessionStore_CorruptSignature(t *testing.T) {
	s := newTestSession(t, memstore.New(), false)
	tok := testutil.NewToken().Build()
	_, err := s.Establish(tok)
	require.NoError(t, err)

	snap, err := s.CorruptSignature()
	require.NoError(t, err)
	assert.Equal(t, StateTampered, snap.State)
	assert.True(t, snap.Tampered)
	assert.True(t, strings.HasSuffix(snap.Token, token.SignatureSentinel))
	assert.Len(t, snap.Token, len(tok))
	assert.True(t, snap.Decodable(), "payload segment is untouched")

	t.Run("without a token it is a no-op", func(t *testing.T) {
		empty := newTestSession(t, memstore.New(), false)
		snap, err := empty.CorruptSignature()
		require.ErrorIs(t, err, token.ErrNoOpTamper)
		assert.Equal(t, StateEmpty, snap.State)
	})
}

func TestSessionStore_SwapRole(t *testing.T) {
	t.Run("toggles role and keeps header and signature", func(t *testing.T) {
		s := newTestSession(t, memstore.New(), false)
		tok := testutil.NewToken().Build()
		_, err := s.Establish(tok)
		require.NoError(t, err)

		snap, err := s.SwapRole()
		require.NoError(t, err)
		assert.True(t, snap.Tampered)
		role, _ := snap.Claims.Role()
		assert.Equal(t, token.RoleAdmin, role)

		before := strings.Split(tok, ".")
		after := strings.Split(snap.Token, ".")
		require.Len(t, after, 3)
		assert.Equal(t, before[0], after[0])
		assert.Equal(t, before[2], after[2])
		assert.NotEqual(t, before[1], after[1])

		snap, err = s.SwapRole()
		require.NoError(t, err)
		role, _ = snap.Claims.Role()
		assert.Equal(t, token.RoleUser, role)
	})

	t.Run("token without role is a no-op", func(t *testing.T) {
		s := newTestSession(t, memstore.New(), false)
		tok := testutil.NewToken().Without("role").Build()
		_, err := s.Establish(tok)
		require.NoError(t, err)

		snap, err := s.SwapRole()
		require.ErrorIs(t, err, token.ErrNoOpTamper)
		assert.Equal(t, tok, snap.Token)
		assert.Equal(t, StateActive, snap.State)
	})

	t.Run("malformed token is a no-op", func(t *testing.T) {
		s := newTestSession(t, memstore.New(), false)
		s.Replace("not-a-jwt")

		_, err := s.SwapRole()
		require.ErrorIs(t, err, token.ErrNoOpTamper)
	})
}

func TestSessionStore_Replace(t *testing.T) {
	s := newTestSession(t, memstore.New(), false)
	tok := testutil.NewToken().Build()
	_, err := s.Establish(tok)
	require.NoError(t, err)

	snap := s.Replace("garbage")
	assert.Equal(t, StateTampered, snap.State)
	assert.False(t, snap.Decodable())

	snap = s.Replace(tok)
	assert.Equal(t, StateActive, snap.State, "identical token is not tampered")
	assert.False(t, snap.Tampered)

	snap = s.Replace("")
	assert.Equal(t, StateEmpty, snap.State)
	assert.Empty(t, snap.Original)
}

func TestSessionStore_Restore(t *testing.T) {
	s := newTestSession(t, memstore.New(), false)

	_, err := s.Restore()
	require.ErrorIs(t, err, token.ErrNoOpTamper)

	tok := testutil.NewToken().Build()
	_, err = s.Establish(tok)
	require.NoError(t, err)
	_, err = s.SwapRole()
	require.NoError(t, err)

	snap, err := s.Restore()
	require.NoError(t, err)
	assert.Equal(t, tok, snap.Token)
	assert.Equal(t, StateActive, snap.State)
}

func TestSessionStore_ClearAndLogout(t *testing.T) {
	for name, drop := range map[string]func(*SessionStore) Snapshot{
		"clear":  (*SessionStore).Clear,
		"logout": (*SessionStore).Logout,
	} {
		t.Run(name, func(t *testing.T) {
			store := memstore.New()
			s := newTestSession(t, store, false)
			_, err := s.Establish(testutil.NewToken().Build())
			require.NoError(t, err)

			snap := drop(s)
			assert.Equal(t, StateEmpty, snap.State)
			assert.Empty(t, snap.Token)
			assert.Empty(t, snap.Original)
			assert.False(t, snap.Tampered)

			flush(t, s)
			_, ok := storedToken(t, store)
			assert.False(t, ok)
		})
	}
}

func TestSessionStore_Load(t *testing.T) {
	tok := testutil.NewToken().Build()

	tests := []struct {
		name         string
		stored       string
		baseline     bool
		wantState    SessionState
		wantOriginal string
		wantDecoded  bool
	}{
		{name: "nothing stored", wantState: StateEmpty},
		{name: "decodable without baseline", stored: tok, wantState: StateActive, wantDecoded: true},
		{
			name: "decodable with baseline", stored: tok, baseline: true,
			wantState: StateActive, wantOriginal: tok, wantDecoded: true,
		},
		{name: "undecodable with baseline", stored: "not-a-jwt", baseline: true, wantState: StateActive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memstore.New()
			if tt.stored != "" {
				require.NoError(t, store.Set(context.Background(), DefaultTokenKey, tt.stored))
			}
			s := newTestSession(t, store, tt.baseline)

			require.NoError(t, s.Load(context.Background()))
			snap := s.Snapshot()
			assert.Equal(t, tt.wantState, snap.State)
			assert.Equal(t, tt.stored, snap.Token)
			assert.Equal(t, tt.wantOriginal, snap.Original)
			assert.Equal(t, tt.wantDecoded, snap.Decodable())
			assert.False(t, snap.Tampered)
		})
	}
}

func TestSessionStore_LoadFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockKeyValueStore(ctrl)
	store.EXPECT().Get(gomock.Any(), DefaultTokenKey).Return("", false, errors.New("connection refused"))

	s := newTestSession(t, store, false)
	err := s.Load(context.Background())
	require.ErrorIs(t, err, ErrPersistence)
	assert.Equal(t, StateEmpty, s.Snapshot().State)
}

func TestSessionStore_PersistenceFailureKeepsMemoryState(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockKeyValueStore(ctrl)
	store.EXPECT().Set(gomock.Any(), DefaultTokenKey, gomock.Any()).Return(errors.New("disk full")).MinTimes(1)

	s := NewSessionStore(SessionStoreOptions{Store: store})
	tok := testutil.NewToken().Build()

	snap, err := s.Establish(tok)
	require.NoError(t, err)
	assert.Equal(t, StateActive, snap.State)

	flush(t, s)
	assert.Equal(t, tok, s.Snapshot().Token)
	assert.GreaterOrEqual(t, s.PersistenceFailures(), int64(1))
}

func TestSessionStore_Subscribe(t *testing.T) {
	s := newTestSession(t, memstore.New(), false)

	var states []SessionState
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		// Reading the session from a callback must not deadlock.
		_ = s.Snapshot()
		states = append(states, snap.State)
	})

	_, err := s.Establish(testutil.NewToken().Build())
	require.NoError(t, err)
	_, err = s.CorruptSignature()
	require.NoError(t, err)
	s.Clear()

	assert.Equal(t, []SessionState{StateActive, StateTampered, StateEmpty}, states)

	unsubscribe()
	s.Replace("x")
	assert.Len(t, states, 3)
}

func TestSessionStore_ConcurrentMutations(t *testing.T) {
	store := memstore.New()
	s := newTestSession(t, store, false)
	tok := testutil.NewToken().Build()

	var notified atomic.Int64
	s.Subscribe(func(Snapshot) { notified.Add(1) })

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			switch i % 4 {
			case 0:
				_, _ = s.Establish(tok)
			case 1:
				_, _ = s.CorruptSignature()
			case 2:
				_, _ = s.SwapRole()
			default:
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()

	assert.Positive(t, notified.Load())
	snap := s.Snapshot()

	flush(t, s)
	got, ok := storedToken(t, store)
	if snap.HasToken() {
		require.True(t, ok)
		assert.Equal(t, snap.Token, got, "last write wins")
	}
}

// slowReadStore blocks Get until release is closed.
type slowReadStore struct {
	ports.KeyValueStore
	reading chan struct{}
	release chan struct{}
}

func (s *slowReadStore) Get(ctx context.Context, key string) (string, bool, error) {
	close(s.reading)
	<-s.release
	return s.KeyValueStore.Get(ctx, key)
}

func TestSessionStore_LoadDoesNotClobberLogin(t *testing.T) {
	backing := memstore.New()
	stale := testutil.NewToken().WithSubject("stale@example.com").Build()
	require.NoError(t, backing.Set(context.Background(), DefaultTokenKey, stale))

	store := &slowReadStore{KeyValueStore: backing, reading: make(chan struct{}), release: make(chan struct{})}
	s := newTestSession(t, store, true)

	done := make(chan error, 1)
	go func() { done <- s.Load(context.Background()) }()
	<-store.reading

	fresh := testutil.NewToken().Build()
	_, err := s.Establish(fresh)
	require.NoError(t, err)
	close(store.release)
	require.NoError(t, <-done)

	snap := s.Snapshot()
	assert.Equal(t, StateActive, snap.State)
	assert.Equal(t, fresh, snap.Token)
	assert.Equal(t, fresh, snap.Original)

	flush(t, s)
	got, ok := storedToken(t, backing)
	require.True(t, ok)
	assert.Equal(t, fresh, got)
}

// gatedStore blocks the first Set until release is closed.
type gatedStore struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once

	mu     sync.Mutex
	values []string
}

func (g *gatedStore) Get(context.Context, string) (string, bool, error) { return "", false, nil }

func (g *gatedStore) Set(_ context.Context, _ string, value string) error {
	first := false
	g.once.Do(func() { first = true })
	if first {
		close(g.started)
		<-g.release
	}
	g.mu.Lock()
	g.values = append(g.values, value)
	g.mu.Unlock()
	return nil
}

func (g *gatedStore) Remove(context.Context, string) error { return nil }

func TestTokenWriter_CollapsesPendingWrites(t *testing.T) {
	store := &gatedStore{started: make(chan struct{}), release: make(chan struct{})}
	w := newTokenWriter(store, testLogger(), time.Second)

	w.enqueue(persistOp{key: DefaultTokenKey, value: "a"})
	<-store.started
	w.enqueue(persistOp{key: DefaultTokenKey, value: "b"})
	w.enqueue(persistOp{key: DefaultTokenKey, value: "c"})
	close(store.release)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, w.close(ctx))

	assert.Equal(t, []string{"a", "c"}, store.values)
	assert.Zero(t, w.failures.Load())
}
