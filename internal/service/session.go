package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/target/tokenlab/internal/domain/token"
	"github.com/target/tokenlab/internal/ports"
)

// DefaultTokenKey is the key-value store key holding the session token.
const DefaultTokenKey = "authToken"

// SessionState is the lifecycle state of the session.
type SessionState string

const (
	StateEmpty    SessionState = "EMPTY"
	StateLoading  SessionState = "LOADING"
	StateActive   SessionState = "ACTIVE"
	StateTampered SessionState = "TAMPERED"
)

var errEmptyToken = errors.New("token is required")

// Snapshot is a consistent read of the session. Claims is nil when there is
// no token or the token does not decode; DecodeErr tells the two apart.
type Snapshot struct {
	State     SessionState
	Token     string
	Original  string
	Claims    token.Claims
	DecodeErr error
	Tampered  bool
}

// HasToken reports whether an active token is present.
func (s Snapshot) HasToken() bool { return s.Token != "" }

// Decodable reports whether the active token decoded into claims.
func (s Snapshot) Decodable() bool { return s.Claims != nil }

// SessionStoreOptions groups dependencies for SessionStore.
type SessionStoreOptions struct {
	Store  ports.KeyValueStore
	Key    string
	Logger *slog.Logger
	// BaselineOnLoad makes a decodable persisted token the tamper reference at Load.
	// Off by default: tamper detection stays inert until the next login.
	BaselineOnLoad bool
	PersistTimeout time.Duration
}

// SessionStore holds the current token and the reference it is compared with to detect tampering.
// Mutations are serialized; persistence happens in the background and never blocks a transition.
type SessionStore struct {
	key            string
	logger         *slog.Logger
	store          ports.KeyValueStore
	writer         *tokenWriter
	baselineOnLoad bool

	mu        sync.Mutex
	loading   bool
	active    string
	original  string
	claims    token.Claims
	decodeErr error

	seq uint64

	// notifyMu serializes subscriber callbacks; delivered is the last seq they saw.
	notifyMu  sync.Mutex
	delivered uint64
	subs      map[int]func(Snapshot)
	nextSub   int
}

// NewSessionStore constructs an empty SessionStore.
func NewSessionStore(opts SessionStoreOptions) *SessionStore {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	key := opts.Key
	if key == "" {
		key = DefaultTokenKey
	}
	return &SessionStore{
		key:            key,
		logger:         logger,
		store:          opts.Store,
		writer:         newTokenWriter(opts.Store, logger, opts.PersistTimeout),
		baselineOnLoad: opts.BaselineOnLoad,
		subs:           make(map[int]func(Snapshot)),
	}
}

// Load reads the persisted token. A found token becomes active whether or not it decodes.
// A store failure leaves the session EMPTY and is returned wrapped in ErrPersistence.
// A transition made while the read is in flight wins over the stored value.
func (s *SessionStore) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	seq := s.seq
	s.mu.Unlock()

	stored, found, err := s.store.Get(ctx, s.key)

	s.mu.Lock()
	s.loading = false
	if s.seq != seq {
		s.commit()
		s.logger.DebugContext(ctx, "persisted session token superseded", "key", s.key)
		return nil
	}
	if err != nil {
		s.commit()
		s.logger.WarnContext(ctx, "load persisted session token failed", "key", s.key, "error", err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	if found && stored != "" {
		s.setActiveLocked(stored)
		if s.baselineOnLoad && s.claims != nil {
			s.original = stored
		}
	}
	snap := s.snapshotLocked()
	s.commit()

	s.logger.DebugContext(ctx, "session loaded",
		"state", snap.State,
		"decodable", snap.Decodable(),
		"baseline", snap.Original != "",
	)
	return nil
}

// Establish records a token obtained from a successful login or register.
// A decodable token becomes the tamper reference only when none is held yet;
// Clear is the only way to drop an existing reference.
func (s *SessionStore) Establish(tok string) (Snapshot, error) {
	if tok == "" {
		return s.Snapshot(), errEmptyToken
	}

	s.mu.Lock()
	s.setActiveLocked(tok)
	s.persistLocked()
	if s.original == "" && s.claims != nil {
		s.original = tok
	}
	snap := s.snapshotLocked()
	s.commit()
	return snap, nil
}

// CorruptSignature replaces the tail of the active token with a fixed sentinel.
func (s *SessionStore) CorruptSignature() (Snapshot, error) {
	s.mu.Lock()
	if s.active == "" {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, fmt.Errorf("corrupt signature without a token: %w", token.ErrNoOpTamper)
	}
	return s.replaceLocked(token.CorruptSignature(s.active)), nil
}

// SwapRole toggles the role claim while keeping the original header and signature.
func (s *SessionStore) SwapRole() (Snapshot, error) {
	s.mu.Lock()
	next, err := token.SwapRole(s.active, s.claims)
	if err != nil {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, err
	}
	return s.replaceLocked(next), nil
}

// Replace installs an arbitrary operator-supplied token. An empty value clears the session.
func (s *SessionStore) Replace(value string) Snapshot {
	s.mu.Lock()
	return s.replaceLocked(token.Replace(value))
}

// Restore reinstates the reference token.
func (s *SessionStore) Restore() (Snapshot, error) {
	s.mu.Lock()
	if s.original == "" {
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, fmt.Errorf("restore without a reference token: %w", token.ErrNoOpTamper)
	}
	return s.replaceLocked(s.original), nil
}

// Clear erases the active token, the reference and the persisted copy.
func (s *SessionStore) Clear() Snapshot {
	s.mu.Lock()
	return s.replaceLocked(token.Clear())
}

// Logout is Clear under the name the auth flow uses.
func (s *SessionStore) Logout() Snapshot {
	return s.Clear()
}

// Snapshot returns the current session view.
func (s *SessionStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after transitions. Snapshots arrive in
// transition order; one superseded before delivery is skipped. fn may read the session
// but must not mutate it. The returned func unsubscribes.
func (s *SessionStore) Subscribe(fn func(Snapshot)) func() {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.notifyMu.Lock()
		defer s.notifyMu.Unlock()
		delete(s.subs, id)
	}
}

// PersistenceFailures returns how many background writes have failed so far.
func (s *SessionStore) PersistenceFailures() int64 {
	return s.writer.failures.Load()
}

// Close flushes pending writes. The store must not be mutated afterwards.
func (s *SessionStore) Close(ctx context.Context) error {
	return s.writer.close(ctx)
}

// replaceLocked installs next as the active token, persists it and releases s.mu.
// An empty next is the EMPTY transition and also drops the reference.
func (s *SessionStore) replaceLocked(next string) Snapshot {
	s.setActiveLocked(next)
	if next == "" {
		s.original = ""
	}
	s.persistLocked()
	snap := s.snapshotLocked()
	s.commit()
	return snap
}

func (s *SessionStore) setActiveLocked(tok string) {
	s.active = tok
	s.claims, s.decodeErr = nil, nil
	if tok == "" {
		return
	}
	s.claims, s.decodeErr = token.Decode(tok)
}

func (s *SessionStore) persistLocked() {
	if s.active == "" {
		s.writer.enqueue(persistOp{key: s.key, remove: true})
		return
	}
	s.writer.enqueue(persistOp{key: s.key, value: s.active})
}

func (s *SessionStore) snapshotLocked() Snapshot {
	snap := Snapshot{
		Token:     s.active,
		Original:  s.original,
		Claims:    s.claims.Clone(),
		DecodeErr: s.decodeErr,
		Tampered:  s.original != "" && s.active != s.original,
	}
	switch {
	case s.loading:
		snap.State = StateLoading
	case s.active == "":
		snap.State = StateEmpty
	case snap.Tampered:
		snap.State = StateTampered
	default:
		snap.State = StateActive
	}
	return snap
}

// commit releases s.mu and notifies subscribers with the state at release time.
// Callers must hold s.mu.
func (s *SessionStore) commit() {
	s.seq++
	seq := s.seq
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()
	if seq <= s.delivered {
		return
	}
	s.delivered = seq
	for _, fn := range s.subs {
		fn(snap)
	}
}
