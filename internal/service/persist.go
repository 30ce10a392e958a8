package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/target/tokenlab/internal/ports"
)

// ErrPersistence wraps failures of the key-value store behind the session.
// They are logged and never undo an in-memory transition.
var ErrPersistence = errors.New("session persistence failed")

const defaultPersistTimeout = 5 * time.Second

// persistOp is a pending write for one key. An empty value with remove=true deletes the key.
type persistOp struct {
	key    string
	value  string
	remove bool
}

// tokenWriter applies session writes on a single background goroutine so callers never block on I/O.
// Pending writes for the same key collapse to the latest one; distinct keys keep their order.
type tokenWriter struct {
	store   ports.KeyValueStore
	logger  *slog.Logger
	timeout time.Duration

	mu      sync.Mutex
	pending []persistOp
	wake    chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once

	failures atomic.Int64
}

func newTokenWriter(store ports.KeyValueStore, logger *slog.Logger, timeout time.Duration) *tokenWriter {
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	w := &tokenWriter{
		store:   store,
		logger:  logger,
		timeout: timeout,
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

func (w *tokenWriter) enqueue(op persistOp) {
	w.mu.Lock()
	replaced := false
	for i := range w.pending {
		if w.pending[i].key == op.key {
			w.pending = append(w.pending[:i], w.pending[i+1:]...)
			w.pending = append(w.pending, op)
			replaced = true
			break
		}
	}
	if !replaced {
		w.pending = append(w.pending, op)
	}
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *tokenWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.wake:
			w.drain()
		case <-w.stop:
			w.drain()
			return
		}
	}
}

func (w *tokenWriter) drain() {
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			w.mu.Unlock()
			return
		}
		op := w.pending[0]
		w.pending = w.pending[1:]
		w.mu.Unlock()

		if err := w.apply(op); err != nil {
			w.failures.Add(1)
			w.logger.Warn("session persistence failed; in-memory session remains authoritative",
				"key", op.key,
				"remove", op.remove,
				"error", err,
			)
		}
	}
}

func (w *tokenWriter) apply(op persistOp) error {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var err error
	if op.remove {
		err = w.store.Remove(ctx, op.key)
	} else {
		err = w.store.Set(ctx, op.key, op.value)
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// close flushes pending writes and stops the goroutine, giving up when ctx ends first.
func (w *tokenWriter) close(ctx context.Context) error {
	w.once.Do(func() { close(w.stop) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("flush session writes: %w", ctx.Err())
	}
}
