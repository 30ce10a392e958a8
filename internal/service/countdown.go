package service

import (
	"context"
	"sync"
	"time"

	"github.com/target/tokenlab/internal/clock"
	"github.com/target/tokenlab/internal/domain/token"
	"github.com/target/tokenlab/internal/ports"
)

// DefaultTickInterval is how often the countdown is re-evaluated.
const DefaultTickInterval = time.Second

// CountdownWatcherOptions groups dependencies for CountdownWatcher.
type CountdownWatcherOptions struct {
	Clock    ports.Clock
	Interval time.Duration
}

// CountdownWatcher re-evaluates a token countdown on a fixed interval.
// At most one timer runs at a time; Watch replaces it and Stop ends it.
// After Stop (or Watch) returns, the previous timer delivers no further ticks.
type CountdownWatcher struct {
	clock    ports.Clock
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewCountdownWatcher constructs a watcher; zero options fall back to the system clock and one second.
func NewCountdownWatcher(opts CountdownWatcherOptions) *CountdownWatcher {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &CountdownWatcher{clock: clk, interval: interval}
}

// Watch stops any running timer and, when claims carry an exp, starts a new one.
// onTick runs once immediately and then every interval until ctx ends, Stop is
// called or Watch is called again. onTick must not call Watch or Stop.
// It returns false when there is nothing to watch.
func (w *CountdownWatcher) Watch(ctx context.Context, claims token.Claims, onTick func(token.Countdown)) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()

	if _, ok := claims.ExpiresAt(); !ok || onTick == nil || ctx.Err() != nil {
		return false
	}

	claims = claims.Clone()
	onTick(token.Compute(claims, w.clock.Now()))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	w.cancel, w.done = cancel, done
	go w.run(runCtx, claims, onTick, done)
	return true
}

// Stop ends the running timer, if any, and waits for it to exit.
func (w *CountdownWatcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopLocked()
}

// Running reports whether a timer is active.
func (w *CountdownWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.done == nil {
		return false
	}
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

func (w *CountdownWatcher) stopLocked() {
	if w.cancel == nil {
		return
	}
	w.cancel()
	<-w.done
	w.cancel, w.done = nil, nil
}

func (w *CountdownWatcher) run(ctx context.Context, claims token.Claims, onTick func(token.Countdown), done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			onTick(token.Compute(claims, w.clock.Now()))
		}
	}
}
