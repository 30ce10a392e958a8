package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/tokenlab/internal/clock"
	"github.com/target/tokenlab/internal/domain/token"
	"github.com/target/tokenlab/internal/testutil"
)

const testTick = 5 * time.Millisecond

func claimsFor(t *testing.T, tok string) token.Claims {
	t.Helper()
	claims, err := token.Decode(tok)
	require.NoError(t, err)
	return claims
}

func TestCountdownWatcher_NothingToWatch(t *testing.T) {
	w := NewCountdownWatcher(CountdownWatcherOptions{Clock: clock.NewFixed(testutil.TestTime()), Interval: testTick})
	noExp := claimsFor(t, testutil.NewToken().Without("exp").Build())

	called := false
	assert.False(t, w.Watch(context.Background(), noExp, func(token.Countdown) { called = true }))
	assert.False(t, w.Watch(context.Background(), nil, func(token.Countdown) { called = true }))
	assert.False(t, called)
	assert.False(t, w.Running())
}

func TestCountdownWatcher_TicksWithClock(t *testing.T) {
	clk := clock.NewFixed(testutil.TestTime())
	w := NewCountdownWatcher(CountdownWatcherOptions{Clock: clk, Interval: testTick})
	t.Cleanup(w.Stop)
	claims := claimsFor(t, testutil.NewToken().Build())

	var (
		mu  sync.Mutex
		got []token.Countdown
	)
	armed := w.Watch(context.Background(), claims, func(cd token.Countdown) {
		mu.Lock()
		got = append(got, cd)
		mu.Unlock()
	})
	require.True(t, armed)
	assert.True(t, w.Running())

	mu.Lock()
	require.Len(t, got, 1, "first tick is delivered synchronously")
	assert.Equal(t, int64(3600), got[0].Remaining)
	assert.InDelta(t, 1.0, got[0].Fraction, 1e-9)
	mu.Unlock()

	clk.Advance(59*time.Minute + 30*time.Second)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got[len(got)-1].Remaining == 30
	}, time.Second, testTick)

	mu.Lock()
	last := got[len(got)-1]
	mu.Unlock()
	assert.Equal(t, token.SeverityCritical, token.SeverityOf(last.Fraction))
}

func TestCountdownWatcher_StopHaltsTicks(t *testing.T) {
	w := NewCountdownWatcher(CountdownWatcherOptions{Clock: clock.NewFixed(testutil.TestTime()), Interval: testTick})
	claims := claimsFor(t, testutil.NewToken().Build())

	var ticks atomic.Int64
	require.True(t, w.Watch(context.Background(), claims, func(token.Countdown) { ticks.Add(1) }))
	require.Eventually(t, func() bool { return ticks.Load() > 2 }, time.Second, testTick)

	w.Stop()
	assert.False(t, w.Running())
	after := ticks.Load()
	time.Sleep(10 * testTick)
	assert.Equal(t, after, ticks.Load())

	w.Stop() // idempotent
}

func TestCountdownWatcher_WatchReplacesTimer(t *testing.T) {
	w := NewCountdownWatcher(CountdownWatcherOptions{Clock: clock.NewFixed(testutil.TestTime()), Interval: testTick})
	t.Cleanup(w.Stop)
	claims := claimsFor(t, testutil.NewToken().Build())

	var first, second atomic.Int64
	require.True(t, w.Watch(context.Background(), claims, func(token.Countdown) { first.Add(1) }))
	require.True(t, w.Watch(context.Background(), claims, func(token.Countdown) { second.Add(1) }))

	frozen := first.Load()
	require.Eventually(t, func() bool { return second.Load() > 2 }, time.Second, testTick)
	assert.Equal(t, frozen, first.Load())
}

func TestCountdownWatcher_ContextCancel(t *testing.T) {
	w := NewCountdownWatcher(CountdownWatcherOptions{Clock: clock.NewFixed(testutil.TestTime()), Interval: testTick})
	claims := claimsFor(t, testutil.NewToken().Build())

	ctx, cancel := context.WithCancel(context.Background())
	require.True(t, w.Watch(ctx, claims, func(token.Countdown) {}))
	cancel()
	require.Eventually(t, func() bool { return !w.Running() }, time.Second, testTick)

	assert.False(t, w.Watch(ctx, claims, func(token.Countdown) {}), "done context arms nothing")
}

func TestNewCountdownWatcher_Defaults(t *testing.T) {
	w := NewCountdownWatcher(CountdownWatcherOptions{})
	assert.Equal(t, DefaultTickInterval, w.interval)
	assert.IsType(t, clock.Real{}, w.clock)
}
