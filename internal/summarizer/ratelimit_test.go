package summarizer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives the limiter deterministically: sleeps advance the clock
// instead of blocking.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) install(r *RateLimiter) {
	r.now = func() time.Time { return c.now }
	r.sleep = func(_ context.Context, d time.Duration) error {
		c.sleeps = append(c.sleeps, d)
		c.now = c.now.Add(d)
		return nil
	}
}

func TestRateLimiterWindow(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(3)
	clock.install(r)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := r.Acquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
		clock.now = clock.now.Add(time.Second)
	}

	// Fourth acquire in the window: sleeps until the oldest request leaves
	// the window, then reports false so the caller retries.
	ok, err := r.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, time.Minute-3*time.Second, clock.sleeps[0])

	// After the wait the oldest slot has expired and acquire succeeds.
	clock.now = clock.now.Add(time.Millisecond)
	ok, err = r.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiterWindowSlides(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(2)
	clock.install(r)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := r.Acquire(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	// A minute later both slots have left the window.
	clock.now = clock.now.Add(61 * time.Second)
	ok, err := r.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, clock.sleeps)
}

func TestRateLimiterBackoffEscalation(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(15)
	clock.install(r)

	assert.Equal(t, 60*time.Second, r.NextBackoff())
	r.SetBackoff(0)
	assert.Equal(t, 120*time.Second, r.NextBackoff())
	r.SetBackoff(0)
	assert.Equal(t, 240*time.Second, r.NextBackoff())
	r.SetBackoff(0)
	// 60s * 8 = 480s caps at 300s.
	assert.Equal(t, 300*time.Second, r.NextBackoff())
	r.SetBackoff(0)
	// Multiplier stops escalating at 8.
	assert.Equal(t, 300*time.Second, r.NextBackoff())

	r.ResetBackoff()
	assert.Equal(t, 60*time.Second, r.NextBackoff())
}

func TestRateLimiterBackoffBlocksAcquire(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(15)
	clock.install(r)
	ctx := context.Background()

	r.SetBackoff(30 * time.Second)

	ok, err := r.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	require.Len(t, clock.sleeps, 1)
	assert.Equal(t, 30*time.Second, clock.sleeps[0])

	// The backoff window has been slept out; next acquire succeeds.
	ok, err = r.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRateLimiterResetClearsBackoff(t *testing.T) {
	clock := newFakeClock()
	r := NewRateLimiter(15)
	clock.install(r)
	ctx := context.Background()

	r.SetBackoff(5 * time.Minute)
	r.ResetBackoff()

	ok, err := r.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, clock.sleeps)
}

func TestRateLimiterAcquireCancelled(t *testing.T) {
	r := NewRateLimiter(1)
	ctx := context.Background()

	ok, err := r.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Acquire(cancelled)
	assert.ErrorIs(t, err, context.Canceled)
}
