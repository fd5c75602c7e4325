package summarizer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	// backoffBase is the starting backoff after an endpoint failure.
	backoffBase = 60 * time.Second
	// backoffMax caps the backoff period.
	backoffMax = 5 * time.Minute
	// backoffMaxMultiplier caps how far consecutive failures escalate.
	backoffMaxMultiplier = 8
)

// RateLimiter enforces a sliding one-minute request window plus an
// independent exponential backoff set after endpoint failures. Acquire
// blocks through the required wait and then reports false so the caller
// re-evaluates; a successful request resets the backoff.
type RateLimiter struct {
	mu sync.Mutex

	maxPerMinute      int
	requests          []time.Time
	backoffUntil      time.Time
	backoffMultiplier int

	// Test hooks.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRateLimiter builds a limiter allowing maxPerMinute requests in any
// sliding 60-second window.
func NewRateLimiter(maxPerMinute int) *RateLimiter {
	return &RateLimiter{
		maxPerMinute:      maxPerMinute,
		backoffMultiplier: 1,
		now:               time.Now,
		sleep:             sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Acquire attempts to claim a request slot. It returns true when a slot was
// claimed. When the limiter is backing off or the window is full it sleeps
// out the wait and returns false; the caller loops until it gets a slot.
// The only error is ctx cancellation during a wait.
func (r *RateLimiter) Acquire(ctx context.Context) (bool, error) {
	r.mu.Lock()
	now := r.now()

	if !r.backoffUntil.IsZero() && now.Before(r.backoffUntil) {
		wait := r.backoffUntil.Sub(now)
		r.mu.Unlock()
		slog.Debug("rate limiter backing off", "wait", wait)
		if err := r.sleep(ctx, wait); err != nil {
			return false, err
		}
		return false, nil
	}

	// Drop requests that have left the window.
	cutoff := now.Add(-time.Minute)
	kept := r.requests[:0]
	for _, t := range r.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	r.requests = kept

	if len(r.requests) >= r.maxPerMinute {
		oldest := r.requests[0]
		for _, t := range r.requests {
			if t.Before(oldest) {
				oldest = t
			}
		}
		wait := time.Minute - now.Sub(oldest)
		r.mu.Unlock()
		slog.Debug("rate limiter window full", "wait", wait)
		if err := r.sleep(ctx, wait); err != nil {
			return false, err
		}
		return false, nil
	}

	r.requests = append(r.requests, now)
	r.mu.Unlock()
	return true, nil
}

// SetBackoff starts (or escalates) the backoff period after a failure. A
// zero duration uses the escalating default min(60s * multiplier, 5m).
func (r *RateLimiter) SetBackoff(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d <= 0 {
		d = backoffBase * time.Duration(r.backoffMultiplier)
		if d > backoffMax {
			d = backoffMax
		}
	}
	r.backoffUntil = r.now().Add(d)
	r.backoffMultiplier *= 2
	if r.backoffMultiplier > backoffMaxMultiplier {
		r.backoffMultiplier = backoffMaxMultiplier
	}
	slog.Warn("rate limiter backing off after failure", "duration", d)
}

// ResetBackoff clears the backoff after a successful request.
func (r *RateLimiter) ResetBackoff() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backoffUntil = time.Time{}
	r.backoffMultiplier = 1
}

// NextBackoff reports the delay SetBackoff(0) would currently apply.
func (r *RateLimiter) NextBackoff() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := backoffBase * time.Duration(r.backoffMultiplier)
	if d > backoffMax {
		d = backoffMax
	}
	return d
}
