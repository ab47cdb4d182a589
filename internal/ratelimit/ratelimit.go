// Package ratelimit provides a token bucket used to pace requests against
// backends with per-minute rate limits.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket rate limiter.
type Limiter struct {
	mu       sync.Mutex // protects lastTime and tokens
	lastTime time.Time
	tokens   int

	window time.Duration
	rate   int
}

// New creates a limiter allowing rate units of work over the provided time
// window. E.g. New(20, time.Minute) allows 20 requests per minute.
func New(rate int, window time.Duration) *Limiter {
	return &Limiter{
		window:   window,
		rate:     rate,
		lastTime: time.Now(),
		tokens:   rate,
	}
}

// Acquire returns nil when work can proceed. If the bucket is empty it sleeps
// until at least one token has accumulated. If the provided context is Done
// first, Acquire returns ctx.Err().
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if l.TryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(l.window / time.Duration(l.rate)):
			// Assuming an even distribution of tokens across the window,
			// 1/Nth of the window is long enough for at least one token to
			// accumulate.
		}
	}
}

// TryAcquire takes a token if one is available and reports whether the
// caller may proceed.
func (l *Limiter) TryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(l.lastTime)
	l.lastTime = now

	// Refill in proportion to the time since the last call, capped at the
	// bucket size.
	l.tokens += int(elapsed.Nanoseconds() * int64(l.rate) / l.window.Nanoseconds())
	l.tokens = min(l.tokens, l.rate)
	if l.tokens <= 0 {
		return false
	}

	l.tokens--
	return true
}
