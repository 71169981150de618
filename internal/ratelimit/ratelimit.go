// Package ratelimit implements the process-wide token bucket that bounds
// outbound connector calls. One limiter is shared by every connector in
// the process; waiting callers are backpressured, never rejected.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	DefaultPerMinute = 60
	DefaultBurst     = 10
)

// Limiter is a token bucket filling at a steady per-minute rate with a
// burst allowance.
type Limiter struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	perSecond float64
	burst     float64
	tokens    float64
	last      time.Time
}

// New creates a limiter with a real clock
func New(perMinute, burst int) *Limiter {
	return NewWithClock(perMinute, burst, clockwork.NewRealClock())
}

// NewWithClock creates a limiter with a custom clock. This is useful for
// testing with a fake clock
func NewWithClock(perMinute, burst int, clock clockwork.Clock) *Limiter {
	if perMinute <= 0 {
		perMinute = DefaultPerMinute
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &Limiter{
		clock:     clock,
		perSecond: float64(perMinute) / 60.0,
		burst:     float64(burst),
		tokens:    float64(burst),
		last:      clock.Now(),
	}
}

// Wait suspends the caller until a token is available. Calls are never
// dropped; a full bucket drains into backpressure, not rejection. The
// only early exit is context cancellation.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		l.mu.Lock()
		l.refillLocked()
		if l.tokens >= 1 {
			l.tokens--
			l.mu.Unlock()
			return nil
		}
		needed := 1 - l.tokens
		delay := time.Duration(needed / l.perSecond * float64(time.Second))
		l.mu.Unlock()

		select {
		case <-l.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Available returns the number of whole tokens currently in the bucket.
func (l *Limiter) Available() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.refillLocked()
	return int(l.tokens)
}

// refillLocked credits tokens for the time elapsed since the last refill,
// capped at the burst allowance. Caller must hold mu.
func (l *Limiter) refillLocked() {
	now := l.clock.Now()
	elapsed := now.Sub(l.last).Seconds()
	if elapsed <= 0 {
		return
	}
	l.last = now
	l.tokens += elapsed * l.perSecond
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
}
