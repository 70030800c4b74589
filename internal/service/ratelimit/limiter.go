package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter is a token bucket shared by every request a source issues.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64 // tokens per second
	last       time.Time
	now        func() time.Time
}

// New allows burst requests at once and refills perSecond tokens each second.
// A non-positive perSecond disables limiting.
func New(burst int, perSecond float64) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		tokens:     float64(burst),
		capacity:   float64(burst),
		refillRate: perSecond,
		last:       time.Now(),
		now:        time.Now,
	}
}

// Allow consumes a token if one is available.
func (l *Limiter) Allow() bool {
	_, ok := l.reserve()
	return ok
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		delay, ok := l.reserve()
		if ok {
			return nil
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// reserve takes a token, or reports how long until one is due.
func (l *Limiter) reserve() (time.Duration, bool) {
	if l == nil || l.refillRate <= 0 {
		return 0, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if elapsed := now.Sub(l.last).Seconds(); elapsed > 0 {
		l.tokens += elapsed * l.refillRate
		if l.tokens > l.capacity {
			l.tokens = l.capacity
		}
		l.last = now
	}
	if l.tokens >= 1 {
		l.tokens--
		return 0, true
	}
	missing := 1 - l.tokens
	return time.Duration(missing / l.refillRate * float64(time.Second)), false
}
