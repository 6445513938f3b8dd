// Package ratelimit implements a sliding-window request limiter keyed by an
// opaque client identifier.
package ratelimit

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Limiter allows at most max requests per identifier in any trailing window.
// Expiry is lazy: timestamps are pruned on every Allow.
type Limiter struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	now      func() time.Time
	requests map[string][]time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// New returns a limiter admitting maxRequests per window. It panics if either
// argument is not positive.
func New(maxRequests int, window time.Duration, opts ...Option) *Limiter {
	if maxRequests <= 0 {
		panic(fmt.Sprintf("ratelimit: maxRequests must be positive, got %d", maxRequests))
	}
	if window <= 0 {
		panic(fmt.Sprintf("ratelimit: window must be positive, got %s", window))
	}
	l := &Limiter{
		max:      maxRequests,
		window:   window,
		now:      time.Now,
		requests: make(map[string][]time.Time),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records a request for identifier and reports whether it is within
// the limit. A denied request is not recorded.
func (l *Limiter) Allow(identifier string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now.Add(-l.window))

	if len(l.requests[identifier]) >= l.max {
		return false
	}
	l.requests[identifier] = append(l.requests[identifier], now)
	return true
}

// RetryAfter reports how long identifier must wait before Allow can succeed
// again. Zero means a request would be admitted now.
func (l *Limiter) RetryAfter(identifier string) time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now.Add(-l.window))

	ts := l.requests[identifier]
	if len(ts) < l.max {
		return 0
	}
	// The oldest timestamp frees a slot once it is exactly one window old.
	return ts[len(ts)-l.max].Add(l.window).Sub(now)
}

// prune drops timestamps at or before windowStart and forgets identifiers
// with none left. Caller must hold l.mu.
func (l *Limiter) prune(windowStart time.Time) {
	for id, ts := range l.requests {
		i := 0
		for i < len(ts) && !ts[i].After(windowStart) {
			i++
		}
		if i == len(ts) {
			delete(l.requests, id)
			continue
		}
		if i > 0 {
			l.requests[id] = append(ts[:0:0], ts[i:]...)
		}
	}
}

// Reset forgets every request recorded for identifier.
func (l *Limiter) Reset(identifier string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.requests, identifier)
}

// Tracked reports how many identifiers currently hold timestamps.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.requests)
}

// Max returns the configured request budget.
func (l *Limiter) Max() int { return l.max }

// Window returns the configured window.
func (l *Limiter) Window() time.Duration { return l.window }

// Fingerprint joins the parts that identify a client, typically its user
// agent and host, into one limiter key.
func Fingerprint(parts ...string) string {
	return strings.Join(parts, "|")
}
