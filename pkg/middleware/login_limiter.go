package middleware

import (
	"sync"
	"time"
)

// Login attempt limiting uses a fixed window rather than a token bucket:
// the contract is exactly N attempts per window per source, with the
// counter resetting when the window rolls over.
const (
	DefaultLoginWindow      = 10 * time.Minute
	DefaultLoginMaxAttempts = 20
)

type loginWindow struct {
	count   int
	resetAt time.Time
}

// LoginLimiter counts login attempts per source within a fixed window.
// Instances are self-contained so tests can construct isolated limiters.
type LoginLimiter struct {
	mu      sync.Mutex
	window  time.Duration
	max     int
	now     func() time.Time
	entries map[string]*loginWindow
}

// LoginLimiterOption configures a LoginLimiter.
type LoginLimiterOption func(*LoginLimiter)

// WithLoginWindow overrides the attempt window.
func WithLoginWindow(window time.Duration, max int) LoginLimiterOption {
	return func(l *LoginLimiter) {
		l.window = window
		l.max = max
	}
}

// WithLoginClock injects a clock for tests.
func WithLoginClock(now func() time.Time) LoginLimiterOption {
	return func(l *LoginLimiter) { l.now = now }
}

// NewLoginLimiter creates a limiter allowing 20 attempts per 10 minutes per
// source unless overridden.
func NewLoginLimiter(opts ...LoginLimiterOption) *LoginLimiter {
	l := &LoginLimiter{
		window:  DefaultLoginWindow,
		max:     DefaultLoginMaxAttempts,
		now:     time.Now,
		entries: make(map[string]*loginWindow),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Allow records an attempt for key and reports whether it is within the
// window budget. The attempt that exceeds the budget is rejected.
func (l *LoginLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	entry, ok := l.entries[key]
	if !ok || now.After(entry.resetAt) {
		entry = &loginWindow{resetAt: now.Add(l.window)}
		l.entries[key] = entry
	}
	entry.count++
	return entry.count <= l.max
}
