// Package sessions manages the admin bearer-token session lifecycle.
//
// Sessions carry no user identity; a valid token simply grants admin write
// access. Expired rows are purged lazily by an explicit sweep that runs at
// the start of every session-touching operation, so a token past its TTL
// never validates even if the row still exists.
package sessions

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is how long an issued session stays valid.
const DefaultTTL = 12 * time.Hour

// Session is a time-limited bearer credential.
type Session struct {
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Store is the persistence contract for sessions. Every content storage
// backend implements it alongside the module/document operations so that
// sessions live in the same store as the data they guard.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, token string) (*Session, error)
	// DeleteSession removes a session; deleting an unknown token is not
	// an error.
	DeleteSession(ctx context.Context, token string) error
	// DeleteExpiredSessions removes every session with ExpiresAt before
	// cutoff and reports how many were removed. Must be idempotent.
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// Service issues and validates opaque session tokens against a Store.
type Service struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTTL overrides the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) { s.ttl = ttl }
}

// WithClock injects a clock, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a session service with a 12 hour TTL unless overridden.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		ttl:   DefaultTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sweep deletes sessions that expired before now. It is cheap (bounded by
// the expired-row count) and safe to call at any time.
func (s *Service) Sweep(ctx context.Context) error {
	_, err := s.store.DeleteExpiredSessions(ctx, s.now().UTC())
	return err
}

// Create sweeps expired sessions, then issues and persists a fresh token.
func (s *Service) Create(ctx context.Context) (*Session, error) {
	if err := s.Sweep(ctx); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	sess := &Session{
		Token:     uuid.NewString(),
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Validate reports whether token identifies a live session. An empty token
// is invalid without touching storage; otherwise expired sessions are swept
// first and the token must exist with an expiry strictly in the future.
func (s *Service) Validate(ctx context.Context, token string) (bool, error) {
	if token == "" {
		return false, nil
	}
	if err := s.Sweep(ctx); err != nil {
		return false, err
	}

	sess, err := s.store.GetSession(ctx, token)
	if err != nil {
		return false, err
	}
	if sess == nil {
		return false, nil
	}
	return sess.ExpiresAt.After(s.now().UTC()), nil
}

// Delete removes the session for token. Unknown and empty tokens are
// ignored, making logout idempotent.
func (s *Service) Delete(ctx context.Context, token string) error {
	if err := s.Sweep(ctx); err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	return s.store.DeleteSession(ctx, token)
}
