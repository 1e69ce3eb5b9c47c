// Package custody implements the Signer port against a remote
// key-custody service. Private keys never leave the custody side; the
// adapter holds a time-boxed session credential obtained through a
// passkey-backed ceremony and stamps each signing request with it.
package custody

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/openfleet/fleetd/core"
	"github.com/openfleet/fleetd/ports"
)

// sessionStoreKey is where the cached session lives in the store, so a
// restart inside the session window reuses it.
const sessionStoreKey = "signer:session"

// SessionAPI is the custody service surface the signer depends on.
type SessionAPI interface {
	// CreateSession runs the authentication ceremony and returns a fresh
	// session credential.
	CreateSession(ctx context.Context) (core.SigningSession, error)

	// SignTypedData signs an EIP-712 payload under the given session.
	SignTypedData(ctx context.Context, session core.SigningSession, typedData json.RawMessage) (string, error)

	// SignUserOperation signs a user operation under the given session.
	SignUserOperation(ctx context.Context, session core.SigningSession, userOperation json.RawMessage) (string, error)
}

// Signer caches one signing session across all workflow jobs. The
// session is lazily created, reused until it expires, then discarded and
// recreated. Renewal is idempotent under concurrency: callers that race
// on an expired session share a single ceremony.
type Signer struct {
	api   SessionAPI
	store ports.Store
	log   *zap.Logger
	ttl   time.Duration
	now   func() time.Time

	mu      sync.RWMutex
	session *core.SigningSession
	group   singleflight.Group
}

// Option configures a Signer.
type Option func(*Signer)

// WithSessionTTL overrides the session window applied when the custody
// service does not return an expiry.
func WithSessionTTL(ttl time.Duration) Option {
	return func(s *Signer) { s.ttl = ttl }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) { s.now = now }
}

// NewSigner creates a custody-backed signer. store may be nil, in which
// case sessions live only in memory.
func NewSigner(api SessionAPI, store ports.Store, logger *zap.Logger, opts ...Option) *Signer {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Signer{
		api:   api,
		store: store,
		log:   logger,
		ttl:   core.DefaultSessionTTL,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignTypedData signs an EIP-712 typed-data payload.
func (s *Signer) SignTypedData(ctx context.Context, typedData json.RawMessage) (string, error) {
	session, err := s.currentSession(ctx)
	if err != nil {
		return "", err
	}
	return s.api.SignTypedData(ctx, session, typedData)
}

// SignUserOperation signs an account-abstraction user operation.
func (s *Signer) SignUserOperation(ctx context.Context, userOperation json.RawMessage) (string, error) {
	session, err := s.currentSession(ctx)
	if err != nil {
		return "", err
	}
	return s.api.SignUserOperation(ctx, session, userOperation)
}

// currentSession returns a valid session, creating one if needed. Only
// one ceremony runs at a time; concurrent callers await its result.
func (s *Signer) currentSession(ctx context.Context) (core.SigningSession, error) {
	s.mu.RLock()
	cached := s.session
	s.mu.RUnlock()

	if cached.Valid(s.now()) {
		return *cached, nil
	}

	v, err, _ := s.group.Do("session", func() (any, error) {
		// A racing caller may have renewed while we waited on the group.
		s.mu.RLock()
		cached := s.session
		s.mu.RUnlock()
		if cached.Valid(s.now()) {
			return *cached, nil
		}

		if restored := s.restore(ctx); restored != nil {
			return *restored, nil
		}

		session, err := s.api.CreateSession(ctx)
		if err != nil {
			return core.SigningSession{}, fmt.Errorf("failed to create signing session: %w", err)
		}
		if session.ExpiresAt.IsZero() {
			session.ExpiresAt = s.now().Add(s.ttl)
		}
		s.keep(ctx, session)
		s.log.Info("signing session created", zap.Time("expires_at", session.ExpiresAt))
		return session, nil
	})
	if err != nil {
		return core.SigningSession{}, err
	}
	return v.(core.SigningSession), nil
}

// restore loads a still-valid persisted session.
func (s *Signer) restore(ctx context.Context) *core.SigningSession {
	if s.store == nil {
		return nil
	}
	raw, err := s.store.Get(ctx, sessionStoreKey)
	if err != nil {
		return nil
	}
	var session core.SigningSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil
	}
	if !session.Valid(s.now()) {
		return nil
	}
	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()
	s.log.Debug("signing session restored", zap.Time("expires_at", session.ExpiresAt))
	return &session
}

// keep caches the session in memory and, when a store is wired, persists
// it for the remainder of its window.
func (s *Signer) keep(ctx context.Context, session core.SigningSession) {
	s.mu.Lock()
	s.session = &session
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	encoded, err := json.Marshal(session)
	if err != nil {
		return
	}
	ttl := time.Until(session.ExpiresAt)
	if ttl <= 0 {
		return
	}
	if err := s.store.Set(ctx, sessionStoreKey, string(encoded), ttl); err != nil {
		s.log.Warn("failed to persist signing session", zap.Error(err))
	}
}

// Logout discards the cached session.
func (s *Signer) Logout(ctx context.Context) {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	if s.store != nil {
		if err := s.store.Delete(ctx, sessionStoreKey); err != nil {
			s.log.Warn("failed to clear persisted signing session", zap.Error(err))
		}
	}
}
