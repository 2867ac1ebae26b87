package pairing

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// RefreshWindow is the remaining validity below which a long-lived code
// is treated as stale and refreshed.
const RefreshWindow = time.Hour

// Issuer mints long-lived pairing codes. Implemented by backend.Client.
type Issuer interface {
	// IssueLongLivedCode requests a fresh long-lived pairing code.
	IssueLongLivedCode(ctx context.Context) (LongLivedCode, error)
}

// StoreConfig configures a Store.
type StoreConfig struct {
	// Issuer mints new codes. Required.
	Issuer Issuer

	// RefreshWindow overrides the default refresh window.
	RefreshWindow time.Duration

	// Now overrides the clock.
	Now func() time.Time

	// Logger receives refresh diagnostics. Silent when nil.
	Logger *slog.Logger
}

// Store tracks the host's current long-lived pairing code and decides
// when a refresh is due. The store never retries a failed issuance on
// its own; errors propagate to the caller.
type Store struct {
	issuer Issuer
	window time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu   sync.RWMutex
	code LongLivedCode
	has  bool

	group singleflight.Group
}

// NewStore creates a pairing code store.
func NewStore(config StoreConfig) (*Store, error) {
	if config.Issuer == nil {
		return nil, fmt.Errorf("pairing: Issuer is required")
	}
	if config.RefreshWindow <= 0 {
		config.RefreshWindow = RefreshWindow
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Store{
		issuer: config.Issuer,
		window: config.RefreshWindow,
		now:    config.Now,
		logger: logger,
	}, nil
}

// Current returns the stored code without any network call. The second
// return value is false when no code is held.
func (s *Store) Current() (LongLivedCode, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code, s.has
}

// Seed installs a previously persisted code, typically at startup.
// A seeded code that is already stale is refreshed on the next
// RefreshIfExpiringSoon call.
func (s *Store) Seed(code LongLivedCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
	s.has = code.Code != ""
}

// Clear discards the stored code. Used when the backend rejects the
// code, so the next refresh issues a fresh one instead of re-presenting
// a revoked credential.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = LongLivedCode{}
	s.has = false
}

// RefreshIfExpiringSoon returns the current code, refreshing it first
// when none is held or the remaining validity is below the refresh
// window. Concurrent callers share a single in-flight issuance.
func (s *Store) RefreshIfExpiringSoon(ctx context.Context) (LongLivedCode, error) {
	s.mu.RLock()
	code, has := s.code, s.has
	s.mu.RUnlock()

	if has && !code.ExpiringSoon(s.now(), s.window) {
		return code, nil
	}
	return s.issue(ctx)
}

// Generate unconditionally issues a new code, replacing any stored one.
// Used to bootstrap the initial code after a fresh pairing.
func (s *Store) Generate(ctx context.Context) (LongLivedCode, error) {
	return s.issue(ctx)
}

// issue requests a new code through the issuer. Concurrent calls are
// collapsed into one backend request; late callers receive the shared
// result. The shared request runs under the first caller's context.
func (s *Store) issue(ctx context.Context) (LongLivedCode, error) {
	v, err, _ := s.group.Do("issue", func() (any, error) {
		code, err := s.issuer.IssueLongLivedCode(ctx)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		s.code = code
		s.has = true
		s.mu.Unlock()

		s.logger.Debug("pairing code refreshed",
			"code", Format(code.Code),
			"expiresAt", code.ExpiresAt,
		)
		return code, nil
	})
	if err != nil {
		return LongLivedCode{}, fmt.Errorf("issue pairing code: %w", err)
	}
	return v.(LongLivedCode), nil
}
