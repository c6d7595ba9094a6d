package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Sessions implements ports.SessionStore in memory with a sliding TTL.
// Expiry is passive: records are dropped when touched after their
// deadline, not by a background sweeper.
type Sessions struct {
	mu   sync.Mutex
	data map[string]*sessionEntry
	ttl  time.Duration
	now  func() time.Time
}

type sessionEntry struct {
	session   *domain.Session
	expiresAt time.Time
}

// SessionsOption configures a Sessions store.
type SessionsOption func(*Sessions)

// WithSessionTTL overrides the sliding idle window.
func WithSessionTTL(ttl time.Duration) SessionsOption {
	return func(s *Sessions) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSessionClock injects the time source. Tests use it to cross TTL
// deadlines without sleeping.
func WithSessionClock(now func() time.Time) SessionsOption {
	return func(s *Sessions) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessions creates an in-memory session store.
func NewSessions(opts ...SessionsOption) *Sessions {
	s := &Sessions{
		data: make(map[string]*sessionEntry),
		ttl:  domain.DefaultSessionTTL,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save upserts the whole session record and resets its TTL.
func (s *Sessions) Save(ctx context.Context, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[sess.ID] = &sessionEntry{
		session:   copySession(sess),
		expiresAt: s.now().Add(s.ttl),
	}
	return nil
}

// Load retrieves the session and refreshes its TTL. Expired records are
// indistinguishable from absent ones.
func (s *Sessions) Load(ctx context.Context, connectionID string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[connectionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if !s.now().Before(entry.expiresAt) {
		delete(s.data, connectionID)
		return nil, domain.ErrSessionNotFound
	}

	entry.expiresAt = s.now().Add(s.ttl)
	return copySession(entry.session), nil
}

// Delete removes the session and reports whether a live record existed.
func (s *Sessions) Delete(ctx context.Context, connectionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.data[connectionID]
	if !ok {
		return false, nil
	}
	delete(s.data, connectionID)
	return s.now().Before(entry.expiresAt), nil
}

// List returns the ids of all live sessions.
func (s *Sessions) List(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ids := make([]string, 0, len(s.data))
	for id, entry := range s.data {
		if !now.Before(entry.expiresAt) {
			delete(s.data, id)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// copySession clones the record one level deep, similar to what a
// serializing backend would do.
func copySession(sess *domain.Session) *domain.Session {
	copied := *sess
	copied.Data = make(map[string]any, len(sess.Data))
	for k, v := range sess.Data {
		copied.Data[k] = v
	}
	return &copied
}
