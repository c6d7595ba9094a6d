package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Manager provides the session operations connections work with.
type Manager struct {
	store  ports.SessionStore
	logger *slog.Logger
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a session manager over the given store.
func NewManager(store ports.SessionStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadOrCreate returns the connection's session, creating and
// persisting a fresh one with a new CSRF token when none exists.
func (m *Manager) LoadOrCreate(ctx context.Context, connectionID string) (*domain.Session, error) {
	sess, err := m.store.Load(ctx, connectionID)
	if err == nil {
		return sess, nil
	}
	if err != domain.ErrSessionNotFound {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess = &domain.Session{
		ID:        connectionID,
		CSRFToken: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Data:      map[string]any{},
	}
	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	m.logger.Debug("session created", "connection_id", connectionID)
	return sess, nil
}

// Peek returns the connection's session without creating one. Absent
// records surface as the store's ErrSessionNotFound.
func (m *Manager) Peek(ctx context.Context, connectionID string) (*domain.Session, error) {
	return m.store.Load(ctx, connectionID)
}

// Update shallow-merges the patch into the session's data and persists
// the whole record. It returns the merged data map.
func (m *Manager) Update(ctx context.Context, sess *domain.Session, patch map[string]any) (map[string]any, error) {
	if sess.Data == nil {
		sess.Data = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		sess.Data[k] = v
	}

	if err := m.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	return sess.Data, nil
}

// Destroy removes the session. Destroying a session that does not
// exist is an error, so callers can surface it distinctly.
func (m *Manager) Destroy(ctx context.Context, connectionID string) error {
	existed, err := m.store.Delete(ctx, connectionID)
	if err != nil {
		return fmt.Errorf("failed to destroy session: %w", err)
	}
	if !existed {
		return domain.ErrSessionNotFound
	}

	m.logger.Debug("session destroyed", "connection_id", connectionID)
	return nil
}

// List returns the ids of all live sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Verify reports whether the presented CSRF token matches the session's
// in constant time.
func (m *Manager) Verify(sess *domain.Session, token string) bool {
	if sess == nil || sess.CSRFToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(sess.CSRFToken), []byte(token)) == 1
}
