// Package file implements ports.SessionStore on the local filesystem.
// Sessions are JSON files in one directory; the file mtime carries the
// sliding TTL. It exists for development and single-machine CLI use,
// where running Redis would be overkill but state should survive a
// restart.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Store implements ports.SessionStore using JSON files.
type Store struct {
	basePath string
	ttl      time.Duration
	now      func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides the sliding idle window.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a file store rooted at basePath. An empty basePath
// defaults to .arbor/sessions.
func New(basePath string, opts ...Option) *Store {
	if basePath == "" {
		basePath = filepath.Join(".arbor", "sessions")
	}
	s := &Store{
		basePath: basePath,
		ttl:      domain.DefaultSessionTTL,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) path(connectionID string) string {
	return filepath.Join(s.basePath, connectionID+".json")
}

func validID(connectionID string) error {
	if connectionID == "" {
		return fmt.Errorf("connection id cannot be empty")
	}
	// Ids become filenames, so they must not carry path elements.
	if filepath.Base(connectionID) != connectionID {
		return fmt.Errorf("invalid connection id %q", connectionID)
	}
	return nil
}

// Save writes the record atomically: temp file, fsync, rename.
func (s *Store) Save(ctx context.Context, sess *domain.Session) error {
	if err := validID(sess.ID); err != nil {
		return err
	}
	if err := os.MkdirAll(s.basePath, 0o755); err != nil {
		return fmt.Errorf("failed to ensure session directory: %w", err)
	}

	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// 1. Create the temp file in the same directory so the rename
	// stays on one filesystem.
	tmpFile, err := os.CreateTemp(s.basePath, "tmp-"+sess.ID+"-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = tmpFile.Close()
		_ = os.Remove(tmpPath)
	}()

	// 2. Write
	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	// 3. Fsync for durability
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("failed to fsync temp file: %w", err)
	}

	// 4. Close before rename (Windows cannot rename an open file)
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// 5. Rename into place. Windows refuses to replace an existing
	// destination, so clear it first and accept the tiny window.
	destPath := s.path(sess.ID)
	if _, err := os.Stat(destPath); err == nil {
		if err := os.Remove(destPath); err != nil {
			return fmt.Errorf("failed to replace session file: %w", err)
		}
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	if err := os.Chtimes(destPath, s.now(), s.now()); err != nil {
		return fmt.Errorf("failed to stamp session file: %w", err)
	}
	return nil
}

// Load reads the record and slides the TTL by touching the file.
func (s *Store) Load(ctx context.Context, connectionID string) (*domain.Session, error) {
	if err := validID(connectionID); err != nil {
		return nil, err
	}

	path := s.path(connectionID)
	if expired, err := s.expired(path); err != nil {
		return nil, err
	} else if expired {
		_ = os.Remove(path)
		return nil, domain.ErrSessionNotFound
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	if err := os.Chtimes(path, s.now(), s.now()); err != nil {
		return nil, fmt.Errorf("failed to refresh session file: %w", err)
	}
	return &sess, nil
}

// Delete removes the record and reports whether a live one existed.
func (s *Store) Delete(ctx context.Context, connectionID string) (bool, error) {
	if err := validID(connectionID); err != nil {
		return false, err
	}

	path := s.path(connectionID)
	expired, err := s.expired(path)
	if err != nil {
		return false, err
	}

	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete session file: %w", err)
	}
	return !expired, nil
}

// List returns the ids of all live sessions, pruning expired files.
func (s *Store) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".json" || strings.HasPrefix(name, "tmp-") {
			continue
		}
		path := filepath.Join(s.basePath, name)
		if expired, err := s.expired(path); err != nil || expired {
			if expired {
				_ = os.Remove(path)
			}
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	return ids, nil
}

// expired reports whether the file's mtime has fallen out of the TTL
// window. A missing file is not expired; the caller sees IsNotExist on
// its own read.
func (s *Store) expired(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat session file: %w", err)
	}
	return !s.now().Before(info.ModTime().Add(s.ttl)), nil
}
