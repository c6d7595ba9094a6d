package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor/pkg/domain"
)

// Sessions implements ports.SessionStore on Redis. Records live under
// session:{id} with a sliding TTL; a ZSET index scored by expiry makes
// listing cheap and lets expired members be pruned lazily.
type Sessions struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

// NewSessions creates a Redis-backed session store.
func NewSessions(client *backend.Client, opts ...Option) *Sessions {
	s := newSettings(opts...)
	return &Sessions{
		client: client,
		prefix: s.prefix,
		ttl:    s.sessionTTL,
	}
}

func (s *Sessions) key(connectionID string) string {
	return s.prefix + "session:" + connectionID
}

func (s *Sessions) indexKey() string {
	return s.prefix + "sessions"
}

// Save persists the whole record and resets its TTL.
func (s *Sessions) Save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	pipe := s.client.Pipeline()

	// 1. Store JSON with TTL
	pipe.Set(ctx, s.key(sess.ID), data, s.ttl)

	// 2. Index with the expiry as score so List can prune lazily
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(time.Now().Add(s.ttl).Unix()),
		Member: sess.ID,
	})

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session to redis: %w", err)
	}
	return nil
}

// Load retrieves the record and slides its TTL forward.
func (s *Sessions) Load(ctx context.Context, connectionID string) (*domain.Session, error) {
	val, err := s.client.Get(ctx, s.key(connectionID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to get session from redis: %w", err)
	}

	var sess domain.Session
	if err := json.Unmarshal([]byte(val), &sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}

	// Refresh the sliding window on both the record and the index.
	pipe := s.client.Pipeline()
	pipe.Expire(ctx, s.key(connectionID), s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{
		Score:  float64(time.Now().Add(s.ttl).Unix()),
		Member: connectionID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to refresh session ttl: %w", err)
	}

	return &sess, nil
}

// Delete removes the record and reports whether one existed.
func (s *Sessions) Delete(ctx context.Context, connectionID string) (bool, error) {
	pipe := s.client.Pipeline()
	del := pipe.Del(ctx, s.key(connectionID))
	pipe.ZRem(ctx, s.indexKey(), connectionID)

	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to delete session from redis: %w", err)
	}
	return del.Val() > 0, nil
}

// List returns the ids of all live sessions, pruning expired index
// members on the way.
func (s *Sessions) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	if err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err(); err != nil {
		return nil, fmt.Errorf("failed to prune expired sessions: %w", err)
	}

	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ids, nil
}
