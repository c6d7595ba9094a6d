package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor/pkg/domain"
)

// reportScript applies one child report atomically: bump the counter,
// append the payload, and renew the TTL on the hash and both lists. It
// refuses to touch an aggregate whose hash is gone, so stragglers after
// expiry cannot resurrect a half-empty aggregate.
var reportScript = backend.NewScript(`
local ttl = redis.call('HGET', KEYS[1], 'ttl_sec')
if not ttl then
  return 0
end
redis.call('HINCRBY', KEYS[1], ARGV[1], 1)
redis.call('RPUSH', KEYS[2], ARGV[2])
redis.call('EXPIRE', KEYS[1], ttl)
redis.call('EXPIRE', KEYS[2], ttl)
redis.call('EXPIRE', KEYS[3], ttl)
return 1
`)

// Aggregates implements ports.AggregateStore on Redis. The counters
// live in a hash and the per-child payloads in two lists; reports go
// through a script so concurrent children never lose updates.
type Aggregates struct {
	client *backend.Client
	prefix string
}

// NewAggregates creates a Redis-backed fan-out aggregate store.
func NewAggregates(client *backend.Client, opts ...Option) *Aggregates {
	s := newSettings(opts...)
	return &Aggregates{
		client: client,
		prefix: s.prefix,
	}
}

func (a *Aggregates) key(id string) string {
	return a.prefix + "fanout:" + id
}

func (a *Aggregates) resultsKey(id string) string {
	return a.key(id) + ":results"
}

func (a *Aggregates) errorsKey(id string) string {
	return a.key(id) + ":errors"
}

// Create registers a new aggregate hash with the expected total.
func (a *Aggregates) Create(ctx context.Context, id string, total int, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = domain.DefaultFanOutTTL
	}

	pipe := a.client.Pipeline()
	pipe.HSet(ctx, a.key(id),
		"total", total,
		"completed", 0,
		"failed", 0,
		"created_at", time.Now().UTC().Format(time.RFC3339Nano),
		"ttl_sec", int(ttl.Seconds()),
	)
	pipe.Expire(ctx, a.key(id), ttl)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create aggregate: %w", err)
	}
	return nil
}

// AddResult records one successful child.
func (a *Aggregates) AddResult(ctx context.Context, id string, result any) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return a.report(ctx, id, "completed", a.resultsKey(id), a.errorsKey(id), payload)
}

// AddError records one failed child.
func (a *Aggregates) AddError(ctx context.Context, id string, cause *domain.Error) error {
	payload, err := json.Marshal(cause)
	if err != nil {
		return fmt.Errorf("failed to encode error: %w", err)
	}
	return a.report(ctx, id, "failed", a.errorsKey(id), a.resultsKey(id), payload)
}

func (a *Aggregates) report(ctx context.Context, id, counter, target, sibling string, payload []byte) error {
	ok, err := reportScript.Run(ctx, a.client,
		[]string{a.key(id), target, sibling},
		counter, payload,
	).Int()
	if err != nil {
		return fmt.Errorf("failed to report to aggregate: %w", err)
	}
	if ok == 0 {
		return domain.ErrFanOutNotFound
	}
	return nil
}

// Status returns a snapshot of the aggregate without renewing its TTL.
func (a *Aggregates) Status(ctx context.Context, id string) (*domain.FanOutStatus, error) {
	pipe := a.client.Pipeline()
	hash := pipe.HGetAll(ctx, a.key(id))
	results := pipe.LRange(ctx, a.resultsKey(id), 0, -1)
	failures := pipe.LRange(ctx, a.errorsKey(id), 0, -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to read aggregate: %w", err)
	}

	fields := hash.Val()
	if len(fields) == 0 {
		return nil, domain.ErrFanOutNotFound
	}

	status := &domain.FanOutStatus{ID: id}
	status.Total, _ = strconv.Atoi(fields["total"])
	status.Completed, _ = strconv.Atoi(fields["completed"])
	status.Failed, _ = strconv.Atoi(fields["failed"])
	if created, err := time.Parse(time.RFC3339Nano, fields["created_at"]); err == nil {
		status.CreatedAt = created
	}

	for _, raw := range results.Val() {
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to decode result: %w", err)
		}
		status.Results = append(status.Results, value)
	}
	for _, raw := range failures.Val() {
		var value domain.Error
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("failed to decode error: %w", err)
		}
		status.Errors = append(status.Errors, value)
	}
	return status, nil
}
