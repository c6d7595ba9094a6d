package ports

import (
	"context"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// SessionStore persists sessions in a shared key-value store with per-key
// expiration. Sessions are not safety-critical state: concurrent writers
// for the same connection ID are last-write-wins, no compare-and-swap.
type SessionStore interface {
	// Save upserts the whole session record and resets its TTL.
	Save(ctx context.Context, sess *domain.Session) error

	// Load retrieves the session for a connection ID and refreshes its
	// TTL (sliding expiration). Returns domain.ErrSessionNotFound on miss.
	Load(ctx context.Context, connectionID string) (*domain.Session, error)

	// Delete removes the session. Reports whether a record existed.
	Delete(ctx context.Context, connectionID string) (bool, error)

	// List returns the IDs of live sessions (operational surface).
	List(ctx context.Context) ([]string, error)
}

// AggregateStore holds fan-out aggregates. AddResult and AddError are the
// correctness core of fan-out: the increment and append must be atomic in
// the backing store so concurrent reports from independent workers never
// lose updates. Every mutation refreshes the aggregate's TTL; expiry is
// the only deletion.
type AggregateStore interface {
	// Create initializes an aggregate with a fixed total and TTL.
	Create(ctx context.Context, id string, total int, ttl time.Duration) error

	// AddResult atomically increments the completed counter, appends the
	// result, and refreshes the TTL. Returns domain.ErrFanOutNotFound
	// when the aggregate expired or never existed.
	AddResult(ctx context.Context, id string, result any) error

	// AddError atomically increments the failed counter, appends the
	// error, and refreshes the TTL. Returns domain.ErrFanOutNotFound
	// when the aggregate expired or never existed.
	AddError(ctx context.Context, id string, cause *domain.Error) error

	// Status returns the aggregate view, or domain.ErrFanOutNotFound once
	// the TTL has elapsed. Reading does not refresh the TTL.
	Status(ctx context.Context, id string) (*domain.FanOutStatus, error)
}

// TaskQueue carries queued Action invocations. Delivery is at-least-once;
// consumers must tolerate duplicates.
type TaskQueue interface {
	// Enqueue pushes tasks onto their queues, fire-and-forget. Tasks in
	// one call may target different queues; implementations batch the
	// round-trips where the backend allows.
	Enqueue(ctx context.Context, tasks ...*domain.Task) error

	// Dequeue pops the oldest task from the first non-empty queue,
	// blocking up to block. Returns (nil, nil) when the wait times out.
	Dequeue(ctx context.Context, queues []string, block time.Duration) (*domain.Task, error)

	// Depth reports how many tasks sit in a queue.
	Depth(ctx context.Context, queue string) (int64, error)
}

// Broker is the pub/sub fabric behind connection subscriptions.
type Broker interface {
	// Publish sends payload to every subscriber of channel.
	Publish(ctx context.Context, channel string, payload []byte) error

	// Subscribe starts delivering messages for the named channels. The
	// returned stop function ends delivery and closes the channel.
	Subscribe(ctx context.Context, channels ...string) (<-chan domain.Message, func() error, error)
}
