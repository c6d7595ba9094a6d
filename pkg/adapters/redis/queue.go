package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/aretw0/arbor/pkg/domain"
)

// Queue implements ports.TaskQueue on Redis lists. Tasks are LPUSHed
// and BRPOPed, so each list is FIFO and any number of workers can
// compete for the same queues.
type Queue struct {
	client *backend.Client
	prefix string
}

// NewQueue creates a Redis-backed task queue.
func NewQueue(client *backend.Client, opts ...Option) *Queue {
	s := newSettings(opts...)
	return &Queue{
		client: client,
		prefix: s.prefix,
	}
}

func (q *Queue) key(queue string) string {
	return q.prefix + "queue:" + queue
}

// Enqueue appends the tasks to their queues. Tasks for the same queue
// go out in one LPUSH, so a batch costs one round trip per distinct
// queue.
func (q *Queue) Enqueue(ctx context.Context, tasks ...*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	order := make([]string, 0, len(tasks))
	payloads := make(map[string][]any, 1)
	for _, task := range tasks {
		name := task.Queue
		if name == "" {
			name = domain.DefaultQueue
		}
		normalized := *task
		normalized.Queue = name

		data, err := json.Marshal(&normalized)
		if err != nil {
			return fmt.Errorf("failed to marshal task %s: %w", task.ID, err)
		}
		if _, seen := payloads[name]; !seen {
			order = append(order, name)
		}
		payloads[name] = append(payloads[name], data)
	}

	pipe := q.client.Pipeline()
	for _, name := range order {
		pipe.LPush(ctx, q.key(name), payloads[name]...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue tasks: %w", err)
	}
	return nil
}

// Dequeue pops the oldest task from the first queue that has one,
// blocking up to the given duration. Redis rounds sub-second blocks up
// to one second. A timeout returns (nil, nil).
func (q *Queue) Dequeue(ctx context.Context, queues []string, block time.Duration) (*domain.Task, error) {
	keys := make([]string, len(queues))
	for i, name := range queues {
		keys[i] = q.key(name)
	}

	val, err := q.client.BRPop(ctx, block, keys...).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to dequeue task: %w", err)
	}

	// BRPOP returns [key, value].
	var task domain.Task
	if err := json.Unmarshal([]byte(val[1]), &task); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task: %w", err)
	}
	return &task, nil
}

// Depth reports how many tasks are waiting in the queue.
func (q *Queue) Depth(ctx context.Context, queue string) (int64, error) {
	depth, err := q.client.LLen(ctx, q.key(queue)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return depth, nil
}
