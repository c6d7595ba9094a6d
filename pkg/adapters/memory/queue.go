package memory

import (
	"context"
	"sync"
	"time"

	"github.com/aretw0/arbor/pkg/domain"
)

// Queue implements ports.TaskQueue with per-queue FIFO slices. Dequeue
// blocks on a condition variable that enqueues, timeouts, and context
// cancellation all broadcast to.
type Queue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queues map[string][]*domain.Task
}

// NewQueue creates an in-memory task queue.
func NewQueue() *Queue {
	q := &Queue{
		queues: make(map[string][]*domain.Task),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends the tasks to their queues in order and wakes waiters.
func (q *Queue) Enqueue(ctx context.Context, tasks ...*domain.Task) error {
	if len(tasks) == 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	for _, task := range tasks {
		name := task.Queue
		if name == "" {
			name = domain.DefaultQueue
		}
		q.queues[name] = append(q.queues[name], copyTask(task, name))
	}
	q.cond.Broadcast()
	return nil
}

// Dequeue pops the oldest task from the first non-empty queue, checking
// the queues in the order given. It blocks up to the given duration and
// returns (nil, nil) when nothing arrived in time.
func (q *Queue) Dequeue(ctx context.Context, queues []string, block time.Duration) (*domain.Task, error) {
	deadline := time.Now().Add(block)

	// Cond.Wait has no timeout, so arm wakeups out of band.
	timer := time.AfterFunc(block, q.cond.Broadcast)
	defer timer.Stop()
	stop := context.AfterFunc(ctx, q.cond.Broadcast)
	defer stop()

	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, name := range queues {
			tasks := q.queues[name]
			if len(tasks) == 0 {
				continue
			}
			task := tasks[0]
			if len(tasks) == 1 {
				delete(q.queues, name)
			} else {
				q.queues[name] = tasks[1:]
			}
			return task, nil
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		q.cond.Wait()
	}
}

// Depth reports how many tasks are waiting in the queue.
func (q *Queue) Depth(ctx context.Context, queue string) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.queues[queue])), nil
}

func copyTask(task *domain.Task, queue string) *domain.Task {
	copied := *task
	copied.Queue = queue
	copied.Params = make(map[string]string, len(task.Params))
	for k, v := range task.Params {
		copied.Params[k] = v
	}
	return &copied
}
