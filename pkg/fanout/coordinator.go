package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/metrics"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// DefaultBatchSize bounds how many child tasks go out per enqueue call.
const DefaultBatchSize = 100

// Coordinator creates fan-outs and records child reports.
type Coordinator struct {
	queue     ports.TaskQueue
	store     ports.AggregateStore
	logger    *slog.Logger
	collector *metrics.Collector
	batchSize int
	newID     func() string
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithLogger configures a logger for the Coordinator.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCollector wires the metrics collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(c *Coordinator) {
		if collector != nil {
			c.collector = collector
		}
	}
}

// WithBatchSize overrides how many children go out per enqueue call.
func WithBatchSize(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

// WithIDFunc overrides fan-out and task id generation.
func WithIDFunc(newID func() string) Option {
	return func(c *Coordinator) {
		if newID != nil {
			c.newID = newID
		}
	}
}

// NewCoordinator creates a coordinator over the given queue and store.
func NewCoordinator(queue ports.TaskQueue, store ports.AggregateStore, opts ...Option) *Coordinator {
	c := &Coordinator{
		queue:     queue,
		store:     store,
		logger:    logging.NewNop(),
		collector: metrics.New(nil),
		batchSize: DefaultBatchSize,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FanOut registers an aggregate for the request's jobs and enqueues
// them in batches. It returns as soon as the children are queued; the
// receipt carries the id callers poll with Status.
//
// When a batch fails to enqueue, its children are recorded as failed in
// the aggregate and the remaining batches still go out, so the
// aggregate always accounts for every child.
func (c *Coordinator) FanOut(ctx context.Context, req domain.FanOutRequest) (*domain.FanOutReceipt, error) {
	jobs := req.Jobs
	if len(jobs) == 0 {
		for _, inputs := range req.InputSets {
			jobs = append(jobs, domain.FanOutJob{Action: req.Action, Inputs: inputs})
		}
	}
	if len(jobs) == 0 {
		return nil, fmt.Errorf("fan-out requires at least one job")
	}

	id := c.newID()
	if err := c.store.Create(ctx, id, len(jobs), req.ResultTTL); err != nil {
		return nil, fmt.Errorf("failed to create fan-out aggregate: %w", err)
	}

	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = c.batchSize
	}

	now := time.Now().UTC()
	for start := 0; start < len(jobs); start += batchSize {
		end := start + batchSize
		if end > len(jobs) {
			end = len(jobs)
		}

		batch := make([]*domain.Task, 0, end-start)
		for _, job := range jobs[start:end] {
			queue := job.Queue
			if queue == "" {
				queue = req.Queue
			}
			batch = append(batch, &domain.Task{
				ID:         c.newID(),
				Action:     job.Action,
				Params:     job.Inputs,
				Queue:      queue,
				FanOutID:   id,
				EnqueuedAt: now,
			})
		}

		if err := c.queue.Enqueue(ctx, batch...); err != nil {
			c.logger.Warn("fan-out batch failed to enqueue",
				"fan_out_id", id, "batch_start", start, "batch_len", len(batch), "error", err)
			for _, task := range batch {
				cause := domain.NewError(domain.KindRun, "failed to enqueue %s: %s", task.Action, err)
				if reportErr := c.ReportError(ctx, id, cause); reportErr != nil {
					c.logger.Error("failed to record enqueue failure",
						"fan_out_id", id, "task_id", task.ID, "error", reportErr)
				}
			}
		}
	}

	c.collector.ObserveFanOut(len(jobs))
	c.logger.Debug("fan-out created", "fan_out_id", id, "total", len(jobs))
	return &domain.FanOutReceipt{ID: id, Total: len(jobs)}, nil
}

// Status returns the aggregate's current counters and payloads.
func (c *Coordinator) Status(ctx context.Context, fanOutID string) (*domain.FanOutStatus, error) {
	return c.store.Status(ctx, fanOutID)
}

// ReportResult records one successful child.
func (c *Coordinator) ReportResult(ctx context.Context, fanOutID string, result any) error {
	if err := c.store.AddResult(ctx, fanOutID, result); err != nil {
		return err
	}
	c.collector.ObserveReport("completed")
	return nil
}

// ReportError records one failed child.
func (c *Coordinator) ReportError(ctx context.Context, fanOutID string, cause *domain.Error) error {
	if err := c.store.AddError(ctx, fanOutID, cause); err != nil {
		return err
	}
	c.collector.ObserveReport("failed")
	return nil
}
