package arbor

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/arbor/pkg/domain"
)

// Worker drains task queues and runs the bound actions on connections
// of kind task. Any number of workers may compete for the same queues;
// each task is delivered to one of them.
//
// Each worker also schedules the registry's periodic actions. With
// several workers running, periodic actions fire at least once per
// interval; disable scheduling on all but one worker when exactly-once
// matters.
type Worker struct {
	engine      *Engine
	queues      []string
	concurrency int
	block       time.Duration
	schedule    bool
	logger      *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithConcurrency sets how many consumers drain the queues.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.concurrency = n
		}
	}
}

// WithQueues restricts the worker to the given queues instead of every
// queue the registry knows.
func WithQueues(queues ...string) WorkerOption {
	return func(w *Worker) {
		if len(queues) > 0 {
			w.queues = queues
		}
	}
}

// WithDequeueTimeout sets the blocking window per dequeue call.
func WithDequeueTimeout(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.block = d
		}
	}
}

// WithoutScheduler turns off periodic action scheduling on this worker.
func WithoutScheduler() WorkerOption {
	return func(w *Worker) {
		w.schedule = false
	}
}

// NewWorker creates a worker over the engine's queue.
func (e *Engine) NewWorker(opts ...WorkerOption) *Worker {
	w := &Worker{
		engine:      e,
		concurrency: 1,
		block:       2 * time.Second,
		schedule:    true,
		logger:      e.logger.With("component", "worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run blocks until the context is canceled, draining queues and firing
// periodic actions. Cancellation is a clean stop.
func (w *Worker) Run(ctx context.Context) error {
	queues := w.queues
	if len(queues) == 0 {
		queues = w.engine.registry.Queues()
	}
	w.logger.Info("worker started", "queues", queues, "concurrency", w.concurrency)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		g.Go(func() error {
			return w.consume(ctx, queues)
		})
	}
	if w.schedule {
		for _, action := range w.engine.registry.Periodic() {
			action := action
			g.Go(func() error {
				return w.tick(ctx, action)
			})
		}
	}

	err := g.Wait()
	w.logger.Info("worker stopped")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (w *Worker) consume(ctx context.Context, queues []string) error {
	for {
		task, err := w.engine.queue.Dequeue(ctx, queues, w.block)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.logger.Error("failed to dequeue", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		if task == nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}
		w.process(ctx, task)
	}
}

// process runs one task through the standard dispatch pipeline and,
// for fan-out children, reports the outcome into the aggregate.
func (w *Worker) process(ctx context.Context, task *domain.Task) {
	conn := w.engine.NewConnection(domain.ConnectionTask, "")

	raw := make(map[string]any, len(task.Params))
	for k, v := range task.Params {
		raw[k] = v
	}
	resp := conn.Act(ctx, task.Action, raw)

	outcome := "ok"
	if resp.Error != nil {
		outcome = "error"
	}
	w.engine.collector.ObserveTask(task.Queue, outcome)

	if task.FanOutID == "" {
		return
	}

	var reportErr error
	if resp.Error != nil {
		reportErr = w.engine.coordinator.ReportError(ctx, task.FanOutID, resp.Error)
	} else {
		reportErr = w.engine.coordinator.ReportResult(ctx, task.FanOutID, resp.Response)
	}
	if reportErr != nil {
		if errors.Is(reportErr, domain.ErrFanOutNotFound) {
			// The aggregate expired while the child was in flight.
			w.logger.Debug("late fan-out report dropped", "fan_out_id", task.FanOutID, "task_id", task.ID)
			return
		}
		w.logger.Error("failed to report fan-out outcome",
			"fan_out_id", task.FanOutID, "task_id", task.ID, "error", reportErr)
	}
}

func (w *Worker) tick(ctx context.Context, action *domain.Action) error {
	ticker := time.NewTicker(action.Task.Frequency)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			task := &domain.Task{
				ID:         uuid.NewString(),
				Action:     action.Name,
				Queue:      action.Task.Queue,
				EnqueuedAt: time.Now().UTC(),
			}
			if err := w.engine.queue.Enqueue(ctx, task); err != nil {
				w.logger.Error("failed to enqueue periodic action", "action", action.Name, "error", err)
			}
		}
	}
}
