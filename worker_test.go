package arbor_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/params"
)

func startWorker(t *testing.T, w *arbor.Worker) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("worker did not stop after cancel")
		}
	})
}

func TestWorker_ProcessesQueuedTasks(t *testing.T) {
	engine, err := arbor.New()
	require.NoError(t, err)

	var calls atomic.Int32
	var lastName atomic.Value
	require.NoError(t, engine.Register(&domain.Action{
		Name: "record",
		Inputs: []domain.Input{
			{Name: "name", Required: true, Formatter: params.String},
		},
		Task: &domain.TaskBinding{},
		Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
			calls.Add(1)
			lastName.Store(p.String("name"))
			return nil, nil
		},
	}))

	ctx := context.Background()
	require.NoError(t, engine.Queue().Enqueue(ctx, &domain.Task{
		ID:         "t-1",
		Action:     "record",
		Params:     map[string]string{"name": "ada"},
		EnqueuedAt: time.Now().UTC(),
	}))

	startWorker(t, engine.NewWorker(
		arbor.WithDequeueTimeout(50*time.Millisecond),
		arbor.WithoutScheduler(),
	))

	require.Eventually(t, func() bool {
		return calls.Load() == 1
	}, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "ada", lastName.Load())
}

func TestWorker_RestrictedQueuesIgnoreOthers(t *testing.T) {
	engine, err := arbor.New()
	require.NoError(t, err)

	var urgent, routine atomic.Int32
	require.NoError(t, engine.Register(
		&domain.Action{
			Name: "urgent",
			Task: &domain.TaskBinding{Queue: "urgent"},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				urgent.Add(1)
				return nil, nil
			},
		},
		&domain.Action{
			Name: "routine",
			Task: &domain.TaskBinding{},
			Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
				routine.Add(1)
				return nil, nil
			},
		},
	))

	ctx := context.Background()
	require.NoError(t, engine.Queue().Enqueue(ctx,
		&domain.Task{ID: "u-1", Action: "urgent", Queue: "urgent", EnqueuedAt: time.Now().UTC()},
		&domain.Task{ID: "r-1", Action: "routine", EnqueuedAt: time.Now().UTC()},
	))

	startWorker(t, engine.NewWorker(
		arbor.WithQueues("urgent"),
		arbor.WithDequeueTimeout(50*time.Millisecond),
		arbor.WithoutScheduler(),
	))

	require.Eventually(t, func() bool {
		return urgent.Load() == 1
	}, 5*time.Second, 20*time.Millisecond)

	// The routine task stays put: this worker never watches its queue.
	depth, err := engine.Queue().Depth(ctx, domain.DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(1), depth)
	assert.Equal(t, int32(0), routine.Load())
}

func TestWorker_DropsLateFanOutReports(t *testing.T) {
	engine, err := arbor.New()
	require.NoError(t, err)

	var calls atomic.Int32
	require.NoError(t, engine.Register(&domain.Action{
		Name: "child",
		Task: &domain.TaskBinding{},
		Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
			calls.Add(1)
			return "done", nil
		},
	}))

	// The task references an aggregate that never existed, as if its
	// fan-out expired while the child waited in the queue.
	ctx := context.Background()
	require.NoError(t, engine.Queue().Enqueue(ctx,
		&domain.Task{ID: "late-1", Action: "child", FanOutID: "expired", EnqueuedAt: time.Now().UTC()},
		&domain.Task{ID: "ok-1", Action: "child", EnqueuedAt: time.Now().UTC()},
	))

	startWorker(t, engine.NewWorker(
		arbor.WithDequeueTimeout(50*time.Millisecond),
		arbor.WithoutScheduler(),
	))

	// Both tasks run; the orphaned report is dropped, not fatal.
	require.Eventually(t, func() bool {
		return calls.Load() == 2
	}, 5*time.Second, 20*time.Millisecond)

	_, err = engine.Coordinator().Status(ctx, "expired")
	assert.ErrorIs(t, err, domain.ErrFanOutNotFound)
}

func TestWorker_SchedulesPeriodicActions(t *testing.T) {
	engine, err := arbor.New()
	require.NoError(t, err)

	var ticks atomic.Int32
	require.NoError(t, engine.Register(&domain.Action{
		Name: "heartbeat",
		Task: &domain.TaskBinding{Frequency: 20 * time.Millisecond},
		Run: func(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
			ticks.Add(1)
			return nil, nil
		},
	}))

	startWorker(t, engine.NewWorker(
		arbor.WithDequeueTimeout(50 * time.Millisecond),
	))

	// The scheduler re-enqueues on every interval, so the count keeps
	// climbing while the worker runs.
	require.Eventually(t, func() bool {
		return ticks.Load() >= 2
	}, 5*time.Second, 10*time.Millisecond)
}
