package fanout_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/fanout"
	"github.com/aretw0/arbor/pkg/ports"
)

func TestCoordinator_FanOutEnqueuesChildren(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewQueue()
	store := memory.NewAggregates()
	coord := fanout.NewCoordinator(queue, store)

	receipt, err := coord.FanOut(ctx, domain.FanOutRequest{
		Action: "resize",
		InputSets: []map[string]string{
			{"image": "a.png"},
			{"image": "b.png"},
			{"image": "c.png"},
		},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.ID)
	assert.Equal(t, 3, receipt.Total)

	depth, err := queue.Depth(ctx, domain.DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(3), depth)

	// Children carry the aggregate id and their own inputs, in order.
	for _, want := range []string{"a.png", "b.png", "c.png"} {
		task, err := queue.Dequeue(ctx, []string{domain.DefaultQueue}, time.Second)
		require.NoError(t, err)
		require.NotNil(t, task)
		assert.Equal(t, "resize", task.Action)
		assert.Equal(t, receipt.ID, task.FanOutID)
		assert.Equal(t, want, task.Params["image"])
	}

	status, err := coord.Status(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Total)
	assert.Equal(t, 0, status.Completed)
}

func TestCoordinator_ExplicitJobsWin(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewQueue()
	coord := fanout.NewCoordinator(queue, memory.NewAggregates())

	receipt, err := coord.FanOut(ctx, domain.FanOutRequest{
		Action:    "ignored",
		InputSets: []map[string]string{{"x": "1"}},
		Jobs: []domain.FanOutJob{
			{Action: "transcode", Inputs: map[string]string{"v": "1"}, Queue: "video"},
			{Action: "thumbnail", Inputs: map[string]string{"v": "1"}},
		},
		Queue: "media",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, receipt.Total)

	// Per-job queue wins over the request queue; the request queue
	// catches jobs without one.
	task, err := queue.Dequeue(ctx, []string{"video"}, time.Second)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "transcode", task.Action)

	task, err = queue.Dequeue(ctx, []string{"media"}, time.Second)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, "thumbnail", task.Action)
}

func TestCoordinator_RejectsEmptyRequest(t *testing.T) {
	coord := fanout.NewCoordinator(memory.NewQueue(), memory.NewAggregates())

	_, err := coord.FanOut(context.Background(), domain.FanOutRequest{Action: "noop"})
	assert.Error(t, err)
}

func TestCoordinator_Reports(t *testing.T) {
	ctx := context.Background()
	coord := fanout.NewCoordinator(memory.NewQueue(), memory.NewAggregates())

	receipt, err := coord.FanOut(ctx, domain.FanOutRequest{
		Action:    "work",
		InputSets: []map[string]string{{"n": "1"}, {"n": "2"}},
	})
	require.NoError(t, err)

	require.NoError(t, coord.ReportResult(ctx, receipt.ID, map[string]any{"n": 1}))
	require.NoError(t, coord.ReportError(ctx, receipt.ID, domain.NewError(domain.KindRun, "child 2 failed")))

	status, err := coord.Status(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Completed)
	assert.Equal(t, 1, status.Failed)
	assert.True(t, status.Terminal())

	// Reports against an unknown aggregate surface the sentinel.
	err = coord.ReportResult(ctx, "gone", "late")
	assert.ErrorIs(t, err, domain.ErrFanOutNotFound)
}

// failingQueue rejects enqueues after the first call.
type failingQueue struct {
	ports.TaskQueue
	calls int
}

func (q *failingQueue) Enqueue(ctx context.Context, tasks ...*domain.Task) error {
	q.calls++
	if q.calls > 1 {
		return fmt.Errorf("broker unavailable")
	}
	return q.TaskQueue.Enqueue(ctx, tasks...)
}

func TestCoordinator_EnqueueFailureRecordsChildren(t *testing.T) {
	ctx := context.Background()
	queue := &failingQueue{TaskQueue: memory.NewQueue()}
	coord := fanout.NewCoordinator(queue, memory.NewAggregates(), fanout.WithBatchSize(2))

	receipt, err := coord.FanOut(ctx, domain.FanOutRequest{
		Action: "work",
		InputSets: []map[string]string{
			{"n": "1"}, {"n": "2"}, {"n": "3"}, {"n": "4"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, receipt.Total)

	// First batch of two went out; the second batch failed and its
	// children were recorded as failed.
	status, err := coord.Status(ctx, receipt.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Completed)
	assert.Equal(t, 2, status.Failed)
	require.Len(t, status.Errors, 2)
	assert.Equal(t, domain.KindRun, status.Errors[0].Kind)

	depth, err := queue.Depth(ctx, domain.DefaultQueue)
	require.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}

func TestCoordinator_BatchSizeFromRequest(t *testing.T) {
	ctx := context.Background()
	queue := &countingQueue{TaskQueue: memory.NewQueue()}
	coord := fanout.NewCoordinator(queue, memory.NewAggregates())

	sets := make([]map[string]string, 5)
	for i := range sets {
		sets[i] = map[string]string{"n": fmt.Sprint(i)}
	}

	_, err := coord.FanOut(ctx, domain.FanOutRequest{
		Action:    "work",
		InputSets: sets,
		BatchSize: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, queue.calls, "5 jobs at batch size 2 should take 3 enqueue calls")
}

type countingQueue struct {
	ports.TaskQueue
	calls int
}

func (q *countingQueue) Enqueue(ctx context.Context, tasks ...*domain.Task) error {
	q.calls++
	return q.TaskQueue.Enqueue(ctx, tasks...)
}
