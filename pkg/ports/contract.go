package ports

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

// RunSessionStoreContract verifies that a SessionStore implementation
// adheres to the interface contract. TTL mechanics are backend-specific
// and covered by each adapter's own tests.
func RunSessionStoreContract(t *testing.T, store SessionStore) {
	ctx := context.Background()
	connID := "contract-" + uuid.NewString()

	newSession := func(id string) *domain.Session {
		return &domain.Session{
			ID:        id,
			CSRFToken: uuid.NewString(),
			CreatedAt: time.Now().UTC().Truncate(time.Second),
			Data:      map[string]any{"user": "ada"},
		}
	}

	t.Run("SaveAndLoad", func(t *testing.T) {
		sess := newSession(connID)
		require.NoError(t, store.Save(ctx, sess))

		loaded, err := store.Load(ctx, connID)
		require.NoError(t, err)
		assert.Equal(t, sess.ID, loaded.ID)
		assert.Equal(t, sess.CSRFToken, loaded.CSRFToken)
		assert.Equal(t, "ada", loaded.Data["user"])
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		sess := newSession(connID)
		sess.Data["user"] = "grace"
		sess.Data["role"] = "admin"
		require.NoError(t, store.Save(ctx, sess))

		loaded, err := store.Load(ctx, connID)
		require.NoError(t, err)
		assert.Equal(t, "grace", loaded.Data["user"])
		assert.Equal(t, "admin", loaded.Data["role"])
	})

	t.Run("LoadMissing", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		existed, err := store.Delete(ctx, connID)
		require.NoError(t, err)
		assert.True(t, existed)

		_, err = store.Load(ctx, connID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)

		existed, err = store.Delete(ctx, connID)
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("List", func(t *testing.T) {
		id1 := connID + "-1"
		id2 := connID + "-2"
		require.NoError(t, store.Save(ctx, newSession(id1)))
		require.NoError(t, store.Save(ctx, newSession(id2)))
		defer func() {
			_, _ = store.Delete(ctx, id1)
			_, _ = store.Delete(ctx, id2)
		}()

		ids, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, ids, id1)
		assert.Contains(t, ids, id2)
	})
}

// RunAggregateStoreContract verifies the fan-out aggregate semantics,
// including the no-lost-updates guarantee under concurrent reports.
func RunAggregateStoreContract(t *testing.T, store AggregateStore) {
	ctx := context.Background()

	t.Run("CreateAndZeroStatus", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, store.Create(ctx, id, 3, time.Minute))

		status, err := store.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 3, status.Total)
		assert.Equal(t, 0, status.Completed)
		assert.Equal(t, 0, status.Failed)
		assert.Empty(t, status.Results)
		assert.Empty(t, status.Errors)
		assert.False(t, status.Terminal())
	})

	t.Run("ReportsAccumulate", func(t *testing.T) {
		id := uuid.NewString()
		require.NoError(t, store.Create(ctx, id, 3, time.Minute))

		require.NoError(t, store.AddResult(ctx, id, map[string]any{"n": 1}))
		require.NoError(t, store.AddResult(ctx, id, map[string]any{"n": 2}))
		require.NoError(t, store.AddError(ctx, id, domain.NewError(domain.KindRun, "child exploded")))

		status, err := store.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, 2, status.Completed)
		assert.Equal(t, 1, status.Failed)
		assert.Len(t, status.Results, 2)
		require.Len(t, status.Errors, 1)
		assert.Equal(t, domain.KindRun, status.Errors[0].Kind)
		assert.Equal(t, "child exploded", status.Errors[0].Message)
		assert.True(t, status.Terminal())
	})

	t.Run("StatusMissing", func(t *testing.T) {
		_, err := store.Status(ctx, "missing-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrFanOutNotFound)
	})

	t.Run("ReportAgainstMissing", func(t *testing.T) {
		id := "missing-" + uuid.NewString()
		assert.ErrorIs(t, store.AddResult(ctx, id, "late"), domain.ErrFanOutNotFound)
		assert.ErrorIs(t, store.AddError(ctx, id, domain.NewError(domain.KindRun, "late")), domain.ErrFanOutNotFound)
	})

	t.Run("ConcurrentReportsLoseNothing", func(t *testing.T) {
		const n = 50
		id := uuid.NewString()
		require.NoError(t, store.Create(ctx, id, n, time.Minute))

		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				if i%2 == 0 {
					_ = store.AddResult(ctx, id, i)
				} else {
					_ = store.AddError(ctx, id, domain.NewError(domain.KindRun, "worker %d failed", i))
				}
			}(i)
		}
		wg.Wait()

		status, err := store.Status(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, n, status.Completed+status.Failed)
		assert.Equal(t, n/2, status.Completed)
		assert.Equal(t, n/2, status.Failed)
		assert.Len(t, status.Results, n/2)
		assert.Len(t, status.Errors, n/2)
	})
}

// RunTaskQueueContract verifies queue ordering, blocking, and depth.
func RunTaskQueueContract(t *testing.T, queue TaskQueue) {
	ctx := context.Background()

	task := func(queueName, action string) *domain.Task {
		return &domain.Task{
			ID:         uuid.NewString(),
			Action:     action,
			Queue:      queueName,
			Params:     map[string]string{"x": "1"},
			EnqueuedAt: time.Now().UTC(),
		}
	}

	t.Run("FIFO", func(t *testing.T) {
		q := "contract-fifo-" + uuid.NewString()
		require.NoError(t, queue.Enqueue(ctx, task(q, "first"), task(q, "second")))

		got, err := queue.Dequeue(ctx, []string{q}, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "first", got.Action)
		assert.Equal(t, q, got.Queue)
		assert.Equal(t, map[string]string{"x": "1"}, got.Params)

		got, err = queue.Dequeue(ctx, []string{q}, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "second", got.Action)
	})

	t.Run("TimeoutReturnsNil", func(t *testing.T) {
		q := "contract-empty-" + uuid.NewString()
		got, err := queue.Dequeue(ctx, []string{q}, 50*time.Millisecond)
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("MultipleQueues", func(t *testing.T) {
		q1 := "contract-a-" + uuid.NewString()
		q2 := "contract-b-" + uuid.NewString()
		require.NoError(t, queue.Enqueue(ctx, task(q2, "from-b")))

		got, err := queue.Dequeue(ctx, []string{q1, q2}, time.Second)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "from-b", got.Action)
	})

	t.Run("Depth", func(t *testing.T) {
		q := "contract-depth-" + uuid.NewString()
		depth, err := queue.Depth(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, int64(0), depth)

		require.NoError(t, queue.Enqueue(ctx, task(q, "one"), task(q, "two"), task(q, "three")))
		depth, err = queue.Depth(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, int64(3), depth)
	})
}

// RunBrokerContract verifies publish/subscribe delivery and teardown.
func RunBrokerContract(t *testing.T, broker Broker) {
	ctx := context.Background()

	t.Run("PublishReachesSubscriber", func(t *testing.T) {
		channel := "contract-" + uuid.NewString()
		msgs, stop, err := broker.Subscribe(ctx, channel)
		require.NoError(t, err)
		defer func() { _ = stop() }()

		// Publish may race the subscription handshake on networked
		// backends; retry until the message lands or we give up.
		deadline := time.After(2 * time.Second)
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				require.NoError(t, broker.Publish(ctx, channel, []byte("hello")))
			case msg := <-msgs:
				assert.Equal(t, channel, msg.Channel)
				assert.Equal(t, []byte("hello"), msg.Payload)
				return
			case <-deadline:
				t.Fatal("no message delivered before deadline")
			}
		}
	})

	t.Run("StopClosesChannel", func(t *testing.T) {
		channel := "contract-" + uuid.NewString()
		msgs, stop, err := broker.Subscribe(ctx, channel)
		require.NoError(t, err)

		require.NoError(t, stop())
		select {
		case _, open := <-msgs:
			assert.False(t, open, "message channel should close after stop")
		case <-time.After(2 * time.Second):
			t.Fatal("message channel did not close after stop")
		}
	})

	t.Run("UnrelatedChannelStaysSilent", func(t *testing.T) {
		channel := "contract-" + uuid.NewString()
		msgs, stop, err := broker.Subscribe(ctx, channel)
		require.NoError(t, err)
		defer func() { _ = stop() }()

		require.NoError(t, broker.Publish(ctx, "other-"+uuid.NewString(), []byte("noise")))
		select {
		case msg := <-msgs:
			t.Fatalf("unexpected delivery: %v", msg)
		case <-time.After(100 * time.Millisecond):
		}
	})
}
