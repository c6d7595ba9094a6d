package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// clock is a manually advanced time source shared by the TTL tests.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func TestSessions_Contract(t *testing.T) {
	ports.RunSessionStoreContract(t, memory.NewSessions())
}

func TestSessions_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := memory.NewSessions(
		memory.WithSessionTTL(10*time.Minute),
		memory.WithSessionClock(clk.now),
	)

	sess := &domain.Session{ID: "c1", CSRFToken: "tok", CreatedAt: clk.now(), Data: map[string]any{}}
	require.NoError(t, store.Save(ctx, sess))

	clk.advance(10 * time.Minute)
	_, err := store.Load(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessions_LoadSlidesTTL(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := memory.NewSessions(
		memory.WithSessionTTL(10*time.Minute),
		memory.WithSessionClock(clk.now),
	)

	sess := &domain.Session{ID: "c1", CSRFToken: "tok", CreatedAt: clk.now(), Data: map[string]any{}}
	require.NoError(t, store.Save(ctx, sess))

	// Each load within the window pushes the deadline out again.
	for i := 0; i < 3; i++ {
		clk.advance(9 * time.Minute)
		_, err := store.Load(ctx, "c1")
		require.NoError(t, err, "load %d should still be inside the window", i)
	}

	clk.advance(10 * time.Minute)
	_, err := store.Load(ctx, "c1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSessions_ListSkipsExpired(t *testing.T) {
	ctx := context.Background()
	clk := newClock()
	store := memory.NewSessions(
		memory.WithSessionTTL(10*time.Minute),
		memory.WithSessionClock(clk.now),
	)

	require.NoError(t, store.Save(ctx, &domain.Session{ID: "old", Data: map[string]any{}}))
	clk.advance(5 * time.Minute)
	require.NoError(t, store.Save(ctx, &domain.Session{ID: "fresh", Data: map[string]any{}}))
	clk.advance(6 * time.Minute)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh"}, ids)
}

func TestSessions_CopiesOnSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	store := memory.NewSessions()

	data := map[string]any{"user": "ada"}
	require.NoError(t, store.Save(ctx, &domain.Session{ID: "c1", Data: data}))
	data["user"] = "mutated"

	loaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "ada", loaded.Data["user"])

	loaded.Data["user"] = "mutated again"
	reloaded, err := store.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "ada", reloaded.Data["user"])
}
