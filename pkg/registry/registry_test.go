package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/pkg/domain"
)

func noop(ctx context.Context, p domain.Params, c domain.Caller) (any, error) {
	return nil, nil
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name    string
		action  *domain.Action
		wantErr string
	}{
		{
			name:    "nil action",
			action:  nil,
			wantErr: "nil action",
		},
		{
			name:    "empty name",
			action:  &domain.Action{Run: noop},
			wantErr: "without a name",
		},
		{
			name:    "missing run",
			action:  &domain.Action{Name: "broken"},
			wantErr: "no run handler",
		},
		{
			name: "duplicate input",
			action: &domain.Action{
				Name: "dup",
				Run:  noop,
				Inputs: []domain.Input{
					{Name: "x"}, {Name: "x"},
				},
			},
			wantErr: `input "x" twice`,
		},
		{
			name: "unnamed input",
			action: &domain.Action{
				Name:   "anon",
				Run:    noop,
				Inputs: []domain.Input{{}},
			},
			wantErr: "unnamed input",
		},
		{
			name: "route without slash",
			action: &domain.Action{
				Name: "badroute",
				Run:  noop,
				Web:  &domain.WebBinding{Method: "GET", Route: "things"},
			},
			wantErr: "must start with /",
		},
		{
			name: "binding without method",
			action: &domain.Action{
				Name: "badverb",
				Run:  noop,
				Web:  &domain.WebBinding{Route: "/things"},
			},
			wantErr: "no method",
		},
		{
			name: "negative frequency",
			action: &domain.Action{
				Name: "backwards",
				Run:  noop,
				Task: &domain.TaskBinding{Frequency: -time.Second},
			},
			wantErr: "negative task frequency",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New().Register(tt.action)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestRegisterDuplicateName(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&domain.Action{Name: "echo", Run: noop}))

	err := r.Register(&domain.Action{Name: "echo", Run: noop})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterRouteCollision(t *testing.T) {
	t.Run("identical literal routes", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Register(&domain.Action{
			Name: "a", Run: noop,
			Web: &domain.WebBinding{Method: "GET", Route: "/things"},
		}))
		err := r.Register(&domain.Action{
			Name: "b", Run: noop,
			Web: &domain.WebBinding{Method: "get", Route: "/things"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collides")
	})

	t.Run("param route shadows literal", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Register(&domain.Action{
			Name: "byID", Run: noop,
			Web: &domain.WebBinding{Method: "GET", Route: "/things/{id}"},
		}))
		err := r.Register(&domain.Action{
			Name: "list", Run: noop,
			Web: &domain.WebBinding{Method: "GET", Route: "/things/all"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "collides")
	})

	t.Run("different verbs never collide", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Register(&domain.Action{
			Name: "read", Run: noop,
			Web: &domain.WebBinding{Method: "GET", Route: "/things"},
		}))
		require.NoError(t, r.Register(&domain.Action{
			Name: "write", Run: noop,
			Web: &domain.WebBinding{Method: "POST", Route: "/things"},
		}))
	})

	t.Run("different depths never collide", func(t *testing.T) {
		r := New()
		require.NoError(t, r.Register(&domain.Action{
			Name: "root", Run: noop,
			Web: &domain.WebBinding{Method: "GET", Route: "/things"},
		}))
		require.NoError(t, r.Register(&domain.Action{
			Name: "nested", Run: noop,
			Web: &domain.WebBinding{Method: "GET", Route: "/things/{id}"},
		}))
	})
}

func TestResolve(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&domain.Action{Name: "echo", Run: noop}))

	a, ok := r.Resolve("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", a.Name)

	_, ok = r.Resolve("missing")
	assert.False(t, ok)
}

func TestListSorted(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&domain.Action{Name: "zeta", Run: noop}))
	require.NoError(t, r.Register(&domain.Action{Name: "alpha", Run: noop}))

	names := []string{}
	for _, a := range r.List() {
		names = append(names, a.Name)
	}
	assert.Equal(t, []string{"alpha", "zeta"}, names)
	assert.Equal(t, 2, r.Len())
}

func TestPeriodicAndQueues(t *testing.T) {
	r := New()
	require.NoError(t, r.Register(&domain.Action{
		Name: "tick", Run: noop,
		Task: &domain.TaskBinding{Queue: "cron", Frequency: time.Minute},
	}))
	require.NoError(t, r.Register(&domain.Action{
		Name: "once", Run: noop,
		Task: &domain.TaskBinding{Queue: "slow"},
	}))
	require.NoError(t, r.Register(&domain.Action{Name: "plain", Run: noop}))

	periodic := r.Periodic()
	require.Len(t, periodic, 1)
	assert.Equal(t, "tick", periodic[0].Name)

	assert.Equal(t, []string{"cron", "default", "slow"}, r.Queues())
}
