// Package registry holds the set of registered Actions, indexed by name and
// queryable by transport matchers. Registration validates everything it can
// catch at boot: missing handlers, duplicate names, duplicate input keys,
// and web-route collisions. Resolution at runtime never mutates.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// Registry manages the available Actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]*domain.Action
	order   []string
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		actions: make(map[string]*domain.Action),
	}
}

// Register adds an Action. It fails on a nil or unnamed action, a nil Run,
// duplicate input names, a duplicate action name, or a web binding that
// would collide with an already registered one. All of this is caught at
// registration so dispatch never has to re-check.
func (r *Registry) Register(a *domain.Action) error {
	if a == nil {
		return fmt.Errorf("cannot register a nil action")
	}
	if a.Name == "" {
		return fmt.Errorf("cannot register an action without a name")
	}
	if a.Run == nil {
		return fmt.Errorf("action %q has no run handler", a.Name)
	}

	seen := make(map[string]bool, len(a.Inputs))
	for _, in := range a.Inputs {
		if in.Name == "" {
			return fmt.Errorf("action %q declares an unnamed input", a.Name)
		}
		if seen[in.Name] {
			return fmt.Errorf("action %q declares input %q twice", a.Name, in.Name)
		}
		seen[in.Name] = true
	}

	if a.Web != nil {
		if err := validateWebBinding(a); err != nil {
			return err
		}
	}
	if a.Task != nil && a.Task.Frequency < 0 {
		return fmt.Errorf("action %q has a negative task frequency", a.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.actions[a.Name]; exists {
		return fmt.Errorf("action %q is already registered", a.Name)
	}
	for _, name := range r.order {
		other := r.actions[name]
		if bindingsCollide(a.Web, other.Web) {
			return fmt.Errorf("action %q web binding %s %s collides with action %q",
				a.Name, a.Web.Method, a.Web.Route, other.Name)
		}
	}

	r.actions[a.Name] = a
	r.order = append(r.order, a.Name)
	return nil
}

// Resolve looks an Action up by name.
func (r *Registry) Resolve(name string) (*domain.Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[name]
	return a, ok
}

// List returns all Actions sorted by name.
func (r *Registry) List() []*domain.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Action, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// WebBound returns the Actions carrying a web binding, in registration
// order (the order Match consults them).
func (r *Registry) WebBound() []*domain.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Action
	for _, name := range r.order {
		if a := r.actions[name]; a.Web != nil {
			out = append(out, a)
		}
	}
	return out
}

// Periodic returns the Actions with a positive task frequency.
func (r *Registry) Periodic() []*domain.Action {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*domain.Action
	for _, name := range r.order {
		if a := r.actions[name]; a.Task != nil && a.Task.Frequency > 0 {
			out = append(out, a)
		}
	}
	return out
}

// Queues returns the distinct queue names referenced by task bindings,
// always including the default queue.
func (r *Registry) Queues() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set := map[string]bool{domain.DefaultQueue: true}
	for _, a := range r.actions {
		if a.Task != nil && a.Task.Queue != "" {
			set[a.Task.Queue] = true
		}
	}
	out := make([]string, 0, len(set))
	for q := range set {
		out = append(out, q)
	}
	sort.Strings(out)
	return out
}

// Len reports how many Actions are registered.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}

func validateWebBinding(a *domain.Action) error {
	if a.Web.Method == "" {
		return fmt.Errorf("action %q web binding has no method", a.Name)
	}
	if !strings.HasPrefix(a.Web.Route, "/") {
		return fmt.Errorf("action %q web route %q must start with /", a.Name, a.Web.Route)
	}
	return nil
}
