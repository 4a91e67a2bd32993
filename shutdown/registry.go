package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Func is a cleanup hook run during shutdown. It should honor ctx's
// deadline.
type Func func(ctx context.Context) error

// Hook priorities used by the watch loop. Lower runs first.
const (
	PriorityWriters = 10 // drain queued history writes
	PriorityStorage = 20 // close databases
	PriorityFiles   = 30 // remove partial outputs
	PriorityLogging = 90 // flush logs last
)

type hook struct {
	name     string
	priority int
	seq      int
	fn       Func
}

// Registry holds cleanup hooks and runs each of them once.
type Registry struct {
	mu    sync.Mutex
	hooks []hook
	ran   bool
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn. Hooks with equal priority run in registration order.
// Registering after Run is ignored.
func (r *Registry) Register(name string, priority int, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ran || fn == nil {
		return
	}
	r.hooks = append(r.hooks, hook{name: name, priority: priority, seq: len(r.hooks), fn: fn})
}

// Run calls every hook in priority order and returns the failures, each
// wrapped with its hook name. Hooks still run after an earlier one fails.
// Only the first call does anything.
func (r *Registry) Run(ctx context.Context) []error {
	r.mu.Lock()
	if r.ran {
		r.mu.Unlock()
		return nil
	}
	r.ran = true
	hooks := r.sorted()
	r.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errs
}

// Names lists hook names in run order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	hooks := r.sorted()
	names := make([]string, len(hooks))
	for i, h := range hooks {
		names[i] = h.name
	}
	return names
}

// Len returns the number of registered hooks.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.hooks)
}

func (r *Registry) sorted() []hook {
	out := make([]hook, len(r.hooks))
	copy(out, r.hooks)
	sort.Slice(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].seq < out[j].seq
	})
	return out
}
