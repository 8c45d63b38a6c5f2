package orchestrator

import "sync"

// CleanupRegistry runs registered actions in LIFO order exactly once each,
// per spec.md §4.7's cleanup contract. Grounded on the shape of the
// teacher's acquireCodexLock release closures (codex_status.go) generalized
// from a single unlock callback to an ordered multi-action registry.
type CleanupRegistry struct {
	mu      sync.Mutex
	actions []namedAction
	done    map[string]bool
}

type namedAction struct {
	name string
	fn   func() error
}

// NewCleanupRegistry returns an empty registry.
func NewCleanupRegistry() *CleanupRegistry {
	return &CleanupRegistry{done: make(map[string]bool)}
}

// Register appends fn under name. Registering the same name again replaces
// the pending action rather than duplicating it, keeping Run's idempotence
// guarantee even if a caller registers defensively more than once.
func (c *CleanupRegistry) Register(name string, fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, a := range c.actions {
		if a.name == name {
			c.actions[i].fn = fn
			return
		}
	}
	c.actions = append(c.actions, namedAction{name: name, fn: fn})
}

// Run invokes every registered action LIFO, skipping any already run, and
// collects every error rather than stopping at the first. Safe to call more
// than once; later calls are no-ops for actions already executed.
func (c *CleanupRegistry) Run() []error {
	c.mu.Lock()
	actions := make([]namedAction, len(c.actions))
	copy(actions, c.actions)
	c.mu.Unlock()

	var errsOut []error
	for i := len(actions) - 1; i >= 0; i-- {
		a := actions[i]
		c.mu.Lock()
		already := c.done[a.name]
		if !already {
			c.done[a.name] = true
		}
		c.mu.Unlock()
		if already {
			continue
		}
		if err := a.fn(); err != nil {
			errsOut = append(errsOut, err)
		}
	}
	return errsOut
}
