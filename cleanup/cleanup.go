// Package cleanup implements CleanupRegistry (spec.md §2, §3): a
// single registry that every owned subcomponent registers a teardown
// function with, so page-unload/host-context invalidation tears
// everything down in a deterministic, reverse-registration order.
// Grounded on the teacher's explicit, ordered shutdown sequence in
// cmd/purify/main.go (browser pool close, then HTTP server shutdown,
// in a fixed order) rather than leaving teardown to GC/finalizers.
package cleanup

import (
	"log/slog"
	"sync"
)

// Registry accumulates teardown functions and runs them in reverse
// registration order on Cleanup, exactly once.
type Registry struct {
	mu     sync.Mutex
	fns    []func()
	logger *slog.Logger
	done   bool
}

// New builds an empty Registry.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds fn to the teardown list. Registration order is
// dependency order (leaves first); Cleanup runs in the reverse.
func (r *Registry) Register(name string, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		// A component registering after Cleanup already ran is a
		// programming error in the owning component's lifecycle, not
		// a caller-facing one; run it immediately rather than silently
		// dropping it.
		r.logger.Warn("cleanup: registering after Cleanup already ran, running immediately", "component", name)
		fn()
		return
	}
	wrapped := fn
	compName := name
	r.fns = append(r.fns, func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("cleanup: recovered panic during teardown", "component", compName, "panic", rec)
			}
		}()
		wrapped()
	})
}

// Cleanup runs every registered teardown function in reverse
// registration order, isolating a panic in one from blocking the
// rest. Idempotent: a second call is a no-op.
func (r *Registry) Cleanup() {
	r.mu.Lock()
	if r.done {
		r.mu.Unlock()
		return
	}
	fns := r.fns
	r.fns = nil
	r.done = true
	r.mu.Unlock()

	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
