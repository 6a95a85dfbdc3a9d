package pipeline

import (
	"context"
	"sync"
)

// Registry tracks the cancel function of every active run, keyed by project
// ID, so an external operator action can request cooperative cancellation at
// the run's next suspension point.
type Registry struct {
	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewRegistry creates an empty run registry.
func NewRegistry() *Registry {
	return &Registry{cancels: make(map[string]context.CancelFunc)}
}

// Register records the cancel function for a project's active run.
func (r *Registry) Register(projectID string, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancels[projectID] = cancel
}

// Unregister removes a project's run from the registry.
func (r *Registry) Unregister(projectID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.cancels, projectID)
}

// Cancel requests cancellation of a project's active run. It returns true
// if a run was found and cancelled.
func (r *Registry) Cancel(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cancel, ok := r.cancels[projectID]; ok {
		cancel()
		delete(r.cancels, projectID)
		return true
	}
	return false
}

// Active returns true if a run is registered for the project.
func (r *Registry) Active(projectID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.cancels[projectID]
	return ok
}
