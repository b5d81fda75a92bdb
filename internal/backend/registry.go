// ABOUTME: Registry resolving model ids to Backend instances
// ABOUTME: Unknown models fail at construction time, never per-request

package backend

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps model ids to shared Backend instances. Registration happens
// once at service start; Resolve is read-mostly after that.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]Backend
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{backends: make(map[string]Backend)}
}

// Register adds a backend, keyed by its model id. Re-registering a model
// replaces the previous backend.
func (r *Registry) Register(b Backend) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[b.Model()] = b
}

// Resolve returns the backend for a model id, or ErrModelNotSupported.
func (r *Registry) Resolve(model string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.backends[model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotSupported, model)
	}
	return b, nil
}

// Models returns the registered model ids in sorted order.
func (r *Registry) Models() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	models := make([]string, 0, len(r.backends))
	for id := range r.backends {
		models = append(models, id)
	}
	sort.Strings(models)
	return models
}
