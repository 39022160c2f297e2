package pipeline

import (
	"fmt"
	"sort"
	"sync"
)

// Factory constructs a Stage from configuration parameters.
type Factory func(params map[string]any) (Stage, error)

// Registry provides named stage factories for config-driven pipeline
// construction.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a stage factory under a component key.
func (r *Registry) Register(component string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[component] = f
}

// RegisterStage registers an already-constructed stage under a component key.
func (r *Registry) RegisterStage(component string, s Stage) {
	r.Register(component, func(map[string]any) (Stage, error) { return s, nil })
}

// Build constructs a stage from the named factory.
func (r *Registry) Build(component string, params map[string]any) (Stage, error) {
	r.mu.RLock()
	f, ok := r.factories[component]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("pipeline: component %q not found in registry", component)
	}
	return f(params)
}

// List returns sorted keys of all registered components.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.factories))
	for k := range r.factories {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
