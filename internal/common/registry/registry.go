// Package registry provides a generic, thread-safe registry for factory
// instances, specialized per factory type (storage backends today).
package registry

import (
	"fmt"
	"sync"

	"workflow-engine/internal/common/errors"
)

// Factory defines the interface that all factory types must implement
// to be used with the generic registry.
type Factory interface {
	// GetType returns the type identifier for this factory
	GetType() string
}

// Registry provides a generic, thread-safe registry for factory instances.
type Registry[T Factory] struct {
	factories map[string]T
	mu        sync.RWMutex
}

// New creates a new empty registry for factories of type T.
func New[T Factory]() *Registry[T] {
	return &Registry[T]{
		factories: make(map[string]T),
	}
}

// Register adds a factory for the specified type, replacing any existing one.
func (r *Registry[T]) Register(factoryType string, factory T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factoryType] = factory
}

// Get retrieves a factory by its type identifier.
func (r *Registry[T]) Get(factoryType string) (T, error) {
	r.mu.RLock()
	factory, exists := r.factories[factoryType]
	r.mu.RUnlock()

	if !exists {
		var zero T
		return zero, errors.NotFoundError(fmt.Sprintf("factory type %s", factoryType))
	}

	return factory, nil
}

// GetAvailableTypes returns a list of all registered factory types.
func (r *Registry[T]) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for factoryType := range r.factories {
		types = append(types, factoryType)
	}
	return types
}

// IsRegistered checks if a factory type is registered in the registry.
func (r *Registry[T]) IsRegistered(factoryType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[factoryType]
	return exists
}
