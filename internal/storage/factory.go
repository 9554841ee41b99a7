package storage

import (
	"fmt"

	"workflow-engine/internal/common/registry"
)

// Factory creates a storage backend from a Config.
type Factory interface {
	GetType() string
	Create(config Config) (Storage, error)
}

var factories = registry.New[Factory]()

// RegisterFactory adds a backend factory. Called from backend package init.
func RegisterFactory(factory Factory) {
	factories.Register(factory.GetType(), factory)
}

// New creates a storage backend for the configured type.
func New(config Config) (Storage, error) {
	factory, err := factories.Get(config.Type)
	if err != nil {
		return nil, fmt.Errorf("unknown storage type %q (available: %v)",
			config.Type, factories.GetAvailableTypes())
	}
	return factory.Create(config)
}

// IsSupported reports whether a backend type is registered.
func IsSupported(storageType string) bool {
	return factories.IsRegistered(storageType)
}
