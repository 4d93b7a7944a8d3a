// Package registry provides a generic, thread-safe registry of factories keyed
// by type name. The workflow uses it to resolve `source.type` and `sink.type`
// to the component that builds them.
//
//	sources := registry.New[SourceFactory]()
//	sources.Register("domopipeline", domoFactory)
//	factory, err := sources.Get(cfg.Source.Type)
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"metadata-ingestion/internal/common/errors"
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

// Register adds factory under its own GetType() name. Type names are case-insensitive.
// A factory registered under an existing name replaces the previous one.
func (r *Registry[T]) Register(factory T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(factory.GetType())] = factory
}

// Get retrieves a factory by its type identifier.
func (r *Registry[T]) Get(factoryType string) (T, error) {
	r.mu.RLock()
	factory, exists := r.factories[strings.ToLower(factoryType)]
	r.mu.RUnlock()

	if !exists {
		var zero T
		return zero, errors.NotFoundError(fmt.Sprintf("factory type %s", factoryType)).
			WithContext("available", strings.Join(r.GetAvailableTypes(), ","))
	}

	return factory, nil
}

// GetAvailableTypes returns the registered type names in sorted order.
func (r *Registry[T]) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for factoryType := range r.factories {
		types = append(types, factoryType)
	}
	sort.Strings(types)
	return types
}
