package regressor

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrNotRegistered is returned when no implementation is registered for a kind
	ErrNotRegistered = errors.New("no regressor registered for kind")
)

// Factory creates an untrained regressor from YAML encoded parameters
type Factory func(params []byte) (Regressor, error)

// Restorer rebuilds a trained regressor from its marshaled state
type Restorer func(state []byte) (Regressor, error)

type entry struct {
	factory  Factory
	restorer Restorer
}

// Registry manages regressor implementations by kind
type Registry struct {
	mu      sync.RWMutex
	entries map[Kind]entry
}

// globalRegistry is the singleton registry for regressor kinds
//
//nolint:gochecknoglobals // Required for the factory registration pattern
var globalRegistry = &Registry{
	entries: make(map[Kind]entry),
}

// Register registers a regressor kind
func Register(kind Kind, factory Factory, restorer Restorer) {
	globalRegistry.mu.Lock()
	defer globalRegistry.mu.Unlock()
	globalRegistry.entries[kind] = entry{factory: factory, restorer: restorer}
}

// New creates an untrained regressor of the given kind
func New(kind Kind, params []byte) (Regressor, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	e, exists := globalRegistry.entries[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, kind)
	}

	return e.factory(params)
}

// Restore rebuilds a trained regressor of the given kind
func Restore(kind Kind, state []byte) (Regressor, error) {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	e, exists := globalRegistry.entries[kind]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, kind)
	}

	return e.restorer(state)
}

// Kinds lists the registered kinds in sorted order
func Kinds() []Kind {
	globalRegistry.mu.RLock()
	defer globalRegistry.mu.RUnlock()

	kinds := make([]Kind, 0, len(globalRegistry.entries))
	for k := range globalRegistry.entries {
		kinds = append(kinds, k)
	}

	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	return kinds
}
