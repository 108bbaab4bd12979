package storage

import (
	"fmt"
	"sort"
	"sync"
)

// OpenFunc opens a backend with the given options.
type OpenFunc func(opts Options) (Backend, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]OpenFunc)
	remote     = make(map[string]bool)
)

// Register makes an engine available to Open. Adapters register themselves
// from init; registering a name twice panics.
func Register(name string, open OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if open == nil {
		panic("storage: Register open func is nil")
	}
	if _, dup := registry[name]; dup {
		panic("storage: Register called twice for engine " + name)
	}
	registry[name] = open
}

// RegisterRemote registers an engine whose data lives on a server.
// Options.Path is its address rather than a directory.
func RegisterRemote(name string, open OpenFunc) {
	Register(name, open)

	registryMu.Lock()
	defer registryMu.Unlock()
	remote[name] = true
}

// Remote reports whether name was registered as a server-side engine.
func Remote(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return remote[name]
}

// Open opens the named engine.
func Open(name string, opts Options) (Backend, error) {
	registryMu.RLock()
	open, ok := registry[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownEngine, name, Engines())
	}

	backend, err := open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s engine: %w", name, err)
	}
	return backend, nil
}

// Engines lists the registered engine names in sorted order.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registered reports whether name can be opened.
func Registered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}
