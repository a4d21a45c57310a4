package adapter

import (
	"fmt"
	"sort"
	"sync"
)

// Registry maps representation names to adapters. It is an explicit value
// passed to bridge and engine operations, never a package-level global, so
// tests and multi-tenant callers get isolated instances.
//
// Concurrency: reads are concurrent, writes (Register/Remove/SetDefaultVersion)
// are serialized. No transformation path blocks on writes except registration
// itself.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	defaults map[string]string // configured default-version overrides
	disabled map[string]bool
}

func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
		defaults: make(map[string]string),
		disabled: make(map[string]bool),
	}
}

// Register adds an adapter under its own name, replacing any previous one.
func (r *Registry) Register(a Adapter) error {
	if a == nil || a.Name() == "" {
		return fmt.Errorf("adapter: cannot register an unnamed adapter")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
	return nil
}

// Remove drops the adapter and any configuration for name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.adapters, name)
	delete(r.defaults, name)
	delete(r.disabled, name)
}

// Get returns the adapter for name.
func (r *Registry) Get(name string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrAdapterNotFound, name)
	}
	if r.disabled[name] {
		return nil, fmt.Errorf("%w: %q is disabled", ErrUnsupportedRepresentation, name)
	}
	return a, nil
}

// List returns the registered representation names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Detect returns the first adapter (in name order, for determinism) whose
// Detect accepts record.
func (r *Registry) Detect(record map[string]any) (Adapter, bool) {
	for _, name := range r.List() {
		a, err := r.Get(name)
		if err != nil {
			continue
		}
		if a.Detect(record) {
			return a, true
		}
	}
	return nil, false
}

// SetDefaultVersion overrides the adapter-declared default version for name.
func (r *Registry) SetDefaultVersion(name, version string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[name]; !ok {
		return fmt.Errorf("%w: %q", ErrAdapterNotFound, name)
	}
	r.defaults[name] = version
	return nil
}

// SetDisabled marks a registered representation as unavailable without
// removing its adapter.
func (r *Registry) SetDisabled(name string, disabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[name]; !ok {
		return fmt.Errorf("%w: %q", ErrAdapterNotFound, name)
	}
	r.disabled[name] = disabled
	return nil
}

// DefaultVersion returns the effective default version for name: the
// configured override when set, the adapter's own declaration otherwise.
func (r *Registry) DefaultVersion(name string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrAdapterNotFound, name)
	}
	if r.disabled[name] {
		return "", fmt.Errorf("%w: %q is disabled", ErrUnsupportedRepresentation, name)
	}
	if v, ok := r.defaults[name]; ok && v != "" {
		return v, nil
	}
	return a.DefaultVersion(), nil
}

func (r *Registry) defaultVersion(a Adapter) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if v, ok := r.defaults[a.Name()]; ok && v != "" {
		return v
	}
	return a.DefaultVersion()
}
