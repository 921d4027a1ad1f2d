package manager

import (
	"fmt"
	"sort"
	"sync"
)

// PluginType groups plugins by role.
type PluginType string

const (
	TypeManager PluginType = "manager"
	TypeWANConn PluginType = "wconn"
	TypeLIF     PluginType = "lif"
)

// Factory builds a fresh, uninitialized plugin.
type Factory func() Plugin

// Registry is the plugin hub: it maps (type, name) to a factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[PluginType]map[string]Factory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[PluginType]map[string]Factory)}
}

// Register adds a factory. Registering the same type and name twice is an
// error.
func (r *Registry) Register(typ PluginType, name string, f Factory) error {
	if name == "" || f == nil {
		return fmt.Errorf("invalid %s plugin registration %q", typ, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.factories[typ]
	if !ok {
		byName = make(map[string]Factory)
		r.factories[typ] = byName
	}
	if _, exists := byName[name]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicatePlugin, typ, name)
	}
	byName[name] = f
	return nil
}

// New builds the named plugin.
func (r *Registry) New(typ PluginType, name string) (Plugin, error) {
	r.mu.RLock()
	f, ok := r.factories[typ][name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownPlugin, typ, name)
	}
	return f(), nil
}

// Names returns the registered names of a type, sorted.
func (r *Registry) Names(typ PluginType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories[typ]))
	for name := range r.factories[typ] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
