package entity

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry stores type declarations double-keyed by exact name and by its
// lower-case form; the graph database uses lower-case node labels.
type Registry struct {
	mu        sync.RWMutex
	types     map[string]*Type
	lowercase map[string]*Type
}

// NewRegistry creates an empty type registry.
func NewRegistry() *Registry {
	return &Registry{
		types:     make(map[string]*Type),
		lowercase: make(map[string]*Type),
	}
}

// Register adds a type to the registry. Registration is idempotent:
// registering the same name again replaces the previous declaration.
func (r *Registry) Register(t *Type) error {
	if t.Name == "" {
		return fmt.Errorf("type name cannot be empty")
	}
	if t.PrimaryKey == "" {
		return fmt.Errorf("type %s must declare a primary key field", t.Name)
	}
	if err := t.compile(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Name] = t
	r.lowercase[strings.ToLower(t.Name)] = t
	return nil
}

// Get returns a type by its exact name.
func (r *Registry) Get(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	return t, ok
}

// GetLower returns a type by its name, case-insensitively.
func (r *Registry) GetLower(name string) (*Type, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.lowercase[strings.ToLower(name)]
	return t, ok
}

// All returns all registered types sorted by name.
func (r *Registry) All() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Types is the global registry, populated by the declarations in types.go.
var Types = NewRegistry()

// Get looks up a type in the global registry, case-insensitively.
func Get(name string) (*Type, bool) { return Types.GetLower(name) }

// MustGet looks up a type in the global registry and panics when missing.
// Reserved for package initialization of static declarations.
func MustGet(name string) *Type {
	t, ok := Types.GetLower(name)
	if !ok {
		panic(fmt.Sprintf("entity type %q not registered", name))
	}
	return t
}
