package enricher

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/flowsint/flowsint/entity"
)

// Factory builds a configured enricher instance. Instances are single-use:
// one instance per step per run.
type Factory func(ctx context.Context, cfg Config) (Enricher, error)

// Registry catalogs enrichers by name. Registration happens in the enrichers
// package's init, one constructor per enricher; there is no auto-discovery.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	descs     map[string]Descriptor
	order     []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		descs:     make(map[string]Descriptor),
	}
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Register adds an enricher to the registry. Registering an existing name
// replaces it; listing order follows first registration.
func (r *Registry) Register(desc Descriptor, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descs[desc.Name]; !exists {
		r.order = append(r.order, desc.Name)
	}
	r.descs[desc.Name] = desc
	r.factories[desc.Name] = factory
}

// Register adds an enricher to the default registry.
func Register(desc Descriptor, factory Factory) { Default.Register(desc, factory) }

// Exists reports whether the name resolves to a registered enricher.
func (r *Registry) Exists(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Descriptor returns the declared surface for a name.
func (r *Registry) Descriptor(name string) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descs[name]
	return d, ok
}

// Build constructs a configured instance of the named enricher.
// Looking up an unknown name returns ErrNotFound, never a best-effort guess.
func (r *Registry) Build(ctx context.Context, name string, cfg Config) (Enricher, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return factory(ctx, cfg)
}

// Metadata is the UI-facing description of one enricher.
type Metadata map[string]any

func (r *Registry) metadata(d Descriptor) Metadata {
	params := d.Params
	if params == nil {
		params = []Param{}
	}
	return Metadata{
		"class_name":      d.ClassName,
		"name":            d.Name,
		"category":        d.Category,
		"description":     d.Doc,
		"documentation":   d.Doc,
		"inputs":          ioSchema(d.InputType),
		"outputs":         ioSchema(d.OutputType),
		"type":            "enricher",
		"params":          map[string]any{},
		"params_schema":   params,
		"required_params": d.RequiredParams,
		"icon":            d.Icon,
	}
}

// ioSchema describes an input or output socket: the entity type plus its
// field descriptors, in declaration order (the first is the default handle).
func ioSchema(typeName string) map[string]any {
	props := []map[string]any{}
	if t, ok := entity.Get(typeName); ok {
		for _, f := range t.Fields {
			props = append(props, map[string]any{
				"name": f.Name,
				"type": string(f.Kind),
			})
		}
	}
	return map[string]any{"type": typeName, "properties": props}
}

// List returns metadata for all enrichers, honoring the exclusion list.
// wobblyType marks listings requested under a user-owned custom type.
func (r *Registry) List(exclude []string, wobblyType bool) []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Metadata
	for _, name := range r.order {
		if contains(exclude, name) {
			continue
		}
		m := r.metadata(r.descs[name])
		m["wobblyType"] = wobblyType
		out = append(out, m)
	}
	return out
}

// ListByCategory groups enricher metadata by category.
func (r *Registry) ListByCategory() map[string][]Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := map[string][]Metadata{}
	for _, name := range r.order {
		d := r.descs[name]
		out[d.Category] = append(out[d.Category], r.metadata(d))
	}
	return out
}

// ListByInputType returns enrichers whose input type equals the requested
// type or is "any". Requesting "any" returns everything.
func (r *Registry) ListByInputType(inputType string, exclude []string) []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	want := strings.ToLower(inputType)
	var out []Metadata
	for _, name := range r.order {
		if contains(exclude, name) {
			continue
		}
		d := r.descs[name]
		have := strings.ToLower(d.InputType)
		if want == TypeAny || have == TypeAny || have == want {
			out = append(out, r.metadata(d))
		}
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
