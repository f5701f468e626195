// Package enricher defines the transform contract of the execution engine.
//
// An enricher consumes entities of one semantic type and produces entities of
// another, in four phases: preprocess coerces raw inputs into validated typed
// entities, scan does the actual work, postprocess commits graph writes, and
// Execute chains the three with error mapping.
package enricher

import (
	"context"

	"github.com/flowsint/flowsint/entity"
)

// TypeAny matches any input type; used by generic connectors.
const TypeAny = "any"

// ParamKind classifies an enricher parameter for the UI form generator.
type ParamKind string

const (
	ParamString ParamKind = "string"
	ParamNumber ParamKind = "number"
	ParamURL    ParamKind = "url"
	ParamSelect ParamKind = "select"
	// ParamVaultSecret parameters resolve through the secret store at
	// enricher construction.
	ParamVaultSecret ParamKind = "vaultSecret"
)

// Param describes one entry of an enricher's parameter schema.
type Param struct {
	Name        string    `json:"name"`
	Kind        ParamKind `json:"type"`
	Description string    `json:"description,omitempty"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Options     []string  `json:"options,omitempty"`
}

// Descriptor is the declared surface of an enricher.
type Descriptor struct {
	// Name is the unique lookup key, e.g. "domain_to_ip".
	Name string
	// ClassName is the exported implementation name, e.g. "ResolveEnricher".
	// The branch compiler's placeholder simulator keys off it.
	ClassName string
	// Category groups enrichers for the UI.
	Category string
	// InputType and OutputType are entity type names; TypeAny is permitted.
	InputType  string
	OutputType string
	// Key is the input field the enricher primarily consumes.
	Key string
	// Params is the ordered parameter schema.
	Params []Param
	// RequiredParams reports whether any required params must be present for
	// the enricher to run.
	RequiredParams bool
	// Doc is the long-form documentation shown in the editor.
	Doc  string
	Icon string
}

// Enricher is the runtime contract every transform satisfies.
type Enricher interface {
	// Descriptor returns the declared surface.
	Descriptor() Descriptor
	// Preprocess coerces raw inputs (strings, records, already-typed
	// entities) into validated typed entities. Invalid items are dropped
	// with a warning.
	Preprocess(ctx context.Context, raw []any) ([]*entity.Entity, error)
	// Scan performs the actual work. It may suspend on network or
	// subprocess I/O and honors ctx cancellation between items.
	Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error)
	// Postprocess emits graph writes and progress messages. Must be
	// idempotent.
	Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error)
}

// Execute runs preprocess, scan and postprocess in order and serializes the
// outputs. Scan failures are wrapped as *EnricherError; preprocess failures
// surface as *entity.ValidationError.
func Execute(ctx context.Context, e Enricher, raw []any) ([]map[string]any, error) {
	inputs, err := e.Preprocess(ctx, raw)
	if err != nil {
		return nil, err
	}
	results, err := e.Scan(ctx, inputs)
	if err != nil {
		return nil, &EnricherError{Enricher: e.Descriptor().Name, Err: err}
	}
	results, err = e.Postprocess(ctx, results, inputs)
	if err != nil {
		return nil, &EnricherError{Enricher: e.Descriptor().Name, Err: err}
	}
	out := make([]map[string]any, 0, len(results))
	for _, r := range results {
		out = append(out, r.Map())
	}
	return out, nil
}
