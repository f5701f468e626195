// Package graph persists discovered entities and relationships into the
// investigation graph, scoped to a sketch. Upserts are idempotent: repeated
// calls with the same key and values yield identical graph state.
package graph

import (
	"context"
	"errors"

	"github.com/flowsint/flowsint/entity"
)

// ErrNotFound is returned when no nodes match a lookup.
var ErrNotFound = errors.New("graph: nodes not found")

// Storage metadata keys added on upsert. They are not part of the entity's
// own fields and are stripped by the node loader before validation.
const (
	MetaSketchID  = "sketch_id"
	MetaCreatedAt = "created_at"
	MetaLabel     = "label"
	MetaType      = "type"
)

// Writer is the mutation surface the enricher runtime uses.
type Writer interface {
	// UpsertNode merges a node on (type, primary key) within the sketch and
	// sets all scalar fields of the entity. Nested entity fields are never
	// stored as node properties.
	UpsertNode(ctx context.Context, e *entity.Entity, sketchID string) error
	// UpsertEdge merges a typed edge between the nodes identified by the two
	// entities' primary keys. Properties are overwritten.
	UpsertEdge(ctx context.Context, src, dst *entity.Entity, relation, sketchID string, props map[string]any) error
}

// Reader fetches raw node records for the node loader.
type Reader interface {
	// GetNodesByIDs returns the raw records of the identified nodes scoped to
	// the sketch. Returns ErrNotFound when nothing matches.
	GetNodesByIDs(ctx context.Context, ids []string, sketchID string) ([]map[string]any, error)
}

// Store combines the read and write surfaces.
type Store interface {
	Writer
	Reader
}
