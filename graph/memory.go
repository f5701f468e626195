package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flowsint/flowsint/entity"
)

// MemoryStore is an in-process Store used by tests and compute-only flows.
// It mirrors the Neo4j store's merge semantics: nodes are keyed by
// (sketch, type, primary key), edges by (sketch, source, relation, target).
type MemoryStore struct {
	mu    sync.Mutex
	nodes map[string]map[string]any
	edges map[string]map[string]any

	// Calls records the upsert sequence for assertions.
	Calls []string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]map[string]any),
		edges: make(map[string]map[string]any),
	}
}

func nodeKey(sketchID, typeName, pk string) string {
	return sketchID + "|" + strings.ToLower(typeName) + "|" + pk
}

// UpsertNode merges the entity into the store.
func (s *MemoryStore) UpsertNode(ctx context.Context, e *entity.Entity, sketchID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := nodeKey(sketchID, e.Type().Name, e.PrimaryKey())
	s.Calls = append(s.Calls, "node:"+key)

	props, ok := s.nodes[key]
	if !ok {
		props = map[string]any{
			MetaSketchID:  sketchID,
			MetaCreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		s.nodes[key] = props
	}
	for k, v := range e.Scalars() {
		props[k] = v
	}
	props[MetaLabel] = e.Label()
	props[MetaType] = strings.ToLower(e.Type().Name)
	return nil
}

// UpsertEdge merges a relationship between two previously upserted nodes.
func (s *MemoryStore) UpsertEdge(ctx context.Context, src, dst *entity.Entity, relation, sketchID string, props map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%s|%s|%s|%s",
		sketchID,
		nodeKey(sketchID, src.Type().Name, src.PrimaryKey()),
		relation,
		nodeKey(sketchID, dst.Type().Name, dst.PrimaryKey()))
	s.Calls = append(s.Calls, "edge:"+key)

	stored, ok := s.edges[key]
	if !ok {
		stored = map[string]any{}
		s.edges[key] = stored
	}
	for k, v := range props {
		stored[k] = v
	}
	return nil
}

// GetNodesByIDs returns the records stored under the given node keys.
func (s *MemoryStore) GetNodesByIDs(ctx context.Context, ids []string, sketchID string) ([]map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []map[string]any
	for _, id := range ids {
		if props, ok := s.nodes[id]; ok && props[MetaSketchID] == sketchID {
			rec := make(map[string]any, len(props))
			for k, v := range props {
				rec[k] = v
			}
			out = append(out, rec)
		}
	}
	if len(out) == 0 {
		return nil, ErrNotFound
	}
	return out, nil
}

// NodeCount reports the number of stored nodes.
func (s *MemoryStore) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

// EdgeCount reports the number of stored edges.
func (s *MemoryStore) EdgeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.edges)
}

// Node returns the stored properties for (sketch, type, primary key).
func (s *MemoryStore) Node(sketchID, typeName, pk string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.nodes[nodeKey(sketchID, typeName, pk)]
	return props, ok
}

// Edge returns the stored properties for the given endpoints and relation.
func (s *MemoryStore) Edge(sketchID, srcType, srcPK, relation, dstType, dstPK string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := fmt.Sprintf("%s|%s|%s|%s",
		sketchID,
		nodeKey(sketchID, srcType, srcPK),
		relation,
		nodeKey(sketchID, dstType, dstPK))
	props, ok := s.edges[key]
	return props, ok
}
