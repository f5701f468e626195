package graph

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/log"
)

// Neo4jStore writes the investigation graph to a Neo4j database. The driver
// holds a connection pool and is safe for concurrent use; one store is shared
// per worker process.
type Neo4jStore struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jStore connects to Neo4j with basic auth and verifies connectivity.
func NewNeo4jStore(ctx context.Context, uri, username, password string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify neo4j connectivity: %w", err)
	}
	return &Neo4jStore{driver: driver}, nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// identRe constrains labels and relation names; Cypher cannot parameterize
// them so they are interpolated after validation.
var identRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

func ident(name string) (string, error) {
	if !identRe.MatchString(name) {
		return "", fmt.Errorf("invalid graph identifier %q", name)
	}
	return name, nil
}

// UpsertNode merges the entity's node on (lower-case type label, primary key)
// within the sketch. created_at is set once; subsequent upserts keep it.
func (s *Neo4jStore) UpsertNode(ctx context.Context, e *entity.Entity, sketchID string) error {
	label, err := ident(strings.ToLower(e.Type().Name))
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		"MERGE (n:`%s` {%s: $pk, sketch_id: $sketch_id}) "+
			"ON CREATE SET n.created_at = datetime() "+
			"SET n += $props, n.label = $label, n.type = $type",
		label, e.Type().PrimaryKey)
	params := map[string]any{
		"pk":        e.Get(e.Type().PrimaryKey),
		"sketch_id": sketchID,
		"props":     e.Scalars(),
		"label":     e.Label(),
		"type":      label,
	}
	return s.run(ctx, query, params)
}

// UpsertEdge merges a typed relationship between the two entities' nodes.
func (s *Neo4jStore) UpsertEdge(ctx context.Context, src, dst *entity.Entity, relation, sketchID string, props map[string]any) error {
	rel, err := ident(relation)
	if err != nil {
		return err
	}
	srcLabel, err := ident(strings.ToLower(src.Type().Name))
	if err != nil {
		return err
	}
	dstLabel, err := ident(strings.ToLower(dst.Type().Name))
	if err != nil {
		return err
	}
	if props == nil {
		props = map[string]any{}
	}
	query := fmt.Sprintf(
		"MATCH (a:`%s` {%s: $src_pk, sketch_id: $sketch_id}) "+
			"MATCH (b:`%s` {%s: $dst_pk, sketch_id: $sketch_id}) "+
			"MERGE (a)-[r:`%s`]->(b) "+
			"SET r += $props",
		srcLabel, src.Type().PrimaryKey, dstLabel, dst.Type().PrimaryKey, rel)
	params := map[string]any{
		"src_pk":    src.Get(src.Type().PrimaryKey),
		"dst_pk":    dst.Get(dst.Type().PrimaryKey),
		"sketch_id": sketchID,
		"props":     props,
	}
	return s.run(ctx, query, params)
}

// GetNodesByIDs fetches raw node records by element id scoped to the sketch.
func (s *Neo4jStore) GetNodesByIDs(ctx context.Context, ids []string, sketchID string) ([]map[string]any, error) {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx,
		"MATCH (n) WHERE elementId(n) IN $ids AND n.sketch_id = $sketch_id RETURN n",
		map[string]any{"ids": ids, "sketch_id": sketchID})
	if err != nil {
		return nil, fmt.Errorf("fetch nodes: %w", err)
	}
	var records []map[string]any
	for result.Next(ctx) {
		if v, ok := result.Record().Get("n"); ok {
			if node, ok := v.(neo4j.Node); ok {
				records = append(records, node.Props)
			}
		}
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("fetch nodes: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNotFound
	}
	return records, nil
}

func (s *Neo4jStore) run(ctx context.Context, query string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{})
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err == nil {
		_, err = result.Consume(ctx)
	}
	if err != nil {
		log.Errorf("graph write failed: %v", err)
		return fmt.Errorf("graph write: %w", err)
	}
	return nil
}
