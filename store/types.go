package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CustomType is a user-authored entity type. Published types appear in the
// shared catalog; unpublished ones only for their owner, flagged wobbly in
// enricher listings since no built-in enricher declares them.
type CustomType struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id"`
	Name      string         `json:"name"`
	Schema    map[string]any `json:"type_schema"`
	Published bool           `json:"published"`
	CreatedAt time.Time      `json:"created_at"`
}

// CreateCustomType inserts a custom type owned by a user.
func (s *Store) CreateCustomType(ctx context.Context, t *CustomType) (*CustomType, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.Schema == nil {
		t.Schema = map[string]any{}
	}
	t.CreatedAt = now()
	raw, err := json.Marshal(t.Schema)
	if err != nil {
		return nil, fmt.Errorf("serialize type schema: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO custom_types (id, owner_id, name, type_schema, published, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.Name, string(raw), t.Published, t.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("create custom type: %w", err)
	}
	return t, nil
}

// GetCustomType fetches one custom type visible to the user: their own, or
// any published one. Names match case-insensitively, as the editor sends
// whatever casing the palette shows.
func (s *Store) GetCustomType(ctx context.Context, ownerID, name string) (*CustomType, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, name, type_schema, published, created_at
		 FROM custom_types WHERE name = ? COLLATE NOCASE AND (owner_id = ? OR published = 1)
		 ORDER BY owner_id = ? DESC LIMIT 1`,
		name, ownerID, ownerID)
	return scanCustomType(row)
}

// ListCustomTypes returns the custom types visible to the user.
func (s *Store) ListCustomTypes(ctx context.Context, ownerID string) ([]*CustomType, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, owner_id, name, type_schema, published, created_at
		 FROM custom_types WHERE owner_id = ? OR published = 1 ORDER BY name`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list custom types: %w", err)
	}
	defer rows.Close()
	var out []*CustomType
	for rows.Next() {
		t, err := scanCustomType(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanCustomType(row rowScanner) (*CustomType, error) {
	var t CustomType
	var raw string
	err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &raw, &t.Published, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read custom type row: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &t.Schema); err != nil {
		return nil, fmt.Errorf("decode type schema: %w", err)
	}
	return &t, nil
}
