package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Flow is a saved flow graph with its catalog metadata.
type Flow struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Category      []string       `json:"category"`
	FlowSchema    map[string]any `json:"flow_schema"`
	CreatedAt     time.Time      `json:"created_at"`
	LastUpdatedAt time.Time      `json:"last_updated_at"`
}

// CreateFlow inserts a new flow and returns it with its generated id.
func (s *Store) CreateFlow(ctx context.Context, f *Flow) (*Flow, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	f.Category = normalizeCategories(f.Category)
	f.CreatedAt = now()
	f.LastUpdatedAt = f.CreatedAt
	category, schema, err := encodeFlow(f)
	if err != nil {
		return nil, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO flows (id, name, description, category, flow_schema, created_at, last_updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Name, f.Description, category, schema, f.CreatedAt, f.LastUpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create flow: %w", err)
	}
	return f, nil
}

// UpdateFlow replaces a flow's mutable fields.
func (s *Store) UpdateFlow(ctx context.Context, f *Flow) (*Flow, error) {
	f.Category = normalizeCategories(f.Category)
	f.LastUpdatedAt = now()
	category, schema, err := encodeFlow(f)
	if err != nil {
		return nil, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE flows SET name = ?, description = ?, category = ?, flow_schema = ?, last_updated_at = ?
		 WHERE id = ?`,
		f.Name, f.Description, category, schema, f.LastUpdatedAt, f.ID)
	if err != nil {
		return nil, fmt.Errorf("update flow %s: %w", f.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("update flow %s: %w", f.ID, ErrNotFound)
	}
	return s.GetFlow(ctx, f.ID)
}

// DeleteFlow removes a flow by id.
func (s *Store) DeleteFlow(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete flow %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete flow %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetFlow fetches one flow by id.
func (s *Store) GetFlow(ctx context.Context, id string) (*Flow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, category, flow_schema, created_at, last_updated_at
		 FROM flows WHERE id = ?`, id)
	return scanFlow(row)
}

// ListFlows returns all saved flows, newest first.
func (s *Store) ListFlows(ctx context.Context) ([]*Flow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, category, flow_schema, created_at, last_updated_at
		 FROM flows ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list flows: %w", err)
	}
	defer rows.Close()
	var out []*Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListFlowsByInputType returns flows whose category list contains the given
// type name. Matching is case-insensitive; "any" returns everything.
func (s *Store) ListFlowsByInputType(ctx context.Context, inputType string) ([]*Flow, error) {
	flows, err := s.ListFlows(ctx)
	if err != nil {
		return nil, err
	}
	if strings.EqualFold(inputType, "any") {
		return flows, nil
	}
	var out []*Flow
	for _, f := range flows {
		for _, c := range f.Category {
			if strings.EqualFold(c, inputType) {
				out = append(out, f)
				break
			}
		}
	}
	return out, nil
}

// normalizeCategories maps SocialAccount onto Username: the flow catalog
// offers social-account flows under the username seed type.
func normalizeCategories(categories []string) []string {
	out := make([]string, 0, len(categories))
	for _, c := range categories {
		if strings.EqualFold(c, "SocialAccount") {
			c = "Username"
		}
		out = append(out, c)
	}
	return out
}

func encodeFlow(f *Flow) (category, schema string, err error) {
	if f.Category == nil {
		f.Category = []string{}
	}
	if f.FlowSchema == nil {
		f.FlowSchema = map[string]any{}
	}
	rawCat, err := json.Marshal(f.Category)
	if err != nil {
		return "", "", fmt.Errorf("serialize flow category: %w", err)
	}
	rawSchema, err := json.Marshal(f.FlowSchema)
	if err != nil {
		return "", "", fmt.Errorf("serialize flow schema: %w", err)
	}
	return string(rawCat), string(rawSchema), nil
}

func scanFlow(row rowScanner) (*Flow, error) {
	var f Flow
	var category, schema string
	err := row.Scan(&f.ID, &f.Name, &f.Description, &category, &schema, &f.CreatedAt, &f.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read flow row: %w", err)
	}
	if err := json.Unmarshal([]byte(category), &f.Category); err != nil {
		return nil, fmt.Errorf("decode flow category: %w", err)
	}
	if err := json.Unmarshal([]byte(schema), &f.FlowSchema); err != nil {
		return nil, fmt.Errorf("decode flow schema: %w", err)
	}
	return &f, nil
}
