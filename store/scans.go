package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a row lookup matches nothing.
var ErrNotFound = errors.New("store: not found")

// Scan is one queued or finished run of an enricher or flow against a sketch.
type Scan struct {
	ID        string         `json:"id"`
	SketchID  string         `json:"sketch_id"`
	Status    string         `json:"status"`
	Results   map[string]any `json:"results"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CreateScan inserts a pending scan row. The id is the task id handed back to
// the launching client for polling.
func (s *Store) CreateScan(ctx context.Context, id, sketchID string) error {
	ts := now()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scans (id, sketch_id, status, results, created_at, updated_at)
		 VALUES (?, ?, ?, '{}', ?, ?)`,
		id, sketchID, ScanPending, ts, ts)
	if err != nil {
		return fmt.Errorf("create scan %s: %w", id, err)
	}
	return nil
}

// CompleteScan marks a scan completed and stores its results.
func (s *Store) CompleteScan(ctx context.Context, id string, results any) error {
	return s.finishScan(ctx, id, ScanCompleted, results)
}

// FailScan marks a scan failed, keeping the error message in the results
// column so polling clients see the reason.
func (s *Store) FailScan(ctx context.Context, id string, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	return s.finishScan(ctx, id, ScanFailed, map[string]any{"error": msg})
}

func (s *Store) finishScan(ctx context.Context, id, status string, results any) error {
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("serialize scan results: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scans SET status = ?, results = ?, updated_at = ? WHERE id = ?`,
		status, string(raw), now(), id)
	if err != nil {
		return fmt.Errorf("update scan %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update scan %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetScan fetches one scan row by id.
func (s *Store) GetScan(ctx context.Context, id string) (*Scan, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sketch_id, status, results, created_at, updated_at FROM scans WHERE id = ?`, id)
	return scanScan(row)
}

// ListScans returns the scans of one sketch, newest first.
func (s *Store) ListScans(ctx context.Context, sketchID string) ([]*Scan, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sketch_id, status, results, created_at, updated_at
		 FROM scans WHERE sketch_id = ? ORDER BY created_at DESC`, sketchID)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()
	var out []*Scan
	for rows.Next() {
		sc, err := scanScan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanScan(row rowScanner) (*Scan, error) {
	var sc Scan
	var raw string
	err := row.Scan(&sc.ID, &sc.SketchID, &sc.Status, &raw, &sc.CreatedAt, &sc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read scan row: %w", err)
	}
	if err := json.Unmarshal([]byte(raw), &sc.Results); err != nil {
		return nil, fmt.Errorf("decode scan results: %w", err)
	}
	return &sc, nil
}
