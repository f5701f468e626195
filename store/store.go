// Package store persists the relational side of the platform: scan rows,
// saved flows, user-published custom types and vault secrets. The graph data
// itself lives in the graph store, not here.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Scan statuses.
const (
	ScanPending   = "pending"
	ScanCompleted = "completed"
	ScanFailed    = "failed"
)

const schema = `
CREATE TABLE IF NOT EXISTS scans (
	id         TEXT PRIMARY KEY,
	sketch_id  TEXT NOT NULL,
	status     TEXT NOT NULL,
	results    TEXT NOT NULL DEFAULT '{}',
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scans_sketch ON scans(sketch_id);

CREATE TABLE IF NOT EXISTS flows (
	id              TEXT PRIMARY KEY,
	name            TEXT NOT NULL,
	description     TEXT NOT NULL DEFAULT '',
	category        TEXT NOT NULL DEFAULT '[]',
	flow_schema     TEXT NOT NULL DEFAULT '{}',
	created_at      TIMESTAMP NOT NULL,
	last_updated_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS custom_types (
	id          TEXT PRIMARY KEY,
	owner_id    TEXT NOT NULL,
	name        TEXT NOT NULL,
	type_schema TEXT NOT NULL DEFAULT '{}',
	published   INTEGER NOT NULL DEFAULT 0,
	created_at  TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_custom_types_owner ON custom_types(owner_id);

CREATE TABLE IF NOT EXISTS vault_secrets (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	name       TEXT NOT NULL,
	value      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	UNIQUE(owner_id, name)
);
`

// Store wraps the relational database handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating when missing) the database at path and applies the
// schema. Use ":memory:" for tests.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// modernc sqlite serializes writes itself; a single connection avoids
	// SQLITE_BUSY under concurrent workers.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

func now() time.Time { return time.Now().UTC() }
