package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/flowsint/flowsint/vault"
)

// Secrets exposes the vault_secrets table through the vault.Store interface.
type Secrets struct {
	s *Store
}

var _ vault.Store = (*Secrets)(nil)

// Secrets returns the vault-backed view of this store.
func (s *Store) Secrets() *Secrets { return &Secrets{s: s} }

// PutSecret inserts or replaces a secret for a user and returns its entry id.
func (s *Store) PutSecret(ctx context.Context, ownerID, name, value string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO vault_secrets (id, owner_id, name, value, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(owner_id, name) DO UPDATE SET value = excluded.value`,
		id, ownerID, name, value, now())
	if err != nil {
		return "", fmt.Errorf("put secret %s: %w", name, err)
	}
	// On conflict the original row keeps its id; read it back.
	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM vault_secrets WHERE owner_id = ? AND name = ?`, ownerID, name)
	if err := row.Scan(&id); err != nil {
		return "", fmt.Errorf("put secret %s: %w", name, err)
	}
	return id, nil
}

// GetByID fetches a secret value by vault-entry identifier.
func (v *Secrets) GetByID(ctx context.Context, id string) (string, error) {
	row := v.s.db.QueryRowContext(ctx, `SELECT value FROM vault_secrets WHERE id = ?`, id)
	return scanSecret(row)
}

// GetByName fetches a secret value by logical name scoped to a user.
func (v *Secrets) GetByName(ctx context.Context, ownerID, name string) (string, error) {
	row := v.s.db.QueryRowContext(ctx,
		`SELECT value FROM vault_secrets WHERE owner_id = ? AND name = ?`, ownerID, name)
	return scanSecret(row)
}

func scanSecret(row *sql.Row) (string, error) {
	var value string
	err := row.Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", vault.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read secret: %w", err)
	}
	return value, nil
}
