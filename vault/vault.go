// Package vault resolves named secrets for a given user. Secrets live in the
// user-scoped credential store; the process environment is the fallback of
// last resort.
package vault

import (
	"context"
	"errors"
	"os"

	"github.com/google/uuid"
)

// ErrNotFound is returned by stores when no entry matches.
var ErrNotFound = errors.New("vault: entry not found")

// Store is the persistence behind a vault. Writes happen out of band; the
// engine only reads.
type Store interface {
	// GetByID fetches a secret value by vault-entry identifier.
	GetByID(ctx context.Context, id string) (string, error)
	// GetByName fetches a secret value by logical name scoped to a user.
	GetByName(ctx context.Context, ownerID, name string) (string, error)
}

// Vault resolves secrets for one user.
type Vault struct {
	store   Store
	ownerID string
}

// New creates a vault scoped to the given user. A nil store leaves only the
// environment fallback.
func New(store Store, ownerID string) *Vault {
	return &Vault{store: store, ownerID: ownerID}
}

// GetSecret resolves a secret by name. Resolution order:
//
//  1. paramValue, when it is a valid vault-entry identifier, fetched by id;
//  2. the logical name scoped to the vault's user;
//  3. the process environment variable of the same name.
//
// The boolean reports whether a value was found.
func (v *Vault) GetSecret(ctx context.Context, name, paramValue string) (string, bool) {
	if v != nil && v.store != nil {
		if paramValue != "" && isEntryID(paramValue) {
			if val, err := v.store.GetByID(ctx, paramValue); err == nil {
				return val, true
			}
		}
		if val, err := v.store.GetByName(ctx, v.ownerID, name); err == nil {
			return val, true
		}
	}
	if val, ok := os.LookupEnv(name); ok && val != "" {
		return val, true
	}
	return "", false
}

func isEntryID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
