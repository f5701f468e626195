package vault

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	byID   map[string]string
	byName map[string]string // key: ownerID + "/" + name
}

func (s *fakeStore) GetByID(ctx context.Context, id string) (string, error) {
	if v, ok := s.byID[id]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (s *fakeStore) GetByName(ctx context.Context, ownerID, name string) (string, error) {
	if v, ok := s.byName[ownerID+"/"+name]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func TestGetSecretPrefersEntryID(t *testing.T) {
	id := "6b9f1dc0-0d1e-4f59-9f3a-2a33cf9f6f10"
	store := &fakeStore{
		byID:   map[string]string{id: "by-id"},
		byName: map[string]string{"user-1/API_KEY": "by-name"},
	}
	v := New(store, "user-1")

	val, ok := v.GetSecret(context.Background(), "API_KEY", id)
	require.True(t, ok)
	assert.Equal(t, "by-id", val)
}

func TestGetSecretFallsBackToName(t *testing.T) {
	store := &fakeStore{
		byID:   map[string]string{},
		byName: map[string]string{"user-1/API_KEY": "by-name"},
	}
	v := New(store, "user-1")

	// A param value that is not a UUID is ignored.
	val, ok := v.GetSecret(context.Background(), "API_KEY", "not-a-uuid")
	require.True(t, ok)
	assert.Equal(t, "by-name", val)

	// An unknown entry id falls through to the name lookup.
	val, ok = v.GetSecret(context.Background(), "API_KEY", "b3b7f1ce-58cd-4b3a-8f25-9c6cfb2fd001")
	require.True(t, ok)
	assert.Equal(t, "by-name", val)
}

func TestGetSecretScopedToOwner(t *testing.T) {
	store := &fakeStore{byName: map[string]string{"user-1/API_KEY": "theirs"}}
	v := New(store, "user-2")

	t.Setenv("API_KEY", "")
	_, ok := v.GetSecret(context.Background(), "API_KEY", "")
	assert.False(t, ok)
}

func TestGetSecretEnvFallback(t *testing.T) {
	t.Setenv("VAULT_TEST_ENV_KEY", "from-env")
	v := New(&fakeStore{}, "user-1")

	val, ok := v.GetSecret(context.Background(), "VAULT_TEST_ENV_KEY", "")
	require.True(t, ok)
	assert.Equal(t, "from-env", val)
}

func TestGetSecretMissingEverywhere(t *testing.T) {
	t.Setenv("VAULT_TEST_MISSING", "")
	v := New(&fakeStore{}, "user-1")

	_, ok := v.GetSecret(context.Background(), "VAULT_TEST_MISSING", "")
	assert.False(t, ok)
}

func TestNilVaultUsesEnvOnly(t *testing.T) {
	t.Setenv("VAULT_TEST_NIL", "env-value")
	var v *Vault

	val, ok := v.GetSecret(context.Background(), "VAULT_TEST_NIL", "")
	require.True(t, ok)
	assert.Equal(t, "env-value", val)
}
