package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesRequiredFields(t *testing.T) {
	_, err := Domain.New(map[string]any{"root": "example.com"})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Domain", verr.TypeName)
	assert.Contains(t, verr.Fields, "domain")
}

func TestNewRejectsWrongFieldType(t *testing.T) {
	_, err := ASN.New(map[string]any{"number": "not-a-number"})
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "number")
}

func TestNewAcceptsNativeNumbers(t *testing.T) {
	e, err := ASN.New(map[string]any{"number": 13335, "name": "Cloudflare"})
	require.NoError(t, err)
	assert.Equal(t, "13335", e.PrimaryKey())
}

func TestEntityAccessors(t *testing.T) {
	e, err := Domain.New(map[string]any{"domain": "example.com", "root": "example.com"})
	require.NoError(t, err)

	assert.Equal(t, "Domain", e.Type().Name)
	assert.Equal(t, "example.com", e.Get("domain"))
	assert.Equal(t, "example.com", e.PrimaryKey())

	m := e.Map()
	assert.Equal(t, "example.com", m["domain"])
	m["domain"] = "mutated"
	assert.Equal(t, "example.com", e.Get("domain"), "Map must return a copy")
}

func TestLabelFallsBackToPrimaryKey(t *testing.T) {
	e, err := Domain.New(map[string]any{"domain": "example.com"})
	require.NoError(t, err)
	assert.Equal(t, "example.com", e.Label())

	labeled, err := Domain.New(map[string]any{"domain": "example.com", "label": "Example"})
	require.NoError(t, err)
	assert.Equal(t, "Example", labeled.Label())
}

func TestScalarsSkipsNestedEntities(t *testing.T) {
	e, err := CryptoWalletTransaction.New(map[string]any{
		"hash":     "0xabc",
		"amount":   1.5,
		"currency": "ETH",
		"source":   map[string]any{"address": "0x111"},
		"target":   map[string]any{"address": "0x222"},
	})
	require.NoError(t, err)

	scalars := e.Scalars()
	assert.Contains(t, scalars, "hash")
	assert.Contains(t, scalars, "amount")
	assert.NotContains(t, scalars, "source")
	assert.NotContains(t, scalars, "target")
}

func TestValidateKeepsExtraFields(t *testing.T) {
	rec, err := Domain.Validate(map[string]any{"domain": "example.com", "note": "seen in cert"})
	require.NoError(t, err)
	assert.Equal(t, "seen in cert", rec["note"])
}

func TestJSONSchemaShape(t *testing.T) {
	s := Ip.JSONSchema()
	assert.Equal(t, "Ip", s["title"])
	assert.Equal(t, "object", s["type"])

	props := s["properties"].(map[string]any)
	assert.Contains(t, props, "address")
	assert.Contains(t, props, "version")

	required := s["required"].([]any)
	assert.Contains(t, required, "address")

	// The schema document must itself be valid JSON.
	_, err := json.Marshal(s)
	require.NoError(t, err)
}

func TestRegistryLookup(t *testing.T) {
	typ, ok := Get("domain")
	require.True(t, ok)
	assert.Equal(t, "Domain", typ.Name)

	_, ok = Get("NoSuchType")
	assert.False(t, ok)

	all := Types.All()
	require.NotEmpty(t, all)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Name, all[i].Name)
	}
}

func TestRegistryRejectsMissingPrimaryKey(t *testing.T) {
	err := NewRegistry().Register(&Type{Name: "Broken"})
	require.Error(t, err)
}
