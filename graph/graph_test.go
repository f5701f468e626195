package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsint/flowsint/entity"
)

func mustDomain(t *testing.T, name string) *entity.Entity {
	t.Helper()
	e, err := entity.Domain.New(map[string]any{"domain": name})
	require.NoError(t, err)
	return e
}

func TestMemoryStoreUpsertNodeMerges(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	d := mustDomain(t, "example.com")

	require.NoError(t, ms.UpsertNode(ctx, d, "sketch-1"))
	require.NoError(t, ms.UpsertNode(ctx, d, "sketch-1"))
	assert.Equal(t, 1, ms.NodeCount())

	props, ok := ms.Node("sketch-1", "Domain", "example.com")
	require.True(t, ok)
	assert.Equal(t, "example.com", props["domain"])
	assert.Equal(t, "domain", props[MetaType])
	assert.Equal(t, "example.com", props[MetaLabel])
	assert.Equal(t, "sketch-1", props[MetaSketchID])
}

func TestMemoryStoreScopesBySketch(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	d := mustDomain(t, "example.com")

	require.NoError(t, ms.UpsertNode(ctx, d, "sketch-1"))
	require.NoError(t, ms.UpsertNode(ctx, d, "sketch-2"))
	assert.Equal(t, 2, ms.NodeCount())
}

func TestMemoryStoreUpsertEdge(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	src := mustDomain(t, "example.com")
	dst, err := entity.Ip.New(map[string]any{"address": "93.184.216.34"})
	require.NoError(t, err)

	require.NoError(t, ms.UpsertNode(ctx, src, "sketch-1"))
	require.NoError(t, ms.UpsertNode(ctx, dst, "sketch-1"))
	require.NoError(t, ms.UpsertEdge(ctx, src, dst, "RESOLVES_TO", "sketch-1", nil))
	require.NoError(t, ms.UpsertEdge(ctx, src, dst, "RESOLVES_TO", "sketch-1", map[string]any{"ttl": 300}))

	assert.Equal(t, 1, ms.EdgeCount())
	props, ok := ms.Edge("sketch-1", "Domain", "example.com", "RESOLVES_TO", "Ip", "93.184.216.34")
	require.True(t, ok)
	assert.Equal(t, 300, props["ttl"])
}

func TestMemoryStoreGetNodesByIDs(t *testing.T) {
	ctx := context.Background()
	ms := NewMemoryStore()
	require.NoError(t, ms.UpsertNode(ctx, mustDomain(t, "example.com"), "sketch-1"))

	_, err := ms.GetNodesByIDs(ctx, []string{"missing"}, "sketch-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCleanNodeData(t *testing.T) {
	record := map[string]any{
		"domain":      "example.com",
		"label":       "Example",
		MetaSketchID:  "sketch-1",
		MetaCreatedAt: "2026-01-01T00:00:00Z",
		MetaType:      "domain",
		"x":           12.5,
		"y":           -3.0,
		"caption":     "node",
		"color":       "#fff",
		"empty":       "",
		"nothing":     nil,
		"list":        []any{},
		"tags":        []any{"a"},
	}

	out := CleanNodeData(record)
	assert.Equal(t, map[string]any{
		"domain": "example.com",
		"label":  "Example",
		"tags":   []any{"a"},
	}, out)
}

func TestIdentValidation(t *testing.T) {
	for _, ok := range []string{"Domain", "RESOLVES_TO", "asn1"} {
		_, err := ident(ok)
		assert.NoError(t, err, ok)
	}
	for _, bad := range []string{"", "1abc", "a b", "a-b", "a`) DETACH DELETE (n"} {
		_, err := ident(bad)
		assert.Error(t, err, bad)
	}
}
