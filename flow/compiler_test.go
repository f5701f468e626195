package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsint/flowsint/enricher"
)

func typeNode(id, outputName string) Node {
	return Node{
		ID: id,
		Data: NodeData{
			Type:    NodeTypeType,
			Outputs: OutputSchema{Properties: []OutputField{{Name: outputName}}},
		},
	}
}

func enricherNode(id string, outputs ...string) Node {
	props := make([]OutputField, 0, len(outputs))
	for _, o := range outputs {
		props = append(props, OutputField{Name: o})
	}
	return Node{
		ID: id,
		Data: NodeData{
			Type:    NodeTypeEnricher,
			Outputs: OutputSchema{Properties: props},
		},
	}
}

func TestCompileLinearChain(t *testing.T) {
	nodes := []Node{
		typeNode("seed", "domain"),
		enricherNode("resolve-1", "address"),
		enricherNode("geo-2", "country"),
	}
	edges := []Edge{
		{Source: "seed", Target: "resolve-1"},
		{Source: "resolve-1", Target: "geo-2"},
	}

	branches := Compile("example.com", nodes, edges, nil)
	require.Len(t, branches, 1)

	b := branches[0]
	assert.Equal(t, "branch-0", b.ID)
	assert.Equal(t, "Main Flow", b.Name)
	require.Len(t, b.Steps, 3)

	seed := b.Steps[0]
	assert.Equal(t, NodeTypeType, seed.Type)
	assert.Equal(t, 0, seed.Depth)
	assert.Equal(t, "example.com", seed.Outputs["domain"])

	first := b.Steps[1]
	assert.Equal(t, NodeTypeEnricher, first.Type)
	assert.Equal(t, 1, first.Depth)
	// Unlabeled edge reads the source's first declared output field.
	assert.Equal(t, "example.com", first.Inputs["input"])

	for _, s := range b.Steps {
		assert.Equal(t, StatusPending, s.Status)
		assert.Equal(t, "branch-0", s.BranchID)
	}
}

func TestCompileForkNamingAndOrder(t *testing.T) {
	// seed -> a; a -> b -> c (long continuation) and a -> d (short leaf).
	nodes := []Node{
		typeNode("seed", "domain"),
		enricherNode("a-1", "out"),
		enricherNode("b-2", "out"),
		enricherNode("c-3", "out"),
		enricherNode("d-4", "out"),
	}
	edges := []Edge{
		{Source: "seed", Target: "a-1"},
		{Source: "a-1", Target: "b-2"},
		{Source: "b-2", Target: "c-3"},
		{Source: "a-1", Target: "d-4"},
	}

	branches := Compile("example.com", nodes, edges, nil)
	require.Len(t, branches, 2)

	// Branches are sorted ascending by length: the short path through d is
	// the main flow, the long path forked.
	main := branches[0]
	fork := branches[1]
	assert.Equal(t, "branch-0", main.ID)
	assert.Equal(t, "Main Flow", main.Name)
	require.Len(t, main.Steps, 3)
	assert.Equal(t, "d-4", main.Steps[2].NodeID)

	assert.Equal(t, "branch-0-1", fork.ID)
	assert.Equal(t, "Main Flow (Branch 1)", fork.Name)
	require.Len(t, fork.Steps, 4)
	assert.Equal(t, "c-3", fork.Steps[3].NodeID)

	// The shared prefix is copied by value, not aliased.
	assert.Equal(t, main.Steps[0].NodeID, fork.Steps[0].NodeID)
	assert.Equal(t, main.Steps[1].NodeID, fork.Steps[1].NodeID)
}

func TestCompileCycleTerminates(t *testing.T) {
	nodes := []Node{
		typeNode("seed", "domain"),
		enricherNode("a-1", "out"),
		enricherNode("b-2", "out"),
	}
	edges := []Edge{
		{Source: "seed", Target: "a-1"},
		{Source: "a-1", Target: "b-2"},
		{Source: "b-2", Target: "a-1"},
	}

	branches := Compile("example.com", nodes, edges, nil)
	require.NotEmpty(t, branches)
	for _, b := range branches {
		seen := map[string]bool{}
		for _, s := range b.Steps {
			assert.False(t, seen[s.NodeID], "node %s appears twice in branch %s", s.NodeID, b.ID)
			seen[s.NodeID] = true
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	nodes := []Node{
		typeNode("seed", "domain"),
		enricherNode("a-1", "x", "y"),
		enricherNode("b-2", "out"),
		enricherNode("c-3", "out"),
	}
	edges := []Edge{
		{Source: "seed", Target: "a-1"},
		{Source: "a-1", SourceHandle: "x", Target: "b-2"},
		{Source: "a-1", SourceHandle: "y", Target: "c-3"},
	}

	first := Compile("example.com", nodes, edges, nil)
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, Compile("example.com", nodes, edges, nil))
	}
}

func TestCompileUnknownEdgeEndpoint(t *testing.T) {
	nodes := []Node{typeNode("seed", "domain")}
	edges := []Edge{{Source: "seed", Target: "ghost"}}

	branches := Compile("example.com", nodes, edges, nil)
	require.Len(t, branches, 1)
	require.Len(t, branches[0].Steps, 1)
	step := branches[0].Steps[0]
	assert.Equal(t, NodeTypeError, step.Type)
	assert.Equal(t, StatusError, step.Status)
	assert.Contains(t, step.Error, "ghost")
}

func TestCompileUnknownEnricher(t *testing.T) {
	reg := enricher.NewRegistry()
	nodes := []Node{
		typeNode("seed", "domain"),
		enricherNode("nonexistent-1", "out"),
	}
	edges := []Edge{{Source: "seed", Target: "nonexistent-1"}}

	branches := Compile("example.com", nodes, edges, reg)
	require.Len(t, branches, 1)
	step := branches[0].Steps[0]
	assert.Equal(t, NodeTypeError, step.Type)
	assert.Contains(t, step.Error, "nonexistent")
}

func TestCompileBadSourceHandle(t *testing.T) {
	nodes := []Node{
		typeNode("seed", "domain"),
		enricherNode("a-1", "out"),
	}
	edges := []Edge{{Source: "seed", SourceHandle: "nope", Target: "a-1"}}

	branches := Compile("example.com", nodes, edges, nil)
	require.Len(t, branches, 1)
	assert.Equal(t, NodeTypeError, branches[0].Steps[0].Type)
}

func TestCompileMultipleSeeds(t *testing.T) {
	nodes := []Node{
		typeNode("seed1", "domain"),
		typeNode("seed2", "email"),
		enricherNode("a-1", "out"),
		enricherNode("b-2", "out"),
	}
	edges := []Edge{
		{Source: "seed1", Target: "a-1"},
		{Source: "seed2", Target: "b-2"},
	}

	branches := Compile("example.com", nodes, edges, nil)
	require.Len(t, branches, 2)
	names := []string{branches[0].Name, branches[1].Name}
	assert.Contains(t, names, "Flow 1")
	assert.Contains(t, names, "Flow 2")
}

func TestCompileSharedNodeOutputsCached(t *testing.T) {
	// Two seeds feed the same enricher; both branches must carry the same
	// placeholder outputs for it.
	nodes := []Node{
		typeNode("seed1", "domain"),
		typeNode("seed2", "domain"),
		enricherNode("shared-1", "out"),
	}
	edges := []Edge{
		{Source: "seed1", Target: "shared-1"},
		{Source: "seed2", Target: "shared-1"},
	}

	branches := Compile("example.com", nodes, edges, nil)
	require.Len(t, branches, 2)
	assert.Equal(t, branches[0].Steps[1].Outputs, branches[1].Steps[1].Outputs)
}

func TestCompileWithRegisteredEnricher(t *testing.T) {
	reg := enricher.NewRegistry()
	reg.Register(enricher.Descriptor{Name: "resolve"}, func(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
		return nil, nil
	})
	nodes := []Node{
		typeNode("seed", "domain"),
		enricherNode("resolve-1", "address"),
	}
	edges := []Edge{{Source: "seed", Target: "resolve-1"}}

	branches := Compile("example.com", nodes, edges, reg)
	require.Len(t, branches, 1)
	assert.Equal(t, NodeTypeEnricher, branches[0].Steps[1].Type)
}

func TestEnricherName(t *testing.T) {
	assert.Equal(t, "domain_to_ip", EnricherName("domain_to_ip-1712345678"))
	assert.Equal(t, "whois", EnricherName("whois"))
	assert.Equal(t, "a", EnricherName("a-b-c"))
}

func TestSampleData(t *testing.T) {
	assert.Equal(t, "example.com", SampleData("Domain"))
	assert.Equal(t, "user@example.com", SampleData("email"))
	assert.Equal(t, "192.168.1.1", SampleData("Ip"))
	assert.Equal(t, 42, SampleData("number"))
	assert.Equal(t, "sample_text", SampleData(""))
	assert.Equal(t, "sample_phrase", SampleData("Phrase"))
}
