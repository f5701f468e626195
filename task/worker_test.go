package task

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/flow"
	"github.com/flowsint/flowsint/graph"
	"github.com/flowsint/flowsint/store"
)

type upperEnricher struct {
	desc enricher.Descriptor
	cfg  enricher.Config
}

func (e *upperEnricher) Descriptor() enricher.Descriptor { return e.desc }

func (e *upperEnricher) Preprocess(ctx context.Context, raw []any) ([]*entity.Entity, error) {
	var out []*entity.Entity
	for _, item := range raw {
		s, _ := item.(string)
		d, err := entity.Domain.New(map[string]any{"domain": s})
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func (e *upperEnricher) Scan(ctx context.Context, inputs []*entity.Entity) ([]*entity.Entity, error) {
	return inputs, nil
}

func (e *upperEnricher) Postprocess(ctx context.Context, results, inputs []*entity.Entity) ([]*entity.Entity, error) {
	for _, r := range results {
		if err := e.cfg.Writer.UpsertNode(ctx, r, e.cfg.SketchID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func newTestWorker(t *testing.T) (*Worker, *store.Store, *graph.MemoryStore) {
	t.Helper()
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	reg := enricher.NewRegistry()
	desc := enricher.Descriptor{Name: "echo", InputType: "Domain", OutputType: "Domain"}
	reg.Register(desc, func(ctx context.Context, cfg enricher.Config) (enricher.Enricher, error) {
		return &upperEnricher{desc: desc, cfg: cfg}, nil
	})

	ms := graph.NewMemoryStore()
	w, err := NewWorker(nil, db, ms, reg, 2)
	require.NoError(t, err)
	w.SetLogDir(t.TempDir())
	return w, db, ms
}

func TestProcessEnricherJob(t *testing.T) {
	ctx := context.Background()
	w, db, ms := newTestWorker(t)
	require.NoError(t, db.CreateScan(ctx, "task-1", "sketch-1"))

	w.process(ctx, Job{
		ID:       "task-1",
		Kind:     KindRunEnricher,
		SketchID: "sketch-1",
		Enricher: "echo",
		Values:   []any{"example.com"},
	})

	sc, err := db.GetScan(ctx, "task-1")
	require.NoError(t, err)
	assert.Equal(t, store.ScanCompleted, sc.Status)
	assert.Contains(t, sc.Results, "outputs")
	assert.Equal(t, 1, ms.NodeCount())
}

func TestProcessFlowJob(t *testing.T) {
	ctx := context.Background()
	w, db, _ := newTestWorker(t)
	require.NoError(t, db.CreateScan(ctx, "task-2", "sketch-1"))

	branches := []flow.Branch{{
		ID:   "branch-0",
		Name: "Main Flow",
		Steps: []flow.Step{{
			NodeID:   "echo-1",
			Type:     flow.NodeTypeEnricher,
			Inputs:   map[string]any{},
			Outputs:  map[string]any{},
			Status:   flow.StatusPending,
			BranchID: "branch-0",
		}},
	}}

	w.process(ctx, Job{
		ID:       "task-2",
		Kind:     KindRunFlow,
		SketchID: "sketch-1",
		Branches: branches,
		Values:   []any{"example.com"},
	})

	sc, err := db.GetScan(ctx, "task-2")
	require.NoError(t, err)
	assert.Equal(t, store.ScanCompleted, sc.Status)
	assert.Contains(t, sc.Results, "results")
}

func TestProcessUnknownKindFails(t *testing.T) {
	ctx := context.Background()
	w, db, _ := newTestWorker(t)
	require.NoError(t, db.CreateScan(ctx, "task-3", "sketch-1"))

	w.process(ctx, Job{ID: "task-3", Kind: "nonsense", SketchID: "sketch-1"})

	sc, err := db.GetScan(ctx, "task-3")
	require.NoError(t, err)
	assert.Equal(t, store.ScanFailed, sc.Status)
	assert.Contains(t, sc.Results["error"], "nonsense")
}

func TestProcessUnknownEnricherFails(t *testing.T) {
	ctx := context.Background()
	w, db, _ := newTestWorker(t)
	require.NoError(t, db.CreateScan(ctx, "task-4", "sketch-1"))

	w.process(ctx, Job{ID: "task-4", Kind: KindRunEnricher, SketchID: "sketch-1", Enricher: "ghost", Values: []any{"x"}})

	sc, err := db.GetScan(ctx, "task-4")
	require.NoError(t, err)
	assert.Equal(t, store.ScanFailed, sc.Status)
}
