package task

import (
	"context"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/redis/go-redis/v9"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/graph"
	"github.com/flowsint/flowsint/log"
	"github.com/flowsint/flowsint/orchestrator"
	"github.com/flowsint/flowsint/store"
	"github.com/flowsint/flowsint/vault"
)

// DefaultPoolSize is the number of concurrent runs per worker process.
const DefaultPoolSize = 8

const popTimeout = 5 * time.Second

// Worker drains the task queue through a bounded goroutine pool. Runs scoped
// to different sketches execute concurrently; steps within a run stay
// sequential.
type Worker struct {
	rdb    *redis.Client
	db     *store.Store
	gs     graph.Store
	reg    *enricher.Registry
	pool   *ants.Pool
	logDir string
}

// NewWorker builds a worker with a pool of the given size; size <= 0 uses
// DefaultPoolSize.
func NewWorker(rdb *redis.Client, db *store.Store, gs graph.Store, reg *enricher.Registry, size int) (*Worker, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	pool, err := ants.NewPool(size)
	if err != nil {
		return nil, err
	}
	return &Worker{
		rdb:    rdb,
		db:     db,
		gs:     gs,
		reg:    reg,
		pool:   pool,
		logDir: orchestrator.DefaultLogDir,
	}, nil
}

// SetLogDir overrides the execution log directory for flow runs.
func (w *Worker) SetLogDir(dir string) { w.logDir = dir }

// Run blocks, popping jobs and dispatching them to the pool until ctx is
// canceled. In-flight runs finish before Run returns.
func (w *Worker) Run(ctx context.Context) error {
	defer w.pool.Release()
	log.Infof("worker started, pool size %d", w.pool.Cap())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		job, err := dequeue(ctx, w.rdb, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorf("dequeue failed: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			continue
		}
		j := *job
		if err := w.pool.Submit(func() { w.process(context.Background(), j) }); err != nil {
			log.Errorf("submit job %s: %v", j.ID, err)
			w.finish(ctx, j.ID, nil, err)
		}
	}
}

// process executes one job and records its outcome on the scan row.
func (w *Worker) process(ctx context.Context, job Job) {
	log.Infof("[task %s] processing %s for sketch %s", job.ID, job.Kind, job.SketchID)
	var results any
	var err error
	switch job.Kind {
	case KindRunEnricher:
		results, err = w.runEnricher(ctx, job)
	case KindRunFlow:
		results, err = w.runFlow(ctx, job)
	default:
		err = &enricher.EngineError{Msg: "unknown job kind " + job.Kind}
	}
	w.finish(ctx, job.ID, results, err)
}

func (w *Worker) finish(ctx context.Context, id string, results any, runErr error) {
	if runErr != nil {
		log.Errorf("[task %s] failed: %v", id, runErr)
		if err := w.db.FailScan(ctx, id, runErr); err != nil {
			log.Errorf("[task %s] failed to record failure: %v", id, err)
		}
		return
	}
	if err := w.db.CompleteScan(ctx, id, results); err != nil {
		log.Errorf("[task %s] failed to record results: %v", id, err)
		return
	}
	log.Infof("[task %s] completed", id)
}

// runEnricher executes a single enricher against the job's seed values.
func (w *Worker) runEnricher(ctx context.Context, job Job) (any, error) {
	inst, err := w.reg.Build(ctx, job.Enricher, enricher.Config{
		SketchID: job.SketchID,
		ScanID:   job.ID,
		Writer:   w.gs,
		Vault:    w.vault(job.UserID),
		Params:   job.Params,
	})
	if err != nil {
		return nil, err
	}
	values, err := w.seedValues(ctx, job)
	if err != nil {
		return nil, err
	}
	outputs, err := enricher.Execute(ctx, inst, values)
	if err != nil {
		return nil, err
	}
	return map[string]any{"outputs": outputs}, nil
}

// runFlow executes the pre-compiled branches of a flow run.
func (w *Worker) runFlow(ctx context.Context, job Job) (any, error) {
	orch, err := orchestrator.New(ctx, job.SketchID, job.ID, job.Branches, w.reg,
		w.gs, w.vault(job.UserID), orchestrator.WithLogDir(w.logDir))
	if err != nil {
		return nil, err
	}
	values, err := w.seedValues(ctx, job)
	if err != nil {
		return nil, err
	}
	result, err := orch.Execute(ctx, values)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// seedValues resolves the run's seed: node ids load existing graph nodes,
// cleaned of metadata and display fields; otherwise the literal values apply.
func (w *Worker) seedValues(ctx context.Context, job Job) ([]any, error) {
	if len(job.NodeIDs) == 0 {
		return job.Values, nil
	}
	records, err := w.gs.GetNodesByIDs(ctx, job.NodeIDs, job.SketchID)
	if err != nil {
		return nil, fmt.Errorf("load seed nodes: %w", err)
	}
	values := make([]any, 0, len(records))
	for _, rec := range records {
		values = append(values, graph.CleanNodeData(rec))
	}
	return values, nil
}

func (w *Worker) vault(userID string) *vault.Vault {
	return vault.New(w.db.Secrets(), userID)
}
