// Package task queues and executes enricher and flow runs. Launch endpoints
// enqueue a job and return a task id immediately; a worker pool drains the
// queue and records outcomes on the scan row the id points at.
package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/flowsint/flowsint/flow"
	"github.com/flowsint/flowsint/store"
)

// QueueKey is the Redis list jobs are pushed onto.
const QueueKey = "flowsint:tasks"

// Job kinds.
const (
	KindRunEnricher = "run_enricher"
	KindRunFlow     = "run_flow"
)

// Job is one queued unit of work, serialized as JSON on the Redis list.
type Job struct {
	ID       string `json:"id"`
	Kind     string `json:"kind"`
	SketchID string `json:"sketch_id"`
	UserID   string `json:"user_id"`

	// Enricher and Params apply to run_enricher jobs.
	Enricher string         `json:"enricher,omitempty"`
	Params   map[string]any `json:"params,omitempty"`

	// Branches applies to run_flow jobs; the launch endpoint compiles the
	// flow so the worker never needs the editor graph.
	Branches []flow.Branch `json:"branches,omitempty"`

	// Values are the seed values for the run. NodeIDs, when set, are loaded
	// from the sketch graph and cleaned into seed records instead.
	Values  []any    `json:"values"`
	NodeIDs []string `json:"node_ids,omitempty"`
}

// Queue enqueues jobs and creates their pending scan rows.
type Queue struct {
	rdb *redis.Client
	db  *store.Store
}

// NewQueue builds a queue on the given Redis client and scan store.
func NewQueue(rdb *redis.Client, db *store.Store) *Queue {
	return &Queue{rdb: rdb, db: db}
}

// Enqueue assigns the job an id, records a pending scan row and pushes the
// job. The returned id is what clients poll.
func (q *Queue) Enqueue(ctx context.Context, job Job) (string, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if err := q.db.CreateScan(ctx, job.ID, job.SketchID); err != nil {
		return "", err
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("serialize job: %w", err)
	}
	if err := q.rdb.LPush(ctx, QueueKey, raw).Err(); err != nil {
		return "", fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return job.ID, nil
}

// dequeue blocks until a job is available or the timeout elapses. A nil job
// with nil error means the wait timed out.
func dequeue(ctx context.Context, rdb *redis.Client, timeout time.Duration) (*Job, error) {
	res, err := rdb.BRPop(ctx, timeout, QueueKey).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP reply of length %d", len(res))
	}
	var job Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	return &job, nil
}
