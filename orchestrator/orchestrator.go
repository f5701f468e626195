// Package orchestrator executes a compiled branch list against a sketch:
// it resolves step inputs, invokes enrichers, caches results per
// (step, input) pair, maintains the execution log and commits final results.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/flowsint/flowsint/enricher"
	"github.com/flowsint/flowsint/entity"
	"github.com/flowsint/flowsint/flow"
	"github.com/flowsint/flowsint/graph"
	"github.com/flowsint/flowsint/log"
	"github.com/flowsint/flowsint/vault"
)

// DefaultLogDir is where per-run execution logs are written.
const DefaultLogDir = "enricher_logs"

// StepResult is the outcome of one step, reported to the caller.
type StepResult struct {
	NodeID   string `json:"nodeId"`
	Enricher string `json:"enricher"`
	Status   string `json:"status"`
	Outputs  any    `json:"outputs,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BranchResult groups the step results of one branch.
type BranchResult struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Steps []StepResult `json:"steps"`
}

// Result is the outcome of a whole run.
type Result struct {
	InitialValues    []any          `json:"initial_values"`
	Branches         []BranchResult `json:"branches"`
	Results          map[string]any `json:"results"`
	ReferenceMapping map[string]any `json:"reference_mapping"`
}

// Orchestrator runs one sketch-scoped execution of a compiled branch list.
// Branches run sequentially in compilation order, steps sequentially within a
// branch; parallelism exists at the task-queue level, not inside a run, which
// keeps per-sketch write ordering deterministic for the graph writer.
type Orchestrator struct {
	sketchID  string
	scanID    string
	branches  []flow.Branch
	enrichers map[string]enricher.Enricher
	logDir    string
	execLog   *execLog
	tracer    trace.Tracer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogDir overrides the execution log directory.
func WithLogDir(dir string) Option {
	return func(o *Orchestrator) { o.logDir = dir }
}

// New builds the orchestrator for one run: it constructs one enricher
// instance per enricher step (resolving parameters and vault secrets up
// front, so configuration failures surface before any work starts) and
// creates the execution log.
func New(
	ctx context.Context,
	sketchID, scanID string,
	branches []flow.Branch,
	reg *enricher.Registry,
	writer graph.Writer,
	v *vault.Vault,
	opts ...Option,
) (*Orchestrator, error) {
	if len(branches) == 0 {
		return nil, &enricher.EngineError{Msg: "no branches provided"}
	}
	o := &Orchestrator{
		sketchID:  sketchID,
		scanID:    scanID,
		branches:  branches,
		enrichers: map[string]enricher.Enricher{},
		logDir:    DefaultLogDir,
		tracer:    otel.Tracer("flowsint/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}

	found := false
	for _, b := range branches {
		for _, step := range b.Steps {
			if step.Type != flow.NodeTypeEnricher {
				continue
			}
			found = true
			if _, ok := o.enrichers[step.NodeID]; ok {
				continue
			}
			name := flow.EnricherName(step.NodeID)
			inst, err := reg.Build(ctx, name, enricher.Config{
				SketchID: sketchID,
				ScanID:   scanID,
				Writer:   writer,
				Vault:    v,
				Params:   step.Params,
			})
			if err != nil {
				return nil, err
			}
			o.enrichers[step.NodeID] = inst
		}
	}
	if !found {
		return nil, &enricher.EngineError{Msg: "no enricher steps found in branches"}
	}

	o.execLog = newExecLog(o.logDir, sketchID, scanID, branches)
	return o, nil
}

// Execute runs all branches against the seed values. Any step error aborts
// the run immediately; nodes already written to the graph are not rolled
// back.
func (o *Orchestrator) Execute(ctx context.Context, values []any) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.execute", trace.WithAttributes(
		attribute.String("sketch_id", o.sketchID),
		attribute.String("scan_id", o.scanID),
		attribute.Int("branches", len(o.branches)),
	))
	defer span.End()

	o.execLog.update(nil, logRunning)
	log.Infof("[sketch %s] starting run %s", o.sketchID, o.scanID)

	result := &Result{
		InitialValues:    values,
		Results:          map[string]any{},
		ReferenceMapping: map[string]any{},
	}
	// Run-scoped cache so shared-prefix branches never re-invoke a step.
	cache := map[string][]map[string]any{}

	for _, branch := range o.branches {
		branchResult := BranchResult{ID: branch.ID, Name: branch.Name}
		inputs := values
		firstStep := true

		for _, step := range branch.Steps {
			if step.Type != flow.NodeTypeEnricher {
				continue
			}
			inst := o.enrichers[step.NodeID]
			if inst == nil {
				log.Errorf("[sketch %s] enricher not found for node %s", o.sketchID, step.NodeID)
				continue
			}

			resolved := resolveInputs(step, result.ReferenceMapping)
			if len(resolved) > 0 {
				inputs = []any{resolved}
			} else if firstStep {
				inputs = values
			}
			firstStep = false

			outputs, entry, err := o.runStep(ctx, branch, step, inst, inputs, cache)
			if err != nil {
				stepResult := StepResult{
					NodeID:   step.NodeID,
					Enricher: inst.Descriptor().Name,
					Status:   flow.StatusError,
					Error:    entry.Error,
				}
				branchResult.Steps = append(branchResult.Steps, stepResult)
				result.Branches = append(result.Branches, branchResult)
				result.Results[step.NodeID] = map[string]any{"error": entry.Error}
				o.execLog.update(entry, "")
				o.execLog.finalize(logFailed, result)
				return result, err
			}

			branchResult.Steps = append(branchResult.Steps, StepResult{
				NodeID:   step.NodeID,
				Enricher: inst.Descriptor().Name,
				Status:   flow.StatusCompleted,
				Outputs:  outputs,
			})
			o.execLog.update(entry, "")

			updateReferenceMapping(step, outputs, result.ReferenceMapping)
			result.Results[step.NodeID] = outputs
			inputs = outputsToRaw(outputs)
		}
		result.Branches = append(result.Branches, branchResult)
	}

	log.Infof("[sketch %s] run %s completed", o.sketchID, o.scanID)
	o.execLog.finalize(logCompleted, result)
	return result, nil
}

// runStep executes one step with caching and returns its outputs and log
// entry. The entry carries the error on failure.
func (o *Orchestrator) runStep(
	ctx context.Context,
	branch flow.Branch,
	step flow.Step,
	inst enricher.Enricher,
	inputs []any,
	cache map[string][]map[string]any,
) ([]map[string]any, *LogEntry, error) {
	name := inst.Descriptor().Name
	start := time.Now()
	entry := &LogEntry{
		StepID:       branch.ID + "_" + step.NodeID,
		BranchID:     branch.ID,
		BranchName:   branch.Name,
		NodeID:       step.NodeID,
		EnricherName: name,
		Inputs:       inputs,
		Status:       flow.StatusRunning,
		Timestamp:    now(),
	}

	fail := func(err error) ([]map[string]any, *LogEntry, error) {
		entry.Status = flow.StatusError
		entry.Error = err.Error()
		entry.ExecutionTimeMs = time.Since(start).Milliseconds()
		log.Errorf("[sketch %s] step %s failed: %v", o.sketchID, entry.StepID, err)
		return nil, entry, err
	}

	if len(inputs) == 0 {
		return fail(&enricher.EngineError{Msg: "no inputs available for step " + step.NodeID})
	}

	ctx, span := o.tracer.Start(ctx, "orchestrator.step", trace.WithAttributes(
		attribute.String("node_id", step.NodeID),
		attribute.String("enricher", name),
	))
	defer span.End()

	key, err := cacheKey(step.NodeID, inputs)
	if err != nil {
		return fail(&enricher.EngineError{Msg: fmt.Sprintf("unserializable inputs for step %s: %v", step.NodeID, err)})
	}
	if cached, ok := cache[key]; ok {
		entry.CacheHit = true
		entry.Status = flow.StatusCompleted
		entry.Outputs = cached
		entry.ExecutionTimeMs = time.Since(start).Milliseconds()
		return cached, entry, nil
	}

	outputs, err := enricher.Execute(ctx, inst, inputs)
	if err != nil {
		var verr *entity.ValidationError
		if errors.As(err, &verr) {
			return fail(fmt.Errorf("validation error: %w", verr))
		}
		return fail(err)
	}
	cache[key] = outputs

	entry.Status = flow.StatusCompleted
	entry.Outputs = outputs
	entry.ExecutionTimeMs = time.Since(start).Milliseconds()
	return outputs, entry, nil
}

// resolveInputs walks the step's declared inputs: string values are
// references resolved against the run's reference mapping (dropped when
// unresolved), list values resolve element-wise keeping non-string literals,
// anything else is kept as-is.
func resolveInputs(step flow.Step, mapping map[string]any) map[string]any {
	resolved := map[string]any{}
	for key, ref := range step.Inputs {
		switch v := ref.(type) {
		case string:
			if val, ok := mapping[v]; ok {
				resolved[key] = val
			}
		case []any:
			items := make([]any, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					if val, ok := mapping[s]; ok {
						items = append(items, val)
						continue
					}
				}
				items = append(items, item)
			}
			resolved[key] = items
		default:
			if v != nil {
				resolved[key] = v
			}
		}
	}
	return resolved
}

// updateReferenceMapping publishes a completed step's outputs under its
// declared output references so any later step in the run can consume them.
func updateReferenceMapping(step flow.Step, outputs []map[string]any, mapping map[string]any) {
	if len(outputs) == 0 {
		return
	}
	first := outputs[0]
	for field, ref := range step.Outputs {
		alias, ok := ref.(string)
		if !ok || alias == "" {
			continue
		}
		if v, ok := first[field]; ok {
			mapping[alias] = v
		}
	}
}

func outputsToRaw(outputs []map[string]any) []any {
	raw := make([]any, 0, len(outputs))
	for _, o := range outputs {
		raw = append(raw, o)
	}
	return raw
}

// cacheKey stringifies the step inputs; encoding/json sorts map keys, so two
// calls with equal inputs share a cache slot.
func cacheKey(nodeID string, inputs []any) (string, error) {
	raw, err := json.Marshal(inputs)
	if err != nil {
		return "", err
	}
	return nodeID + ":" + string(raw), nil
}
