package orchestrator

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/flowsint/flowsint/flow"
	"github.com/flowsint/flowsint/log"
)

// Execution log statuses.
const (
	logInitialized = "initialized"
	logRunning     = "running"
	logCompleted   = "completed"
	logFailed      = "failed"
)

// LogEntry is one appended record of step activity.
type LogEntry struct {
	StepID          string `json:"step_id"`
	BranchID        string `json:"branch_id"`
	BranchName      string `json:"branch_name"`
	NodeID          string `json:"node_id"`
	EnricherName    string `json:"enricher_name"`
	Inputs          any    `json:"inputs"`
	Outputs         any    `json:"outputs"`
	Status          string `json:"status"`
	Error           string `json:"error,omitempty"`
	Timestamp       string `json:"timestamp"`
	ExecutionTimeMs int64  `json:"execution_time_ms"`
	CacheHit        bool   `json:"cache_hit"`
}

// Summary aggregates step counters for the run.
type Summary struct {
	TotalSteps           int   `json:"total_steps"`
	CompletedSteps       int   `json:"completed_steps"`
	FailedSteps          int   `json:"failed_steps"`
	TotalExecutionTimeMs int64 `json:"total_execution_time_ms"`
}

type logData struct {
	SketchID         string        `json:"sketch_id"`
	ScanID           string        `json:"scan_id"`
	CreatedAt        string        `json:"created_at"`
	UpdatedAt        string        `json:"updated_at"`
	Status           string        `json:"status"`
	EnricherBranches []flow.Branch `json:"enricher_branches"`
	ExecutionLog     []LogEntry    `json:"execution_log"`
	Summary          Summary       `json:"summary"`
	FinalResults     any           `json:"final_results"`
}

// execLog is the per-run, append-only JSON record of all step activity.
// Only the owning orchestrator writes it; consumers poll or tail the file.
// Every mutation rewrites the whole file so that a partial log stays readable
// after a crash.
type execLog struct {
	path string
	data logData
}

// newExecLog creates the initial execution log file plus a snapshot of the
// compiled branches. File errors are logged, not fatal: the run proceeds
// without a log file.
func newExecLog(dir, sketchID, scanID string, branches []flow.Branch) *execLog {
	l := &execLog{
		data: logData{
			SketchID:         sketchID,
			ScanID:           scanID,
			CreatedAt:        now(),
			UpdatedAt:        now(),
			Status:           logInitialized,
			EnricherBranches: branches,
			ExecutionLog:     []LogEntry{},
			FinalResults:     map[string]any{},
		},
	}
	for _, b := range branches {
		for _, s := range b.Steps {
			if s.Type != flow.NodeTypeType {
				l.data.Summary.TotalSteps++
			}
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		log.Errorf("failed to create execution log dir: %v", err)
		return l
	}
	l.path = filepath.Join(dir, fmt.Sprintf("enricher_execution_%s_%s.json", sketchID, scanID))
	l.flush()
	l.saveBranchSnapshot(dir, branches)
	log.Infof("enricher execution log created at %s", l.path)
	return l
}

func (l *execLog) saveBranchSnapshot(dir string, branches []flow.Branch) {
	path := filepath.Join(dir, fmt.Sprintf("enricher_branches_%s_%s.json", l.data.SketchID, l.data.ScanID))
	snapshot := map[string]any{
		"sketch_id":         l.data.SketchID,
		"scan_id":           l.data.ScanID,
		"timestamp":         now(),
		"enricher_branches": branches,
	}
	raw, err := json.MarshalIndent(snapshot, "", "  ")
	if err == nil {
		err = os.WriteFile(path, raw, 0o644)
	}
	if err != nil {
		log.Errorf("failed to save enricher branches: %v", err)
	}
}

// update appends a step entry and/or transitions the run status.
func (l *execLog) update(entry *LogEntry, status string) {
	l.data.UpdatedAt = now()
	if status != "" {
		l.data.Status = status
	}
	if entry != nil {
		l.data.ExecutionLog = append(l.data.ExecutionLog, *entry)
		switch entry.Status {
		case flow.StatusCompleted:
			l.data.Summary.CompletedSteps++
		case flow.StatusError:
			l.data.Summary.FailedSteps++
		}
		l.data.Summary.TotalExecutionTimeMs += entry.ExecutionTimeMs
	}
	l.flush()
}

// finalize closes the log with the final results. After this only
// updated_at and final_results may change.
func (l *execLog) finalize(status string, finalResults any) {
	l.data.UpdatedAt = now()
	l.data.Status = status
	l.data.FinalResults = finalResults
	l.flush()
}

func (l *execLog) flush() {
	if l.path == "" {
		return
	}
	raw, err := json.MarshalIndent(l.data, "", "  ")
	if err == nil {
		err = os.WriteFile(l.path, raw, 0o644)
	}
	if err != nil {
		log.Errorf("failed to write execution log: %v", err)
	}
}

func now() string { return time.Now().Format(time.RFC3339Nano) }
