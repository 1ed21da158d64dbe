package orchestrator

import (
	"context"
	"time"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

// Status is the lifecycle state of one hook execution.
type Status string

const (
	// StatusPending is the initial state before the hook starts
	StatusPending Status = "pending"

	// StatusRunning means the subprocess has been spawned
	StatusRunning Status = "running"

	// StatusSuccess means the subprocess exited 0
	StatusSuccess Status = "success"

	// StatusFailure means a nonzero exit or a spawn/communication error
	StatusFailure Status = "failure"

	// StatusSkipped means the hook never ran (unmet dependency or
	// unknown name in the declared order)
	StatusSkipped Status = "skipped"

	// StatusTimeout means the subprocess was killed at its deadline
	StatusTimeout Status = "timeout"

	// StatusCached means a prior success was reused without spawning
	StatusCached Status = "cached"
)

// ExitCodeNone is the exit code sentinel before, or without, a process
// exit (skips, timeouts, spawn failures).
const ExitCodeNone = -1

// HookExecution records one attempted hook run. Exactly one terminal
// status is ever assigned; the caller appends the finished record to
// history and never mutates it after.
type HookExecution struct {
	Name        string    `json:"name"`
	Phase       string    `json:"phase"`
	Status      Status    `json:"status"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at,omitempty"`
	DurationMs  int64     `json:"duration_ms"`
	ExitCode    int       `json:"exit_code"`
	Stdout      string    `json:"stdout,omitempty"`
	Stderr      string    `json:"stderr,omitempty"`
	Parallel    bool      `json:"parallel"`
	Cached      bool      `json:"cached,omitempty"`
}

// NewExecution returns a pending record with the exit code sentinel set.
func NewExecution(name, phase string) *HookExecution {
	return &HookExecution{
		Name:     name,
		Phase:    phase,
		Status:   StatusPending,
		ExitCode: ExitCodeNone,
	}
}

// Finalize stamps the terminal status, completion time, and duration.
func (e *HookExecution) Finalize(status Status) {
	e.Status = status
	e.CompletedAt = time.Now()
	if !e.StartedAt.IsZero() {
		e.DurationMs = e.CompletedAt.Sub(e.StartedAt).Milliseconds()
	}
}

// Succeeded reports whether this record satisfies a dependency edge.
// Cached results count as success.
func (e *HookExecution) Succeeded() bool {
	return e.Status == StatusSuccess || e.Status == StatusCached
}

// Terminal reports whether the record reached a final status.
func (e *HookExecution) Terminal() bool {
	switch e.Status {
	case StatusSuccess, StatusFailure, StatusSkipped, StatusTimeout, StatusCached:
		return true
	}
	return false
}

// ExecutionGroup is one ordered slice of a phase's declared hook order.
// Constructed once per phase by BuildGroups; immutable thereafter.
type ExecutionGroup struct {
	ID          int      `json:"id"`
	Hooks       []string `json:"hooks"`
	Parallel    bool     `json:"parallel"`
	Description string   `json:"description"`
}

// PhaseStatus summarizes how a phase run ended.
type PhaseStatus string

const (
	// PhaseSuccess means every hook ran and none failed or was skipped
	PhaseSuccess PhaseStatus = "success"

	// PhasePartial means failures or skips occurred but the run continued
	PhasePartial PhaseStatus = "partial"

	// PhaseFailed means the run aborted under the skip-on-failure policy
	PhaseFailed PhaseStatus = "failed"

	// PhaseSkipped means the phase had no hooks to run
	PhaseSkipped PhaseStatus = "skipped"
)

// PhaseResult is the outcome of one ExecutePhase call.
type PhaseResult struct {
	Phase           string      `json:"phase"`
	Status          PhaseStatus `json:"status"`
	HookCount       int         `json:"hook_count"`
	FailedCount     int         `json:"failed_count"`
	SkippedCount    int         `json:"skipped_count"`
	ParallelCount   int         `json:"parallel_count"`
	SequentialCount int         `json:"sequential_count"`
	GroupCount      int         `json:"group_count"`
	DurationMs      int64       `json:"duration_ms"`
}

// Clean reports whether the phase finished with zero failed and zero
// skipped hooks. The CLI exits 0 only for clean phases.
func (r *PhaseResult) Clean() bool {
	return r.FailedCount == 0 && r.SkippedCount == 0
}

// HookRunner executes one hook to completion and returns its terminal
// record. Implementations never surface subprocess failures as errors;
// every outcome (success, failure, timeout, spawn error) is a record.
type HookRunner interface {
	Run(ctx context.Context, hook *manifest.Hook, payload map[string]interface{}) *HookExecution
}
