// Package report derives aggregate summaries from execution history and
// serializes timestamped run reports.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fyrsmithlabs/hookd/internal/orchestrator"
)

// Summary aggregates one run's execution history. Purely derived; two
// calls over the same history produce identical summaries.
type Summary struct {
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	Parallel        int            `json:"parallel"`
	Sequential      int            `json:"sequential"`
	TotalDurationMs int64          `json:"total_duration_ms"`
}

// Report is the exportable envelope: the summary plus every record.
type Report struct {
	GeneratedAt time.Time                     `json:"generated_at"`
	RunID       string                        `json:"run_id"`
	Summary     Summary                       `json:"summary"`
	Executions  []*orchestrator.HookExecution `json:"executions"`
}

// Summarize folds history into aggregate counts. Skipped hooks never ran,
// so they appear in the status counts but not in the parallel/sequential
// execution split.
func Summarize(history []*orchestrator.HookExecution) Summary {
	s := Summary{ByStatus: make(map[string]int)}
	for _, rec := range history {
		s.Total++
		s.ByStatus[string(rec.Status)]++
		s.TotalDurationMs += rec.DurationMs
		if rec.Status == orchestrator.StatusSkipped {
			continue
		}
		if rec.Parallel {
			s.Parallel++
		} else {
			s.Sequential++
		}
	}
	return s
}

// Write serializes a timestamped report for the run to w.
func Write(w io.Writer, runID string, history []*orchestrator.HookExecution) error {
	if history == nil {
		history = []*orchestrator.HookExecution{}
	}
	rep := Report{
		GeneratedAt: time.Now().UTC(),
		RunID:       runID,
		Summary:     Summarize(history),
		Executions:  history,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// ExportFile writes the report to path, creating or truncating it.
func ExportFile(path, runID string, history []*orchestrator.HookExecution) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating report file: %w", err)
	}
	if err := Write(f, runID, history); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing report file: %w", err)
	}
	return nil
}
