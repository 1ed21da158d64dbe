package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hookd/internal/logging"
	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

// ExecutePhase runs one phase to completion and reports the outcome.
//
// When the manifest declares a flow for the phase, its groups execute in
// order: the critical-path group one hook at a time, the optional group
// as one concurrent batch. Without a flow, the fallback scheduler orders
// the phase's hooks by their dependencies.
//
// Per-hook failures never surface as errors; they are visible in the
// result counts and in History().
func (o *Orchestrator) ExecutePhase(ctx context.Context, phase string, payload map[string]interface{}) *PhaseResult {
	start := time.Now()
	ctx = logging.WithRunID(ctx, o.runID)
	if logging.ValidID(phase) {
		ctx = logging.WithPhase(ctx, phase)
	}
	ctx, span := StartPhaseSpan(ctx, phase)
	defer span.End()

	flow, _ := o.manifest.Flow(phase)
	groups := BuildGroups(flow)
	if groups == nil {
		return o.executeFallback(ctx, phase, payload, start)
	}

	o.log.Info(ctx, "executing phase",
		zap.Int("group_count", len(groups)),
		zap.Bool("skip_on_failure", o.skipOnFailure))

	result := &PhaseResult{Phase: phase, GroupCount: len(groups)}
	var all []*HookExecution

	for _, group := range groups {
		var records []*HookExecution
		var aborted bool
		if group.Parallel {
			records = o.executeParallel(ctx, phase, group, payload)
		} else {
			records, aborted = o.executeSequential(ctx, phase, group.Hooks, payload, nil)
		}
		all = append(all, records...)

		if aborted || (o.skipOnFailure && anyCascadeTrigger(records)) {
			o.log.Warn(ctx, "aborting phase",
				zap.Int("group", group.ID),
				zap.String("group_description", group.Description))
			o.finishPhase(ctx, result, all, PhaseFailed, start)
			return result
		}
	}

	o.finishPhase(ctx, result, all, statusFor(all), start)
	return result
}

// executeSequential runs hooks one at a time in declared order, applying
// the dependency gate before each. Shared by critical-path groups and the
// fallback scheduler; broken carries cycle-exempt edges in the latter
// case. Reports aborted when the skip-on-failure policy stops the phase
// at an unmet dependency.
func (o *Orchestrator) executeSequential(ctx context.Context, phase string, names []string, payload map[string]interface{}, broken map[edge]struct{}) (records []*HookExecution, aborted bool) {
	var local []*HookExecution
	record := func(rec *HookExecution) {
		local = append(local, rec)
		records = append(records, rec)
		o.appendHistory(rec)
	}

	for _, name := range names {
		hook, ok := o.manifest.Hook(name)
		if !ok {
			// Recoverable per-hook condition: the declared order names a
			// hook the manifest never defines.
			o.log.Warn(ctx, "unknown hook in declared order", zap.String("hook", name))
			rec := NewExecution(name, phase)
			rec.Finalize(StatusSkipped)
			record(rec)
			o.metrics.HookSkipped(ctx, phase)
			continue
		}

		if rec := o.cachedResult(ctx, hook, false); rec != nil {
			record(rec)
			continue
		}

		if !eligible(hook, local, o.historyView(), broken) {
			o.log.Warn(ctx, "dependencies unmet, hook skipped",
				zap.String("hook", name),
				zap.Strings("depends_on", hook.DependsOn))
			rec := NewExecution(name, phase)
			rec.Finalize(StatusSkipped)
			record(rec)
			o.metrics.HookSkipped(ctx, phase)
			if o.skipOnFailure {
				return records, true
			}
			continue
		}

		record(o.runHook(ctx, hook, payload))
	}
	return records, false
}

// executeParallel filters the group against history, then launches every
// eligible member concurrently as one batch and joins it. One member's
// failure, timeout, or panic never cancels its siblings.
func (o *Orchestrator) executeParallel(ctx context.Context, phase string, group ExecutionGroup, payload map[string]interface{}) []*HookExecution {
	var records []*HookExecution
	var batch []*manifest.Hook

	// Gate against history only: members of the same batch are not
	// expected to depend on siblings, by construction of the two groups.
	for _, name := range group.Hooks {
		hook, ok := o.manifest.Hook(name)
		if !ok {
			o.log.Warn(ctx, "unknown hook in declared order", zap.String("hook", name))
			rec := NewExecution(name, phase)
			rec.Parallel = true
			rec.Finalize(StatusSkipped)
			records = append(records, rec)
			o.appendHistory(rec)
			o.metrics.HookSkipped(ctx, phase)
			continue
		}

		if rec := o.cachedResult(ctx, hook, true); rec != nil {
			records = append(records, rec)
			o.appendHistory(rec)
			continue
		}

		if !Eligible(hook, nil, o.historyView()) {
			o.log.Warn(ctx, "dependencies unmet, hook skipped",
				zap.String("hook", name),
				zap.Strings("depends_on", hook.DependsOn))
			rec := NewExecution(name, phase)
			rec.Parallel = true
			rec.Finalize(StatusSkipped)
			records = append(records, rec)
			o.appendHistory(rec)
			o.metrics.HookSkipped(ctx, phase)
			continue
		}

		batch = append(batch, hook)
	}

	if len(batch) == 0 {
		return records
	}

	o.log.Debug(ctx, "launching parallel batch", zap.Int("hooks", len(batch)))

	results := make(chan *HookExecution, len(batch))
	var wg sync.WaitGroup
	for _, hook := range batch {
		wg.Add(1)
		go func(h *manifest.Hook) {
			defer wg.Done()
			defer func() {
				// Per-task isolation: a panicked member becomes a
				// failure record, never a crashed batch.
				if r := recover(); r != nil {
					rec := NewExecution(h.Name, h.Phase)
					rec.Parallel = true
					rec.Stderr = fmt.Sprintf("panic: %v", r)
					rec.Finalize(StatusFailure)
					results <- rec
				}
			}()
			rec := o.runHook(ctx, h, payload)
			rec.Parallel = true
			results <- rec
		}(hook)
	}
	wg.Wait()
	close(results)

	// Barrier passed: collect in completion order. Appends stay on the
	// driving goroutine.
	for rec := range results {
		records = append(records, rec)
		o.appendHistory(rec)
	}
	return records
}

// cachedResult emits a cached record when result caching is on and the
// hook's most recent history record is success-equivalent. Returns nil
// when the hook must actually run.
func (o *Orchestrator) cachedResult(ctx context.Context, hook *manifest.Hook, parallel bool) *HookExecution {
	if !o.cacheResults {
		return nil
	}
	prior := latest(o.historyView(), hook.Name)
	if prior == nil || !prior.Succeeded() {
		return nil
	}

	o.log.Debug(ctx, "reusing prior hook result", zap.String("hook", hook.Name))
	rec := NewExecution(hook.Name, hook.Phase)
	rec.Parallel = parallel
	rec.Cached = true
	rec.Finalize(StatusCached)
	rec.ExitCode = 0
	return rec
}

// runHook spawns one eligible hook via the runner, bracketing it with
// metrics, tracing, and logs.
func (o *Orchestrator) runHook(ctx context.Context, hook *manifest.Hook, payload map[string]interface{}) *HookExecution {
	if logging.ValidID(hook.Name) {
		ctx = logging.WithHook(ctx, hook.Name)
	}
	ctx, span := StartHookSpan(ctx, hook)
	defer span.End()

	o.log.Debug(ctx, "hook starting",
		zap.String("command", hook.Command()),
		zap.Duration("timeout", hook.TimeoutDuration()))

	o.metrics.HookStarted(ctx, hook.Phase)
	rec := o.runner.Run(ctx, hook, payload)
	o.metrics.HookFinished(ctx, rec)
	EndHookSpan(span, rec)

	switch rec.Status {
	case StatusSuccess:
		o.log.Debug(ctx, "hook succeeded", zap.Int64("duration_ms", rec.DurationMs))
	case StatusTimeout:
		o.log.Warn(ctx, "hook timed out",
			zap.Int64("duration_ms", rec.DurationMs),
			zap.Duration("timeout", hook.TimeoutDuration()))
	default:
		o.log.Warn(ctx, "hook failed",
			zap.Int("exit_code", rec.ExitCode),
			zap.Int64("duration_ms", rec.DurationMs),
			zap.String("stderr", tail(rec.Stderr, 512)))
	}
	return rec
}

// finishPhase stamps the result, tallies the records, and emits the
// phase-level log line and metrics.
func (o *Orchestrator) finishPhase(ctx context.Context, result *PhaseResult, records []*HookExecution, status PhaseStatus, start time.Time) {
	result.Status = status
	result.DurationMs = time.Since(start).Milliseconds()

	for _, rec := range records {
		result.HookCount++
		switch rec.Status {
		case StatusFailure, StatusTimeout:
			result.FailedCount++
		case StatusSkipped:
			result.SkippedCount++
		}
		if rec.Status != StatusSkipped {
			if rec.Parallel {
				result.ParallelCount++
			} else {
				result.SequentialCount++
			}
		}
	}

	o.metrics.PhaseCompleted(ctx, result)

	log := o.log.Info
	if status == PhaseFailed {
		log = o.log.Warn
	}
	log(ctx, "phase complete",
		zap.String("status", string(status)),
		zap.Int("hooks", result.HookCount),
		zap.Int("failed", result.FailedCount),
		zap.Int("skipped", result.SkippedCount),
		zap.Int64("duration_ms", result.DurationMs))
}

// statusFor derives the terminal phase status for a run that was not
// aborted by the skip-on-failure policy.
func statusFor(records []*HookExecution) PhaseStatus {
	if len(records) == 0 {
		return PhaseSkipped
	}
	for _, rec := range records {
		switch rec.Status {
		case StatusFailure, StatusTimeout, StatusSkipped:
			return PhasePartial
		}
	}
	return PhaseSuccess
}

// anyCascadeTrigger reports whether a group produced an outcome the
// skip-on-failure policy cascades on.
func anyCascadeTrigger(records []*HookExecution) bool {
	for _, rec := range records {
		switch rec.Status {
		case StatusFailure, StatusTimeout, StatusSkipped:
			return true
		}
	}
	return false
}

// tail returns at most the last n bytes of s for log context.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
