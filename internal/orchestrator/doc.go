// Package orchestrator executes manifest-declared hooks for a lifecycle
// phase, honoring dependencies between them.
//
// # Overview
//
// A phase maps to an execution flow in the manifest. Flows split into two
// groups: a critical path that runs sequentially in declared order, and an
// optional group whose members run concurrently as one batch. Phases
// without a flow fall back to dependency-ordered sequential execution over
// every hook registered for the phase.
//
// # Dependency Gating
//
// Before a hook runs, each name in its dependsOn list must have a
// success-equivalent record, either earlier in the current group or
// anywhere in the run's history. Cached results count as success. Hooks
// with unmet dependencies are recorded as skipped, and under the
// skip-on-failure policy a skip aborts the rest of the phase.
//
// # Failure Containment
//
// Hook subprocesses can fail, time out, or panic the goroutine driving
// them; none of these surface as errors from ExecutePhase. Every outcome
// becomes a HookExecution record, and the PhaseResult aggregates them.
//
// # Usage Example
//
//	m, err := manifest.Load("hooks.yaml")
//	if err != nil {
//	    return err
//	}
//	orch := orchestrator.New(m, runner,
//	    orchestrator.WithLogger(log),
//	    orchestrator.WithSkipOnFailure(true),
//	)
//	result := orch.ExecutePhase(ctx, manifest.PhaseSessionStart, payload)
//	if !result.Clean() {
//	    os.Exit(1)
//	}
package orchestrator
