package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

// stubRunner fabricates terminal records without spawning subprocesses.
// Status defaults to success per hook unless overridden.
type stubRunner struct {
	mu       sync.Mutex
	calls    []string
	payloads []map[string]interface{}
	statuses map[string]Status
	delays   map[string]time.Duration
	panics   map[string]bool

	active    int32
	maxActive int32
}

func newStubRunner() *stubRunner {
	return &stubRunner{
		statuses: map[string]Status{},
		delays:   map[string]time.Duration{},
		panics:   map[string]bool{},
	}
}

func (r *stubRunner) Run(_ context.Context, hook *manifest.Hook, payload map[string]interface{}) *HookExecution {
	r.mu.Lock()
	r.calls = append(r.calls, hook.Name)
	r.payloads = append(r.payloads, payload)
	r.mu.Unlock()

	cur := atomic.AddInt32(&r.active, 1)
	for {
		peak := atomic.LoadInt32(&r.maxActive)
		if cur <= peak || atomic.CompareAndSwapInt32(&r.maxActive, peak, cur) {
			break
		}
	}
	defer atomic.AddInt32(&r.active, -1)

	if r.panics[hook.Name] {
		panic("stub runner exploded on " + hook.Name)
	}
	if d := r.delays[hook.Name]; d > 0 {
		time.Sleep(d)
	}

	rec := NewExecution(hook.Name, hook.Phase)
	rec.StartedAt = time.Now()
	status, ok := r.statuses[hook.Name]
	if !ok {
		status = StatusSuccess
	}
	switch status {
	case StatusSuccess:
		rec.ExitCode = 0
	case StatusFailure:
		rec.ExitCode = 1
		rec.Stderr = "stub failure"
	}
	rec.Finalize(status)
	return rec
}

func (r *stubRunner) callNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.calls))
	copy(out, r.calls)
	return out
}

func mustManifest(t *testing.T, hooks []manifest.Hook, flows map[string]manifest.Flow) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New(hooks, flows)
	require.NoError(t, err)
	return m
}

func statusByName(records []*HookExecution) map[string]Status {
	out := make(map[string]Status, len(records))
	for _, rec := range records {
		out[rec.Name] = rec.Status
	}
	return out
}

func TestExecutePhase_TwoGroups(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
			{Name: "checkpoint", Phase: manifest.PhaseSessionEnd, FilePath: "./checkpoint.sh", DependsOn: []string{"flush"}},
			{Name: "notify", Phase: manifest.PhaseSessionEnd, FilePath: "./notify.sh"},
			{Name: "cleanup", Phase: manifest.PhaseSessionEnd, FilePath: "./cleanup.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {
				Order:          []string{"flush", "checkpoint", "notify", "cleanup"},
				Parallelizable: []string{"notify", "cleanup"},
			},
		},
	)
	runner := newStubRunner()
	orch := New(m, runner)

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, map[string]interface{}{"reason": "exit"})

	assert.Equal(t, PhaseSuccess, result.Status)
	assert.True(t, result.Clean())
	assert.Equal(t, 4, result.HookCount)
	assert.Equal(t, 2, result.SequentialCount)
	assert.Equal(t, 2, result.ParallelCount)
	assert.Equal(t, 2, result.GroupCount)
	assert.Zero(t, result.FailedCount)
	assert.Zero(t, result.SkippedCount)

	// Critical path runs first, in declared order.
	calls := runner.callNames()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{"flush", "checkpoint"}, calls[:2])
	assert.ElementsMatch(t, []string{"notify", "cleanup"}, calls[2:])

	history := orch.History()
	require.Len(t, history, 4)
	assert.False(t, history[0].Parallel)
	assert.False(t, history[1].Parallel)
	assert.True(t, history[2].Parallel)
	assert.True(t, history[3].Parallel)
}

func TestExecutePhase_GateSkipsDependentAfterFailure(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
			{Name: "checkpoint", Phase: manifest.PhaseSessionEnd, FilePath: "./checkpoint.sh", DependsOn: []string{"flush"}},
			{Name: "report", Phase: manifest.PhaseSessionEnd, FilePath: "./report.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush", "checkpoint", "report"}},
		},
	)
	runner := newStubRunner()
	runner.statuses["flush"] = StatusFailure
	orch := New(m, runner)

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhasePartial, result.Status)
	assert.Equal(t, 3, result.HookCount)
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.False(t, result.Clean())

	// checkpoint was gated out; report has no dependencies and still ran.
	assert.Equal(t, []string{"flush", "report"}, runner.callNames())
	statuses := statusByName(orch.History())
	assert.Equal(t, StatusFailure, statuses["flush"])
	assert.Equal(t, StatusSkipped, statuses["checkpoint"])
	assert.Equal(t, StatusSuccess, statuses["report"])
}

func TestExecutePhase_SkipOnFailureAbortsAtGate(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
			{Name: "checkpoint", Phase: manifest.PhaseSessionEnd, FilePath: "./checkpoint.sh", DependsOn: []string{"flush"}},
			{Name: "report", Phase: manifest.PhaseSessionEnd, FilePath: "./report.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush", "checkpoint", "report"}},
		},
	)
	runner := newStubRunner()
	runner.statuses["flush"] = StatusFailure
	orch := New(m, runner, WithSkipOnFailure(true))

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhaseFailed, result.Status)
	assert.Equal(t, 2, result.HookCount, "report should never be reached")
	assert.Equal(t, 1, result.FailedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, []string{"flush"}, runner.callNames())
}

func TestExecutePhase_SkipOnFailureStopsLaterGroups(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
			{Name: "notify", Phase: manifest.PhaseSessionEnd, FilePath: "./notify.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {
				Order:          []string{"flush", "notify"},
				Parallelizable: []string{"notify"},
			},
		},
	)
	runner := newStubRunner()
	runner.statuses["flush"] = StatusFailure
	orch := New(m, runner, WithSkipOnFailure(true))

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhaseFailed, result.Status)
	assert.Equal(t, []string{"flush"}, runner.callNames(), "optional group should not launch")
	assert.Equal(t, 1, result.HookCount)
}

func TestExecutePhase_FailureWithoutPolicyContinues(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
			{Name: "notify", Phase: manifest.PhaseSessionEnd, FilePath: "./notify.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {
				Order:          []string{"flush", "notify"},
				Parallelizable: []string{"notify"},
			},
		},
	)
	runner := newStubRunner()
	runner.statuses["flush"] = StatusFailure
	orch := New(m, runner)

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhasePartial, result.Status)
	assert.ElementsMatch(t, []string{"flush", "notify"}, runner.callNames())
}

func TestExecutePhase_ParallelBatchRunsConcurrently(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "notify", Phase: manifest.PhaseSessionEnd, FilePath: "./notify.sh"},
			{Name: "cleanup", Phase: manifest.PhaseSessionEnd, FilePath: "./cleanup.sh"},
			{Name: "archive", Phase: manifest.PhaseSessionEnd, FilePath: "./archive.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {
				Order:          []string{"notify", "cleanup", "archive"},
				Parallelizable: []string{"notify", "cleanup", "archive"},
			},
		},
	)
	runner := newStubRunner()
	runner.delays["notify"] = 50 * time.Millisecond
	runner.delays["cleanup"] = 50 * time.Millisecond
	runner.delays["archive"] = 50 * time.Millisecond
	orch := New(m, runner)

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhaseSuccess, result.Status)
	assert.Equal(t, 3, result.ParallelCount)
	assert.Equal(t, 1, result.GroupCount)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&runner.maxActive), int32(2),
		"batch members should overlap in time")
}

func TestExecutePhase_ParallelPanicIsolated(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "notify", Phase: manifest.PhaseSessionEnd, FilePath: "./notify.sh"},
			{Name: "cleanup", Phase: manifest.PhaseSessionEnd, FilePath: "./cleanup.sh"},
			{Name: "archive", Phase: manifest.PhaseSessionEnd, FilePath: "./archive.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {
				Order:          []string{"notify", "cleanup", "archive"},
				Parallelizable: []string{"notify", "cleanup", "archive"},
			},
		},
	)
	runner := newStubRunner()
	runner.panics["cleanup"] = true
	orch := New(m, runner)

	var result *PhaseResult
	require.NotPanics(t, func() {
		result = orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)
	})

	assert.Equal(t, PhasePartial, result.Status)
	assert.Equal(t, 3, result.HookCount)
	assert.Equal(t, 1, result.FailedCount)

	statuses := statusByName(orch.History())
	assert.Equal(t, StatusSuccess, statuses["notify"])
	assert.Equal(t, StatusFailure, statuses["cleanup"])
	assert.Equal(t, StatusSuccess, statuses["archive"])

	for _, rec := range orch.History() {
		if rec.Name == "cleanup" {
			assert.Contains(t, rec.Stderr, "panic:")
			assert.Equal(t, ExitCodeNone, rec.ExitCode)
			assert.True(t, rec.Parallel)
		}
	}
}

func TestExecutePhase_ParallelGatesAgainstHistoryOnly(t *testing.T) {
	// cleanup depends on notify, and both sit in the same batch. Batch
	// members are gated before launch, so notify's in-flight success
	// cannot satisfy cleanup.
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "notify", Phase: manifest.PhaseSessionEnd, FilePath: "./notify.sh"},
			{Name: "cleanup", Phase: manifest.PhaseSessionEnd, FilePath: "./cleanup.sh", DependsOn: []string{"notify"}},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {
				Order:          []string{"notify", "cleanup"},
				Parallelizable: []string{"notify", "cleanup"},
			},
		},
	)
	runner := newStubRunner()
	orch := New(m, runner)

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhasePartial, result.Status)
	assert.Equal(t, []string{"notify"}, runner.callNames())
	statuses := statusByName(orch.History())
	assert.Equal(t, StatusSkipped, statuses["cleanup"])
}

func TestExecutePhase_ParallelDependencySatisfiedByHistory(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionStart, FilePath: "./flush.sh"},
			{Name: "cleanup", Phase: manifest.PhaseSessionEnd, FilePath: "./cleanup.sh", DependsOn: []string{"flush"}},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionStart: {Order: []string{"flush"}},
			manifest.PhaseSessionEnd: {
				Order:          []string{"cleanup"},
				Parallelizable: []string{"cleanup"},
			},
		},
	)
	runner := newStubRunner()
	orch := New(m, runner)

	first := orch.ExecutePhase(context.Background(), manifest.PhaseSessionStart, nil)
	require.Equal(t, PhaseSuccess, first.Status)

	second := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)
	assert.Equal(t, PhaseSuccess, second.Status)
	assert.Equal(t, []string{"flush", "cleanup"}, runner.callNames())
}

func TestExecutePhase_UnknownHookInOrder(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush", "ghost"}},
		},
	)
	runner := newStubRunner()
	orch := New(m, runner)

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhasePartial, result.Status)
	assert.Equal(t, 2, result.HookCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, []string{"flush"}, runner.callNames())

	statuses := statusByName(orch.History())
	assert.Equal(t, StatusSkipped, statuses["ghost"])
}

func TestExecutePhase_CachedResultReused(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush"}},
		},
	)
	runner := newStubRunner()
	orch := New(m, runner, WithCacheResults(true))

	first := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)
	second := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhaseSuccess, first.Status)
	assert.Equal(t, PhaseSuccess, second.Status)
	assert.Equal(t, []string{"flush"}, runner.callNames(), "second run should reuse the prior success")

	history := orch.History()
	require.Len(t, history, 2)
	cached := history[1]
	assert.Equal(t, StatusCached, cached.Status)
	assert.True(t, cached.Cached)
	assert.Equal(t, 0, cached.ExitCode)
	assert.True(t, cached.Succeeded(), "cached results satisfy dependents")
}

func TestExecutePhase_CacheNotUsedAfterFailure(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush"}},
		},
	)
	runner := newStubRunner()
	runner.statuses["flush"] = StatusFailure
	orch := New(m, runner, WithCacheResults(true))

	orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)
	orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, []string{"flush", "flush"}, runner.callNames(),
		"failures are never cached, the hook runs again")
}

func TestExecutePhase_CachingOffByDefault(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush"}},
		},
	)
	runner := newStubRunner()
	orch := New(m, runner)

	orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)
	orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, []string{"flush", "flush"}, runner.callNames())
}

func TestExecutePhase_TimeoutCountsAsFailed(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush"}},
		},
	)
	runner := newStubRunner()
	runner.statuses["flush"] = StatusTimeout
	orch := New(m, runner)

	result := orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Equal(t, PhasePartial, result.Status)
	assert.Equal(t, 1, result.FailedCount)
	assert.False(t, result.Clean())
}

func TestExecutePhase_PayloadReachesRunner(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush"}},
		},
	)
	runner := newStubRunner()
	orch := New(m, runner)

	payload := map[string]interface{}{"reason": "exit", "files_changed": 3}
	orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, payload)

	require.Len(t, runner.payloads, 1)
	assert.Equal(t, payload, runner.payloads[0])
}

func TestOrchestrator_RunID(t *testing.T) {
	m := mustManifest(t, []manifest.Hook{
		{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
	}, nil)
	orch := New(m, newStubRunner())

	assert.NotEmpty(t, orch.RunID())
	assert.NotEqual(t, orch.RunID(), New(m, newStubRunner()).RunID(),
		"each orchestrator gets its own run ID")
}

func TestOrchestrator_HistorySnapshot(t *testing.T) {
	m := mustManifest(t,
		[]manifest.Hook{
			{Name: "flush", Phase: manifest.PhaseSessionEnd, FilePath: "./flush.sh"},
		},
		map[string]manifest.Flow{
			manifest.PhaseSessionEnd: {Order: []string{"flush"}},
		},
	)
	orch := New(m, newStubRunner())

	before := orch.History()
	assert.Empty(t, before)

	orch.ExecutePhase(context.Background(), manifest.PhaseSessionEnd, nil)

	assert.Empty(t, before, "earlier snapshots must not grow")
	assert.Len(t, orch.History(), 1)
}
