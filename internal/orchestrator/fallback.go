package orchestrator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

// executeFallback handles phases without a declared flow: every hook
// registered for the phase runs sequentially in dependency order.
func (o *Orchestrator) executeFallback(ctx context.Context, phase string, payload map[string]interface{}, start time.Time) *PhaseResult {
	result := &PhaseResult{Phase: phase}

	hooks := o.manifest.HooksForPhase(phase)
	if len(hooks) == 0 {
		o.log.Info(ctx, "no hooks registered for phase")
		o.finishPhase(ctx, result, nil, PhaseSkipped, start)
		return result
	}

	o.log.Info(ctx, "no flow declared, ordering by dependencies",
		zap.Int("hooks", len(hooks)),
		zap.Bool("skip_on_failure", o.skipOnFailure))

	order, broken := o.topoOrder(ctx, hooks)
	names := make([]string, len(order))
	for i, h := range order {
		names[i] = h.Name
	}

	records, aborted := o.executeSequential(ctx, phase, names, payload, broken)

	status := statusFor(records)
	if aborted || (o.skipOnFailure && anyCascadeTrigger(records)) {
		status = PhaseFailed
	}
	o.finishPhase(ctx, result, records, status, start)
	return result
}

// topoOrder sorts hooks so dependencies precede dependents, via
// depth-first traversal in declared order. Cycles never fail the phase:
// the back edge is logged, excluded from gating, and both hooks stay
// scheduled. Dependencies on hooks outside the phase are left to the
// gate, which checks them against history at execution time.
func (o *Orchestrator) topoOrder(ctx context.Context, hooks []*manifest.Hook) ([]*manifest.Hook, map[edge]struct{}) {
	byName := make(map[string]*manifest.Hook, len(hooks))
	for _, h := range hooks {
		byName[h.Name] = h
	}

	var (
		order    []*manifest.Hook
		visited  = make(map[string]bool, len(hooks))
		visiting = make(map[string]bool)
		broken   = make(map[edge]struct{})
	)

	var visit func(h *manifest.Hook)
	visit = func(h *manifest.Hook) {
		visiting[h.Name] = true
		for _, dep := range h.DependsOn {
			target, ok := byName[dep]
			if !ok {
				continue
			}
			if visiting[dep] {
				o.log.Warn(ctx, "dependency cycle detected, edge ignored",
					zap.String("hook", h.Name),
					zap.String("depends_on", dep))
				broken[edge{from: h.Name, to: dep}] = struct{}{}
				continue
			}
			if !visited[dep] {
				visit(target)
			}
		}
		delete(visiting, h.Name)
		visited[h.Name] = true
		order = append(order, h)
	}

	for _, h := range hooks {
		if !visited[h.Name] {
			visit(h)
		}
	}
	return order, broken
}

// Plan reports the execution groups ExecutePhase would run for phase
// without executing anything. A declared flow yields its two-group
// split; otherwise the registered hooks are returned as one sequential
// group in dependency order. Nil means the phase has no hooks at all.
func (o *Orchestrator) Plan(ctx context.Context, phase string) []ExecutionGroup {
	flow, _ := o.manifest.Flow(phase)
	if groups := BuildGroups(flow); groups != nil {
		return groups
	}

	hooks := o.manifest.HooksForPhase(phase)
	if len(hooks) == 0 {
		return nil
	}
	order, _ := o.topoOrder(ctx, hooks)
	names := make([]string, len(order))
	for i, h := range order {
		names[i] = h.Name
	}
	return []ExecutionGroup{{
		ID:          1,
		Hooks:       names,
		Parallel:    false,
		Description: "dependency order",
	}}
}
