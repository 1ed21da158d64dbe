package orchestrator

import "github.com/fyrsmithlabs/hookd/internal/manifest"

// Group descriptions are stable labels consumed by plan output and logs.
const (
	criticalPathDescription = "critical path"
	optionalDescription     = "optional"
)

// BuildGroups partitions a declared flow into at most two ordered groups:
// group 1 "critical path" holds the hooks not marked parallelizable,
// executed sequentially; group 2 "optional" holds the parallelizable
// ones, executed concurrently. Both keep the declared order. An empty
// bucket is omitted; group IDs stay fixed either way.
//
// A nil result (no declared order) tells the executor to fall back to
// topological scheduling.
//
// The two-bucket shape is a documented constraint of the manifest format:
// same-phase dependencies are expected to point at critical-path hooks.
// Do not generalize this into dependency-aware wavefront scheduling.
func BuildGroups(flow manifest.Flow) []ExecutionGroup {
	if len(flow.Order) == 0 {
		return nil
	}

	parallelizable := make(map[string]struct{}, len(flow.Parallelizable))
	for _, name := range flow.Parallelizable {
		parallelizable[name] = struct{}{}
	}

	var sequential, parallel []string
	for _, name := range flow.Order {
		if _, ok := parallelizable[name]; ok {
			parallel = append(parallel, name)
		} else {
			sequential = append(sequential, name)
		}
	}

	var groups []ExecutionGroup
	if len(sequential) > 0 {
		groups = append(groups, ExecutionGroup{
			ID:          1,
			Hooks:       sequential,
			Parallel:    false,
			Description: criticalPathDescription,
		})
	}
	if len(parallel) > 0 {
		groups = append(groups, ExecutionGroup{
			ID:          2,
			Hooks:       parallel,
			Parallel:    true,
			Description: optionalDescription,
		})
	}
	return groups
}
