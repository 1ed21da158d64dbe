package orchestrator

import "github.com/fyrsmithlabs/hookd/internal/manifest"

// edge is one dependency arrow: from depends on to.
type edge struct {
	from, to string
}

// Eligible reports whether every declared dependency of hook has a
// success-equivalent record. The current group's partial results are
// consulted first; absent there, the most recent history record decides.
// Cached records count as success. A dependency with no record at all
// means not eligible.
//
// Pure function over the provided state; no side effects.
func Eligible(hook *manifest.Hook, local, history []*HookExecution) bool {
	return eligible(hook, local, history, nil)
}

// eligible additionally exempts dependency edges broken by a detected
// cycle: the fallback scheduler tolerates cycles, and both members of a
// cycle still execute.
func eligible(hook *manifest.Hook, local, history []*HookExecution, broken map[edge]struct{}) bool {
	for _, dep := range hook.DependsOn {
		if broken != nil {
			if _, ok := broken[edge{from: hook.Name, to: dep}]; ok {
				continue
			}
		}
		if rec := latest(local, dep); rec != nil {
			if !rec.Succeeded() {
				return false
			}
			continue
		}
		if rec := latest(history, dep); rec == nil || !rec.Succeeded() {
			return false
		}
	}
	return true
}
