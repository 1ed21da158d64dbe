package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

func record(name string, status Status) *HookExecution {
	rec := NewExecution(name, manifest.PhaseSessionStart)
	rec.Finalize(status)
	return rec
}

func TestEligible(t *testing.T) {
	hook := &manifest.Hook{
		Name:      "checkpoint",
		Phase:     manifest.PhaseSessionStart,
		FilePath:  "./checkpoint.sh",
		DependsOn: []string{"flush"},
	}

	tests := []struct {
		name    string
		local   []*HookExecution
		history []*HookExecution
		want    bool
	}{
		{
			name:  "local success satisfies",
			local: []*HookExecution{record("flush", StatusSuccess)},
			want:  true,
		},
		{
			name:  "local cached satisfies",
			local: []*HookExecution{record("flush", StatusCached)},
			want:  true,
		},
		{
			name:  "local failure blocks",
			local: []*HookExecution{record("flush", StatusFailure)},
			want:  false,
		},
		{
			name:  "local timeout blocks",
			local: []*HookExecution{record("flush", StatusTimeout)},
			want:  false,
		},
		{
			name:  "local skip blocks",
			local: []*HookExecution{record("flush", StatusSkipped)},
			want:  false,
		},
		{
			name:    "history success satisfies when local is silent",
			history: []*HookExecution{record("flush", StatusSuccess)},
			want:    true,
		},
		{
			name:    "history cached satisfies when local is silent",
			history: []*HookExecution{record("flush", StatusCached)},
			want:    true,
		},
		{
			name:    "history failure blocks",
			history: []*HookExecution{record("flush", StatusFailure)},
			want:    false,
		},
		{
			name: "no record anywhere blocks",
			want: false,
		},
		{
			name:    "local failure wins over older history success",
			local:   []*HookExecution{record("flush", StatusFailure)},
			history: []*HookExecution{record("flush", StatusSuccess)},
			want:    false,
		},
		{
			name: "most recent local record decides",
			local: []*HookExecution{
				record("flush", StatusFailure),
				record("flush", StatusSuccess),
			},
			want: true,
		},
		{
			name: "most recent history record decides",
			history: []*HookExecution{
				record("flush", StatusSuccess),
				record("flush", StatusFailure),
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(hook, tt.local, tt.history))
		})
	}
}

func TestEligible_NoDependencies(t *testing.T) {
	hook := &manifest.Hook{Name: "flush", Phase: manifest.PhaseSessionStart, FilePath: "./flush.sh"}
	assert.True(t, Eligible(hook, nil, nil), "hooks without dependencies are always eligible")
}

func TestEligible_MultipleDependencies(t *testing.T) {
	hook := &manifest.Hook{
		Name:      "report",
		Phase:     manifest.PhaseSessionEnd,
		FilePath:  "./report.sh",
		DependsOn: []string{"flush", "checkpoint"},
	}

	history := []*HookExecution{
		record("flush", StatusSuccess),
		record("checkpoint", StatusSuccess),
	}
	assert.True(t, Eligible(hook, nil, history))

	// One unmet dependency is enough to block.
	history = []*HookExecution{
		record("flush", StatusSuccess),
		record("checkpoint", StatusFailure),
	}
	assert.False(t, Eligible(hook, nil, history))
}

func TestEligible_BrokenEdgeExempted(t *testing.T) {
	// Cycle members keep executing: the broken edge is not gated, the
	// remaining edges still are.
	hook := &manifest.Hook{
		Name:      "p",
		Phase:     manifest.PhaseSessionStart,
		FilePath:  "./p.sh",
		DependsOn: []string{"q", "flush"},
	}
	broken := map[edge]struct{}{{from: "p", to: "q"}: {}}

	history := []*HookExecution{record("flush", StatusSuccess)}
	assert.True(t, eligible(hook, nil, history, broken),
		"broken edge should not require a record for q")

	assert.False(t, eligible(hook, nil, nil, broken),
		"unbroken edges are still enforced")
}
