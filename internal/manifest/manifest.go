package manifest

import (
	"fmt"
	"os"
	"sort"
	"time"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// Well-known lifecycle phases emitted by the host application. Phase is
// free-form; manifests may declare phases beyond these.
const (
	// PhaseSessionStart fires when a new session starts
	PhaseSessionStart = "session_start"

	// PhaseSessionEnd fires when a session ends
	PhaseSessionEnd = "session_end"

	// PhaseBeforeClear fires before the conversation is cleared
	PhaseBeforeClear = "before_clear"

	// PhaseAfterClear fires after the conversation is cleared
	PhaseAfterClear = "after_clear"

	// PhaseContextThreshold fires when context usage crosses the
	// configured threshold
	PhaseContextThreshold = "context_threshold"
)

// DefaultTimeout bounds hooks that do not declare their own timeout.
const DefaultTimeout = 3 * time.Second

// maxManifestSize caps manifest file size (1MB, same as config files).
const maxManifestSize = 1024 * 1024

// Hook describes one executable hook. Immutable after load.
type Hook struct {
	// Name uniquely identifies the hook across the manifest.
	Name string `koanf:"name" json:"name"`

	// Phase is the lifecycle phase this hook belongs to.
	Phase string `koanf:"phase" json:"phase"`

	// FilePath and InvocationPath both name the executable; manifests in
	// the wild use either key. InvocationPath wins when both are set.
	FilePath       string `koanf:"filePath" json:"file_path,omitempty"`
	InvocationPath string `koanf:"invocationPath" json:"invocation_path,omitempty"`

	// DependsOn lists hooks that must have succeeded before this one runs.
	DependsOn []string `koanf:"dependsOn" json:"depends_on,omitempty"`

	// Timeout is the maximum execution time in milliseconds.
	// Zero means DefaultTimeout.
	Timeout int `koanf:"timeout" json:"timeout,omitempty"`
}

// Command returns the executable path, preferring InvocationPath.
func (h *Hook) Command() string {
	if h.InvocationPath != "" {
		return h.InvocationPath
	}
	return h.FilePath
}

// TimeoutDuration returns the effective timeout.
func (h *Hook) TimeoutDuration() time.Duration {
	if h.Timeout <= 0 {
		return DefaultTimeout
	}
	return time.Duration(h.Timeout) * time.Millisecond
}

// Flow declares a phase's execution hints: the hook order and the subset
// that may run concurrently.
type Flow struct {
	Order          []string `koanf:"order" json:"order"`
	Parallelizable []string `koanf:"parallelizable" json:"parallelizable,omitempty"`
}

// Manifest is the loaded hook configuration.
type Manifest struct {
	Hooks []Hook          `koanf:"hooks" json:"hooks"`
	Flows map[string]Flow `koanf:"executionFlows" json:"execution_flows,omitempty"`

	byName map[string]*Hook
}

// Load reads, parses, and validates a manifest file.
//
// The file is read once and parsed from memory (no TOCTOU window between
// validation and parse). Any error here is a deployment problem: no phase
// can execute without a manifest, so callers treat it as fatal.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest %s: %w", path, err)
	}

	if len(data) > maxManifestSize {
		return nil, fmt.Errorf("manifest %s exceeds maximum size of %d bytes (%d bytes)", path, maxManifestSize, len(data))
	}

	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(data), kyaml.Parser()); err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	var m Manifest
	if err := k.Unmarshal("", &m); err != nil {
		return nil, fmt.Errorf("decoding manifest %s: %w", path, err)
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	m.buildIndex()
	return &m, nil
}

// New builds a manifest from already-constructed hooks and flows, for
// programmatic use. Applies the same validation as Load.
func New(hooks []Hook, flows map[string]Flow) (*Manifest, error) {
	m := &Manifest{Hooks: hooks, Flows: flows}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	m.buildIndex()
	return m, nil
}

// Validate checks hook definitions eagerly. Unknown hook names inside a
// flow's order are legal here; they surface as per-hook skips at run time.
func (m *Manifest) Validate() error {
	seen := make(map[string]struct{}, len(m.Hooks))
	for i := range m.Hooks {
		h := &m.Hooks[i]
		if h.Name == "" {
			return fmt.Errorf("hooks[%d]: name is required", i)
		}
		if _, dup := seen[h.Name]; dup {
			return fmt.Errorf("hook %q: duplicate name", h.Name)
		}
		seen[h.Name] = struct{}{}

		if h.Phase == "" {
			return fmt.Errorf("hook %q: phase is required", h.Name)
		}
		if h.Command() == "" {
			return fmt.Errorf("hook %q: filePath or invocationPath is required", h.Name)
		}
		if h.Timeout < 0 {
			return fmt.Errorf("hook %q: timeout must be >= 0, got %d", h.Name, h.Timeout)
		}
	}
	return nil
}

func (m *Manifest) buildIndex() {
	m.byName = make(map[string]*Hook, len(m.Hooks))
	for i := range m.Hooks {
		m.byName[m.Hooks[i].Name] = &m.Hooks[i]
	}
}

// Hook looks up a hook definition by name.
func (m *Manifest) Hook(name string) (*Hook, bool) {
	if m.byName != nil {
		h, ok := m.byName[name]
		return h, ok
	}
	// Manifests built as literals (tests) have no index.
	for i := range m.Hooks {
		if m.Hooks[i].Name == name {
			return &m.Hooks[i], true
		}
	}
	return nil, false
}

// Flow returns the declared execution flow for a phase, if any.
func (m *Manifest) Flow(phase string) (Flow, bool) {
	f, ok := m.Flows[phase]
	return f, ok
}

// HooksForPhase returns the hooks carrying the given phase, in declaration
// order. This is the fallback scheduler's input when no flow is declared.
func (m *Manifest) HooksForPhase(phase string) []*Hook {
	var hooks []*Hook
	for i := range m.Hooks {
		if m.Hooks[i].Phase == phase {
			hooks = append(hooks, &m.Hooks[i])
		}
	}
	return hooks
}

// Phases returns every phase named by a hook or a flow, sorted.
func (m *Manifest) Phases() []string {
	set := make(map[string]struct{})
	for i := range m.Hooks {
		set[m.Hooks[i].Phase] = struct{}{}
	}
	for phase := range m.Flows {
		set[phase] = struct{}{}
	}

	phases := make([]string, 0, len(set))
	for phase := range set {
		phases = append(phases, phase)
	}
	sort.Strings(phases)
	return phases
}
