package orchestrator

import (
	"sync"

	"github.com/google/uuid"

	"github.com/fyrsmithlabs/hookd/internal/logging"
	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

// Orchestrator drives hook execution for one run. Each instance owns its
// execution history, so independent runs (and tests) never interfere.
type Orchestrator struct {
	manifest *manifest.Manifest
	runner   HookRunner
	log      *logging.Logger
	metrics  *Metrics
	runID    string

	skipOnFailure bool
	cacheResults  bool

	// history is append-only and insertion-ordered. Only the driving
	// goroutine appends; the mutex covers History() readers on other
	// goroutines (watch mode, tests).
	mu      sync.Mutex
	history []*HookExecution
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(log *logging.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// WithMetrics attaches OTEL instruments. Without them the run is silent.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithSkipOnFailure aborts the rest of a phase as soon as a hook fails,
// times out, or is skipped for an unmet dependency.
func WithSkipOnFailure(enabled bool) Option {
	return func(o *Orchestrator) { o.skipOnFailure = enabled }
}

// WithCacheResults reuses a hook's most recent success instead of
// re-spawning it. Meaningful for programmatic callers that run several
// phases through one orchestrator instance.
func WithCacheResults(enabled bool) Option {
	return func(o *Orchestrator) { o.cacheResults = enabled }
}

// New creates an orchestrator for the given manifest and runner.
func New(m *manifest.Manifest, runner HookRunner, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		manifest: m,
		runner:   runner,
		log:      logging.NewNop(),
		runID:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunID identifies this orchestrator instance in logs and reports.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// History returns a snapshot of the execution history in append order.
func (o *Orchestrator) History() []*HookExecution {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]*HookExecution, len(o.history))
	copy(out, o.history)
	return out
}

// appendHistory records one finished execution.
func (o *Orchestrator) appendHistory(exec *HookExecution) {
	o.mu.Lock()
	o.history = append(o.history, exec)
	o.mu.Unlock()
}

// historyView returns the live history slice for gate lookups. Safe on
// the driving goroutine: appends happen there only.
func (o *Orchestrator) historyView() []*HookExecution {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history
}

// latest returns the most recent record for name, or nil.
func latest(records []*HookExecution, name string) *HookExecution {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].Name == name {
			return records[i]
		}
	}
	return nil
}
