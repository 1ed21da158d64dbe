package orchestrator

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

const (
	// InstrumentationName is the name used for OTEL instrumentation.
	InstrumentationName = "github.com/fyrsmithlabs/hookd/internal/orchestrator"
)

// Metrics provides OpenTelemetry metrics for hook execution.
//
// Executed counters cover hooks that actually spawned a subprocess;
// cached reuse and gate skips never reach them.
type Metrics struct {
	// Counters
	hookExecutedTotal metric.Int64Counter
	hookFailedTotal   metric.Int64Counter
	hookTimeoutTotal  metric.Int64Counter
	hookSkippedTotal  metric.Int64Counter

	// Gauges (using UpDownCounter for gauge semantics)
	hooksActiveCount metric.Int64UpDownCounter

	// Histograms
	hookDuration  metric.Float64Histogram
	phaseDuration metric.Float64Histogram

	// initialized tracks if metrics were successfully initialized
	initialized bool
}

// NewMetrics creates a new Metrics instance with the provided meter.
// If meter is nil, uses the global meter provider.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(InstrumentationName)
	}

	m := &Metrics{}
	var err error

	// Counters
	m.hookExecutedTotal, err = meter.Int64Counter(
		"hook.executed.total",
		metric.WithDescription("Total number of hook subprocesses executed"),
		metric.WithUnit("{hook}"),
	)
	if err != nil {
		return nil, err
	}

	m.hookFailedTotal, err = meter.Int64Counter(
		"hook.failed.total",
		metric.WithDescription("Total number of hooks that exited nonzero or could not spawn"),
		metric.WithUnit("{hook}"),
	)
	if err != nil {
		return nil, err
	}

	m.hookTimeoutTotal, err = meter.Int64Counter(
		"hook.timeout.total",
		metric.WithDescription("Total number of hooks killed at their deadline"),
		metric.WithUnit("{hook}"),
	)
	if err != nil {
		return nil, err
	}

	m.hookSkippedTotal, err = meter.Int64Counter(
		"hook.skipped.total",
		metric.WithDescription("Total number of hooks skipped by the dependency gate"),
		metric.WithUnit("{hook}"),
	)
	if err != nil {
		return nil, err
	}

	// Gauges
	m.hooksActiveCount, err = meter.Int64UpDownCounter(
		"hooks.active.count",
		metric.WithDescription("Number of hook subprocesses currently running"),
		metric.WithUnit("{hook}"),
	)
	if err != nil {
		return nil, err
	}

	// Histograms
	m.hookDuration, err = meter.Float64Histogram(
		"hook.duration.seconds",
		metric.WithDescription("Duration of individual hook executions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	m.phaseDuration, err = meter.Float64Histogram(
		"phase.duration.seconds",
		metric.WithDescription("Duration of whole phase executions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	m.initialized = true
	return m, nil
}

// HookStarted records a hook subprocess entering execution.
// Note: hook names are intentionally omitted from metrics to prevent
// cardinality explosion. Per-hook correlation is available via trace
// context and structured logs.
func (m *Metrics) HookStarted(ctx context.Context, phase string) {
	if m == nil || !m.initialized {
		return
	}
	m.hooksActiveCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hook.phase", phase),
	))
}

// HookFinished records a completed hook execution from its record.
func (m *Metrics) HookFinished(ctx context.Context, rec *HookExecution) {
	if m == nil || !m.initialized {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("hook.phase", rec.Phase),
		attribute.String("hook.status", string(rec.Status)),
	)
	m.hooksActiveCount.Add(ctx, -1, metric.WithAttributes(
		attribute.String("hook.phase", rec.Phase),
	))
	m.hookExecutedTotal.Add(ctx, 1, attrs)
	m.hookDuration.Record(ctx, float64(rec.DurationMs)/1000, attrs)

	switch rec.Status {
	case StatusFailure:
		m.hookFailedTotal.Add(ctx, 1, attrs)
	case StatusTimeout:
		m.hookTimeoutTotal.Add(ctx, 1, attrs)
	}
}

// HookSkipped records a hook withheld by the dependency gate or missing
// from the manifest.
func (m *Metrics) HookSkipped(ctx context.Context, phase string) {
	if m == nil || !m.initialized {
		return
	}
	m.hookSkippedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("hook.phase", phase),
	))
}

// PhaseCompleted records a finished phase from its result.
func (m *Metrics) PhaseCompleted(ctx context.Context, result *PhaseResult) {
	if m == nil || !m.initialized {
		return
	}
	m.phaseDuration.Record(ctx, float64(result.DurationMs)/1000, metric.WithAttributes(
		attribute.String("hook.phase", result.Phase),
		attribute.String("phase.status", string(result.Status)),
	))
}

// Tracer returns a tracer for the orchestrator package.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartPhaseSpan starts the span covering a whole phase execution.
func StartPhaseSpan(ctx context.Context, phase string) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "orchestrator.execute_phase",
		trace.WithAttributes(attribute.String("hook.phase", phase)))
}

// StartHookSpan starts the span covering a single hook subprocess.
func StartHookSpan(ctx context.Context, hook *manifest.Hook) (context.Context, trace.Span) {
	return Tracer().Start(ctx, "orchestrator.run_hook",
		trace.WithAttributes(
			attribute.String("hook.name", hook.Name),
			attribute.String("hook.phase", hook.Phase),
		))
}

// EndHookSpan stamps the execution outcome onto the hook span before the
// caller ends it.
func EndHookSpan(span trace.Span, rec *HookExecution) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("hook.status", string(rec.Status)),
		attribute.Int("hook.exit_code", rec.ExitCode),
		attribute.Int64("hook.duration_ms", rec.DurationMs),
	)
	switch rec.Status {
	case StatusFailure, StatusTimeout:
		span.SetStatus(codes.Error, string(rec.Status))
	default:
		span.SetStatus(codes.Ok, "")
	}
}
