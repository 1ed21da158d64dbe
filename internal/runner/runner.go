package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hookd/internal/logging"
	"github.com/fyrsmithlabs/hookd/internal/manifest"
	"github.com/fyrsmithlabs/hookd/internal/orchestrator"
)

// MaxCaptureBytes bounds how much of each output stream is retained.
// Hooks are diagnostics-on-stderr tools, not data pipelines; anything
// past the cap is counted and dropped.
const MaxCaptureBytes = 1 << 20

// pipeDrainDelay bounds the wait for output pipes after the child exits
// or is killed. A grandchild inheriting stdout must not stall the phase.
const pipeDrainDelay = 250 * time.Millisecond

// Scrubber removes secret material from captured output before it is
// recorded. Implementations must be safe for concurrent use: parallel
// batches scrub from multiple goroutines.
type Scrubber interface {
	Scrub(s string) string
}

// Runner spawns hook subprocesses. It implements orchestrator.HookRunner:
// every outcome, including spawn errors and timeouts, becomes a terminal
// record rather than an error.
type Runner struct {
	log            *logging.Logger
	scrubber       Scrubber
	workDir        string
	defaultTimeout time.Duration
	maxOutput      int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(log *logging.Logger) Option {
	return func(r *Runner) { r.log = log }
}

// WithScrubber scrubs captured stdout and stderr before the record is
// finalized.
func WithScrubber(s Scrubber) Option {
	return func(r *Runner) { r.scrubber = s }
}

// WithWorkDir sets the child's working directory, so relative hook paths
// resolve against the manifest's home rather than the caller's cwd.
func WithWorkDir(dir string) Option {
	return func(r *Runner) { r.workDir = dir }
}

// WithDefaultTimeout overrides the budget applied to hooks that declare
// no timeout of their own. Non-positive values are ignored.
func WithDefaultTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.defaultTimeout = d
		}
	}
}

// WithMaxOutputBytes overrides the per-stream capture cap. Non-positive
// values are ignored.
func WithMaxOutputBytes(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxOutput = n
		}
	}
}

// New creates a Runner.
func New(opts ...Option) *Runner {
	r := &Runner{
		log:       logging.NewNop(),
		maxOutput: MaxCaptureBytes,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one hook to completion. The payload is written to the
// child's stdin as a single JSON object (nil encodes as {}); stdout and
// stderr are captured for diagnostics, never parsed.
func (r *Runner) Run(ctx context.Context, hook *manifest.Hook, payload map[string]interface{}) *orchestrator.HookExecution {
	rec := orchestrator.NewExecution(hook.Name, hook.Phase)
	rec.Status = orchestrator.StatusRunning
	rec.StartedAt = time.Now()

	input := []byte("{}")
	if payload != nil {
		var err error
		input, err = json.Marshal(payload)
		if err != nil {
			rec.Stderr = fmt.Sprintf("encoding payload: %v", err)
			r.finalize(rec, orchestrator.StatusFailure)
			return rec
		}
	}

	timeout := hook.TimeoutDuration()
	if hook.Timeout <= 0 && r.defaultTimeout > 0 {
		timeout = r.defaultTimeout
	}
	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stdout := &cappedBuffer{limit: r.maxOutput}
	stderr := &cappedBuffer{limit: r.maxOutput}

	cmd := exec.CommandContext(cmdCtx, hook.Command())
	cmd.Stdin = bytes.NewReader(input)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Dir = r.workDir
	cmd.WaitDelay = pipeDrainDelay

	r.log.Trace(ctx, "spawning subprocess",
		zap.String("command", hook.Command()),
		zap.Duration("timeout", timeout),
		zap.Int("payload_bytes", len(input)))

	err := cmd.Run()

	rec.Stdout = stdout.String()
	rec.Stderr = stderr.String()
	if stdout.dropped > 0 || stderr.dropped > 0 {
		r.log.Warn(ctx, "hook output truncated",
			zap.String("hook", hook.Name),
			zap.Int64("stdout_dropped_bytes", stdout.dropped),
			zap.Int64("stderr_dropped_bytes", stderr.dropped))
	}

	switch {
	case err == nil, errors.Is(err, exec.ErrWaitDelay):
		// ErrWaitDelay still means the child itself exited 0; only its
		// inherited pipes were force-closed.
		rec.ExitCode = 0
		r.finalize(rec, orchestrator.StatusSuccess)

	case cmdCtx.Err() == context.DeadlineExceeded:
		// Killed at the deadline. The exit code keeps its sentinel: the
		// process never reported one.
		r.finalize(rec, orchestrator.StatusTimeout)

	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			rec.ExitCode = exitErr.ExitCode()
		} else if rec.Stderr == "" {
			// Spawn or communication error: no child output exists, so
			// surface the cause where diagnostics are expected.
			rec.Stderr = err.Error()
		}
		r.finalize(rec, orchestrator.StatusFailure)
	}
	return rec
}

func (r *Runner) finalize(rec *orchestrator.HookExecution, status orchestrator.Status) {
	if r.scrubber != nil {
		rec.Stdout = r.scrubber.Scrub(rec.Stdout)
		rec.Stderr = r.scrubber.Scrub(rec.Stderr)
	}
	rec.Finalize(status)
}

// cappedBuffer keeps the first limit bytes and counts the rest. Write
// never reports an error, so the child is never killed by a full pipe.
type cappedBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped int64
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			p = p[:remaining]
		}
		b.buf.Write(p)
		b.dropped += int64(n - len(p))
	} else {
		b.dropped += int64(n)
	}
	return n, nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
