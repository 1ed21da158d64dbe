package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

var watchMinInterval time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run a phase and re-run it on manifest changes",
	Long: `Watch runs the phase once, then re-runs it whenever the manifest file
is written. Re-runs are rate-limited so editors that save in bursts
trigger a single run. The manifest is reloaded before every run, so
edits to hooks, flows, and dependencies take effect immediately.

SIGINT or SIGTERM stops the loop; the exit code reflects the last
completed run.

Examples:
  # Iterate on session_end hooks while editing the manifest
  hookd watch --phase session_end

  # Slow the rerun cadence down to one per 10s
  hookd watch --phase session_end --min-interval 10s`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&phaseName, "phase", "", "lifecycle phase to execute (required)")
	watchCmd.Flags().StringVar(&inputJSON, "input", "{}", "JSON object handed to every hook on stdin")
	watchCmd.Flags().DurationVar(&watchMinInterval, "min-interval", 2*time.Second, "minimum delay between reruns")
	_ = watchCmd.MarkFlagRequired("phase")
}

func runWatch(cmd *cobra.Command, args []string) error {
	payload, err := parseInput(inputJSON)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating manifest watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(app.cfg.Manifest.Path); err != nil {
		return fmt.Errorf("watching manifest %s: %w", app.cfg.Manifest.Path, err)
	}

	limiter := rate.NewLimiter(rate.Every(watchMinInterval), 1)

	runOnce := func() error {
		m, err := manifest.Load(app.cfg.Manifest.Path)
		if err != nil {
			app.log.Error(ctx, "manifest reload failed", zap.Error(err))
			return fmt.Errorf("loading manifest: %w", err)
		}
		orch, err := app.newOrchestrator(m)
		if err != nil {
			app.log.Error(ctx, "run setup failed", zap.Error(err))
			return err
		}
		return phaseError(orch.ExecutePhase(ctx, phaseName, payload))
	}

	app.log.Info(ctx, "watching manifest",
		zap.String("path", app.cfg.Manifest.Path),
		zap.String("phase", phaseName),
		zap.Duration("min_interval", watchMinInterval))

	lastErr := runOnce()
	for {
		select {
		case <-ctx.Done():
			return lastErr

		case event, ok := <-watcher.Events:
			if !ok {
				return lastErr
			}
			if event.Op&fsnotify.Write != fsnotify.Write {
				continue
			}
			if !limiter.Allow() {
				app.log.Debug(ctx, "manifest change within cooldown, rerun suppressed",
					zap.String("path", event.Name))
				continue
			}
			app.log.Info(ctx, "manifest changed, re-running phase",
				zap.String("path", event.Name))
			lastErr = runOnce()

		case err, ok := <-watcher.Errors:
			if !ok {
				return lastErr
			}
			app.log.Warn(ctx, "manifest watcher error", zap.Error(err))
		}
	}
}
