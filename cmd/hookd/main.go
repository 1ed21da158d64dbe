// Package main implements the hookd CLI for running lifecycle hook phases.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
	"github.com/fyrsmithlabs/hookd/internal/orchestrator"
	"github.com/fyrsmithlabs/hookd/internal/report"
)

var (
	// persistent flags shared by every command
	cfgFile      string
	manifestPath string
	debugMode    bool

	// root command flags
	phaseName  string
	inputJSON  string
	exportPath string

	// version information, injected at build time via ldflags
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "hookd",
	Short: "Dependency-aware lifecycle hook runner",
	Long: `hookd runs the hooks registered for one lifecycle phase, honoring the
manifest's declared ordering, parallel groups, and dependency edges.
Each hook receives the input payload as a JSON object on stdin. A hook
that fails, times out, or loses its dependency is recorded and the rest
of the phase continues; nothing a hook does can crash the run itself.

The process exits 0 only when every hook in the phase succeeded. Any
failure, timeout, or dependency skip exits 1, as does a missing or
malformed manifest.

Examples:
  # Run the session_start phase with an empty payload
  hookd --phase session_start

  # Hand every hook a JSON payload on stdin
  hookd --phase before_clear --input '{"trigger":"manual"}'

  # Alternate manifest plus an exported run report
  hookd --phase session_end --manifest ci/hooks.yaml --export-metrics report.json`,
	Version:      version,
	SilenceUsage: true,
	RunE:         runPhase,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "runtime config file (default ~/.config/hookd/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&manifestPath, "manifest", "", "hook manifest path (overrides config, default hooks.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "debug log level with console output")

	rootCmd.Flags().StringVar(&phaseName, "phase", "", "lifecycle phase to execute (required)")
	rootCmd.Flags().StringVar(&inputJSON, "input", "{}", "JSON object handed to every hook on stdin")
	rootCmd.Flags().StringVar(&exportPath, "export-metrics", "", "write a JSON run report to this path")
	_ = rootCmd.MarkFlagRequired("phase")
}

func runPhase(cmd *cobra.Command, args []string) error {
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

	m, err := manifest.Load(app.cfg.Manifest.Path)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	orch, err := app.newOrchestrator(m)
	if err != nil {
		return err
	}

	result := orch.ExecutePhase(ctx, phaseName, payload)

	if exportPath != "" {
		if err := report.ExportFile(exportPath, orch.RunID(), orch.History()); err != nil {
			return fmt.Errorf("exporting run report: %w", err)
		}
	}

	return phaseError(result)
}

// parseInput decodes the --input flag. Anything but a single JSON
// object is a config error and fails the run before any hook spawns.
func parseInput(raw string) (map[string]interface{}, error) {
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("parsing --input: %w", err)
	}
	return payload, nil
}

// phaseError maps a finished phase onto the process exit contract:
// exit 0 only when nothing failed, timed out, or was skipped.
func phaseError(result *orchestrator.PhaseResult) error {
	if result.Clean() {
		return nil
	}
	return fmt.Errorf("phase %s finished %s: %d of %d hooks failed, %d skipped",
		result.Phase, result.Status, result.FailedCount, result.HookCount, result.SkippedCount)
}
