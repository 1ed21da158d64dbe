package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
	"github.com/fyrsmithlabs/hookd/internal/orchestrator"
	"github.com/fyrsmithlabs/hookd/internal/runner"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the execution plan for a phase",
	Long: `Plan prints the groups a phase would execute, in order, without
spawning anything. Phases with a declared flow show the sequential and
parallel split; phases without one show the dependency-derived order.

Examples:
  # What would session_end run?
  hookd plan --phase session_end

  # Inspect a manifest change before committing it
  hookd plan --phase session_start --manifest ci/hooks.yaml`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)
	planCmd.Flags().StringVar(&phaseName, "phase", "", "lifecycle phase to plan (required)")
	_ = planCmd.MarkFlagRequired("phase")
}

func runPlan(cmd *cobra.Command, args []string) error {
	path, err := resolveManifestPath()
	if err != nil {
		return err
	}
	m, err := manifest.Load(path)
	if err != nil {
		return fmt.Errorf("loading manifest: %w", err)
	}

	orch := orchestrator.New(m, runner.New())
	groups := orch.Plan(cmd.Context(), phaseName)
	if groups == nil {
		fmt.Printf("phase %s: no hooks registered\n", phaseName)
		return nil
	}

	total := 0
	for _, g := range groups {
		total += len(g.Hooks)
	}
	fmt.Printf("phase %s: %d hooks in %d groups\n\n", phaseName, total, len(groups))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "GROUP\tMODE\tDESCRIPTION\tHOOKS")
	for _, g := range groups {
		mode := "sequential"
		if g.Parallel {
			mode = "parallel"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", g.ID, mode, g.Description, strings.Join(g.Hooks, ", "))
	}
	return w.Flush()
}
