package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/hookd/internal/config"
	"github.com/fyrsmithlabs/hookd/internal/manifest"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the hook manifest",
	Long: `Validate loads the manifest, checks its structure, and prints what it
registers per phase. The exit code is nonzero when the manifest is
missing or malformed, so it works as a CI gate for hook changes.

Examples:
  # Validate the default manifest
  hookd validate

  # Validate a manifest before merging it
  hookd validate --manifest ci/hooks.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path, err := resolveManifestPath()
	if err != nil {
		return err
	}
	m, err := manifest.Load(path)
	if err != nil {
		return fmt.Errorf("invalid manifest %s: %w", path, err)
	}

	total := 0
	phases := m.Phases()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PHASE\tHOOKS\tORDERING")
	for _, phase := range phases {
		hooks := m.HooksForPhase(phase)
		total += len(hooks)
		ordering := "dependency order"
		if flow, ok := m.Flow(phase); ok && len(flow.Order) > 0 {
			ordering = fmt.Sprintf("declared flow (%d parallelizable)", len(flow.Parallelizable))
		}
		fmt.Fprintf(w, "%s\t%d\t%s\n", phase, len(hooks), ordering)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%s: %d hooks across %d phases\n", path, total, len(phases))
	return nil
}

// resolveManifestPath prefers the --manifest flag so read-only commands
// can run without any config file present.
func resolveManifestPath() (string, error) {
	if manifestPath != "" {
		return manifestPath, nil
	}
	cfg, err := config.LoadWithFile(cfgFile)
	if err != nil {
		return "", err
	}
	return cfg.Manifest.Path, nil
}
