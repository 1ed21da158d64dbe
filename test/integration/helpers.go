// Package integration exercises the full stack end to end: manifest
// files on disk, real hook subprocesses, dependency gating across
// phases, and report export. Package-level unit tests cover each piece
// in isolation; these tests cover the seams.
package integration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/hookd/internal/manifest"
	"github.com/fyrsmithlabs/hookd/internal/orchestrator"
	"github.com/fyrsmithlabs/hookd/internal/runner"
)

// writeScript writes an executable shell script into dir and returns
// its name relative to dir, the way manifests reference hooks.
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755),
		"Should write hook script")
	return "./" + name
}

// writeManifest writes manifest YAML into dir and returns its path.
func writeManifest(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "hooks.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644),
		"Should write manifest")
	return path
}

// loadOrchestrator loads the manifest from disk and wires a real
// subprocess runner rooted at the manifest's directory.
func loadOrchestrator(t *testing.T, manifestPath string, opts ...orchestrator.Option) *orchestrator.Orchestrator {
	t.Helper()
	m, err := manifest.Load(manifestPath)
	require.NoError(t, err, "Should load manifest")

	r := runner.New(runner.WithWorkDir(filepath.Dir(manifestPath)))
	return orchestrator.New(m, r, opts...)
}
