package scrub

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeAllowlist(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	return path
}

func TestLoadAllowlists_BothFiles(t *testing.T) {
	dir := t.TempDir()
	project := writeAllowlist(t, dir, ".gitleaks.toml", `
[allowlist]
paths = ["testdata/.*"]
regexes = ["demo-key-.*"]
`)
	user := writeAllowlist(t, dir, "allowlist.toml", `
[allowlist]
regexes = ["local-token-.*"]
`)

	got, err := LoadAllowlists(project, user)
	if err != nil {
		t.Fatalf("LoadAllowlists() error = %v", err)
	}

	if len(got.Paths) != 1 || got.Paths[0] != "testdata/.*" {
		t.Errorf("Paths = %v, want [testdata/.*]", got.Paths)
	}
	if len(got.Regexes) != 2 {
		t.Errorf("Regexes = %v, want union of both files", got.Regexes)
	}
}

func TestLoadAllowlists_MissingFilesIgnored(t *testing.T) {
	got, err := LoadAllowlists("/nonexistent/.gitleaks.toml", "/nonexistent/allowlist.toml")
	if err != nil {
		t.Fatalf("missing files should not error, got %v", err)
	}
	if len(got.Paths) != 0 || len(got.Regexes) != 0 {
		t.Errorf("expected empty allowlist, got %+v", got)
	}
}

func TestLoadAllowlists_EmptyPathsSkipped(t *testing.T) {
	got, err := LoadAllowlists("", "")
	if err != nil {
		t.Fatalf("LoadAllowlists(\"\", \"\") error = %v", err)
	}
	if len(got.Paths) != 0 || len(got.Regexes) != 0 {
		t.Errorf("expected empty allowlist, got %+v", got)
	}
}

func TestLoadAllowlists_InvalidTOML(t *testing.T) {
	dir := t.TempDir()
	bad := writeAllowlist(t, dir, "allowlist.toml", `[allowlist
paths = ???`)

	_, err := LoadAllowlists("", bad)
	if !errors.Is(err, ErrInvalidTOML) {
		t.Errorf("want ErrInvalidTOML, got %v", err)
	}
}

func TestLoadAllowlists_InvalidRegex(t *testing.T) {
	dir := t.TempDir()
	bad := writeAllowlist(t, dir, "allowlist.toml", `
[allowlist]
regexes = ["[unclosed"]
`)

	_, err := LoadAllowlists("", bad)
	if !errors.Is(err, ErrInvalidRegex) {
		t.Errorf("want ErrInvalidRegex, got %v", err)
	}
}

func TestLoadAllowlists_InvalidPathPattern(t *testing.T) {
	dir := t.TempDir()
	bad := writeAllowlist(t, dir, ".gitleaks.toml", `
[allowlist]
paths = ["(broken"]
`)

	_, err := LoadAllowlists(bad, "")
	if !errors.Is(err, ErrInvalidRegex) {
		t.Errorf("want ErrInvalidRegex, got %v", err)
	}
}
