package vcs

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/addonlift/addonlift/pkg/errors"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
}

func TestRepoRoot(t *testing.T) {
	requireGit(t)

	root := t.TempDir()
	if out, err := exec.Command("git", "-C", root, "init").CombinedOutput(); err != nil {
		t.Fatalf("git init: %v: %s", err, out)
	}

	nested := filepath.Join(root, "packages", "my-addon")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	got, err := RepoRoot(context.Background(), nested)
	if err != nil {
		t.Fatalf("RepoRoot() error = %v", err)
	}

	// Resolve symlinks so macOS /private/var tmp dirs compare equal.
	want, _ := filepath.EvalSymlinks(root)
	gotResolved, _ := filepath.EvalSymlinks(got)
	if gotResolved != want {
		t.Errorf("RepoRoot() = %q, want %q", gotResolved, want)
	}
}

func TestRepoRootOutsideRepo(t *testing.T) {
	requireGit(t)

	_, err := RepoRoot(context.Background(), t.TempDir())
	if !errors.Is(err, errors.ErrCodeRepoDiscovery) {
		t.Errorf("RepoRoot() error = %v, want REPO_DISCOVERY", err)
	}
}
