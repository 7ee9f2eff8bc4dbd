// Package vcs discovers the version-control root that owns a package.
// Only git is supported.
package vcs

import (
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/addonlift/addonlift/pkg/errors"
)

// RepoRoot returns the top-level directory of the git repository
// enclosing dir. It fails with a REPO_DISCOVERY error when dir is not
// inside a git work tree (or git itself is unavailable).
func RepoRoot(ctx context.Context, dir string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", "-C", dir, "rev-parse", "--show-toplevel")
	out, err := cmd.Output()
	if err != nil {
		return "", errors.Wrap(errors.ErrCodeRepoDiscovery, err,
			"%s is not inside a git repository: only git is supported", dir)
	}

	root := strings.TrimSpace(string(out))
	if root == "" {
		return "", errors.New(errors.ErrCodeRepoDiscovery,
			"%s is not inside a git repository: only git is supported", dir)
	}

	return filepath.Clean(root), nil
}
