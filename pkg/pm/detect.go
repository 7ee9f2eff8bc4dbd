// Package pm detects which package manager owns a package tree.
//
// Detection walks from the package directory up to the repository root
// looking for lockfiles. The nearest directory containing exactly one
// known lockfile wins; two lockfiles side by side is ambiguity and is
// surfaced as an error rather than guessed, unless a hint resolves it.
package pm

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/addonlift/addonlift/pkg/errors"
)

// Kind identifies a supported package manager.
type Kind string

const (
	Npm  Kind = "npm"
	Yarn Kind = "yarn"
	Pnpm Kind = "pnpm"
)

// lockfiles maps each supported manager to its lockfile name.
var lockfiles = map[Kind]string{
	Npm:  "package-lock.json",
	Yarn: "yarn.lock",
	Pnpm: "pnpm-lock.yaml",
}

// kinds in deterministic order for stable error messages.
var kinds = []Kind{Npm, Yarn, Pnpm}

// ParseHint normalizes a package-manager hint. Accepts a bare name
// ("pnpm") or the package.json packageManager form ("pnpm@8.6.0").
// Returns empty Kind for an empty hint.
func ParseHint(hint string) (Kind, error) {
	if hint == "" {
		return "", nil
	}
	name, _, _ := strings.Cut(hint, "@")
	switch Kind(name) {
	case Npm, Yarn, Pnpm:
		return Kind(name), nil
	}
	return "", errors.New(errors.ErrCodePackageManager,
		"unsupported package manager %q: only npm, yarn, pnpm are supported", name)
}

// Detect determines the package manager owning dir and the directory
// holding its lockfile. The search ascends from dir to repoRoot
// inclusive. hint, when non-empty, restricts the search to that
// manager's lockfile and resolves ambiguity.
func Detect(dir, repoRoot string, hint Kind) (Kind, string, error) {
	dir = filepath.Clean(dir)
	repoRoot = filepath.Clean(repoRoot)

	for d := dir; ; d = filepath.Dir(d) {
		found := lockfilesIn(d, hint)

		switch len(found) {
		case 0:
			// keep ascending
		case 1:
			return found[0], d, nil
		default:
			return "", "", errors.New(errors.ErrCodePackageManager,
				"multiple lockfiles in %s (%s): remove all but one or pass --package-manager", d, joinLocks(found))
		}

		if d == repoRoot || d == filepath.Dir(d) {
			break
		}
	}

	return "", "", errors.New(errors.ErrCodePackageManager,
		"no lockfile found between %s and %s: only npm, yarn, pnpm are supported", dir, repoRoot)
}

// lockfilesIn returns the managers whose lockfiles exist in d.
// A non-empty hint restricts the check to that manager.
func lockfilesIn(d string, hint Kind) []Kind {
	var found []Kind
	for _, k := range kinds {
		if hint != "" && k != hint {
			continue
		}
		if _, err := os.Stat(filepath.Join(d, lockfiles[k])); err == nil {
			found = append(found, k)
		}
	}
	return found
}

func joinLocks(ks []Kind) string {
	names := make([]string, len(ks))
	for i, k := range ks {
		names[i] = lockfiles[k]
	}
	return strings.Join(names, ", ")
}
