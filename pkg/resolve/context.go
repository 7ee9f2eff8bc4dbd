package resolve

import (
	"path/filepath"
	"slices"
	"strings"

	"github.com/addonlift/addonlift/pkg/manifest"
	"github.com/addonlift/addonlift/pkg/pm"
)

// Context is the resolved, validated snapshot of a migration run.
// It is constructed exactly once by Resolve, is immutable afterwards,
// and is safe to query from multiple goroutines. All query methods are
// pure functions of the stored facts; none of them touch the disk.
type Context struct {
	mani       *manifest.Manifest
	opts       Options
	workingDir string
	pmKind     pm.Kind
	pmRoot     string
	repoRoot   string
	scratchDir string
	imported   []string
}

// Manifest returns the loaded package manifest. Callers must treat it
// as read-only.
func (c *Context) Manifest() *manifest.Manifest { return c.mani }

// Options returns a copy of the user-supplied overrides.
func (c *Context) Options() Options { return c.opts }

// Directory is the package directory being migrated.
func (c *Context) Directory() string { return c.workingDir }

// PackageManager identifies the detected package manager.
func (c *Context) PackageManager() pm.Kind { return c.pmKind }

// PackageManagerRoot is the directory owning the lockfile.
func (c *Context) PackageManagerRoot() string { return c.pmRoot }

// RepositoryRoot is the git top-level directory.
func (c *Context) RepositoryRoot() string { return c.repoRoot }

// ScratchDir is the staging directory for this run. Its lifecycle is
// owned by whoever constructed the Context.
func (c *Context) ScratchDir() string { return c.scratchDir }

// ImportedDependencies returns the module names statically detected in
// the package's source files.
func (c *Context) ImportedDependencies() []string {
	return slices.Clone(c.imported)
}

// Package-manager identity predicates.

func (c *Context) IsNpm() bool  { return c.pmKind == pm.Npm }
func (c *Context) IsYarn() bool { return c.pmKind == pm.Yarn }
func (c *Context) IsPnpm() bool { return c.pmKind == pm.Pnpm }

// Classification predicates, delegated to the manifest.

func (c *Context) IsTypeScript() bool { return c.mani.UsesTypeScript() }
func (c *Context) IsEmber() bool      { return c.mani.IsEmber() }
func (c *Context) IsAddon() bool      { return c.mani.IsAddon() }
func (c *Context) IsV1Addon() bool    { return c.mani.IsV1Addon() }
func (c *Context) IsV2Addon() bool    { return c.mani.IsV2Addon() }

// HasDependency reports whether name is in the manifest's declared
// "dependencies" map.
func (c *Context) HasDependency(name string) bool { return c.mani.HasDependency(name) }

// HasDevDependency reports whether name is in the manifest's declared
// "devDependencies" map.
func (c *Context) HasDevDependency(name string) bool { return c.mani.HasDevDependency(name) }

// IsBiggerMonorepo reports whether the package-manager workspace root
// is an ancestor of, but not equal to, the repository root. In that
// topology the addon coexists with sibling packages and several path
// defaults change.
func (c *Context) IsBiggerMonorepo() bool {
	return filepath.Clean(c.pmRoot) != filepath.Clean(c.repoRoot)
}

// AddonLocation is where the migrated addon package lands, relative to
// the working directory. Explicit option, else "package" inside a
// bigger monorepo, else the unscoped part of the package name.
func (c *Context) AddonLocation() string {
	if c.opts.AddonLocation != "" {
		return c.opts.AddonLocation
	}
	if c.IsBiggerMonorepo() {
		return "package"
	}
	return unscopedName(c.mani.Name)
}

// TestAppLocation is where the extracted test app lands, relative to
// the working directory.
func (c *Context) TestAppLocation() string {
	if c.opts.TestAppLocation != "" {
		return c.opts.TestAppLocation
	}
	return "test-app"
}

// TestAppName is the package name of the extracted test app. Inside a
// bigger monorepo the name must be unique across siblings, so it is
// derived from the addon name; in a solo repo "test-app" suffices.
func (c *Context) TestAppName() string {
	if c.opts.TestAppName != "" {
		return c.opts.TestAppName
	}
	if c.IsBiggerMonorepo() {
		return "test-app-for-" + sanitizeName(c.mani.Name)
	}
	return "test-app"
}

// PhantomDependencies returns imported module names that are declared
// in neither dependency map.
func (c *Context) PhantomDependencies() []string {
	var phantom []string
	for _, name := range c.imported {
		if !c.mani.HasAnyDependency(name) {
			phantom = append(phantom, name)
		}
	}
	return phantom
}

// unscopedName returns the segment after the scope separator, or the
// full name when unscoped: "@scope/name" becomes "name".
func unscopedName(name string) string {
	if strings.HasPrefix(name, "@") {
		if _, rest, ok := strings.Cut(name, "/"); ok {
			return rest
		}
	}
	return name
}

// sanitizeName flattens a package name into a single path-safe segment:
// the leading scope marker is stripped and the scope separator becomes
// a double underscore, so "@scope/name" becomes "scope__name".
func sanitizeName(name string) string {
	name = strings.TrimPrefix(name, "@")
	return strings.ReplaceAll(name, "/", "__")
}
