package resolve

import (
	"context"

	"github.com/addonlift/addonlift/pkg/imports"
	"github.com/addonlift/addonlift/pkg/manifest"
	"github.com/addonlift/addonlift/pkg/pm"
	"github.com/addonlift/addonlift/pkg/scratch"
	"github.com/addonlift/addonlift/pkg/vcs"
)

// ManifestReader loads the package manifest from a directory.
type ManifestReader interface {
	Read(dir string) (*manifest.Manifest, error)
}

// RepoRootFinder locates the nearest enclosing version-control root.
type RepoRootFinder interface {
	Find(ctx context.Context, dir string) (string, error)
}

// PackageManagerDetector determines the owning package manager and the
// directory holding its lockfile.
type PackageManagerDetector interface {
	Detect(dir, repoRoot string, hint pm.Kind) (pm.Kind, string, error)
}

// ImportAnalyzer collects the module names imported by source files.
// It never fails; an empty result is valid.
type ImportAnalyzer interface {
	Analyze(dir string) []string
}

// ScratchProvisioner creates a fresh, uniquely-named working directory.
type ScratchProvisioner interface {
	Provision() (*scratch.Dir, error)
}

// Gatherers bundles the fact suppliers the engine consults. Zero-value
// fields are filled with the production implementations; tests swap in
// fakes per field.
type Gatherers struct {
	Manifest       ManifestReader
	RepoRoot       RepoRootFinder
	PackageManager PackageManagerDetector
	Imports        ImportAnalyzer
	Scratch        ScratchProvisioner
}

func (g Gatherers) withDefaults() Gatherers {
	if g.Manifest == nil {
		g.Manifest = manifestReader{}
	}
	if g.RepoRoot == nil {
		g.RepoRoot = repoRootFinder{}
	}
	if g.PackageManager == nil {
		g.PackageManager = pmDetector{}
	}
	if g.Imports == nil {
		g.Imports = importAnalyzer{}
	}
	if g.Scratch == nil {
		g.Scratch = scratchProvisioner{}
	}
	return g
}

type manifestReader struct{}

func (manifestReader) Read(dir string) (*manifest.Manifest, error) {
	return manifest.Load(dir)
}

type repoRootFinder struct{}

func (repoRootFinder) Find(ctx context.Context, dir string) (string, error) {
	return vcs.RepoRoot(ctx, dir)
}

type pmDetector struct{}

func (pmDetector) Detect(dir, repoRoot string, hint pm.Kind) (pm.Kind, string, error) {
	return pm.Detect(dir, repoRoot, hint)
}

type importAnalyzer struct{}

func (importAnalyzer) Analyze(dir string) []string {
	return imports.Scan(dir)
}

type scratchProvisioner struct{}

func (scratchProvisioner) Provision() (*scratch.Dir, error) {
	return scratch.New("addonlift")
}
