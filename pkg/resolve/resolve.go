// Package resolve implements the addon metadata resolution engine.
//
// Resolve gathers facts from independent, partially-unreliable sources
// (manifest, git, package-manager state, static import analysis) and
// combines them into one validated, immutable Context describing how
// the migration must proceed. Construction is an ordered,
// short-circuiting pipeline: the first gatherer failure aborts the run
// with a domain-specific, user-actionable error, and no partial Context
// is ever exposed.
package resolve

import (
	"context"
	"os"
	"path/filepath"

	"github.com/addonlift/addonlift/pkg/errors"
	"github.com/addonlift/addonlift/pkg/pm"
)

// Resolve constructs the migration Context.
//
// The pipeline order is fixed: manifest, repository root, package
// manager, imports, scratch directory, assembly, v2 check. Import
// analysis has no ordering dependency and runs concurrently with git
// discovery; the engine waits for every fact before assembling.
//
// A package already in the v2 format aborts with a NOTHING_TO_DO error
// carrying the package name. That is a terminal "no migration needed"
// condition, not a failure; callers distinguish it with
// errors.IsNothingToDo.
func Resolve(ctx context.Context, opts Options, g Gatherers) (*Context, error) {
	g = g.withDefaults()

	if err := opts.Validate(); err != nil {
		return nil, err
	}

	dir := opts.Directory
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "could not determine working directory")
		}
		dir = wd
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "invalid directory %q", opts.Directory)
	}

	m, err := g.Manifest.Read(dir)
	if err != nil {
		return nil, err
	}

	// Import analysis never fails and depends on nothing else; overlap
	// it with git and lockfile discovery.
	importedCh := make(chan []string, 1)
	go func() {
		importedCh <- g.Imports.Analyze(dir)
	}()

	repoRoot, err := g.RepoRoot.Find(ctx, dir)
	if err != nil {
		return nil, err
	}

	hint, err := pm.ParseHint(opts.PackageManager)
	if err != nil {
		return nil, err
	}
	if hint == "" {
		// The manifest's packageManager field is a weaker hint than an
		// explicit flag but still authoritative for the tree.
		if hint, err = pm.ParseHint(m.PackageManager); err != nil {
			return nil, err
		}
	}
	pmKind, pmRoot, err := g.PackageManager.Detect(dir, repoRoot, hint)
	if err != nil {
		return nil, err
	}

	imported := <-importedCh

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scratchDir, err := g.Scratch.Provision()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "could not create scratch directory")
	}

	rc := &Context{
		mani:       m,
		opts:       opts,
		workingDir: dir,
		pmKind:     pmKind,
		pmRoot:     pmRoot,
		repoRoot:   repoRoot,
		scratchDir: scratchDir.Path,
		imported:   imported,
	}

	// A v2 addon needs no migration. The scratch dir was never handed
	// to a caller, so it is cleaned up here.
	if rc.IsV2Addon() {
		_ = scratchDir.Remove()
		return nil, errors.New(errors.ErrCodeNothingToDo, "%s is already a v2 addon", m.Name)
	}

	if err := ctx.Err(); err != nil {
		_ = scratchDir.Remove()
		return nil, err
	}

	return rc, nil
}
