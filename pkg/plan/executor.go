package plan

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/addonlift/addonlift/pkg/errors"
	"github.com/addonlift/addonlift/pkg/manifest"
	"github.com/addonlift/addonlift/pkg/resolve"
)

// Executor applies a migration plan to the package tree.
type Executor struct {
	logger *log.Logger
	dryRun bool
}

// NewExecutor creates an executor. With dryRun set, Apply only logs
// what it would do.
func NewExecutor(logger *log.Logger, dryRun bool) *Executor {
	return &Executor{logger: logger, dryRun: dryRun}
}

// Apply performs the migration: sources are staged through the run's
// scratch directory, the target layout is committed in place, and the
// original trees are removed only once the commit has fully succeeded.
// The scratch directory itself remains owned by the caller.
func (e *Executor) Apply(ctx context.Context, rc *resolve.Context, p *Plan) error {
	for _, phantom := range p.PhantomDependencies {
		e.logger.Warn("imported but not declared in package.json", "module", phantom)
	}

	if e.dryRun {
		e.logDryRun(rc, p)
		return nil
	}

	stage := filepath.Join(rc.ScratchDir(), "stage")
	if err := os.MkdirAll(stage, 0755); err != nil {
		return errors.Wrap(errors.ErrCodeMigration, err, "creating staging area")
	}

	// Stage every source tree first; the originals stay untouched
	// until the staged copies are fully committed.
	for _, mv := range p.Moves {
		if err := ctx.Err(); err != nil {
			return err
		}
		src := filepath.Join(rc.Directory(), mv.From)
		if _, err := os.Stat(src); os.IsNotExist(err) {
			e.logger.Debug("skipping missing source", "path", mv.From)
			continue
		}
		dst := filepath.Join(stage, mv.To)
		e.logger.Info("staging", "from", mv.From, "to", mv.To)
		if err := copyTree(src, dst); err != nil {
			return errors.Wrap(errors.ErrCodeMigration, err, "staging %s", mv.From)
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	// Commit: move staged trees into place and write the manifests
	// before any original is removed, so a failed commit can never
	// destroy the only copy of a source tree.
	if err := moveStaged(stage, rc.Directory()); err != nil {
		return errors.Wrap(errors.ErrCodeMigration, err, "moving staged trees into place")
	}

	e.logger.Info("writing addon manifest", "path", filepath.Join(p.AddonDir, manifest.Filename))
	if err := writeFile(filepath.Join(p.AddonDir, manifest.Filename), p.AddonManifest); err != nil {
		return errors.Wrap(errors.ErrCodeMigration, err, "writing addon manifest")
	}

	e.logger.Info("writing test app manifest", "path", filepath.Join(p.TestAppDir, manifest.Filename))
	if err := writeFile(filepath.Join(p.TestAppDir, manifest.Filename), p.TestAppManifest); err != nil {
		return errors.Wrap(errors.ErrCodeMigration, err, "writing test app manifest")
	}

	roots := destinationRoots(p)
	for _, mv := range p.Moves {
		// A source that is also a destination root now holds the
		// committed tree; removing it would take that tree with it.
		if roots[mv.From] {
			continue
		}
		src := filepath.Join(rc.Directory(), mv.From)
		if err := os.RemoveAll(src); err != nil {
			return errors.Wrap(errors.ErrCodeMigration, err, "removing %s", mv.From)
		}
	}

	return nil
}

// destinationRoots collects the top-level directories the staged trees
// land in.
func destinationRoots(p *Plan) map[string]bool {
	roots := make(map[string]bool, len(p.Moves))
	for _, mv := range p.Moves {
		seg := mv.To
		if i := strings.IndexByte(seg, filepath.Separator); i >= 0 {
			seg = seg[:i]
		}
		roots[seg] = true
	}
	return roots
}

func (e *Executor) logDryRun(rc *resolve.Context, p *Plan) {
	for _, mv := range p.Moves {
		if _, err := os.Stat(filepath.Join(rc.Directory(), mv.From)); os.IsNotExist(err) {
			continue
		}
		e.logger.Info("would move", "from", mv.From, "to", mv.To)
	}
	e.logger.Info("would write", "path", filepath.Join(p.AddonDir, manifest.Filename))
	e.logger.Info("would write", "path", filepath.Join(p.TestAppDir, manifest.Filename))
	for name, r := range p.NewDependencies {
		e.logger.Info("would add dependency", "package", name, "range", r)
	}
}

// moveStaged moves every top-level entry of stage into dir.
func moveStaged(stage, dir string) error {
	entries, err := os.ReadDir(stage)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		src := filepath.Join(stage, entry.Name())
		dst := filepath.Join(dir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			// Scratch may live on another filesystem.
			if err := copyTree(src, dst); err != nil {
				return err
			}
		}
	}
	return nil
}

// copyTree recursively copies a file or directory.
func copyTree(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return err
	}

	if !info.IsDir() {
		return copyFile(src, dst, info.Mode())
	}

	if err := os.MkdirAll(dst, info.Mode().Perm()); err != nil {
		return err
	}
	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := copyTree(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode.Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
