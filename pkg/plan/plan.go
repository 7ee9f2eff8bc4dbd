// Package plan turns a resolved migration context into an executable
// migration plan and applies it.
//
// The planner is a pure consumer of resolve.Context: it reads the
// query surface, decides target paths and manifest rewrites, and
// records them as ordered steps. The executor applies the steps,
// staging through the run's scratch directory.
package plan

import (
	"context"
	"path/filepath"

	"github.com/charmbracelet/log"

	"github.com/addonlift/addonlift/pkg/pm"
	"github.com/addonlift/addonlift/pkg/registry"
	"github.com/addonlift/addonlift/pkg/resolve"
)

// VersionLookup supplies the latest published version of a package.
// *registry.Client satisfies it.
type VersionLookup interface {
	LatestVersion(ctx context.Context, name string) (string, error)
}

// Move relocates one tree within the package.
type Move struct {
	From string // relative to the package directory
	To   string
}

// Plan is the full set of decisions for one migration run.
type Plan struct {
	AddonDir   string // absolute target for the addon package
	TestAppDir string // absolute target for the extracted test app

	Moves           []Move
	AddonManifest   []byte
	TestAppManifest []byte

	// NewDependencies are packages the v2 format introduces, with the
	// version ranges chosen for them.
	NewDependencies map[string]string

	// PhantomDependencies are modules imported by source code but not
	// declared in the manifest; reported as warnings.
	PhantomDependencies []string
}

// v2Dependencies are the packages the v2 addon format builds on.
// Runtime deps land in "dependencies", the rest in "devDependencies".
var v2Dependencies = map[string]bool{
	"@embroider/addon-shim": true, // runtime
	"@embroider/addon-dev":  false,
	"rollup":                false,
	"@babel/core":           false,
	"@rollup/plugin-babel":  false,
}

// fallbackVersions are used when the registry is unreachable and the
// manifest declares nothing to reuse.
var fallbackVersions = map[string]string{
	"@embroider/addon-shim": "^1.9.0",
	"@embroider/addon-dev":  "^5.0.0",
	"rollup":                "^4.0.0",
	"@babel/core":           "^7.24.0",
	"@rollup/plugin-babel":  "^6.0.0",
}

// Build constructs the migration plan for rc. versions may be nil when
// registry lookups are disabled; the planner then reuses declared
// ranges or falls back to known-good defaults.
func Build(ctx context.Context, rc *resolve.Context, versions VersionLookup, logger *log.Logger) (*Plan, error) {
	opts := rc.Options()

	p := &Plan{
		AddonDir:            filepath.Join(rc.Directory(), rc.AddonLocation()),
		TestAppDir:          filepath.Join(rc.Directory(), rc.TestAppLocation()),
		PhantomDependencies: rc.PhantomDependencies(),
	}

	if !opts.IgnoreNewDependencies {
		p.NewDependencies = chooseVersions(ctx, rc, versions, logger)
	}

	p.Moves = []Move{
		{From: "addon", To: filepath.Join(rc.AddonLocation(), "src")},
		{From: "app", To: filepath.Join(rc.AddonLocation(), "app")},
		{From: "tests", To: filepath.Join(rc.TestAppLocation(), "tests")},
	}
	if opts.ReuseExistingConfigs {
		for _, cfg := range []string{".babelrc", "babel.config.js", "babel.config.json", "rollup.config.mjs"} {
			p.Moves = append(p.Moves, Move{From: cfg, To: filepath.Join(rc.AddonLocation(), cfg)})
		}
	}

	addonManifest, err := renderAddonManifest(rc, p.NewDependencies)
	if err != nil {
		return nil, err
	}
	p.AddonManifest = addonManifest

	testAppManifest, err := renderTestAppManifest(rc)
	if err != nil {
		return nil, err
	}
	p.TestAppManifest = testAppManifest

	return p, nil
}

// chooseVersions picks a range for each dependency the v2 format
// introduces: the declared range when reusing, the registry's latest
// otherwise, and a pinned fallback when the registry cannot answer.
func chooseVersions(ctx context.Context, rc *resolve.Context, versions VersionLookup, logger *log.Logger) map[string]string {
	opts := rc.Options()
	chosen := make(map[string]string, len(v2Dependencies))

	for name := range v2Dependencies {
		if opts.ReuseExistingVersions {
			if r, ok := declaredRange(rc, name); ok {
				chosen[name] = r
				continue
			}
		}

		if versions != nil && !opts.ReuseExistingVersions {
			if latest, err := versions.LatestVersion(ctx, name); err == nil {
				chosen[name] = registry.RangeFor(latest)
				continue
			} else if logger != nil {
				logger.Warn("registry lookup failed, using fallback version", "package", name, "err", err)
			}
		}

		if r, ok := declaredRange(rc, name); ok {
			chosen[name] = r
		} else {
			chosen[name] = fallbackVersions[name]
		}
	}

	return chosen
}

func declaredRange(rc *resolve.Context, name string) (string, bool) {
	m := rc.Manifest()
	if r, ok := m.Dependencies[name]; ok {
		return r, true
	}
	if r, ok := m.DevDependencies[name]; ok {
		return r, true
	}
	return "", false
}

// workspaceRange is how the test app references the addon under the
// detected package manager.
func workspaceRange(kind pm.Kind) string {
	switch kind {
	case pm.Pnpm, pm.Yarn:
		return "workspace:*"
	default:
		return "*"
	}
}
