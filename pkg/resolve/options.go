package resolve

import (
	"github.com/addonlift/addonlift/pkg/errors"
)

// Options are the user-supplied overrides for a migration run.
// Every field is optional; the zero value is a valid configuration.
type Options struct {
	// ReuseExistingVersions keeps the versions already declared in the
	// manifest instead of asking the registry for latest releases.
	ReuseExistingVersions bool

	// IgnoreNewDependencies skips adding dependencies the v2 format
	// would normally introduce.
	IgnoreNewDependencies bool

	// ReuseExistingConfigs keeps babel/rollup configs found in the
	// package instead of generating fresh ones.
	ReuseExistingConfigs bool

	// AnalysisOnly resolves and reports without touching the tree.
	AnalysisOnly bool

	// AddonLocation overrides where the addon package lands,
	// relative to the working directory.
	AddonLocation string

	// TestAppLocation overrides where the extracted test app lands.
	TestAppLocation string

	// TestAppName overrides the extracted test app's package name.
	TestAppName string

	// Directory is the package to migrate; defaults to the process
	// working directory.
	Directory string

	// PackageManager disambiguates detection when several lockfiles
	// could apply ("npm", "yarn", "pnpm", or a packageManager-style
	// "pnpm@8.6.0" spec).
	PackageManager string
}

// Validate rejects override values that could escape the repository.
func (o Options) Validate() error {
	for _, loc := range []string{o.AddonLocation, o.TestAppLocation} {
		if loc == "" {
			continue
		}
		if err := errors.ValidateLocation(loc); err != nil {
			return err
		}
	}
	if o.TestAppName != "" {
		if err := errors.ValidateNpmPackageName(o.TestAppName); err != nil {
			return err
		}
	}
	return nil
}
