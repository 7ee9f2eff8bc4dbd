package cli

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/addonlift/addonlift/pkg/errors"
	"github.com/addonlift/addonlift/pkg/resolve"
)

// configFilename is the optional per-package configuration file.
// Values in it are defaults; explicit flags always win.
const configFilename = ".addonlift.toml"

// fileConfig mirrors resolve.Options in the configuration file.
type fileConfig struct {
	ReuseExistingVersions *bool  `toml:"reuse-existing-versions"`
	IgnoreNewDependencies *bool  `toml:"ignore-new-dependencies"`
	ReuseExistingConfigs  *bool  `toml:"reuse-existing-configs"`
	AddonLocation         string `toml:"addon-location"`
	TestAppLocation       string `toml:"test-app-location"`
	TestAppName           string `toml:"test-app-name"`
	PackageManager        string `toml:"package-manager"`
}

// loadConfig reads the config file in dir. A missing file yields the
// zero config; a malformed one is an error.
func loadConfig(dir string) (fileConfig, error) {
	var cfg fileConfig
	path := filepath.Join(dir, configFilename)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "could not read %s", path)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrap(errors.ErrCodeInvalidConfig, err, "invalid %s", path)
	}
	return cfg, nil
}

// applyConfig fills opts fields the user left unset from the config
// file. Flag values already present in opts take precedence.
func applyConfig(opts *resolve.Options, cfg fileConfig, flagChanged func(string) bool) {
	if cfg.ReuseExistingVersions != nil && !flagChanged("reuse-existing-versions") {
		opts.ReuseExistingVersions = *cfg.ReuseExistingVersions
	}
	if cfg.IgnoreNewDependencies != nil && !flagChanged("ignore-new-dependencies") {
		opts.IgnoreNewDependencies = *cfg.IgnoreNewDependencies
	}
	if cfg.ReuseExistingConfigs != nil && !flagChanged("reuse-existing-configs") {
		opts.ReuseExistingConfigs = *cfg.ReuseExistingConfigs
	}
	if opts.AddonLocation == "" {
		opts.AddonLocation = cfg.AddonLocation
	}
	if opts.TestAppLocation == "" {
		opts.TestAppLocation = cfg.TestAppLocation
	}
	if opts.TestAppName == "" {
		opts.TestAppName = cfg.TestAppName
	}
	if opts.PackageManager == "" {
		opts.PackageManager = cfg.PackageManager
	}
}
