package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/addonlift/addonlift/pkg/errors"
	"github.com/addonlift/addonlift/pkg/plan"
	"github.com/addonlift/addonlift/pkg/registry"
	"github.com/addonlift/addonlift/pkg/resolve"
	"github.com/addonlift/addonlift/pkg/scratch"
)

// migrateFlags holds the flag values for the migrate command.
type migrateFlags struct {
	opts    resolve.Options
	dryRun  bool
	noCache bool
}

// migrateCommand creates the migrate command.
func (c *CLI) migrateCommand() *cobra.Command {
	var flags migrateFlags

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate a v1 addon package to the v2 format",
		Long: `Migrate resolves the package in the current (or given) directory,
plans the rewrite to the v2 addon format, and applies it: the addon
sources move under a dedicated addon package and the test suite is
extracted into its own test app.

Run with --dry-run to see the plan without touching the tree.`,
		Example: `  # Migrate the package in the current directory
  addonlift migrate

  # Preview without changing anything
  addonlift migrate --dry-run

  # Migrate a package elsewhere, forcing pnpm
  addonlift migrate --directory ../my-addon --package-manager pnpm`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runMigrate(cmd, flags)
		},
	}

	addResolveFlags(cmd, &flags.opts)
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "show what would be done without doing it")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "bypass the registry response cache")

	return cmd
}

// addResolveFlags registers the flags shared by migrate and analyze.
func addResolveFlags(cmd *cobra.Command, opts *resolve.Options) {
	cmd.Flags().StringVarP(&opts.Directory, "directory", "d", "", "package directory (default: current directory)")
	cmd.Flags().StringVar(&opts.PackageManager, "package-manager", "", "force the package manager (npm, yarn, pnpm)")
	cmd.Flags().StringVar(&opts.AddonLocation, "addon-location", "", "where the addon package lands")
	cmd.Flags().StringVar(&opts.TestAppLocation, "test-app-location", "", "where the test app lands")
	cmd.Flags().StringVar(&opts.TestAppName, "test-app-name", "", "package name for the test app")
	cmd.Flags().BoolVar(&opts.ReuseExistingVersions, "reuse-existing-versions", false, "keep declared dependency versions instead of asking the registry")
	cmd.Flags().BoolVar(&opts.IgnoreNewDependencies, "ignore-new-dependencies", false, "do not add the dependencies the v2 format introduces")
	cmd.Flags().BoolVar(&opts.ReuseExistingConfigs, "reuse-existing-configs", false, "keep existing babel/rollup configs")
}

func (c *CLI) runMigrate(cmd *cobra.Command, flags migrateFlags) error {
	ctx := withLogger(cmd.Context(), c.Logger)
	logger := c.Logger

	cfg, err := loadConfig(configBase(flags.opts.Directory))
	if err != nil {
		return err
	}
	applyConfig(&flags.opts, cfg, cmd.Flags().Changed)

	spinner := newSpinnerWithContext(ctx, "Resolving package...")
	spinner.Start()

	rc, err := resolve.Resolve(ctx, flags.opts, resolve.Gatherers{})
	if err != nil {
		if errors.IsNothingToDo(err) {
			spinner.Stop()
			printSuccess("%s", errors.UserMessage(err))
			return nil
		}
		spinner.StopWithError("Could not resolve package")
		return err
	}
	spinner.StopWithSuccess(fmt.Sprintf("Resolved %s", rc.Manifest().Name))

	scratchDir := &scratch.Dir{Path: rc.ScratchDir()}

	store := newCache(flags.noCache)
	defer store.Close()
	client := registry.NewClient(store)

	p, err := plan.Build(ctx, rc, client, logger)
	if err != nil {
		_ = scratchDir.Remove()
		return err
	}

	exec := plan.NewExecutor(logger, flags.dryRun)
	if err := exec.Apply(ctx, rc, p); err != nil {
		// A failed apply leaves the originals in place; keep the
		// staged copies around for manual recovery.
		printWarning("Keeping staged files at %s", rc.ScratchDir())
		return err
	}
	_ = scratchDir.Remove()

	if flags.dryRun {
		printInfo("Dry run complete, nothing was changed")
		return nil
	}

	printSuccess("Migrated %s to the v2 addon format", rc.Manifest().Name)
	printDetail("addon:    %s", rc.AddonLocation())
	printDetail("test app: %s (%s)", rc.TestAppLocation(), rc.TestAppName())
	printNewline()
	printNextStep("Install the new dependencies", installCommand(rc))
	return nil
}

// configBase is the directory the config file is looked up in.
func configBase(dir string) string {
	if dir == "" {
		return "."
	}
	return dir
}

// installCommand suggests the install invocation for the detected
// package manager.
func installCommand(rc *resolve.Context) string {
	switch {
	case rc.IsPnpm():
		return "pnpm install"
	case rc.IsYarn():
		return "yarn install"
	default:
		return "npm install"
	}
}
