package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/addonlift/addonlift/pkg/errors"
	"github.com/addonlift/addonlift/pkg/plan"
	"github.com/addonlift/addonlift/pkg/resolve"
	"github.com/addonlift/addonlift/pkg/scratch"
)

// analyzeCommand creates the analyze command.
func (c *CLI) analyzeCommand() *cobra.Command {
	var opts resolve.Options

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Inspect a package and report what a migration would do",
		Long: `Analyze resolves the package exactly as migrate would, then prints
the resolved facts and planned targets without changing anything.`,
		Example: `  # Analyze the package in the current directory
  addonlift analyze

  # Analyze a package elsewhere
  addonlift analyze --directory ../my-addon`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.AnalysisOnly = true
			return c.runAnalyze(cmd, opts)
		},
	}

	addResolveFlags(cmd, &opts)

	return cmd
}

func (c *CLI) runAnalyze(cmd *cobra.Command, opts resolve.Options) error {
	ctx := withLogger(cmd.Context(), c.Logger)

	cfg, err := loadConfig(configBase(opts.Directory))
	if err != nil {
		return err
	}
	applyConfig(&opts, cfg, cmd.Flags().Changed)

	prog := newProgress(loggerFromContext(ctx))
	rc, err := resolve.Resolve(ctx, opts, resolve.Gatherers{})
	if err != nil {
		if errors.IsNothingToDo(err) {
			printSuccess("%s", errors.UserMessage(err))
			return nil
		}
		return err
	}
	prog.done(fmt.Sprintf("Resolved %s", rc.Manifest().Name))
	// Analysis never applies the plan, so the scratch dir is ours to
	// clean up.
	defer func() { _ = (&scratch.Dir{Path: rc.ScratchDir()}).Remove() }()

	p, err := plan.Build(ctx, rc, nil, loggerFromContext(ctx))
	if err != nil {
		return err
	}

	printNewline()
	printInfo("%s", StyleTitle.Render(rc.Manifest().Name))
	printNewline()

	printKeyValue("Classification", classification(rc))
	printKeyValue("TypeScript", yesNo(rc.IsTypeScript()))
	printKeyValue("Package manager", string(rc.PackageManager()))
	printKeyValue("Repository root", rc.RepositoryRoot())
	printKeyValue("Workspace root", rc.PackageManagerRoot())
	printKeyValue("Monorepo", yesNo(rc.IsBiggerMonorepo()))
	printNewline()

	printKeyValue("Addon location", rc.AddonLocation())
	printKeyValue("Test app", rc.TestAppLocation())
	printKeyValue("Test app name", rc.TestAppName())
	printNewline()

	if len(p.Moves) > 0 {
		printInfo("Planned moves")
		for _, mv := range p.Moves {
			printMove(mv.From, mv.To)
		}
		printNewline()
	}

	if len(p.NewDependencies) > 0 {
		printInfo("New dependencies")
		for name, r := range p.NewDependencies {
			printDetail("%s %s", name, r)
		}
		printNewline()
	}

	if phantom := rc.PhantomDependencies(); len(phantom) > 0 {
		printWarning("Imported but not declared in package.json:")
		for _, name := range phantom {
			printDetail("%s", name)
		}
		printNewline()
	}

	printNextStep("Run the migration", "addonlift migrate")
	return nil
}

// classification renders the package's shape in one line.
func classification(rc *resolve.Context) string {
	switch {
	case rc.IsV1Addon():
		return "v1 addon"
	case rc.IsAddon():
		return "addon"
	case rc.IsEmber():
		return "ember package"
	default:
		return "not an ember package"
	}
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
