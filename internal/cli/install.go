package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/solpm/internal/engine"
)

// NewInstallCommand creates the install command.
func NewInstallCommand(rootOpts *RootOptions) *cobra.Command {
	var dev, all, codegen, strict bool

	cmd := &cobra.Command{
		Use:   "install",
		Short: "Install every dependency in the manifest",
		Long: `Fetch, validate and cache the interface document of every dependency
pinned in the manifest, optionally generating Go clients.

One failing dependency never stops the others. The command exits 0 even
when some dependencies failed, unless --strict is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			p, err := rootOpts.project(cmd, f)
			if err != nil {
				return err
			}
			eng, closeJournal := p.engine(rootOpts)
			defer closeJournal()

			report, err := eng.Reconcile(cmd.Context(), engine.Options{
				GenerateCode: codegen,
				Group:        groupSelector(dev, all),
			})
			if err != nil {
				return engineError(f, err)
			}
			return respondReport(f, report, strict)
		},
	}

	cmd.Flags().BoolVar(&dev, "dev", false, "install development dependencies only")
	cmd.Flags().BoolVar(&all, "all", false, "install regular and development dependencies")
	cmd.Flags().BoolVar(&codegen, "codegen", false, "generate Go clients")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit 1 when any dependency fails")
	cmd.MarkFlagsMutuallyExclusive("dev", "all")

	return cmd
}
