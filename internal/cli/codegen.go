package cli

import (
	"github.com/spf13/cobra"
)

// NewCodegenCommand creates the codegen command.
func NewCodegenCommand(rootOpts *RootOptions) *cobra.Command {
	var dev, all, strict bool

	cmd := &cobra.Command{
		Use:   "codegen [name...]",
		Short: "Generate Go clients from cached interface documents",
		Long: `Regenerate the Go client of the named dependencies (all of the selected
group when none are named) from their cached interface documents.

Nothing is fetched and the manifest is not modified. Documents are
validated again before generation.`,
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

			report, err := eng.Generate(cmd.Context(), args, groupSelector(dev, all))
			if err != nil {
				return engineError(f, err)
			}
			return respondReport(f, report, strict)
		},
	}

	cmd.Flags().BoolVar(&dev, "dev", false, "select development dependencies")
	cmd.Flags().BoolVar(&all, "all", false, "select regular and development dependencies")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit 1 when any dependency fails")
	cmd.MarkFlagsMutuallyExclusive("dev", "all")

	return cmd
}
