package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/solpm/internal/engine"
	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/manifest"
)

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		dev     bool
		network string
		path    string
		codegen bool
	)

	cmd := &cobra.Command{
		Use:   "add <name[@version]>",
		Short: "Add a dependency to the manifest",
		Long: `Fetch a program interface from the registry, validate it, cache it and
record it in the manifest. Without a version the newest published one is
used. A dependency already in the manifest is left alone.`,
		Example: `  solpm add vault
  solpm add vault@0.2.0 --codegen
  solpm add counter --dev --network localnet`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			name, version, _ := strings.Cut(args[0], "@")
			req := engine.AddRequest{Name: name, Version: version, DocumentPath: path}
			if dev {
				req.Group = manifest.Development
			}
			if network != "" {
				n, err := ir.ParseNetwork(network)
				if err != nil {
					return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid --network", err)
				}
				req.Network = n
			}

			p, err := rootOpts.project(cmd, f)
			if err != nil {
				return err
			}
			eng, closeJournal := p.engine(rootOpts)
			defer closeJournal()

			report, err := eng.AddDependency(cmd.Context(), req, engine.Options{GenerateCode: codegen})
			if err != nil {
				return engineError(f, err)
			}
			// A single requested dependency that failed is a failed command.
			return respondReport(f, report, true)
		},
	}

	cmd.Flags().BoolVar(&dev, "dev", false, "add as a development dependency")
	cmd.Flags().StringVar(&network, "network", "", "network (default from config)")
	cmd.Flags().StringVar(&path, "path", "", "cache path of the interface document")
	cmd.Flags().BoolVar(&codegen, "codegen", false, "generate the Go client")

	return cmd
}
