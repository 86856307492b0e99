package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/solpm/internal/engine"
)

// Version is reported in the registry user agent. cmd/solpm sets it from
// build flags.
var Version = "dev"

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
	ConfigFile string
	Dir        string // project root, default working directory

	// Fetcher replaces the configured registry. Tests set it.
	Fetcher engine.Fetcher
	// Logger replaces the stderr logger. Tests set it.
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the solpm CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solpm",
		Short: "solpm - Solana program interface manager",
		Long: TitleStyle.Render("solpm") + SubtitleStyle.Render(" - Solana program interface manager") + `

solpm pins the program interfaces (IDLs) a project depends on in a
manifest, caches the interface documents and generates a typed Go
client package for each of them.

` + SubtitleStyle.Render("Examples:") + `
  solpm init --name myapp         Create SolanaPrograms.toml and an empty manifest
  solpm add vault@0.2.0 --codegen Add a dependency and generate its client
  solpm install --all             Reconcile every dependency in the manifest
  solpm codegen vault             Regenerate a client from the cached document`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Validate format flag
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default is ./solpm.{toml,yaml,json})")
	cmd.PersistentFlags().StringVarP(&opts.Dir, "dir", "C", "", "project directory (default is the working directory)")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewAddCommand(opts))
	cmd.AddCommand(NewInstallCommand(opts))
	cmd.AddCommand(NewCodegenCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
