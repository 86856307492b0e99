package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"golang.org/x/mod/semver"

	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/manifest"
)

// DescriptorFile is the project descriptor written by init.
const DescriptorFile = "SolanaPrograms.toml"

// Descriptor is the project descriptor: the program this project builds.
type Descriptor struct {
	Program ProgramInfo `toml:"program" json:"program" yaml:"program"`
}

// ProgramInfo describes the project's own program.
type ProgramInfo struct {
	Name        string `toml:"name" json:"name" yaml:"name"`
	Version     string `toml:"version" json:"version" yaml:"version"`
	ProgramID   string `toml:"program_id,omitempty" json:"program_id,omitempty" yaml:"program_id,omitempty"`
	Network     string `toml:"network" json:"network" yaml:"network"`
	Description string `toml:"description,omitempty" json:"description,omitempty" yaml:"description,omitempty"`
	Repository  string `toml:"repository,omitempty" json:"repository,omitempty" yaml:"repository,omitempty"`
}

// Validate checks the descriptor fields.
func (d Descriptor) Validate() error {
	var errs []error
	p := d.Program
	if p.Name == "" {
		errs = append(errs, errors.New("name: must not be empty"))
	}
	if !semver.IsValid("v" + p.Version) {
		errs = append(errs, fmt.Errorf("version: %q is not a semantic version", p.Version))
	}
	if p.ProgramID != "" {
		if _, err := solana.PublicKeyFromBase58(p.ProgramID); err != nil {
			errs = append(errs, fmt.Errorf("program_id: %w", err))
		}
	}
	if _, err := ir.ParseNetwork(p.Network); err != nil {
		errs = append(errs, fmt.Errorf("network: %w", err))
	}
	return errors.Join(errs...)
}

// InitResult reports the files init wrote.
type InitResult struct {
	Descriptor      string     `json:"descriptor" yaml:"descriptor"`
	Manifest        string     `json:"manifest" yaml:"manifest"`
	ManifestCreated bool       `json:"manifest_created" yaml:"manifest_created"`
	Project         Descriptor `json:"project" yaml:"project"`
}

// RenderText prints the written files.
func (r InitResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s initialized %s %s\n", SuccessStyle.Render("✓"), r.Project.Program.Name, r.Project.Program.Version)
	fmt.Fprintln(w, SubtitleStyle.Render("  wrote "+r.Descriptor))
	if r.ManifestCreated {
		fmt.Fprintln(w, SubtitleStyle.Render("  wrote "+r.Manifest))
	} else {
		fmt.Fprintln(w, SubtitleStyle.Render("  kept existing "+r.Manifest))
	}
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		info  ProgramInfo
		force bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the project descriptor and an empty manifest",
		Long: `Write SolanaPrograms.toml describing this project's program and create an
empty dependency manifest if there is none yet.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			p, err := rootOpts.project(cmd, f)
			if err != nil {
				return err
			}

			d := Descriptor{Program: info}
			if d.Program.Name == "" {
				d.Program.Name = filepath.Base(p.root)
			}
			if d.Program.Network == "" {
				d.Program.Network = string(p.cfg.NetworkTag())
			}
			if err := d.Validate(); err != nil {
				return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid project descriptor", err)
			}
			if n, _ := ir.ParseNetwork(d.Program.Network); n != "" {
				d.Program.Network = string(n)
			}

			descPath := filepath.Join(p.root, DescriptorFile)
			if _, err := os.Stat(descPath); err == nil && !force {
				return f.Fail(ExitCommandError, ErrCodeWriteFailed, DescriptorFile+" already exists (use --force to overwrite)", nil)
			}
			data, err := toml.Marshal(d)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeGeneric, "encode descriptor", err)
			}
			if err := manifest.WriteFileAtomic(descPath, data); err != nil {
				return f.Fail(ExitCommandError, ErrCodeWriteFailed, "write descriptor", err)
			}

			created := false
			if _, err := p.manifests.Load(); errors.Is(err, manifest.ErrNotFound) {
				if err := p.manifests.Save(manifest.New()); err != nil {
					return f.Fail(ExitCommandError, ErrCodeWriteFailed, "write manifest", err)
				}
				created = true
			} else if err != nil {
				p.logger.Warn("existing manifest is unusable", "path", p.manifests.Path(), "error", err)
			}

			return f.Success(InitResult{
				Descriptor:      descPath,
				Manifest:        p.manifests.Path(),
				ManifestCreated: created,
				Project:         d,
			})
		},
	}

	cmd.Flags().StringVar(&info.Name, "name", "", "program name (default is the directory name)")
	cmd.Flags().StringVar(&info.Version, "version", "0.1.0", "program version")
	cmd.Flags().StringVar(&info.ProgramID, "program-id", "", "deployed program address")
	cmd.Flags().StringVar(&info.Network, "network", "", "network (default from config)")
	cmd.Flags().StringVar(&info.Description, "description", "", "short description")
	cmd.Flags().StringVar(&info.Repository, "repository", "", "source repository URL")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing descriptor")

	return cmd
}
