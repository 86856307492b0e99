package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/solpm/internal/compiler"
	"github.com/roach88/solpm/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid" yaml:"valid"`
	Document *DocumentSummary           `json:"document,omitempty" yaml:"document,omitempty"`
	Errors   []compiler.ValidationError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// DocumentSummary describes a valid interface document.
type DocumentSummary struct {
	Name         string `json:"name" yaml:"name"`
	Version      string `json:"version" yaml:"version"`
	Address      string `json:"address" yaml:"address"`
	Network      string `json:"network" yaml:"network"`
	Instructions int    `json:"instructions" yaml:"instructions"`
	Types        int    `json:"types" yaml:"types"`
	Digest       string `json:"digest" yaml:"digest"`
}

// RenderText prints a one-line confirmation.
func (r ValidationResult) RenderText(w io.Writer) {
	d := r.Document
	fmt.Fprintf(w, "%s %s %s is valid (%d instructions, %d types)\n",
		SuccessStyle.Render("✓"), d.Name, d.Version, d.Instructions, d.Types)
	fmt.Fprintln(w, SubtitleStyle.Render("  digest "+d.Digest))
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var network string

	cmd := &cobra.Command{
		Use:   "validate <document.json>",
		Short: "Validate an interface document",
		Long: `Compile and validate one interface document without touching the
manifest. Every problem is reported, not only the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], network, cmd)
		},
	}

	cmd.Flags().StringVar(&network, "network", string(ir.Devnet), "network assumed when the document has none")

	return cmd
}

func runValidate(opts *RootOptions, path, network string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	n, err := ir.ParseNetwork(network)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid --network", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("document not found: %s", path), nil)
		}
		return formatter.Fail(ExitCommandError, ErrCodeGeneric, "read document", err)
	}
	formatter.VerboseLog("Read %d bytes from %s", len(data), path)

	v, err := compiler.Load(data, compiler.CompileOptions{Filename: filepath.Base(path), Network: n})
	if err != nil {
		return outputValidationErrors(formatter, validationErrors(err))
	}

	p := v.Program()
	return formatter.Success(ValidationResult{
		Valid: true,
		Document: &DocumentSummary{
			Name:         p.Identity.Name,
			Version:      p.Identity.Version,
			Address:      p.Identity.Address,
			Network:      string(p.Identity.Network),
			Instructions: len(p.Instructions),
			Types:        len(p.Types),
			Digest:       v.Digest(),
		},
	})
}

// validationErrors flattens a compile or validation failure.
func validationErrors(err error) []compiler.ValidationError {
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	var cerr *compiler.CompileError
	if errors.As(err, &cerr) {
		message := cerr.Message
		if cerr.Line > 0 {
			message = fmt.Sprintf("line %d: %s", cerr.Line, message)
		}
		return []compiler.ValidationError{{Field: cerr.Field, Message: message, Code: compiler.ErrCompile}}
	}
	return []compiler.ValidationError{{Field: "document", Message: err.Error(), Code: compiler.ErrCompile}}
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	failure := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))

	if formatter.Format != "text" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := formatter.Respond(response); err != nil {
			return err
		}
		// Validation failures = exit code 1 (test/validation failure)
		return failure
	}

	// Text format
	fmt.Fprintln(formatter.Writer, ErrorStyle.Render("✗ Validation failed"))
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		fmt.Fprintf(formatter.Writer, "  %s %s: %s\n", err.Code, err.Field, err.Message)
	}

	return failure
}
