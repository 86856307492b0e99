package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/solpm/internal/engine"
	"github.com/roach88/solpm/internal/manifest"
)

// reportOutput is a reconciliation report as printed by install, add and
// codegen.
type reportOutput engine.ReportView

// RenderText prints one line per dependency and a summary.
func (r reportOutput) RenderText(w io.Writer) {
	fmt.Fprintf(w, "%s %s\n", TitleStyle.Render(r.Operation), SubtitleStyle.Render("run "+r.RunID))
	if len(r.Entries) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("  no dependencies"))
	}
	for _, e := range r.Entries {
		label := e.Name
		if e.Group == manifest.Development.String() {
			label += " (dev)"
		}
		label = nameStyle.Render(label)

		switch e.Status {
		case "installed":
			paths := e.Path
			if e.ClientPath != "" {
				paths += " -> " + e.ClientPath
			}
			fmt.Fprintf(w, "  %s %s %-10s %s\n", SuccessStyle.Render("✓"), label, e.Version, SubtitleStyle.Render(paths))
		case "skipped":
			fmt.Fprintf(w, "  %s %s %s\n", SubtitleStyle.Render("-"), label, SubtitleStyle.Render("skipped: "+e.Reason))
		default:
			fmt.Fprintf(w, "  %s %s %s %s\n", ErrorStyle.Render("✗"), label, ErrorStyle.Render(e.ErrorKind), e.Error)
		}
		for _, warning := range e.Warnings {
			fmt.Fprintf(w, "      %s %s\n", WarningStyle.Render("!"), warning)
		}
	}

	s := r.Summary
	parts := []string{SuccessStyle.Render(fmt.Sprintf("%d installed", s.Installed))}
	if s.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.Skipped))
	}
	if s.Failed > 0 {
		parts = append(parts, ErrorStyle.Render(fmt.Sprintf("%d failed", s.Failed)))
	}
	fmt.Fprintln(w, strings.Join(parts, ", "))
}

// respondReport prints the report. Failed dependencies make the command
// fail only when strict is set.
func respondReport(f *OutputFormatter, r *engine.Report, strict bool) error {
	resp := CLIResponse{Status: "ok", Data: reportOutput(r.View()), RunID: r.RunID}
	_, _, failed := r.Counts()
	if failed == 0 || !strict {
		return f.Respond(resp)
	}

	message := fmt.Sprintf("%d of %d dependencies failed", failed, len(r.Entries))
	resp.Status = "error"
	resp.Error = &CLIError{Code: ErrCodeFailed, Message: message}
	if err := f.Respond(resp); err != nil {
		return err
	}
	return NewExitError(ExitFailure, message)
}

// engineError reports an error that stopped a whole engine operation.
func engineError(f *OutputFormatter, err error) error {
	var merr *manifest.Error
	switch {
	case errors.Is(err, manifest.ErrNotFound):
		return f.Fail(ExitCommandError, ErrCodeManifest, "manifest not found (run solpm init)", err)
	case errors.As(err, &merr):
		return f.Fail(ExitCommandError, ErrCodeManifest, "manifest unusable", err)
	case errors.Is(err, engine.ErrInvalidName), errors.Is(err, engine.ErrUnknownDependency):
		return f.Fail(ExitCommandError, ErrCodeInvalidArg, "invalid argument", err)
	default:
		return f.Fail(ExitCommandError, ErrCodeGeneric, "operation failed", err)
	}
}

// groupSelector resolves the --dev and --all flags.
func groupSelector(dev, all bool) manifest.GroupSelector {
	switch {
	case all:
		return manifest.SelectBoth
	case dev:
		return manifest.SelectDevelopment
	default:
		return manifest.SelectRegular
	}
}
