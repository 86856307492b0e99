package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/solpm/internal/store"
)

// RunView is one journal run as printed by history.
type RunView struct {
	ID           string        `json:"id" yaml:"id"`
	Operation    string        `json:"operation" yaml:"operation"`
	Group        string        `json:"group" yaml:"group"`
	GenerateCode bool          `json:"generate_code" yaml:"generate_code"`
	StartedAt    time.Time     `json:"started_at" yaml:"started_at"`
	Installed    int           `json:"installed" yaml:"installed"`
	Skipped      int           `json:"skipped" yaml:"skipped"`
	Failed       int           `json:"failed" yaml:"failed"`
	Outcomes     []OutcomeView `json:"outcomes,omitempty" yaml:"outcomes,omitempty"`
}

// OutcomeView is one recorded dependency outcome.
type OutcomeView struct {
	Group      string `json:"group" yaml:"group"`
	Dependency string `json:"dependency" yaml:"dependency"`
	Status     string `json:"status" yaml:"status"`
	Version    string `json:"version,omitempty" yaml:"version,omitempty"`
	Path       string `json:"path,omitempty" yaml:"path,omitempty"`
	Detail     string `json:"detail,omitempty" yaml:"detail,omitempty"`
}

// HistoryResult lists journal runs, newest first.
type HistoryResult struct {
	Runs []RunView `json:"runs" yaml:"runs"`
}

// RenderText prints one line per run, followed by its outcomes when they
// were requested.
func (h HistoryResult) RenderText(w io.Writer) {
	if len(h.Runs) == 0 {
		fmt.Fprintln(w, SubtitleStyle.Render("no runs recorded"))
		return
	}
	for _, r := range h.Runs {
		counts := fmt.Sprintf("%d installed, %d skipped, %d failed", r.Installed, r.Skipped, r.Failed)
		if r.Failed > 0 {
			counts = ErrorStyle.Render(counts)
		}
		fmt.Fprintf(w, "%s %s %-8s %-12s %s\n",
			SubtitleStyle.Render(r.StartedAt.Local().Format(time.DateTime)),
			r.ID,
			r.Operation,
			r.Group,
			counts,
		)
		for _, o := range r.Outcomes {
			line := fmt.Sprintf("    %-9s %s/%s %s", o.Status, o.Group, o.Dependency, o.Version)
			if o.Detail != "" {
				line += " " + SubtitleStyle.Render(o.Detail)
			}
			fmt.Fprintln(w, line)
		}
	}
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded reconciliation runs",
		Long: `List the runs recorded in the reconciliation journal, newest first.
With --run, show the per-dependency outcomes of one run.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			p, err := rootOpts.project(cmd, f)
			if err != nil {
				return err
			}
			path := p.cfg.JournalFile(p.root)
			if path == "" {
				return f.Fail(ExitCommandError, ErrCodeJournal, "journal disabled (journal_path is empty)", nil)
			}
			j, err := store.Open(path)
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeJournal, "open journal", err)
			}
			defer j.Close()

			result, err := loadHistory(cmd, j, limit, runID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return f.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("run %s not found", runID), nil)
				}
				return f.Fail(ExitCommandError, ErrCodeJournal, "read journal", err)
			}
			return f.Success(result)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to list (0 for all)")
	cmd.Flags().StringVar(&runID, "run", "", "show the outcomes of one run")

	return cmd
}

func loadHistory(cmd *cobra.Command, j *store.Store, limit int, runID string) (HistoryResult, error) {
	ctx := cmd.Context()
	summaries, err := j.ListRuns(ctx, 0)
	if err != nil {
		return HistoryResult{}, err
	}

	result := HistoryResult{Runs: []RunView{}}
	for _, s := range summaries {
		if runID != "" && s.ID != runID {
			continue
		}
		result.Runs = append(result.Runs, RunView{
			ID:           s.ID,
			Operation:    s.Operation,
			Group:        s.Group,
			GenerateCode: s.GenerateCode,
			StartedAt:    s.StartedAt,
			Installed:    s.Installed,
			Skipped:      s.Skipped,
			Failed:       s.Failed,
		})
		if runID == "" && limit > 0 && len(result.Runs) == limit {
			break
		}
	}

	if runID == "" {
		return result, nil
	}
	outcomes, err := j.Outcomes(ctx, runID)
	if err != nil {
		return HistoryResult{}, err
	}
	if len(result.Runs) == 0 {
		return HistoryResult{}, sql.ErrNoRows
	}
	for _, o := range outcomes {
		result.Runs[0].Outcomes = append(result.Runs[0].Outcomes, OutcomeView{
			Group:      o.Group,
			Dependency: o.Dependency,
			Status:     string(o.Status),
			Version:    o.Version,
			Path:       o.Path,
			Detail:     o.Detail,
		})
	}
	return result, nil
}
