package engine

import (
	"time"

	"github.com/roach88/solpm/internal/emit"
	"github.com/roach88/solpm/internal/manifest"
	"github.com/roach88/solpm/internal/store"
)

// Outcome is the terminal result for one dependency: Installed, Skipped
// or Failed.
type Outcome interface {
	Status() store.Status
	outcome()
}

// Installed means the document is cached at Path and the manifest records
// Version. ClientPath is the generated client file, empty when code
// generation was not requested.
type Installed struct {
	Version    string
	Path       string
	ClientPath string
}

// Skipped means nothing was done for the dependency.
type Skipped struct {
	Reason string
}

// Failed carries the error that stopped the dependency.
type Failed struct {
	Err error
}

func (Installed) outcome() {}
func (Skipped) outcome()   {}
func (Failed) outcome()    {}

func (Installed) Status() store.Status { return store.StatusInstalled }
func (Skipped) Status() store.Status   { return store.StatusSkipped }
func (Failed) Status() store.Status    { return store.StatusFailed }

// Entry is one dependency's line in a report.
type Entry struct {
	Name    string
	Group   manifest.Group
	Outcome Outcome
	// Warnings are non-fatal code generation problems (skipped
	// instructions, omitted types).
	Warnings []emit.Warning
}

// Report is the result of one engine operation. Entries are ordered by
// group, then name.
type Report struct {
	RunID      string
	Operation  string
	StartedAt  time.Time
	FinishedAt time.Time
	Entries    []Entry
}

// Counts returns the number of entries per outcome.
func (r *Report) Counts() (installed, skipped, failed int) {
	for _, e := range r.Entries {
		switch e.Outcome.(type) {
		case Installed:
			installed++
		case Skipped:
			skipped++
		case Failed:
			failed++
		}
	}
	return installed, skipped, failed
}

// HasFailures reports whether any entry failed.
func (r *Report) HasFailures() bool {
	_, _, failed := r.Counts()
	return failed > 0
}

// Entry returns the entry of name in g.
func (r *Report) Entry(g manifest.Group, name string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Group == g && e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// ReportView is the serializable form of a Report, used for JSON and YAML
// output and golden snapshots. It leaves out wall-clock times.
type ReportView struct {
	RunID     string      `json:"run_id" yaml:"run_id"`
	Operation string      `json:"operation" yaml:"operation"`
	Entries   []EntryView `json:"entries" yaml:"entries"`
	Summary   SummaryView `json:"summary" yaml:"summary"`
}

// EntryView is the serializable form of an Entry.
type EntryView struct {
	Name       string   `json:"name" yaml:"name"`
	Group      string   `json:"group" yaml:"group"`
	Status     string   `json:"status" yaml:"status"`
	Version    string   `json:"version,omitempty" yaml:"version,omitempty"`
	Path       string   `json:"path,omitempty" yaml:"path,omitempty"`
	ClientPath string   `json:"client_path,omitempty" yaml:"client_path,omitempty"`
	Reason     string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	ErrorKind  string   `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
	Error      string   `json:"error,omitempty" yaml:"error,omitempty"`
	Warnings   []string `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// SummaryView counts entries per outcome.
type SummaryView struct {
	Installed int `json:"installed" yaml:"installed"`
	Skipped   int `json:"skipped" yaml:"skipped"`
	Failed    int `json:"failed" yaml:"failed"`
}

// View converts the report for output.
func (r *Report) View() ReportView {
	v := ReportView{RunID: r.RunID, Operation: r.Operation, Entries: make([]EntryView, 0, len(r.Entries))}
	for _, e := range r.Entries {
		v.Entries = append(v.Entries, e.view())
	}
	v.Summary.Installed, v.Summary.Skipped, v.Summary.Failed = r.Counts()
	return v
}

func (e Entry) view() EntryView {
	ev := EntryView{Name: e.Name, Group: e.Group.String(), Status: string(e.Outcome.Status())}
	switch o := e.Outcome.(type) {
	case Installed:
		ev.Version = o.Version
		ev.Path = o.Path
		ev.ClientPath = o.ClientPath
	case Skipped:
		ev.Reason = o.Reason
	case Failed:
		ev.ErrorKind = ErrorKind(o.Err)
		ev.Error = o.Err.Error()
	}
	for _, w := range e.Warnings {
		ev.Warnings = append(ev.Warnings, w.String())
	}
	return ev
}

// journalRun converts the report to a journal row.
func (r *Report) journalRun(group manifest.GroupSelector, generateCode bool) store.Run {
	run := store.Run{
		ID:           r.RunID,
		Operation:    r.Operation,
		Group:        group.String(),
		GenerateCode: generateCode,
		StartedAt:    r.StartedAt,
		FinishedAt:   r.FinishedAt,
	}
	for i, e := range r.Entries {
		ev := e.view()
		detail := ev.Reason
		if ev.Error != "" {
			detail = ev.Error
		}
		run.Outcomes = append(run.Outcomes, store.Outcome{
			Seq:        i + 1,
			Group:      ev.Group,
			Dependency: e.Name,
			Status:     e.Outcome.Status(),
			Version:    ev.Version,
			Path:       ev.Path,
			Detail:     detail,
		})
	}
	return run
}
