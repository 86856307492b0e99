package harness

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/solpm/internal/manifest"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("Assertion failed: %s\n  Expected: %s\n  Actual: %s", e.Type, e.Expected, e.Actual)
}

// check evaluates one assertion against the project.
func (e *env) check(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertManifestRecord:
		return e.assertManifestRecord(a)
	case AssertManifestAbsent:
		return e.assertManifestAbsent(a)
	case AssertFileExists:
		return e.assertFile(a, true)
	case AssertFileAbsent:
		return e.assertFile(a, false)
	case AssertClientContains:
		return e.assertClientContains(a)
	case AssertJournalRuns:
		return e.assertJournalRuns(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (e *env) assertManifestRecord(a Assertion) error {
	g, _ := parseGroup(a.Group)
	m, err := e.manifests.LoadOrNew()
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "readable manifest", Actual: err.Error()}
	}
	rec, ok := m.Get(g, a.Name)
	if !ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s in %s", a.Name, g.Key()),
			Actual:   "not present",
		}
	}

	got := recordFields(rec)
	for _, key := range sortedKeys(a.Expect) {
		if got[key] != a.Expect[key] {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s.%s = %q", a.Name, key, a.Expect[key]),
				Actual:   fmt.Sprintf("%q", got[key]),
			}
		}
	}
	return nil
}

func (e *env) assertManifestAbsent(a Assertion) error {
	g, _ := parseGroup(a.Group)
	m, err := e.manifests.LoadOrNew()
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "readable manifest", Actual: err.Error()}
	}
	if rec, ok := m.Get(g, a.Name); ok {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%s absent from %s", a.Name, g.Key()),
			Actual:   fmt.Sprintf("present at version %s", rec.Version),
		}
	}
	return nil
}

func (e *env) assertFile(a Assertion, exists bool) error {
	_, err := os.Stat(e.path(a.Path))
	switch {
	case exists && errors.Is(err, fs.ErrNotExist):
		return &AssertionError{Type: a.Type, Expected: a.Path + " exists", Actual: "missing"}
	case exists && err != nil:
		return &AssertionError{Type: a.Type, Expected: a.Path + " exists", Actual: err.Error()}
	case !exists && err == nil:
		return &AssertionError{Type: a.Type, Expected: a.Path + " absent", Actual: "present"}
	}
	return nil
}

func (e *env) assertClientContains(a Assertion) error {
	data, err := os.ReadFile(e.path(a.Path))
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "readable " + a.Path, Actual: err.Error()}
	}
	src := string(data)
	for _, want := range a.Contains {
		if !strings.Contains(src, want) {
			return &AssertionError{
				Type:     a.Type,
				Expected: fmt.Sprintf("%s contains %q", a.Path, want),
				Actual:   "not found",
			}
		}
	}
	return nil
}

func (e *env) assertJournalRuns(ctx context.Context, a Assertion) error {
	runs, err := e.journal.ListRuns(ctx, 0)
	if err != nil {
		return &AssertionError{Type: a.Type, Expected: "readable journal", Actual: err.Error()}
	}
	if len(runs) != a.Count {
		return &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("%d runs", a.Count),
			Actual:   fmt.Sprintf("%d runs", len(runs)),
		}
	}
	return nil
}

func (e *env) path(rel string) string {
	return filepath.Join(e.root, filepath.FromSlash(rel))
}

// recordFields returns a record keyed by its document field names.
func recordFields(rec manifest.Record) map[string]string {
	return map[string]string{
		"version":    rec.Version,
		"program_id": rec.Address,
		"network":    string(rec.Network),
		"idl_path":   rec.DocumentPath,
	}
}
