package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/solpm/internal/engine"
	"github.com/roach88/solpm/internal/ir"
)

// ReportSnapshot captures the stable parts of a scenario's reports.
// Error messages are left out since they carry temporary paths; the error
// kind is kept instead. Generation warnings are covered by the emit golden
// files and left out as well.
type ReportSnapshot struct {
	ScenarioName string
	Reports      []engine.ReportView
}

// toCanonicalMap converts a ReportSnapshot to a map[string]any for canonical
// JSON serialization, since ir.MarshalCanonical only handles JSON values.
func (s *ReportSnapshot) toCanonicalMap() map[string]any {
	reports := make([]any, len(s.Reports))
	for i, r := range s.Reports {
		entries := make([]any, len(r.Entries))
		for j, ev := range r.Entries {
			entry := map[string]any{
				"name":   ev.Name,
				"group":  ev.Group,
				"status": ev.Status,
			}
			optional := map[string]string{
				"version":     ev.Version,
				"path":        ev.Path,
				"client_path": ev.ClientPath,
				"reason":      ev.Reason,
				"error_kind":  ev.ErrorKind,
			}
			for k, v := range optional {
				if v != "" {
					entry[k] = v
				}
			}
			entries[j] = entry
		}
		reports[i] = map[string]any{
			"run_id":    r.RunID,
			"operation": r.Operation,
			"entries":   entries,
			"summary": map[string]any{
				"installed": r.Summary.Installed,
				"skipped":   r.Summary.Skipped,
				"failed":    r.Summary.Failed,
			},
		}
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"reports":       reports,
	}
}

// RunWithGolden executes a scenario and compares its reports against a
// golden file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can also check Pass and Errors. Test
// failure (via goldie) occurs if the reports don't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the reports of an existing result against a
// golden file without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := ReportSnapshot{ScenarioName: scenarioName, Reports: result.Reports}
	data, err := ir.MarshalCanonical(snapshot.toCanonicalMap())
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
