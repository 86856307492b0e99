package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/roach88/solpm/internal/engine"
	"github.com/roach88/solpm/internal/manifest"
	"github.com/roach88/solpm/internal/registry"
	"github.com/roach88/solpm/internal/store"
	"github.com/roach88/solpm/internal/testutil"
)

// ManifestFile is the manifest name inside a scenario project.
const ManifestFile = "SolanaPrograms.json"

// env is the project a scenario runs in.
type env struct {
	root      string
	manifests *manifest.Store
	journal   *store.Store
	engine    *engine.Engine
}

// Run executes a scenario in a fresh temporary project and returns the
// result. It returns an error only when the project cannot be set up;
// unmet expectations are reported through Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	root, err := os.MkdirTemp("", "solpm-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	defer os.RemoveAll(root)

	e, err := setup(root, scenario)
	if err != nil {
		return nil, err
	}
	defer e.journal.Close()

	result := NewResult()
	for i, step := range scenario.Steps {
		report, err := e.runStep(ctx, step)
		if err != nil {
			checkStepError(result, i, step, err)
			result.Reports = append(result.Reports, engine.ReportView{Entries: []engine.EntryView{}})
			continue
		}
		view := report.View()
		result.Reports = append(result.Reports, view)
		checkExpect(result, i, step, view)
	}

	for _, a := range scenario.Assertions {
		if err := e.check(ctx, a); err != nil {
			result.AddError(err.Error())
		}
	}
	return result, nil
}

// setup publishes the registry, writes the starting manifest and builds
// the engine.
func setup(root string, s *Scenario) (*env, error) {
	fetcher, err := buildRegistry(s.Registry)
	if err != nil {
		return nil, err
	}

	manifests := manifest.NewStore(filepath.Join(root, ManifestFile))
	if s.Manifest != nil {
		m := manifest.New()
		for name, rec := range s.Manifest.Programs {
			m.Set(manifest.Regular, name, rec)
		}
		for name, rec := range s.Manifest.DevPrograms {
			m.Set(manifest.Development, name, rec)
		}
		if err := manifests.Save(m); err != nil {
			return nil, fmt.Errorf("write manifest: %w", err)
		}
	}

	journal, err := store.Open(filepath.Join(root, ".solpm", "journal.db"))
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	cfg := engine.Config{
		ProjectRoot: root,
		Parallelism: s.Config.Parallelism,
		IDLDir:      s.Config.IDLDir,
		ClientDir:   s.Config.ClientDir,
		ModulePath:  s.Config.ModulePath,
	}
	if s.Config.FetchTimeout != "" {
		cfg.FetchTimeout, _ = time.ParseDuration(s.Config.FetchTimeout)
	}

	eng := engine.New(cfg, fetcher, manifests,
		engine.WithJournal(journal),
		engine.WithRunIDGenerator(testutil.NewSequentialRunIDGenerator("run-")),
		engine.WithClock(testutil.NewFixedClock()),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return &env{root: root, manifests: manifests, journal: journal, engine: eng}, nil
}

// buildRegistry loads every publication into an in-memory registry.
func buildRegistry(pubs []Publication) (*registry.Memory, error) {
	mem := registry.NewMemory()
	for _, p := range pubs {
		if p.Fixture != "" {
			data, err := os.ReadFile(p.Fixture)
			if err != nil {
				return nil, fmt.Errorf("read fixture for %s: %w", p.Name, err)
			}
			mem.Put(p.Name, p.Version, p.Network, data)
		}
		if p.Fail != "" {
			mem.Fail(p.Name, errors.New(p.Fail))
		}
		if p.Hang {
			mem.Hook(p.Name, func(ctx context.Context) error {
				<-ctx.Done()
				return ctx.Err()
			})
		}
	}
	return mem, nil
}

// runStep runs one engine operation.
func (e *env) runStep(ctx context.Context, step Step) (*engine.Report, error) {
	switch step.Op {
	case OpInstall:
		sel, _ := parseSelector(step.Group)
		return e.engine.Reconcile(ctx, engine.Options{GenerateCode: step.Codegen, Group: sel})
	case OpAdd:
		g, _ := parseGroup(step.Group)
		return e.engine.AddDependency(ctx, engine.AddRequest{
			Name:         step.Name,
			Version:      step.Version,
			Network:      step.Network,
			Group:        g,
			DocumentPath: step.Path,
		}, engine.Options{GenerateCode: step.Codegen})
	case OpCodegen:
		sel, _ := parseSelector(step.Group)
		return e.engine.Generate(ctx, step.Names, sel)
	default:
		return nil, fmt.Errorf("unknown op %q", step.Op)
	}
}

// checkStepError handles an operation that failed as a whole.
func checkStepError(result *Result, index int, step Step, err error) {
	if step.Expect == nil || step.Expect.Error == "" {
		result.AddError(fmt.Sprintf("steps[%d] (%s): unexpected error: %v", index, step.Op, err))
		return
	}
	if !strings.Contains(err.Error(), step.Expect.Error) {
		result.AddError(fmt.Sprintf("steps[%d] (%s): error %q does not contain %q",
			index, step.Op, err.Error(), step.Expect.Error))
	}
}

// checkExpect compares a step's report with its expect clause.
func checkExpect(result *Result, index int, step Step, view engine.ReportView) {
	exp := step.Expect
	if exp == nil {
		return
	}
	if exp.Error != "" {
		result.AddError(fmt.Sprintf("steps[%d] (%s): expected error containing %q, got a report",
			index, step.Op, exp.Error))
		return
	}

	byName := make(map[string]engine.EntryView, len(view.Entries))
	for _, ev := range view.Entries {
		byName[ev.Name] = ev
	}
	expectStatus := func(name, status string) (engine.EntryView, bool) {
		ev, ok := byName[name]
		if !ok {
			result.AddError(fmt.Sprintf("steps[%d] (%s): %s: not in report", index, step.Op, name))
			return ev, false
		}
		if ev.Status != status {
			detail := ev.Error
			if detail == "" {
				detail = ev.Reason
			}
			result.AddError(fmt.Sprintf("steps[%d] (%s): %s: expected %s, got %s (%s)",
				index, step.Op, name, status, ev.Status, detail))
			return ev, false
		}
		return ev, true
	}

	for _, name := range exp.Installed {
		expectStatus(name, string(store.StatusInstalled))
	}
	for _, name := range exp.Skipped {
		expectStatus(name, string(store.StatusSkipped))
	}
	for _, name := range sortedKeys(exp.Failed) {
		ev, ok := expectStatus(name, string(store.StatusFailed))
		if ok && ev.ErrorKind != exp.Failed[name] {
			result.AddError(fmt.Sprintf("steps[%d] (%s): %s: expected error kind %s, got %s (%s)",
				index, step.Op, name, exp.Failed[name], ev.ErrorKind, ev.Error))
		}
	}
}

// parseGroup converts a group name; empty means regular.
func parseGroup(s string) (manifest.Group, error) {
	switch s {
	case "", "regular":
		return manifest.Regular, nil
	case "development", "dev":
		return manifest.Development, nil
	default:
		return 0, fmt.Errorf("invalid group %q: must be regular or development", s)
	}
}

// parseSelector converts a group selector name; empty means regular.
func parseSelector(s string) (manifest.GroupSelector, error) {
	switch s {
	case "", "regular":
		return manifest.SelectRegular, nil
	case "development", "dev":
		return manifest.SelectDevelopment, nil
	case "all":
		return manifest.SelectBoth, nil
	default:
		return 0, fmt.Errorf("invalid group %q: must be regular, development or all", s)
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
