package harness

import (
	"github.com/roach88/solpm/internal/engine"
	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/manifest"
)

// Scenario defines one reconciliation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config overrides engine settings. Zero fields keep the engine defaults.
	Config ScenarioConfig `yaml:"config,omitempty"`

	// Registry lists the program versions the fake registry serves.
	Registry []Publication `yaml:"registry"`

	// Manifest is written to the project before the first step. When nil
	// the project starts without a manifest file.
	Manifest *ManifestDoc `yaml:"manifest,omitempty"`

	// Steps are run in order against the same project.
	Steps []Step `yaml:"steps"`

	// Assertions validate the project after the last step.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// ScenarioConfig mirrors the tunable parts of engine.Config.
type ScenarioConfig struct {
	Parallelism int `yaml:"parallelism,omitempty"`
	// FetchTimeout is a Go duration string such as "50ms".
	FetchTimeout string `yaml:"fetch_timeout,omitempty"`
	IDLDir       string `yaml:"idl_dir,omitempty"`
	ClientDir    string `yaml:"client_dir,omitempty"`
	ModulePath   string `yaml:"module_path,omitempty"`
}

// Publication is one entry of the fake registry.
type Publication struct {
	Name    string     `yaml:"name"`
	Version string     `yaml:"version,omitempty"`
	Network ir.Network `yaml:"network,omitempty"`

	// Fixture is the interface document served for this version.
	Fixture string `yaml:"fixture,omitempty"`

	// Fail makes every fetch of Name fail with this message.
	Fail string `yaml:"fail,omitempty"`

	// Hang makes every fetch of Name block until its deadline.
	Hang bool `yaml:"hang,omitempty"`
}

// ManifestDoc is the starting manifest, in manifest document form.
type ManifestDoc struct {
	Programs    map[string]manifest.Record `yaml:"programs,omitempty"`
	DevPrograms map[string]manifest.Record `yaml:"devPrograms,omitempty"`
}

// Step is one engine operation.
type Step struct {
	// Op is one of install, add or codegen.
	Op string `yaml:"op"`

	// Group is regular (default), development or all. add accepts only
	// regular and development.
	Group string `yaml:"group,omitempty"`

	// Codegen requests client generation for install and add.
	Codegen bool `yaml:"codegen,omitempty"`

	// Name, Version, Network and Path describe the dependency of an add.
	Name    string     `yaml:"name,omitempty"`
	Version string     `yaml:"version,omitempty"`
	Network ir.Network `yaml:"network,omitempty"`
	Path    string     `yaml:"path,omitempty"`

	// Names restricts a codegen step. Empty means every selected dependency.
	Names []string `yaml:"names,omitempty"`

	// Expect checks the step's report. If nil, the step only has to run
	// without an operation error.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect specifies the expected report of a step. Dependencies not listed
// are not checked.
type Expect struct {
	Installed []string `yaml:"installed,omitempty"`
	Skipped   []string `yaml:"skipped,omitempty"`

	// Failed maps a dependency name to its expected error kind, as
	// returned by engine.ErrorKind (e.g. "schema", "fetch/timeout").
	Failed map[string]string `yaml:"failed,omitempty"`

	// Error is a substring of the expected operation error. When set the
	// operation must fail as a whole and produces no report.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the project after the last step.
type Assertion struct {
	// Type specifies the assertion type:
	// - "manifest_record": the manifest holds Name with the Expect fields
	// - "manifest_absent": the manifest does not hold Name
	// - "file_exists": Path exists under the project root
	// - "file_absent": Path does not exist under the project root
	// - "client_contains": the file at Path contains every Contains entry
	// - "journal_runs": the journal recorded exactly Count runs
	Type string `yaml:"type"`

	// Group selects the manifest group (regular or development).
	Group string `yaml:"group,omitempty"`

	// Name is the dependency name (manifest_record, manifest_absent).
	Name string `yaml:"name,omitempty"`

	// Expect contains expected record fields by document key (version,
	// program_id, network, idl_path). Subset match.
	Expect map[string]string `yaml:"expect,omitempty"`

	// Path is relative to the project root.
	Path string `yaml:"path,omitempty"`

	// Contains lists substrings the file must contain.
	Contains []string `yaml:"contains,omitempty"`

	// Count is the expected number of journal runs.
	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertManifestRecord = "manifest_record"
	AssertManifestAbsent = "manifest_absent"
	AssertFileExists     = "file_exists"
	AssertFileAbsent     = "file_absent"
	AssertClientContains = "client_contains"
	AssertJournalRuns    = "journal_runs"
)

// Step operation constants.
const (
	OpInstall = "install"
	OpAdd     = "add"
	OpCodegen = "codegen"
)

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall success: every step expectation and every
	// assertion held.
	Pass bool `json:"pass"`

	// Reports holds the report of each step in order. A step that failed
	// as a whole contributes an empty report.
	Reports []engine.ReportView `json:"reports"`

	// Errors contains validation error messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Reports: []engine.ReportView{},
		Errors:  []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
