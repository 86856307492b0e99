package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/solpm/internal/ir"
)

// LoadScenario reads and parses a scenario YAML file. Fixture paths are
// resolved relative to the directory of path.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving fixture paths relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve fixture paths BEFORE validation so existence can be checked.
	for i, pub := range scenario.Registry {
		if pub.Fixture != "" && !filepath.IsAbs(pub.Fixture) && basePath != "" {
			scenario.Registry[i].Fixture = filepath.Join(basePath, pub.Fixture)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	if s.Config.FetchTimeout != "" {
		if _, err := time.ParseDuration(s.Config.FetchTimeout); err != nil {
			return fmt.Errorf("config.fetch_timeout: %w", err)
		}
	}
	if s.Config.Parallelism < 0 {
		return fmt.Errorf("config.parallelism must be non-negative")
	}

	for i, pub := range s.Registry {
		if err := validatePublication(i, &pub); err != nil {
			return err
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validatePublication(index int, p *Publication) error {
	if p.Name == "" {
		return fmt.Errorf("registry[%d]: name is required", index)
	}
	if p.Fail != "" || p.Hang {
		return nil
	}
	if p.Version == "" {
		return fmt.Errorf("registry[%d]: version is required", index)
	}
	if !p.Network.Valid() {
		return fmt.Errorf("registry[%d]: invalid network %q", index, p.Network)
	}
	if p.Fixture == "" {
		return fmt.Errorf("registry[%d]: fixture is required unless fail or hang is set", index)
	}
	if _, err := os.Stat(p.Fixture); os.IsNotExist(err) {
		return fmt.Errorf("registry[%d]: fixture not found: %s", index, p.Fixture)
	}
	return nil
}

func validateStep(index int, s *Step) error {
	switch s.Op {
	case OpInstall, OpCodegen:
		if _, err := parseSelector(s.Group); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
	case OpAdd:
		if s.Name == "" {
			return fmt.Errorf("steps[%d]: name is required for add", index)
		}
		if _, err := parseGroup(s.Group); err != nil {
			return fmt.Errorf("steps[%d]: %w", index, err)
		}
		if s.Network != "" {
			if _, err := ir.ParseNetwork(string(s.Network)); err != nil {
				return fmt.Errorf("steps[%d]: %w", index, err)
			}
		}
	case "":
		return fmt.Errorf("steps[%d]: op is required", index)
	default:
		return fmt.Errorf("steps[%d]: unknown op %q", index, s.Op)
	}
	if s.Op != OpCodegen && len(s.Names) > 0 {
		return fmt.Errorf("steps[%d]: names is only valid for codegen", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertManifestRecord:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for manifest_record", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for manifest_record", index)
		}
	case AssertManifestAbsent:
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required for manifest_absent", index)
		}
	case AssertFileExists, AssertFileAbsent:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for %s", index, a.Type)
		}
	case AssertClientContains:
		if a.Path == "" {
			return fmt.Errorf("assertions[%d]: path is required for client_contains", index)
		}
		if len(a.Contains) == 0 {
			return fmt.Errorf("assertions[%d]: contains is required for client_contains", index)
		}
	case AssertJournalRuns:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for journal_runs", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.Group != "" {
		if _, err := parseGroup(a.Group); err != nil {
			return fmt.Errorf("assertions[%d]: %w", index, err)
		}
	}
	return nil
}
