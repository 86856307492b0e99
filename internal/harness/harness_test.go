package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/manifest"
	"github.com/roach88/solpm/internal/testutil"
)

const vaultAddress = "GYVb4hWw8D22pkScWSZZB1QjT7jmuFkPCR1a9DCe1GjY"

func vaultScenario() *Scenario {
	return &Scenario{
		Name:        "vault",
		Description: "install vault",
		Registry: []Publication{{
			Name:    "vault",
			Version: "0.2.0",
			Network: ir.Devnet,
			Fixture: testutil.FixturePath("vault.json"),
		}},
		Manifest: &ManifestDoc{Programs: map[string]manifest.Record{
			"vault": {Version: "0.2.0", Address: vaultAddress, Network: ir.Devnet},
		}},
		Steps: []Step{{Op: OpInstall, Expect: &Expect{Installed: []string{"vault"}}}},
	}
}

func TestRun_Passes(t *testing.T) {
	s := vaultScenario()
	s.Assertions = []Assertion{
		{Type: AssertManifestRecord, Name: "vault", Expect: map[string]string{"idl_path": "./program/idl/vault.json"}},
		{Type: AssertFileExists, Path: "program/idl/vault.json"},
		{Type: AssertFileAbsent, Path: "program/client/vault/vault.go"},
		{Type: AssertJournalRuns, Count: 1},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Errors)
	require.Len(t, result.Reports, 1)
	assert.Equal(t, "run-1", result.Reports[0].RunID)
	assert.Equal(t, "install", result.Reports[0].Operation)
	assert.Equal(t, 1, result.Reports[0].Summary.Installed)
}

func TestRun_ReportsUnmetExpectations(t *testing.T) {
	s := vaultScenario()
	s.Steps[0].Expect = &Expect{
		Skipped: []string{"vault"},
		Failed:  map[string]string{"ghost": "fetch/not_found"},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "vault: expected skipped, got installed")
	assert.Contains(t, result.Errors[1], "ghost: not in report")
}

func TestRun_WrongErrorKind(t *testing.T) {
	s := vaultScenario()
	s.Registry[0] = Publication{Name: "vault", Fail: "connection refused"}
	s.Steps[0].Expect = &Expect{Failed: map[string]string{"vault": "schema"}}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "expected error kind schema, got fetch/network")
}

func TestRun_StepErrors(t *testing.T) {
	t.Run("unexpected", func(t *testing.T) {
		s := vaultScenario()
		s.Steps = []Step{{Op: OpCodegen, Names: []string{"ghost"}}}

		result, err := Run(s)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "unexpected error")
		require.Len(t, result.Reports, 1)
		assert.Empty(t, result.Reports[0].Entries)
	})

	t.Run("expected", func(t *testing.T) {
		s := vaultScenario()
		s.Steps = []Step{{Op: OpCodegen, Names: []string{"ghost"}, Expect: &Expect{Error: "unknown dependency"}}}

		result, err := Run(s)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	})

	t.Run("missing manifest", func(t *testing.T) {
		s := vaultScenario()
		s.Manifest = nil
		s.Steps = []Step{{Op: OpInstall, Expect: &Expect{Error: "manifest not found"}}}

		result, err := Run(s)
		require.NoError(t, err)
		assert.True(t, result.Pass, "errors: %v", result.Errors)
	})

	t.Run("expected error but got report", func(t *testing.T) {
		s := vaultScenario()
		s.Steps[0].Expect = &Expect{Error: "boom"}

		result, err := Run(s)
		require.NoError(t, err)
		assert.False(t, result.Pass)
		assert.Contains(t, result.Errors[0], `expected error containing "boom"`)
	})
}

func TestRun_FailedAssertions(t *testing.T) {
	s := vaultScenario()
	s.Assertions = []Assertion{
		{Type: AssertManifestRecord, Name: "vault", Expect: map[string]string{"version": "9.9.9"}},
		{Type: AssertManifestRecord, Group: "development", Name: "vault", Expect: map[string]string{"version": "0.2.0"}},
		{Type: AssertManifestAbsent, Name: "vault"},
		{Type: AssertFileExists, Path: "program/client/vault/vault.go"},
		{Type: AssertFileAbsent, Path: "program/idl/vault.json"},
		{Type: AssertClientContains, Path: "program/idl/vault.json", Contains: []string{"package vault"}},
		{Type: AssertJournalRuns, Count: 3},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, len(s.Assertions))
	assert.Contains(t, result.Errors[0], `vault.version = "9.9.9"`)
	assert.Contains(t, result.Errors[1], "vault in devPrograms")
	assert.Contains(t, result.Errors[2], "present at version 0.2.0")
	assert.Contains(t, result.Errors[3], "missing")
	assert.Contains(t, result.Errors[4], "present")
	assert.Contains(t, result.Errors[5], `contains "package vault"`)
	assert.Contains(t, result.Errors[6], "Expected: 3 runs")
}

func TestRun_InvalidScenario(t *testing.T) {
	_, err := Run(&Scenario{Name: "empty"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid scenario")
}

func TestAssertionError(t *testing.T) {
	err := &AssertionError{Type: AssertFileExists, Expected: "a.go exists", Actual: "missing"}
	assert.Equal(t, "Assertion failed: file_exists\n  Expected: a.go exists\n  Actual: missing", err.Error())
}
