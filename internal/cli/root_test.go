package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solpm/internal/engine"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "solpm", cmd.Use)
	assert.Contains(t, cmd.Long, "program interfaces")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"init", "add", "install", "codegen", "validate", "history"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dirFlag := cmd.PersistentFlags().Lookup("dir")
	require.NotNil(t, dirFlag)
	assert.Equal(t, "C", dirFlag.Shorthand)

	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestInstallCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	installCmd, _, err := cmd.Find([]string{"install"})
	require.NoError(t, err)

	for _, name := range []string{"dev", "all", "codegen", "strict"} {
		flag := installCmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, "false", flag.DefValue)
	}
}

func TestHistoryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	historyCmd, _, err := cmd.Find([]string{"history"})
	require.NoError(t, err)

	limitFlag := historyCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "20", limitFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, err := newTestEnv(t).run("--format", "xml", "install")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestUsageErrorsAreCommandErrors(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run("install", "--dev", "--all")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = env.run("add")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

// testEnv runs commands against a project in a temporary directory with
// an in-memory registry.
type testEnv struct {
	dir     string
	fetcher engine.Fetcher
}

func (e *testEnv) run(args ...string) (string, error) {
	opts := &RootOptions{
		Fetcher: e.fetcher,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	cmd := newRootCommand(opts)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--dir", e.dir}, args...))
	err := cmd.Execute()
	return out.String(), err
}

// runJSON runs a command with --format json and decodes the envelope.
func (e *testEnv) runJSON(t *testing.T, data any, args ...string) (CLIResponse, error) {
	t.Helper()
	out, err := e.run(append([]string{"--format", "json"}, args...)...)
	var raw struct {
		CLIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &raw), out)
	if data != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, data))
	}
	return raw.CLIResponse, err
}
