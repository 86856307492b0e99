package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/solpm/internal/manifest"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMachine_FullPath(t *testing.T) {
	m := newMachine("vault", manifest.Regular, quietLogger())

	for _, next := range []State{Fetching, Validating, Valid, Generating, StateInstalled} {
		require.NoError(t, m.to(next), "to %s", next)
	}
	assert.True(t, m.state.Terminal())
}

func TestMachine_WithoutCodegen(t *testing.T) {
	m := newMachine("vault", manifest.Regular, quietLogger())

	for _, next := range []State{Fetching, Validating, Valid, StateInstalled} {
		require.NoError(t, m.to(next))
	}
}

func TestMachine_IllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		bad  State
	}{
		{"skip fetch", nil, Validating},
		{"install unvalidated", []State{Fetching}, StateInstalled},
		{"generate invalid", []State{Fetching, Validating, Invalid}, Generating},
		{"leave installed", []State{Fetching, Validating, Valid, StateInstalled}, StateFailed},
		{"fail twice", []State{StateFailed}, StateFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMachine("vault", manifest.Regular, quietLogger())
			for _, s := range tt.path {
				require.NoError(t, m.to(s))
			}
			before := m.state

			err := m.to(tt.bad)
			var terr *TransitionError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, before, terr.From)
			assert.Equal(t, tt.bad, terr.To)
			assert.Equal(t, before, m.state)
			assert.Equal(t, "internal", ErrorKind(err))
		})
	}
}

func TestMachine_FailFromAnyActiveState(t *testing.T) {
	for _, s := range []State{Requested, Fetching, Validating, Valid, Generating} {
		assert.False(t, s.Terminal(), s.String())
	}
	m := newMachine("vault", manifest.Regular, quietLogger())
	require.NoError(t, m.to(Fetching))
	require.NoError(t, m.to(StateFailed))
}

func TestSystemClock(t *testing.T) {
	before := time.Now()
	now := systemClock{}.Now()
	assert.False(t, now.Before(before))
}
