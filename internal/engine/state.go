package engine

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/roach88/solpm/internal/manifest"
)

// State is a step of a dependency's pipeline.
type State int

const (
	Requested State = iota
	Fetching
	Validating
	Valid
	Invalid
	Generating
	StateInstalled
	// StateFailed ends a pipeline that broke outside validation: fetch,
	// generation, file or manifest errors.
	StateFailed
)

func (s State) String() string {
	switch s {
	case Requested:
		return "requested"
	case Fetching:
		return "fetching"
	case Validating:
		return "validating"
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case Generating:
		return "generating"
	case StateInstalled:
		return "installed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == Invalid || s == StateInstalled || s == StateFailed
}

var transitions = map[State][]State{
	Requested:  {Fetching},
	Fetching:   {Validating},
	Validating: {Valid, Invalid},
	Valid:      {Generating, StateInstalled},
	Generating: {StateInstalled},
}

// machine tracks one dependency. It is owned by a single pipeline
// goroutine until the pipelines finish, then by the commit step.
type machine struct {
	dependency string
	group      manifest.Group
	state      State
	logger     *slog.Logger
}

func newMachine(dependency string, group manifest.Group, logger *slog.Logger) *machine {
	return &machine{dependency: dependency, group: group, state: Requested, logger: logger}
}

// to moves to next. Any non-terminal state may move to StateFailed.
func (m *machine) to(next State) error {
	allowed := next == StateFailed && !m.state.Terminal()
	if !allowed {
		allowed = slices.Contains(transitions[m.state], next)
	}
	if !allowed {
		return &TransitionError{Dependency: m.dependency, From: m.state, To: next}
	}
	m.logger.Debug("dependency state",
		"dependency", m.dependency,
		"group", m.group.String(),
		"from", m.state.String(),
		"to", next.String(),
	)
	m.state = next
	return nil
}
