package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/solpm/internal/compiler"
	"github.com/roach88/solpm/internal/emit"
	"github.com/roach88/solpm/internal/ir"
	"github.com/roach88/solpm/internal/manifest"
	"github.com/roach88/solpm/internal/registry"
)

var (
	// ErrVersionMismatch is wrapped by a FetchError when the fetched
	// document is not the version that was requested.
	ErrVersionMismatch = errors.New("version mismatch")

	// ErrUnknownDependency is returned when a named dependency is not in
	// the manifest.
	ErrUnknownDependency = errors.New("unknown dependency")

	// ErrInvalidName is returned for dependency names that cannot be used
	// as file names.
	ErrInvalidName = errors.New("invalid dependency name")

	// ErrPackageCollision fails dependencies whose names map to the same
	// client package within one operation.
	ErrPackageCollision = errors.New("client package collision")
)

// FetchErrorKind classifies fetch failures.
type FetchErrorKind int

const (
	// NotFound means the program or version does not exist.
	NotFound FetchErrorKind = iota
	// NetworkError is a transport or registry failure.
	NetworkError
	// Timeout means the fetch exceeded Config.FetchTimeout.
	Timeout
)

func (k FetchErrorKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case NetworkError:
		return "network"
	case Timeout:
		return "timeout"
	default:
		return fmt.Sprintf("FetchErrorKind(%d)", int(k))
	}
}

// FetchError is a failure to obtain a dependency's interface document.
type FetchError struct {
	Kind    FetchErrorKind
	Name    string
	Version string
	Network ir.Network
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s@%s on %s: %s: %v", e.Name, e.Version, e.Network, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// classifyFetch wraps a fetcher error. A deadline is a Timeout, a missing
// program NotFound, anything else a NetworkError.
func classifyFetch(j job, err error) *FetchError {
	fe := &FetchError{Kind: NetworkError, Name: j.name, Version: j.version, Network: j.network, Err: err}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fe.Kind = Timeout
	case errors.Is(err, registry.ErrNotFound):
		fe.Kind = NotFound
	}
	return fe
}

// TransitionError is an illegal state machine transition. It indicates a
// bug in the engine, never bad input.
type TransitionError struct {
	Dependency string
	From, To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("internal error: %s: illegal transition %s -> %s", e.Dependency, e.From, e.To)
}

// ErrorKind names the category of a reported failure, e.g. "schema",
// "fetch/timeout" or "manifest/io".
func ErrorKind(err error) string {
	var (
		fe  *FetchError
		ve  compiler.ValidationErrors
		ce  *compiler.CompileError
		ge  *emit.GenerationError
		me  *manifest.Error
		tre *TransitionError
	)
	switch {
	case errors.Is(err, ErrPackageCollision):
		return "generation"
	case errors.As(err, &fe):
		return "fetch/" + fe.Kind.String()
	case errors.As(err, &ve), errors.As(err, &ce):
		return "schema"
	case errors.As(err, &ge):
		if ge.Kind == emit.InternalConsistency {
			return "generation/internal_consistency"
		}
		return "generation"
	case errors.As(err, &me):
		if me.Kind == manifest.CorruptDocument {
			return "manifest/corrupt"
		}
		return "manifest/io"
	case errors.As(err, &tre):
		return "internal"
	default:
		return "io"
	}
}

// IsTimeout reports whether err is a fetch that timed out.
// Uses errors.As to handle wrapped errors.
func IsTimeout(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == Timeout
}
