package emit

import "fmt"

// GenerationErrorKind classifies code generation failures.
type GenerationErrorKind int

const (
	// UnknownPrimitive is a primitive type with no Go mapping. It only
	// skips the instruction that uses it.
	UnknownPrimitive GenerationErrorKind = iota
	// InternalConsistency is a validated document the emitter cannot
	// render. It fails the package.
	InternalConsistency
)

func (k GenerationErrorKind) String() string {
	switch k {
	case UnknownPrimitive:
		return "UnknownPrimitive"
	case InternalConsistency:
		return "InternalConsistency"
	default:
		return fmt.Sprintf("GenerationErrorKind(%d)", int(k))
	}
}

// GenerationError is a failure to render part of a client package.
type GenerationError struct {
	Kind        GenerationErrorKind
	Instruction string // empty for package-level failures
	Err         error
}

func (e *GenerationError) Error() string {
	if e.Instruction != "" {
		return fmt.Sprintf("generate %s: instruction %s: %v", e.Kind, e.Instruction, e.Err)
	}
	return fmt.Sprintf("generate %s: %v", e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

func internalError(format string, args ...any) *GenerationError {
	return &GenerationError{Kind: InternalConsistency, Err: fmt.Errorf(format, args...)}
}

// Warning is a non-fatal problem recorded while generating a package.
type Warning struct {
	Instruction string `json:"instruction,omitempty"`
	Type        string `json:"type,omitempty"`
	Message     string `json:"message"`
}

func (w Warning) String() string {
	switch {
	case w.Instruction != "":
		return fmt.Sprintf("instruction %s: %s", w.Instruction, w.Message)
	case w.Type != "":
		return fmt.Sprintf("type %s: %s", w.Type, w.Message)
	default:
		return w.Message
	}
}
