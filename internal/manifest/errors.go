package manifest

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by Load when the manifest file does not exist.
var ErrNotFound = errors.New("manifest not found")

// ErrorKind classifies manifest failures.
type ErrorKind int

const (
	// IoError is a failure to read, write or lock the manifest file.
	IoError ErrorKind = iota
	// CorruptDocument is a manifest that does not parse or has the wrong shape.
	CorruptDocument
)

func (k ErrorKind) String() string {
	switch k {
	case IoError:
		return "IoError"
	case CorruptDocument:
		return "CorruptDocument"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Error is a manifest failure with the file it concerns.
type Error struct {
	Kind ErrorKind
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("manifest %s: %s: %v", e.Path, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func ioError(path string, err error) *Error {
	return &Error{Kind: IoError, Path: path, Err: err}
}

func corrupt(path string, err error) *Error {
	return &Error{Kind: CorruptDocument, Path: path, Err: err}
}
