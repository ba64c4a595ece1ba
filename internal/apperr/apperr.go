// Package apperr classifies failures so the API layer can pick a response
// policy per route instead of mapping every error to a generic 500.
package apperr

import (
	"errors"
	"fmt"
)

// Kind enumerates the failure classes surfaced by the service.
type Kind int

const (
	// Unknown is any error that was never classified.
	Unknown Kind = iota
	// Validation marks malformed or unacceptable caller input.
	Validation
	// StorageNotFound marks a missing object in storage.
	StorageNotFound
	// StorageUnavailable marks network, auth or other transient storage failures.
	StorageUnavailable
	// Parse marks a byte stream that is not a valid document package.
	Parse
	// Adapter marks a failed LLM completion call.
	Adapter
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case StorageNotFound:
		return "storage_not_found"
	case StorageUnavailable:
		return "storage_unavailable"
	case Parse:
		return "parse"
	case Adapter:
		return "adapter"
	default:
		return "unknown"
	}
}

// Error attaches a Kind and the failing operation to an underlying error.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E wraps err with the given kind. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds a classified error from a format string.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the kind of the outermost classified error in the chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
