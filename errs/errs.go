// Package errs defines the exhaustive set of error kinds this module's
// operations can fail with (spec §7).
package errs

import (
	"errors"
	"fmt"
)

// Kind is one of the seven error conditions §7 enumerates.
type Kind int

const (
	// ReadonlyAccess: caller tried to mutate a derived collection.
	ReadonlyAccess Kind = iota
	// ReactivityDisabled: caller tried to mutate a container whose
	// reactivity has been turned off.
	ReactivityDisabled
	// DuplicateSource: attempt to register the same source twice in a
	// variadic combinator.
	DuplicateSource
	// InvalidDependencyKind: a projection engine was wired with a source
	// that is neither a cell nor a collection.
	InvalidDependencyKind
	// CommitWithoutPending: a cell delta buffer was asked to commit with
	// no pending change.
	CommitWithoutPending
	// BufferDisabled: extraction/commit called on a disabled buffer.
	BufferDisabled
	// ResolverFailure: a resolver threw, or its returned promise rejected.
	ResolverFailure
)

func (k Kind) String() string {
	switch k {
	case ReadonlyAccess:
		return "ReadonlyAccess"
	case ReactivityDisabled:
		return "ReactivityDisabled"
	case DuplicateSource:
		return "DuplicateSource"
	case InvalidDependencyKind:
		return "InvalidDependencyKind"
	case CommitWithoutPending:
		return "CommitWithoutPending"
	case BufferDisabled:
		return "BufferDisabled"
	case ResolverFailure:
		return "ResolverFailure"
	default:
		return "Unknown"
	}
}

// Error is the carrier type for every error this module returns. It wraps
// an optional cause (e.g. a resolver's own error) so callers can
// errors.As/errors.Is through it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error with no wrapped cause.
func New(kind Kind, op string) *Error {
	return &Error{Kind: kind, Op: op}
}

// Wrap builds an *Error wrapping cause.
func Wrap(kind Kind, op string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Err: cause}
}

// Is reports whether err is an *Error of the given Kind, anywhere in its
// chain.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
