// Package ioerr defines the error taxonomy shared by every internal
// package of the EWF storage engine, grounded in iamNilotpal-ignite's
// pkg/errors: a single structured error type carrying a classifying Kind,
// a wrapped cause, and a lazily-allocated details map for operator-facing
// context (segment number, offset, chunk index, section type). The
// top-level ewf package re-exports Kind and a handful of constructors so
// callers never need to import this package directly.
package ioerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure into one of this package's taxonomy buckets.
type Kind string

const (
	KindInvalidArgument  Kind = "INVALID_ARGUMENT"
	KindUnsupported      Kind = "UNSUPPORTED"
	KindIO               Kind = "IO"
	KindChecksumMismatch Kind = "CHECKSUM_MISMATCH"
	KindCorruptData      Kind = "CORRUPT_DATA"
	KindOutOfBounds      Kind = "OUT_OF_BOUNDS"
	KindMemoryFailure    Kind = "MEMORY_FAILURE"
	KindAborted          Kind = "ABORTED"
	KindNotFound         Kind = "NOT_FOUND"
)

// Error is the structured error value returned by every internal
// operation. It implements error, Unwrap (for errors.Is/As) and carries
// enough context to build an operator-facing message without parsing
// strings.
type Error struct {
	kind    Kind
	message string
	cause   error
	details map[string]any
}

// New creates an Error of the given kind wrapping cause (which may be
// nil for a freshly originated failure).
func New(kind Kind, message string, cause error) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

// Errorf is New with fmt.Sprintf-style formatting and no wrapped cause.
func Errorf(kind Kind, format string, args ...any) *Error {
	return &Error{kind: kind, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and message to an existing error, preserving it as
// the unwrap target.
func Wrap(kind Kind, cause error, message string) *Error {
	return &Error{kind: kind, message: message, cause: cause}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.cause }

// Kind returns the classifying kind.
func (e *Error) Kind() Kind { return e.kind }

// Details returns the structured context attached to this error.
func (e *Error) Details() map[string]any {
	if e.details == nil {
		return map[string]any{}
	}
	return e.details
}

// With attaches a single key/value of operator-facing context and
// returns the receiver for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.details == nil {
		e.details = make(map[string]any)
	}
	e.details[key] = value
	return e
}

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.kind == kind {
			return true
		}
		err = e.cause
	}
	return false
}

// KindOf extracts the Kind of err, or KindCorruptData if err wasn't
// produced by this package.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindCorruptData
}
