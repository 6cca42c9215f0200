// Package chunkederr defines the typed error surface for the chunked graph
// engine. All engine-level failures are one of a fixed set of Kinds so
// callers can branch on cause rather than string-match messages.
package chunkederr

import (
	"errors"
	"fmt"
)

// Kind classifies why an engine operation failed.
type Kind string

const (
	// InvalidInput marks malformed or out-of-range caller input.
	InvalidInput Kind = "invalid-input"
	// PreconditionViolated marks a request that is well-formed but cannot
	// be satisfied given the current graph state (same-root merge,
	// unseparable split, ...).
	PreconditionViolated Kind = "precondition-violated"
	// NotFound marks a missing id, chunk, or row.
	NotFound Kind = "not-found"
	// LockingConflict marks a lease that could not be acquired or renewed.
	LockingConflict Kind = "locking-conflict"
	// StorageTransient marks a retryable storage failure.
	StorageTransient Kind = "storage-transient"
	// StorageFatal marks a storage failure that survived retries.
	StorageFatal Kind = "storage-fatal"
	// InternalInvariant marks a broken graph invariant; the process must
	// refuse to proceed rather than risk corrupting history.
	InternalInvariant Kind = "internal-invariant"
)

// Error is the engine's single error type. OperationID is populated once
// an operation id has been allocated so operators can correlate a
// user-visible failure with the operation log row (spec §7).
type Error struct {
	Kind        Kind
	Message     string
	OperationID uint64 // 0 means "no operation id allocated yet"
	Err         error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.OperationID != 0 {
		if e.Err != nil {
			return fmt.Sprintf("[%s] op=%d: %s: %v", e.Kind, e.OperationID, e.Message, e.Err)
		}
		return fmt.Sprintf("[%s] op=%d: %s", e.Kind, e.OperationID, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error { return e.Err }

// Is matches by Kind, ignoring Message/OperationID/Err — this lets
// callers write errors.Is(err, chunkederr.New(chunkederr.NotFound, "")).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// New creates an Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error that wraps an underlying cause.
func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// WithOperation returns a copy of e carrying the given operation id.
func (e *Error) WithOperation(opID uint64) *Error {
	cp := *e
	cp.OperationID = opID
	return &cp
}

// OfKind reports whether err is a *Error of the given Kind.
func OfKind(err error, kind Kind) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.Kind == kind
}
