// Package errkind defines the closed set of error kinds the envelope
// pipeline reports, and the structured error type that carries one.
//
// Handlers wrap most failures in a *Error with the Kind that §7 of the
// protocol specification assigns it, so callers can branch on Kind
// without string matching. Some store errors (in resolve_deps and
// remove) are returned unwrapped and carry no Kind.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a closed enum of the error kinds the pipeline can report.
type Kind string

const (
	InputMalformed    Kind = "InputMalformed"
	KeyMissing        Kind = "KeyMissing"
	DecryptFailed     Kind = "DecryptFailed"
	SignatureBad      Kind = "SignatureBad"
	ValidationFailed  Kind = "ValidationFailed"
	DependencyMissing Kind = "DependencyMissing"
	RetryExhausted    Kind = "RetryExhausted"
	StoreConflict     Kind = "StoreConflict"
	PurgedDuplicate   Kind = "PurgedDuplicate"
	TransportError    Kind = "TransportError"
	UnknownEventType  Kind = "UnknownEventType"
	NotMember         Kind = "NotMember"
	PermissionDenied  Kind = "PermissionDenied"
	Internal          Kind = "Internal"
)

// Error is the structured error every pipeline-facing component returns.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error with no wrapped cause.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error that wraps cause, or returns nil if cause is nil.
func Wrap(kind Kind, message string, cause error) *Error {
	if cause == nil {
		return nil
	}
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// KindOf extracts the Kind from err if it (or something it wraps) is an
// *Error, and reports ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
