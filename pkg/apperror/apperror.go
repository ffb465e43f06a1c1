// Package apperror provides the error taxonomy shared by the registration core and the HTTP layer.
package apperror

import (
	"errors"
)

// Kind classifies an error for transport mapping.
type Kind string

const (
	// KindValidation is malformed input (bad token, malformed CPF, bad date).
	KindValidation Kind = "validation"
	// KindRule is a violated domain rule (duplicate, capacity, overlap, certificate preconditions).
	KindRule Kind = "rule"
	// KindNotFound is an unknown tutorial, attendee, event or registration.
	KindNotFound Kind = "not_found"
	// KindUnauthenticated is a missing or bad operator credential.
	KindUnauthenticated Kind = "unauthenticated"
	// KindForbidden is an operator acting outside their role.
	KindForbidden Kind = "forbidden"
	// KindExternal is a failure of a collaborator (delivery, conversion, blob storage).
	KindExternal Kind = "external"
	// KindInternal is everything else.
	KindInternal Kind = "internal"
)

// Error is the domain error type.
type Error struct {
	Kind    Kind
	Code    Code   // machine-readable, also the i18n key
	Message string // internal message for logs
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error.
func New(kind Kind, code Code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(kind Kind, code Code, message string, cause error) *Error {
	return &Error{Kind: kind, Code: code, Message: message, Cause: cause}
}

// Validation creates a KindValidation error.
func Validation(code Code, message string) *Error { return New(KindValidation, code, message) }

// Rule creates a KindRule error.
func Rule(code Code, message string) *Error { return New(KindRule, code, message) }

// NotFound creates a KindNotFound error.
func NotFound(code Code, message string) *Error { return New(KindNotFound, code, message) }

// External wraps a collaborator failure.
func External(code Code, message string, cause error) *Error {
	return Wrap(KindExternal, code, message, cause)
}

// WithCause returns a copy of e carrying cause. The copy still matches e with errors.Is.
func (e *Error) WithCause(cause error) *Error {
	cp := *e
	cp.Cause = cause
	return &cp
}

// As extracts the first *Error in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, KindInternal if err is not a domain error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, CodeUnknown if err is not a domain error.
func CodeOf(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeUnknown
}
