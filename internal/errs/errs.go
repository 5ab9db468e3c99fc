// Package errs defines the typed business errors surfaced by the
// engine.  Handlers map kinds onto stable HTTP categories: not-found
// to 404, validation to 400, conflict to 409.  Ownership failures are
// reported as not-found so callers cannot probe for existence.
package errs

import (
	"errors"
	"fmt"
)

// Kind is the stable category of a business error.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindValidation
	KindConflict
)

// Error is a business-rule failure with a human-readable message.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string { return e.Message }

// NotFoundf builds a not-found error.
func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// Validationf builds a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Conflictf builds a conflict error.
func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err when it wraps an *Error, or zero.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// IsNotFound reports whether err is a not-found business error.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }

// IsValidation reports whether err is a validation business error.
func IsValidation(err error) bool { return KindOf(err) == KindValidation }

// IsConflict reports whether err is a conflict business error.
func IsConflict(err error) bool { return KindOf(err) == KindConflict }
