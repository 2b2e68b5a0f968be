// Package domainerrors provides coded errors for the service layer. Stores
// return sentinel errors (pkg/platform/sentinel) for infrastructure facts;
// services translate those into coded errors so transports can map a code to
// a status without parsing message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies an error for transport mapping and caller branching.
type Code string

const (
	CodeNotFound           Code = "not_found"
	CodeValidation         Code = "validation"
	CodeInvalidInput       Code = "invalid_input"
	CodeConflict           Code = "conflict"
	CodeForbidden          Code = "forbidden"
	CodeUnauthorized       Code = "unauthorized"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal"
)

// Error is a domain error with a stable machine-readable code.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New constructs a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf constructs a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error, preserving the
// cause for errors.Is/As chains.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for errors.As(err, &de) {
		if de.Code == code {
			return true
		}
		err = de.cause
		if err == nil {
			break
		}
	}
	return false
}

// CodeOf returns the outermost code on err, or CodeInternal when err carries
// no code. Callers that need exact matching should prefer HasCode.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Is allows comparison against another coded error by code.
func (e *Error) Is(target error) bool {
	var de *Error
	if errors.As(target, &de) {
		return e.Code == de.Code
	}
	return false
}
