// Package errs holds the user-facing error type and the process exit codes.
package errs

import (
	"errors"
	"fmt"
)

// Exit codes returned by the courtside binary.
const (
	CodeOK        = 0
	CodeGeneric   = 1
	CodeUsage     = 2
	CodeFetch     = 3
	CodeParse     = 4
	CodeNarration = 5
	CodeConfig    = 6
)

// UserErrorf is a user-facing error.
// This helper exists mostly to avoid linters complaining about errors starting
// with a capitalized letter.
func UserErrorf(format string, a ...any) error {
	return fmt.Errorf(format, a...)
}

// Error wraps an underlying error with a user-facing reason.
//
// Reason is short and actionable; Err may contain technical details.
// Code is the process exit code; zero means "derive from Err".
type Error struct {
	Err    error
	Reason string
	Code   int
}

// Wrap creates an Error with the given underlying error and user-facing reason.
func Wrap(err error, reason string) Error {
	return Error{Err: err, Reason: reason}
}

// Wrapf creates an Error with the given underlying error and a formatted reason.
func Wrapf(err error, format string, a ...any) Error {
	return Error{Err: err, Reason: fmt.Sprintf(format, a...)}
}

// WithCode returns a copy of e carrying the given exit code.
func (e Error) WithCode(code int) Error {
	e.Code = code
	return e
}

func (e Error) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Reason
}

func (e Error) Unwrap() error {
	return e.Err
}

// ReasonText returns the user-facing reason for the error.
func (e Error) ReasonText() string {
	return e.Reason
}

// Coder is implemented by domain errors that know their exit code.
type Coder interface {
	ExitCode() int
}

// ExitCode walks the error chain and returns the first explicit exit code.
// Errors without one map to CodeGeneric, nil maps to CodeOK.
func ExitCode(err error) int {
	if err == nil {
		return CodeOK
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		switch v := e.(type) {
		case Error:
			if v.Code != 0 {
				return v.Code
			}
		case *Error:
			if v != nil && v.Code != 0 {
				return v.Code
			}
		case Coder:
			return v.ExitCode()
		}
	}
	var c Coder
	if errors.As(err, &c) {
		return c.ExitCode()
	}
	return CodeGeneric
}
