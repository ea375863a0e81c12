package stats

import (
	"errors"
	"fmt"

	"github.com/dotcommander/courtside/internal/errs"
)

// Sentinels matched by errors.Is on FetchError and ParseError.
var (
	ErrFetch = errors.New("fetch failed")
	ErrParse = errors.New("parse failed")
)

// TooLargeReason is the ParseError reason for pages over MaxPageBytes.
var TooLargeReason = fmt.Sprintf("page exceeds %d MiB", MaxPageBytes>>20)

// FetchError reports that the page could not be retrieved: transport
// failure, timeout or an unexpected HTTP status.
type FetchError struct {
	URL        string
	Date       string
	Team       string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches ErrFetch.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ExitCode implements errs.Coder.
func (e *FetchError) ExitCode() int { return errs.CodeFetch }

// Transient reports whether retrying might succeed.
func (e *FetchError) Transient() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == 429, e.StatusCode >= 500:
		return true
	default:
		return false
	}
}

// ParseError reports that a page was retrieved but holds no usable table.
type ParseError struct {
	URL    string
	Date   string
	Team   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.URL, e.Reason)
}

// Is matches ErrParse.
func (e *ParseError) Is(target error) bool { return target == ErrParse }

// ExitCode implements errs.Coder.
func (e *ParseError) ExitCode() int { return errs.CodeParse }
