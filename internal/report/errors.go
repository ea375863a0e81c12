package report

import (
	"context"
	"errors"
	"fmt"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/stats"
)

// ErrEmptyReport is the cause of a NarrationError when the model answered
// with blank text.
var ErrEmptyReport = errors.New("narrator returned an empty report")

// NarrationError reports a failed writing stage.
type NarrationError struct {
	RunID string
	Err   error
}

func (e *NarrationError) Error() string {
	return fmt.Sprintf("narrate report %s: %v", e.RunID, e.Err)
}

func (e *NarrationError) Unwrap() error { return e.Err }

// ExitCode implements errs.Coder.
func (e *NarrationError) ExitCode() int { return errs.CodeNarration }

// TransitionError is returned when the workflow is driven out of order.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal workflow transition %s -> %s", e.From, e.To)
}

// UserError wraps a workflow error with a user-facing reason and its exit
// code. errs.Error values pass through unchanged.
func UserError(err error) errs.Error {
	var e errs.Error
	if errors.As(err, &e) {
		return e
	}
	reason := "The game report failed."
	var nerr *NarrationError
	switch {
	case errors.Is(err, context.Canceled):
		reason = "The game report was canceled."
	case errors.Is(err, stats.ErrParse):
		reason = "No play-by-play table was found for that game. Check the date and home team."
	case errors.Is(err, stats.ErrFetch):
		reason = "Could not fetch the play-by-play page."
	case errors.As(err, &nerr):
		reason = "The model could not write the report."
	}
	return errs.Error{Err: err, Reason: reason, Code: errs.ExitCode(err)}
}
