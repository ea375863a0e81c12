package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/present"
)

func handleError(err error) {
	maybeWriteMemProfile()

	// exhaust stdin
	if !present.IsInputTTY() {
		_, _ = io.ReadAll(os.Stdin)
	}

	format := "\n%s\n\n"

	var ferr flagParseError
	if errors.As(err, &ferr) {
		args := []any{
			fmt.Sprintf(
				"Check out %s %s",
				present.StderrStyles().InlineCode.Render("courtside -h"),
				present.StderrStyles().Comment.Render("for help."),
			),
			fmt.Sprintf(
				ferr.ReasonFormat(),
				present.StderrStyles().InlineCode.Render(ferr.Flag()),
			),
		}
		fmt.Fprintf(os.Stderr, format+"%s\n\n", args...)
		return
	}

	var merr errs.Error
	if errors.As(err, &merr) && merr.Reason != "" {
		formatArgs := []any{present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorHeader.String(), merr.Reason)}
		if merr.Err != nil && !errors.Is(merr.Err, huh.ErrUserAborted) {
			format += "%s\n\n"
			formatArgs = append(formatArgs, present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorDetails.Render(err.Error())))
		}
		if hint := errorHint(errs.ExitCode(err)); hint != "" {
			format += "%s\n\n"
			formatArgs = append(formatArgs, present.StderrStyles().ErrPadding.Render(hint))
		}
		fmt.Fprintf(os.Stderr, format, formatArgs...)
		return
	}

	fmt.Fprintf(os.Stderr, format, present.StderrStyles().ErrPadding.Render(present.StderrStyles().ErrorDetails.Render(err.Error())))
}

// errorHint suggests the next step for the failures users can fix
// themselves.
func errorHint(code int) string {
	styles := present.StderrStyles()
	switch code {
	case errs.CodeFetch:
		return styles.Comment.Render("Try again with ") + styles.InlineCode.Render("--browser") +
			styles.Comment.Render(" or raise fetch.retries in ") + styles.InlineCode.Render("courtside config edit")
	case errs.CodeParse:
		return styles.Comment.Render("Dates are YYYYMMDD and the home team is the site code, e.g. ") +
			styles.InlineCode.Render("--date 20251116 --home-team HOU")
	case errs.CodeConfig:
		return styles.Comment.Render("Check your settings with ") + styles.InlineCode.Render("courtside config show")
	}
	return ""
}
