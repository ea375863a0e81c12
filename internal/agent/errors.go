package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/provider"
)

// mapError turns provider failures into user-facing errors.
func mapError(err error, sel provider.Selection) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var providerErr *fantasy.ProviderError
	if errors.As(err, &providerErr) {
		return errs.Error{Err: err, Reason: reasonForProviderError(providerErr, sel)}
	}
	return errs.Error{Err: err, Reason: fmt.Sprintf("There was a problem with the %s API request.", sel.Family.API())}
}

func reasonForProviderError(err *fantasy.ProviderError, sel provider.Selection) string {
	switch err.StatusCode {
	case http.StatusNotFound:
		return fmt.Sprintf("Missing model '%s' for API '%s'.", sel.ModelID, sel.Family.API())
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Sprintf("The %s API rejected the credentials; check %s.", sel.Family.API(), sel.Family.KeyEnv())
	case http.StatusBadRequest:
		if isContextLengthExceeded(err) {
			if over := tokensOver(err.Error()); over > 0 {
				return fmt.Sprintf("Maximum prompt size exceeded by %d tokens.", over)
			}
			return "Maximum prompt size exceeded."
		}
	}

	reason := fantasy.ErrorTitleForStatusCode(err.StatusCode)
	if reason == "" {
		reason = fmt.Sprintf("%s API request error.", sel.Family.API())
	}
	if err.IsRetryable() {
		reason += " The request may succeed if you try again."
	}
	return reason
}

func isContextLengthExceeded(err *fantasy.ProviderError) bool {
	return strings.Contains(strings.ToLower(err.Message), "context_length_exceeded") ||
		strings.Contains(strings.ToLower(string(err.ResponseBody)), "context_length_exceeded")
}

var tokenErrRe = regexp.MustCompile(`This model's maximum context length is (\d+) tokens. However, your messages resulted in (\d+) tokens`)

// tokensOver extracts how far a prompt overshot the context window.
func tokensOver(msg string) int {
	found := tokenErrRe.FindStringSubmatch(msg)
	if len(found) != 3 { //nolint:mnd
		return 0
	}
	maxt, _ := strconv.Atoi(found[1])
	current, _ := strconv.Atoi(found[2])
	if maxt >= current {
		return 0
	}
	return current - maxt
}
