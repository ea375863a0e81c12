package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

type coded struct{ code int }

func (c coded) Error() string { return "coded" }
func (c coded) ExitCode() int { return c.code }

func TestError(t *testing.T) {
	t.Run("falls back to reason", func(t *testing.T) {
		err := Error{Reason: "nope"}
		require.Equal(t, "nope", err.Error())
	})

	t.Run("wrapf", func(t *testing.T) {
		inner := errors.New("boom")
		err := Wrapf(inner, "could not %s", "fetch")
		require.Equal(t, "boom", err.Error())
		require.Equal(t, "could not fetch", err.ReasonText())
		require.ErrorIs(t, err, inner)
	})
}

func TestExitCode(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		require.Equal(t, CodeOK, ExitCode(nil))
	})

	t.Run("generic", func(t *testing.T) {
		require.Equal(t, CodeGeneric, ExitCode(errors.New("x")))
	})

	t.Run("explicit code wins", func(t *testing.T) {
		err := Wrap(coded{CodeFetch}, "x").WithCode(CodeUsage)
		require.Equal(t, CodeUsage, ExitCode(err))
	})

	t.Run("derived from wrapped coder", func(t *testing.T) {
		err := Wrap(fmt.Errorf("stage: %w", coded{CodeParse}), "x")
		require.Equal(t, CodeParse, ExitCode(err))
	})
}
