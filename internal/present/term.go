package present

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"
)

// Terminal checks run once per process; redirection does not change mid-run.
var (
	stdinTTY  = sync.OnceValue(func() bool { return isTerminal(os.Stdin) })
	stdoutTTY = sync.OnceValue(func() bool { return isTerminal(os.Stdout) })
	stderrTTY = sync.OnceValue(func() bool { return isTerminal(os.Stderr) })
)

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// IsInputTTY reports whether stdin is a terminal, i.e. nothing was piped in.
func IsInputTTY() bool { return stdinTTY() }

// IsOutputTTY reports whether stdout is a terminal.
func IsOutputTTY() bool { return stdoutTTY() }

// IsErrorTTY reports whether stderr is a terminal. The progress view and
// the chat draw there.
func IsErrorTTY() bool { return stderrTTY() }

// Pretty reports whether reports should be rendered for a terminal rather
// than printed as plain markdown.
func Pretty(raw bool) bool {
	return !raw && IsOutputTTY()
}

var (
	stdoutRenderer = sync.OnceValue(lipgloss.DefaultRenderer)
	stderrRenderer = sync.OnceValue(func() *lipgloss.Renderer {
		return lipgloss.NewRenderer(os.Stderr, termenv.WithColorCache(true))
	})
	stdoutStyles = sync.OnceValue(func() Styles { return MakeStyles(StdoutRenderer()) })
	stderrStyles = sync.OnceValue(func() Styles { return MakeStyles(StderrRenderer()) })
)

// StdoutRenderer returns the lipgloss renderer bound to stdout.
func StdoutRenderer() *lipgloss.Renderer { return stdoutRenderer() }

// StderrRenderer returns the lipgloss renderer bound to stderr.
func StderrRenderer() *lipgloss.Renderer { return stderrRenderer() }

// StdoutStyles returns the shared styles for stdout.
func StdoutStyles() Styles { return stdoutStyles() }

// StderrStyles returns the shared styles for stderr, where diagnostics and
// the TUIs go.
func StderrStyles() Styles { return stderrStyles() }
