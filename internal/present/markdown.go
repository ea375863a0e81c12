package present

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/charmbracelet/glamour"
)

const markdownTabWidth = 4

// NewMarkdownRenderer returns the glamour renderer used for reports. An empty
// theme follows GLAMOUR_STYLE, then the terminal background.
func NewMarkdownRenderer(theme string, wordWrap int) (*glamour.TermRenderer, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(wordWrap)}
	if theme == "" {
		opts = append(opts, glamour.WithEnvironmentConfig())
	} else {
		opts = append(opts, glamour.WithStandardStyle(theme))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return nil, fmt.Errorf("new markdown renderer: %w", err)
	}
	return r, nil
}

// RenderMarkdownForTTY renders markdown for terminal output.
//
// It matches the TUI's rendering so `history show` prints reports the way
// they looked when generated.
func RenderMarkdownForTTY(input string, wordWrap int) (string, error) {
	return RenderMarkdown(input, "", wordWrap)
}

// RenderMarkdown renders input with the given glamour theme.
func RenderMarkdown(input, theme string, wordWrap int) (string, error) {
	r, err := NewMarkdownRenderer(theme, wordWrap)
	if err != nil {
		return "", err
	}
	out, err := r.Render(input)
	if err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return TidyRendered(out) + "\n", nil
}

// TidyRendered trims trailing space and expands tabs in glamour output.
func TidyRendered(out string) string {
	out = strings.TrimRightFunc(out, unicode.IsSpace)
	return strings.ReplaceAll(out, "\t", strings.Repeat(" ", markdownTabWidth))
}
