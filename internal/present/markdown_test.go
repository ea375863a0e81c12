package present

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/require"
)

func TestRenderMarkdownForTTY(t *testing.T) {
	out, err := RenderMarkdownForTTY("hello\tworld\n", 80)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(out, "\n"))
	require.False(t, strings.Contains(out, "\t"))
}

func TestRenderMarkdownTheme(t *testing.T) {
	out, err := RenderMarkdown("## Rockets 112, Magic 108\n", "notty", 60)
	require.NoError(t, err)
	require.Contains(t, out, "Rockets 112, Magic 108")

	_, err = RenderMarkdown("x", "no-such-theme", 60)
	require.Error(t, err)
}

func TestConfirmation(t *testing.T) {
	out := Confirmation("", "ORL @ HOU, 20251116")
	require.Contains(t, out, "SAVED")
	require.Contains(t, out, "ORL @ HOU, 20251116")
	require.Contains(t, Confirmation("deleted", "x"), "DELETED")
}

func TestGradient(t *testing.T) {
	require.Len(t, MakeGradientRamp(5), 5)
	require.Equal(t, "ab", MakeGradientText(lipgloss.NewStyle(), "ab"))
	require.Contains(t, MakeGradientText(lipgloss.NewStyle(), "courtside"), "c")
}

func TestPrettyRespectsRaw(t *testing.T) {
	require.False(t, Pretty(true))
	require.Equal(t, IsOutputTTY(), Pretty(false))
}
