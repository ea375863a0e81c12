package present

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const defaultAction = "SAVED"

var outputHeader = lipgloss.NewStyle().Foreground(lipgloss.Color("#F1F1F1")).Background(lipgloss.Color("#6C50FF")).Bold(true).Padding(0, 1).MarginRight(1)

// Confirmation renders a short action header plus content.
func Confirmation(action, content string) string {
	if action == "" {
		action = defaultAction
	}
	header := outputHeader.SetString(strings.ToUpper(action))
	return lipgloss.JoinHorizontal(lipgloss.Center, header.String(), content)
}

// PrintConfirmation prints Confirmation(action, content) to stdout.
func PrintConfirmation(action, content string) {
	fmt.Println(Confirmation(action, content))
}
