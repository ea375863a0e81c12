package cmd

import (
	"io"
	"os"

	"github.com/dotcommander/courtside/internal/present"
)

// maxStdin caps how much piped input a message may carry.
const maxStdin = 1 << 20

func drainStdin() {
	if present.IsInputTTY() {
		return
	}
	_, _ = io.Copy(io.Discard, os.Stdin)
}

// readStdin returns piped input, or "" when stdin is a terminal.
func readStdin() (string, error) {
	if present.IsInputTTY() {
		return "", nil
	}
	b, err := io.ReadAll(io.LimitReader(os.Stdin, maxStdin))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
