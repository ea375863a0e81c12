package cmd

import (
	"math/rand"
	"regexp"

	"github.com/dotcommander/courtside/internal/present"
)

var examples = map[string]string{
	"Write the report of a game":      `courtside --date 20250115 --home-team HOU --away-team DAL`,
	"Pick the game from a form":       `courtside --ask`,
	"Ask the team a question":         `courtside team run "which teams shoot the most threes?" | glow`,
	"Load the glossary and search it": `courtside knowledge load && courtside knowledge search "true shooting"`,
	"Save a raw report for later":     `courtside -d 20250115 --home-team BOS --away-team NYK --raw > game.md`,
}

func randomExample() string {
	keys := make([]string, 0, len(examples))
	for k := range examples {
		keys = append(keys, k)
	}
	desc := keys[rand.Intn(len(keys))] //nolint:gosec
	return desc
}

func cheapHighlighting(s present.Styles, code string) string {
	code = regexp.
		MustCompile(`"([^"\\]|\\.)*"`).
		ReplaceAllStringFunc(code, func(x string) string {
			return s.Quote.Render(x)
		})
	code = regexp.
		MustCompile(`\||&&|>`).
		ReplaceAllStringFunc(code, func(x string) string {
			return s.Pipe.Render(x)
		})
	return code
}
