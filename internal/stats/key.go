// Package stats fetches play-by-play tables and encodes them for LLM prompts.
package stats

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the box-score site play-by-play pages are fetched from.
const DefaultBaseURL = "https://www.basketball-reference.com"

// DateLayout is the YYYYMMDD layout used by the site and the CLI.
const DateLayout = "20060102"

// GameKey identifies one published play-by-play page.
//
// The away team is deliberately absent: the site keys games by date and
// home team only.
type GameKey struct {
	Date     string
	HomeTeam string
}

// Validate checks the key's format. It does not check that a game exists.
func (k GameKey) Validate() error {
	if _, err := time.Parse(DateLayout, k.Date); err != nil {
		return fmt.Errorf("invalid date %q: want YYYYMMDD", k.Date)
	}
	if n := len(k.HomeTeam); n < 2 || n > 3 {
		return fmt.Errorf("invalid team code %q: want 2 or 3 letters", k.HomeTeam)
	}
	for _, r := range k.HomeTeam {
		if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
			return fmt.Errorf("invalid team code %q: want 2 or 3 letters", k.HomeTeam)
		}
	}
	return nil
}

// Normalize upper-cases the team code and trims whitespace.
func (k GameKey) Normalize() GameKey {
	return GameKey{
		Date:     strings.TrimSpace(k.Date),
		HomeTeam: strings.ToUpper(strings.TrimSpace(k.HomeTeam)),
	}
}

func (k GameKey) String() string {
	return k.Date + "0" + k.HomeTeam
}

// PlayByPlayURL builds the page URL for a game. The "0" between date and
// team is part of the site's naming convention.
func PlayByPlayURL(base string, k GameKey) string {
	if base == "" {
		base = DefaultBaseURL
	}
	return strings.TrimRight(base, "/") + "/boxscores/pbp/" + url.PathEscape(k.Date+"0"+k.HomeTeam) + ".html"
}
