package cmd

import (
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/duration"
)

var helpText = map[string]string{
	"date":               "Game date as YYYYMMDD",
	"home-team":          "Three letter code of the home team",
	"away-team":          "Three letter code of the away team",
	"ask":                "Pick the game interactively",
	"provider":           "Model family, catalog entry or model id every agent binds to",
	"reasoning-provider": "Provider used for reasoning steps",
	"browser":            "Fetch pages with a headless Chrome",
	"copy":               "Copy the report to the clipboard",
	"no-save":            "Don't archive the report",
	"raw":                "Print the report as plain markdown",
	"quiet":              "Quiet mode (hide the progress view)",
	"verbose":            "Log at debug level",
	"word-wrap":          "Wrap formatted output at specific width",
	"theme":              "Form theme: charm, dracula, catppuccin or base16",
	"mcp-disable":        "Disable specific MCP servers",
	"help":               "Show help and exit",
	"version":            "Show version and exit",
	"session":            "Session to continue",
	"user":               "User id memories are stored under",
	"addr":               "Address the API listens on",
	"limit":              "Maximum number of results",
	"older-than":         "Age of the reports to delete, e.g. 24h or 7d",
}

type durationFlag time.Duration

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d = durationFlag(v)
	//nolint: wrapcheck
	return err
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}

var (
	shorthandFlagRe   = regexp.MustCompile(`unknown shorthand flag: '.*' in (-\w)`)
	invalidArgumentRe = regexp.MustCompile(`invalid argument ".*" for "(.*)" flag: .*`)
)

// flagParseError is a pflag error with the offending flag pulled out so it
// can be highlighted.
type flagParseError struct {
	err    error
	reason string
	flag   string
}

func newFlagParseError(err error) flagParseError {
	var reason, flag string
	s := err.Error()
	switch {
	case strings.HasPrefix(s, "flag needs an argument:"):
		reason = "Flag %s needs an argument."
		ps := strings.Split(s, "-")
		switch len(ps) {
		case 2: //nolint:mnd
			flag = "-" + ps[len(ps)-1]
		case 3: //nolint:mnd
			flag = "--" + ps[len(ps)-1]
		}
	case strings.HasPrefix(s, "unknown flag:"):
		reason = "Flag %s is missing."
		flag = strings.TrimPrefix(s, "unknown flag: ")
	case strings.HasPrefix(s, "unknown shorthand flag:"):
		reason = "Short flag %s is missing."
		if parts := shorthandFlagRe.FindStringSubmatch(s); len(parts) > 1 {
			flag = parts[1]
		}
	case strings.HasPrefix(s, "invalid argument"):
		reason = "Flag %s have an invalid argument."
		if parts := invalidArgumentRe.FindStringSubmatch(s); len(parts) > 1 {
			flag = parts[1]
		}
	default:
		reason = s
	}
	return flagParseError{err: err, reason: reason, flag: flag}
}

func (f flagParseError) Error() string {
	return f.err.Error()
}

func (f flagParseError) ReasonFormat() string {
	return f.reason
}

func (f flagParseError) Flag() string {
	return f.flag
}

// ExitCode implements errs.Coder.
func (flagParseError) ExitCode() int { return 2 }
