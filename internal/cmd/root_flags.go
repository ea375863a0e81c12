package cmd

import (
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/present"
	"github.com/dotcommander/courtside/internal/stats"
)

func flagDesc(name string) string {
	return present.StdoutStyles().FlagDesc.Render(helpText[name])
}

// initPersistentFlags registers the flags every subcommand shares.
func initPersistentFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&cfg.Provider, "provider", cfg.Provider, flagDesc("provider"))
	flags.StringVar(&cfg.ReasoningProvider, "reasoning-provider", cfg.ReasoningProvider, flagDesc("reasoning-provider"))
	flags.BoolVarP(&cfg.Quiet, "quiet", "q", cfg.Quiet, flagDesc("quiet"))
	flags.BoolVar(&cfg.Verbose, "verbose", false, flagDesc("verbose"))
	flags.IntVar(&cfg.WordWrap, "word-wrap", cfg.WordWrap, flagDesc("word-wrap"))
	flags.StringVar(&cfg.Theme, "theme", "charm", flagDesc("theme"))
	flags.StringArrayVar(&cfg.MCPDisable, "mcp-disable", cfg.MCPDisable, flagDesc("mcp-disable"))
	flags.BoolVar(&memprofile, "memprofile", false, "Write memory profiles to CWD")
	_ = flags.MarkHidden("memprofile")
	flags.SortFlags = false

	_ = cmd.RegisterFlagCompletionFunc("provider", func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return providerNames(cfg, toComplete), cobra.ShellCompDirectiveNoFileComp
	})
}

// initReportFlags registers the flags of the report command.
func initReportFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	flags.StringVarP(&cfg.Report.Date, "date", "d", cfg.Report.Date, flagDesc("date"))
	flags.StringVar(&cfg.Report.HomeTeam, "home-team", cfg.Report.HomeTeam, flagDesc("home-team"))
	flags.StringVar(&cfg.Report.AwayTeam, "away-team", cfg.Report.AwayTeam, flagDesc("away-team"))
	flags.BoolVarP(&cfg.Ask, "ask", "a", false, flagDesc("ask"))
	flags.BoolVar(&cfg.Fetch.Browser, "browser", cfg.Fetch.Browser, flagDesc("browser"))
	flags.BoolVarP(&cfg.Copy, "copy", "c", false, flagDesc("copy"))
	flags.BoolVar(&cfg.Report.NoSave, "no-save", cfg.Report.NoSave, flagDesc("no-save"))
	flags.BoolVarP(&cfg.Raw, "raw", "r", cfg.Raw, flagDesc("raw"))
	flags.SortFlags = false

	for _, name := range []string{"home-team", "away-team"} {
		_ = cmd.RegisterFlagCompletionFunc(name, func(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
			return teamCodes(toComplete), cobra.ShellCompDirectiveNoFileComp
		})
	}
}

func teamCodes(prefix string) []string {
	prefix = strings.ToUpper(prefix)
	var out []string
	for _, t := range stats.Teams {
		if strings.HasPrefix(t.Code, prefix) {
			out = append(out, t.Code+"\t"+t.Name)
		}
	}
	return out
}

func providerNames(cfg *config.Config, prefix string) []string {
	var out []string
	for name := range cfg.Catalog {
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}
