package cmd

import (
	"fmt"
	"os"

	mcobra "github.com/muesli/mango-cobra"
	"github.com/muesli/roff"
	"github.com/spf13/cobra"
)

func newManCmd(root *cobra.Command) *cobra.Command {
	return &cobra.Command{
		Use:                   "man",
		Short:                 "Generates manpages",
		SilenceUsage:          true,
		DisableFlagsInUseLine: true,
		Hidden:                true,
		Args:                  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			manPage, err := mcobra.NewManPage(1, root)
			if err != nil {
				return fmt.Errorf("build man page: %w", err)
			}
			manPage = manPage.
				WithSection("Exit Status", manExitStatus).
				WithSection("Files", manFiles)
			_, err = fmt.Fprint(os.Stdout, manPage.Build(roff.NewDocument()))
			if err != nil {
				return fmt.Errorf("write man page: %w", err)
			}
			return nil
		},
	}
}

const manExitStatus = `0 on success.
1 on any other failure.
2 on invalid flags or arguments, e.g. a malformed date or team code.
3 when the play-by-play page could not be fetched.
4 when the page had no play-by-play table, including a 404 for the game.
5 when the model failed to write the report.
6 on configuration errors.`

const manFiles = `~/.config/courtside/courtside.yml holds the settings; every key can be overridden by a COURTSIDE_ environment variable.
~/.config/courtside/cache/reports holds the report archive unless cache-path is set.
~/.config/courtside/cache/courtside.db is the default memory store.
~/.config/courtside/instructions/<agent>.md overrides an agent's instructions.`
