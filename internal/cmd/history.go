package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	timeago "github.com/caarlos0/timea.go"
	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/present"
	"github.com/dotcommander/courtside/internal/storage"
)

func newHistoryCmd(rt *runtime) *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Manage archived game reports",
	}

	historyCmd.AddCommand(newHistoryListCmd(rt))
	historyCmd.AddCommand(newHistoryShowCmd(rt))
	historyCmd.AddCommand(newHistoryDeleteCmd(rt))
	historyCmd.AddCommand(newHistoryPruneCmd(rt))

	return historyCmd
}

func newHistoryListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List archived reports",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return listReports(&rt.cfg, rt.cfg.Raw)
		},
	}
}

func newHistoryShowCmd(rt *runtime) *cobra.Command {
	var last bool
	showCmd := &cobra.Command{
		Use:   "show [id-or-title]",
		Short: "Show an archived report",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			drainStdin()
			var ref string
			if len(args) == 1 {
				ref = args[0]
			}
			if ref == "" && !last {
				return errs.Error{
					Reason: "Nothing to show.",
					Err:    errs.UserErrorf("Give a report id or title, or use %s.", present.StderrStyles().InlineCode.Render("--last")),
					Code:   errs.CodeUsage,
				}
			}
			return showReport(&rt.cfg, ref)
		},
		ValidArgsFunction: rt.completeReports,
	}
	showCmd.Flags().BoolVarP(&last, "last", "S", false, "Show the last archived report")
	return showCmd
}

func newHistoryDeleteCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id-or-title> [more...]",
		Short: "Delete archived reports",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return deleteReports(&rt.cfg, args)
		},
		ValidArgsFunction: rt.completeReports,
	}
}

func newHistoryPruneCmd(rt *runtime) *cobra.Command {
	var olderThan time.Duration
	pruneCmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete reports older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			return pruneReports(&rt.cfg, olderThan)
		},
	}
	pruneCmd.Flags().Var(newDurationFlag(olderThan, &olderThan), "older-than", flagDesc("older-than"))
	return pruneCmd
}

func openArchive(cfg *config.Config) (*storage.Archive, error) {
	a, err := storage.OpenArchive(cfg.ReportsDir())
	if err != nil {
		return nil, errs.Wrap(err, "Could not open the report archive.")
	}
	return a, nil
}

func (rt *runtime) completeReports(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	a, err := openArchive(&rt.cfg)
	if err != nil {
		return nil, cobra.ShellCompDirectiveError
	}
	defer a.Close() //nolint:errcheck
	return a.Completions(toComplete), cobra.ShellCompDirectiveNoFileComp
}

func listReports(cfg *config.Config, raw bool) error {
	a, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	entries := a.List()
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No reports found.")
		return nil
	}
	if present.IsInputTTY() && present.Pretty(raw) {
		selectFromList(cfg, entries)
		return nil
	}
	printList(entries)
	return nil
}

// showReport prints the report ref resolves to; an empty ref is the newest.
func showReport(cfg *config.Config, ref string) error {
	a, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	var e *storage.Entry
	if ref == "" {
		e, err = a.FindHEAD()
	} else {
		e, err = a.Find(ref)
	}
	if err != nil {
		return errs.Error{Err: err, Reason: "Could not find the report."}
	}
	md, err := a.Read(e.ID)
	if err != nil {
		return errs.Wrap(err, "Could not read the report.")
	}

	if present.Pretty(cfg.Raw) {
		if formatted, ferr := present.RenderMarkdownForTTY(md, cfg.WordWrap); ferr == nil {
			md = formatted
		}
	}
	fmt.Print(md)
	if !strings.HasSuffix(md, "\n") {
		fmt.Println()
	}
	return nil
}

func deleteReports(cfg *config.Config, refs []string) error {
	a, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	for _, ref := range refs {
		e, err := a.Find(ref)
		if err != nil {
			return errs.Error{Err: err, Reason: "Could not find the report."}
		}
		if err := deleteReport(cfg, a, *e); err != nil {
			return err
		}
	}
	return nil
}

func deleteReport(cfg *config.Config, a *storage.Archive, e storage.Entry) error {
	if err := a.Remove(e.ID); err != nil {
		return errs.Wrap(err, "Couldn't delete report.")
	}
	if !cfg.Quiet {
		present.PrintConfirmation("DELETED", storage.ShortID(e.ID)+" "+e.Title)
	}
	return nil
}

func pruneReports(cfg *config.Config, olderThan time.Duration) error {
	if olderThan <= 0 {
		return errs.Error{
			Err:    errs.UserErrorf("missing --older-than"),
			Reason: "Could not delete old reports.",
			Code:   errs.CodeUsage,
		}
	}

	a, err := openArchive(cfg)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck

	entries := a.ListOlderThan(olderThan)
	if len(entries) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, "No reports found.")
		}
		return nil
	}

	if !cfg.Quiet {
		printList(entries)

		if !present.IsOutputTTY() || !present.IsInputTTY() {
			fmt.Fprintln(os.Stderr)
			//nolint:wrapcheck // user-facing guidance error
			return errs.UserErrorf(
				"To delete the reports above, run: %s",
				strings.Join(append(os.Args, "--quiet"), " "),
			)
		}
		var confirm bool
		if err := huh.Run(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete reports older than %s?", olderThan)).
				Description(fmt.Sprintf("This will delete all the %d reports listed above.", len(entries))).
				Value(&confirm),
		); err != nil {
			return errs.Wrap(err, "Couldn't delete old reports.")
		}
		if !confirm {
			//nolint:wrapcheck // user-facing abort
			return errs.UserErrorf("Aborted by user")
		}
	}

	removed, err := a.Prune(olderThan)
	if err != nil {
		return errs.Wrap(err, "Couldn't delete old reports.")
	}
	if !cfg.Quiet {
		for _, e := range removed {
			present.PrintConfirmation("DELETED", storage.ShortID(e.ID)+" "+e.Title)
		}
	}
	return nil
}

func makeOptions(entries []storage.Entry) []huh.Option[string] {
	styles := present.StdoutStyles()
	opts := make([]huh.Option[string], 0, len(entries))
	for _, e := range entries {
		timea := styles.Timeago.Render(timeago.Of(e.CreatedAt))
		left := styles.SHA.Render(storage.ShortID(e.ID))
		right := styles.ReportList.Render(e.Title, timea)
		if e.Model != "" {
			right += styles.Comment.Render(e.Model)
		}
		opts = append(opts, huh.NewOption(left+" "+right, e.ID))
	}
	return opts
}

func selectFromList(cfg *config.Config, entries []storage.Entry) {
	var selected string
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Reports").
				Value(&selected).
				Options(makeOptions(entries)...),
		),
	).WithTheme(themeFrom(cfg.Theme)).Run(); err != nil {
		if !errors.Is(err, huh.ErrUserAborted) {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		return
	}

	_ = clipboard.WriteAll(selected)
	termenv.Copy(selected)
	present.PrintConfirmation("COPIED", selected)

	fmt.Println(present.StdoutStyles().Comment.Render("You can use this report ID with the following commands:"))
	short := storage.ShortID(selected)
	suggestions := []string{
		"courtside history show " + short,
		"courtside history delete " + short,
	}
	for _, s := range suggestions {
		fmt.Printf("  %s\n", present.StdoutStyles().InlineCode.Render(s))
	}
}

func printList(entries []storage.Entry) {
	for _, e := range entries {
		_, _ = fmt.Fprintf(
			os.Stdout,
			"%s\t%s\t%s\n",
			present.StdoutStyles().SHA.Render(storage.ShortID(e.ID)),
			e.Title,
			present.StdoutStyles().Timeago.Render(timeago.Of(e.CreatedAt)),
		)
	}
}
