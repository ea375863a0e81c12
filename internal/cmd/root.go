package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	glamour "github.com/charmbracelet/glamour/styles"
	"github.com/charmbracelet/huh"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/present"
	"github.com/dotcommander/courtside/internal/report"
	"github.com/dotcommander/courtside/internal/stats"
	"github.com/dotcommander/courtside/internal/storage"
	"github.com/dotcommander/courtside/internal/tui"
)

type runtime struct {
	build  BuildInfo
	cfg    config.Config
	cfgErr error
}

// NewRootCmd constructs the Cobra root command.
func NewRootCmd(build BuildInfo, cfg config.Config, cfgErr error) *cobra.Command {
	// XXX: unset error styles in Glamour dark and light styles.
	glamour.DarkStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)
	glamour.LightStyleConfig.CodeBlock.Chroma.Error.BackgroundColor = new(string)

	rt := &runtime{build: normalizeBuildInfo(build), cfg: cfg, cfgErr: cfgErr}

	rootCmd := &cobra.Command{
		Use:           "courtside",
		Short:         "Basketball game reports and analysis from the command line.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		Example:       randomExample(),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runReport(ctx)
		},
	}

	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return newFlagParseError(err)
	})

	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	rootCmd.Version = rt.build.Version
	rootCmd.SetVersionTemplate(versionTemplate(rt.build))

	initPersistentFlags(rootCmd, &rt.cfg)
	initReportFlags(rootCmd, &rt.cfg)

	rootCmd.AddCommand(
		newServeCmd(rt),
		newChatCmd(rt),
		newTeamCmd(rt),
		newToolsCmd(rt),
		newKnowledgeCmd(rt),
		newHistoryCmd(rt),
		newConfigCmd(rt),
		newMCPCmd(rt),
		newManCmd(rootCmd),
		newUpgradeCmd(rt),
	)

	return rootCmd
}

func (rt *runtime) runReport(ctx context.Context) error {
	cfg := &rt.cfg
	drainStdin()

	if cfg.Ask {
		if !present.IsInputTTY() {
			return errs.Error{Reason: "--ask needs a terminal.", Code: errs.CodeUsage}
		}
		if err := askGame(cfg); err != nil {
			if err == huh.ErrUserAborted {
				return errs.Error{Err: err, Reason: "User canceled."}
			}
			return errs.Error{Err: err, Reason: "Prompt failed."}
		}
	}

	req := report.Request{Date: cfg.Report.Date, HomeTeam: cfg.Report.HomeTeam, AwayTeam: cfg.Report.AwayTeam}
	if err := req.Key().Validate(); err != nil {
		return errs.Error{Err: err, Reason: "Invalid game.", Code: errs.CodeUsage}
	}
	if strings.TrimSpace(req.AwayTeam) == "" {
		return errs.Error{Reason: "The away team is required.", Code: errs.CodeUsage}
	}

	svc, err := rt.openServices(ctx, needs{})
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	interactive := present.Pretty(cfg.Raw)
	var res *report.Result
	if interactive && present.IsErrorTTY() {
		res, err = rt.runProgress(ctx, svc, req)
	} else {
		res, err = svc.workflow(nil).Run(ctx, req)
		if err != nil {
			err = report.UserError(err)
		}
	}
	if err != nil {
		return err
	}

	out := res.Report
	if interactive {
		if formatted, ferr := present.RenderMarkdownForTTY(out, cfg.WordWrap); ferr == nil {
			out = formatted
		}
	}
	fmt.Print(out)
	if !strings.HasSuffix(out, "\n") {
		fmt.Println()
	}

	if cfg.Copy {
		_ = clipboard.WriteAll(res.Report)
		termenv.Copy(res.Report)
		if !cfg.Quiet {
			fmt.Fprintln(os.Stderr, present.Confirmation("COPIED", req.Title()))
		}
	}
	return rt.saveReport(svc, res)
}

func (rt *runtime) runProgress(ctx context.Context, svc *services, req report.Request) (*report.Result, error) {
	run := func(ctx context.Context, obs report.Observer, onChunk func(string)) (*report.Result, error) {
		return svc.workflow(onChunk).Run(ctx, req, obs)
	}
	p := tui.NewProgress(ctx, present.StderrRenderer(), tui.ProgressOptions{
		Title:    req.Title(),
		WordWrap: rt.cfg.WordWrap,
		Quiet:    rt.cfg.Quiet,
	}, run)

	m, err := tea.NewProgram(p, tea.WithOutput(os.Stderr), tea.WithContext(ctx)).Run()
	if err != nil {
		return nil, errs.Error{Err: err, Reason: "Couldn't start Bubble Tea program."}
	}
	p = m.(*tui.Progress)
	if p.Error != nil {
		return nil, *p.Error
	}
	return p.Result, nil
}

func (rt *runtime) saveReport(svc *services, res *report.Result) error {
	cfg := &rt.cfg
	if cfg.Report.NoSave {
		return nil
	}
	archive, err := svc.archive()
	if err != nil {
		return err
	}
	defer archive.Close() //nolint:errcheck

	entry, err := archive.Put(entryFor(res, svc.main.ModelID), res.Report)
	if err != nil {
		return errs.Wrap(err, fmt.Sprintf(
			"There was a problem archiving the report. Use %s to disable it.",
			present.StderrStyles().InlineCode.Render("--no-save"),
		))
	}
	if !cfg.Quiet {
		fmt.Fprintln(
			os.Stderr,
			"\nReport saved:",
			present.StderrStyles().InlineCode.Render(storage.ShortID(entry.ID)),
			present.StderrStyles().Comment.Render(entry.Title),
		)
	}
	return nil
}

func entryFor(res *report.Result, model string) storage.Entry {
	key := res.Request.Key()
	return storage.Entry{
		Title:    res.Request.Title(),
		Date:     key.Date,
		HomeTeam: key.HomeTeam,
		AwayTeam: strings.ToUpper(strings.TrimSpace(res.Request.AwayTeam)),
		Model:    model,
		RunID:    res.RunID,
	}
}

// askGame is the interactive form that picks the teams and the date.
func askGame(cfg *config.Config) error {
	teams := make([]huh.Option[string], 0, len(stats.Teams))
	for _, t := range stats.Teams {
		teams = append(teams, huh.NewOption(t.Code+"  "+t.Name, t.Code))
	}
	if err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Home team:").
				Options(teams...).
				Value(&cfg.Report.HomeTeam),
			huh.NewSelect[string]().
				Title("Away team:").
				Options(teams...).
				Value(&cfg.Report.AwayTeam),
			huh.NewInput().
				Title("Game date (YYYYMMDD):").
				Value(&cfg.Report.Date).
				Validate(func(s string) error {
					return stats.GameKey{Date: s, HomeTeam: cfg.Report.HomeTeam}.Validate()
				}),
		),
	).
		WithTheme(themeFrom(cfg.Theme)).
		Run(); err != nil {
		return fmt.Errorf("game form: %w", err)
	}
	return nil
}

func themeFrom(theme string) *huh.Theme {
	switch theme {
	case "dracula":
		return huh.ThemeDracula()
	case "catppuccin":
		return huh.ThemeCatppuccin()
	case "base16":
		return huh.ThemeBase16()
	default:
		return huh.ThemeCharm()
	}
}
