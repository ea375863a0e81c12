package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/present"
	"github.com/dotcommander/courtside/internal/team"
	"github.com/dotcommander/courtside/internal/tui"
)

func newChatCmd(rt *runtime) *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "chat [initial prompt]",
		Short: "Start an interactive chat with the data analysis team",
		Long:  "Start an interactive conversation with the data analysis team. Type /exit or press Ctrl+C to quit.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if !present.IsInputTTY() {
				return errs.Error{
					Reason: "chat needs a terminal.",
					Err:    errs.UserErrorf("Use %s to send a single message.", present.StderrStyles().InlineCode.Render("courtside team run")),
					Code:   errs.CodeUsage,
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runChat(ctx, session, strings.TrimSpace(strings.Join(args, " ")))
		},
	}
	cmd.Flags().StringVarP(&session, "session", "s", "", flagDesc("session"))
	cmd.Flags().StringVarP(&rt.cfg.User, "user", "u", rt.cfg.User, flagDesc("user"))
	return cmd
}

func (rt *runtime) runChat(ctx context.Context, session, prompt string) error {
	svc, err := rt.openServices(ctx, needs{memory: true, knowledge: true})
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	t, runner := svc.team(ctx)
	turn := func(ctx context.Context, in team.Input) (*team.Output, error) {
		return runner.RunTeam(ctx, t, in)
	}
	chat := tui.NewChat(ctx, present.StderrRenderer(), tui.ChatOptions{
		SessionID: session,
		UserID:    rt.cfg.User,
		WordWrap:  rt.cfg.WordWrap,
		Quiet:     rt.cfg.Quiet,
		Prompt:    prompt,
	}, turn)

	m, err := tea.NewProgram(chat, tea.WithAltScreen(), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return errs.Wrap(err, "Couldn't start chat program.")
	}
	c := m.(*tui.Chat)
	if c.Error != nil {
		return *c.Error
	}
	if c.SessionID() != "" && !rt.cfg.Quiet {
		fmt.Fprintln(
			os.Stderr,
			"Session:",
			present.StderrStyles().InlineCode.Render(c.SessionID()),
			present.StderrStyles().Comment.Render("(continue with --session)"),
		)
	}
	return nil
}
