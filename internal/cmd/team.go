package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/present"
	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/team"
)

func newTeamCmd(rt *runtime) *cobra.Command {
	teamCmd := &cobra.Command{
		Use:   "team",
		Short: "Run the data analysis team or one of its agents",
	}
	teamCmd.AddCommand(newTeamRunCmd(rt), newTeamListCmd(rt))
	return teamCmd
}

func newTeamRunCmd(rt *runtime) *cobra.Command {
	var session, agentID string
	cmd := &cobra.Command{
		Use:   "run [message]",
		Short: "Send one message to the team and print the answer",
		Long:  "Send one message to the team and print the answer. The message is read from STDIN when no arguments are given.",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			msg := strings.TrimSpace(strings.Join(args, " "))
			if msg == "" {
				in, err := readStdin()
				if err != nil {
					return errs.Wrap(err, "Could not read STDIN.")
				}
				msg = strings.TrimSpace(in)
			}
			if msg == "" {
				return errs.Error{
					Reason: "You haven't provided a message.",
					Err: errs.UserErrorf(
						"Give the message as arguments and/or pipe it from STDIN.\nExample: %s",
						present.StdoutStyles().InlineCode.Render(`courtside team run "who led the Rockets in scoring?"`),
					),
					Code: errs.CodeUsage,
				}
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.runTeam(ctx, agentID, team.Input{SessionID: session, UserID: rt.cfg.User, Message: msg})
		},
	}
	cmd.Flags().StringVarP(&agentID, "agent", "A", "", "Run a single member agent instead of the team")
	cmd.Flags().StringVarP(&session, "session", "s", "", flagDesc("session"))
	cmd.Flags().StringVarP(&rt.cfg.User, "user", "u", rt.cfg.User, flagDesc("user"))
	cmd.Flags().BoolVarP(&rt.cfg.Raw, "raw", "r", rt.cfg.Raw, flagDesc("raw"))
	_ = cmd.RegisterFlagCompletionFunc("agent", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return memberIDs(), cobra.ShellCompDirectiveNoFileComp
	})
	return cmd
}

func (rt *runtime) runTeam(ctx context.Context, agentID string, in team.Input) error {
	svc, err := rt.openServices(ctx, needs{memory: true, knowledge: true})
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	t, runner := svc.team(ctx)
	pretty := present.Pretty(rt.cfg.Raw)
	if !pretty {
		in.OnChunk = func(s string) { fmt.Print(s) }
	}
	if !rt.cfg.Quiet {
		in.OnTool = func(s proto.ToolCallStatus) {
			fmt.Fprint(os.Stderr, present.StderrStyles().Comment.Render(strings.TrimSpace(s.String()))+"\n")
		}
	}

	var out *team.Output
	if agentID == "" {
		out, err = runner.RunTeam(ctx, t, in)
	} else {
		a, ok := t.Member(agentID)
		if !ok {
			return errs.Error{
				Reason: fmt.Sprintf("Unknown agent %q.", agentID),
				Err:    errs.UserErrorf("Agents: %s", strings.Join(memberIDs(), ", ")),
				Code:   errs.CodeUsage,
			}
		}
		out, err = runner.RunAgent(ctx, a, in)
	}
	if err != nil {
		return errs.Wrap(err, "The team could not answer.")
	}

	if pretty {
		content := out.Content
		if formatted, ferr := present.RenderMarkdownForTTY(content, rt.cfg.WordWrap); ferr == nil {
			content = formatted
		}
		fmt.Print(content)
	} else if !strings.HasSuffix(out.Content, "\n") {
		fmt.Println()
	}
	if !rt.cfg.Quiet {
		fmt.Fprintln(os.Stderr, present.StderrStyles().Comment.Render("session "+out.SessionID))
	}
	return nil
}

func newTeamListCmd(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the team and its agents",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			svc := &services{cfg: &rt.cfg}
			if err := svc.resolveProviders(); err != nil {
				return err
			}
			t := team.Assemble(team.Deps{Model: svc.main, Reasoning: svc.reasoning})
			styles := present.StdoutStyles()
			fmt.Printf("%s %s\n", styles.Flag.Render(t.ID), styles.Comment.Render(t.Model.String()))
			for _, m := range t.Members {
				fmt.Printf("  %s %s\n", styles.Flag.Render(m.ID), styles.Comment.Render(m.Description))
			}
			return nil
		},
	}
}

func memberIDs() []string {
	return []string{team.DataAgentID, team.AnalystAgentID, team.VisualizationAgentID, team.GameReportAgentID}
}
