package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/knowledge"
	"github.com/dotcommander/courtside/internal/present"
)

func newKnowledgeCmd(rt *runtime) *cobra.Command {
	knowledgeCmd := &cobra.Command{
		Use:   "knowledge",
		Short: "Load and search the basketball knowledge base",
	}

	knowledgeCmd.AddCommand(&cobra.Command{
		Use:   "load [url]",
		Short: "Crawl a website into the knowledge base",
		Long:  "Crawl a website into the knowledge base. Pages already loaded are skipped. Defaults to the configured source URL.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			url := rt.cfg.Knowledge.SourceURL
			if len(args) == 1 {
				url = args[0]
			}
			return rt.withKnowledge(cmd.Context(), func(kb *knowledge.Base) error {
				res, err := kb.Load(cmd.Context(), url)
				if err != nil {
					return errs.Wrapf(err, "Could not load %s.", url)
				}
				if !rt.cfg.Quiet {
					present.PrintConfirmation("LOADED", fmt.Sprintf(
						"%d pages, %d chunks (%d skipped)", res.Pages, res.Chunks, res.Skipped))
				}
				return nil
			})
		},
	})

	var limit int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			query := strings.Join(args, " ")
			return rt.withKnowledge(cmd.Context(), func(kb *knowledge.Base) error {
				hits, err := kb.Search(cmd.Context(), query, limit)
				if err != nil {
					return errs.Wrap(err, "Could not search the knowledge base.")
				}
				if len(hits) == 0 {
					fmt.Fprintln(os.Stderr, "No matches.")
					return nil
				}
				out := knowledge.Format(hits)
				if present.Pretty(rt.cfg.Raw) {
					if formatted, ferr := present.RenderMarkdownForTTY(out, rt.cfg.WordWrap); ferr == nil {
						out = formatted
					}
				}
				fmt.Println(out)
				return nil
			})
		},
	}
	searchCmd.Flags().IntVarP(&limit, "limit", "n", 5, flagDesc("limit"))
	knowledgeCmd.AddCommand(searchCmd)

	return knowledgeCmd
}

func (rt *runtime) withKnowledge(ctx context.Context, fn func(*knowledge.Base) error) error {
	if !rt.cfg.Knowledge.Enabled {
		return errs.Error{
			Reason: "The knowledge base is disabled.",
			Err: errs.UserErrorf(
				"Set %s in the settings file or export %s.",
				present.StderrStyles().InlineCode.Render("knowledge.enabled: true"),
				present.StderrStyles().InlineCode.Render("COURTSIDE_KNOWLEDGE_ENABLED=true"),
			),
			Code: errs.CodeConfig,
		}
	}
	svc, err := rt.openServices(ctx, needs{knowledge: true})
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck
	return fn(svc.knowledge)
}
