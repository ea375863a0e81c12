package cmd

import (
	"cmp"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/present"
	"github.com/dotcommander/courtside/internal/tools"
)

func newToolsCmd(rt *runtime) *cobra.Command {
	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the tools the agents can call",
	}
	toolsCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List the built-in tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			svc, err := rt.openServices(cmd.Context(), needs{knowledge: true})
			if err != nil {
				return err
			}
			defer svc.Close() //nolint:errcheck
			printTools(svc.registry())
			return nil
		},
	})
	return toolsCmd
}

func printTools(r *tools.Registry) {
	styles := present.StdoutStyles()
	for _, t := range r.List() {
		fmt.Printf("%s\n  %s\n", styles.Flag.Render(t.Name()), styles.Comment.Render(t.Description()))
		for _, p := range t.Params() {
			req := ""
			if p.Required {
				req = " (required)"
			}
			typ := string(p.Type)
			if p.Type == tools.Array {
				typ = "[]" + string(cmp.Or(p.Items, tools.String))
			}
			fmt.Printf("    %s %s%s\n", styles.InlineCode.Render(p.Name), styles.FlagDesc.Render(typ), req)
		}
	}
}
