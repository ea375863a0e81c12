package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dotcommander/courtside/internal/errs"
	imcp "github.com/dotcommander/courtside/internal/mcp"
	"github.com/dotcommander/courtside/internal/server"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the agents, the team and the report workflow over HTTP",
		Long: "Serve the agents, the team and the game report workflow over HTTP. " +
			"The built-in tools are also exposed to MCP clients under /mcp.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if rt.cfgErr != nil {
				return rt.cfgErr
			}
			if addr == "" {
				addr = rt.cfg.Server.Addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return rt.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", flagDesc("addr"))
	return cmd
}

func (rt *runtime) serve(ctx context.Context, addr string) error {
	svc, err := rt.openServices(ctx, needs{memory: true, knowledge: true})
	if err != nil {
		return err
	}
	defer svc.Close() //nolint:errcheck

	archive, err := svc.archive()
	if err != nil {
		return err
	}
	defer archive.Close() //nolint:errcheck

	t, runner := svc.team(ctx)
	mcpSrv, err := imcp.NewServer(svc.registry(), svc.version, svc.log)
	if err != nil {
		return errs.Wrap(err, "Could not build the MCP server.")
	}

	api := server.New(t, runner, svc.workflow(nil),
		server.WithArchive(archive),
		server.WithCORSOrigins(rt.cfg.Server.CORSOrigins),
		server.WithLogger(svc.log),
		server.WithVersion(svc.version),
		server.WithModel(svc.main.ModelID),
		server.WithMCP(imcp.HTTPHandler(mcpSrv)),
	)
	if err := api.ListenAndServe(ctx, addr); err != nil {
		return errs.Error{Err: err, Reason: "The API server stopped.", Code: errs.CodeGeneric}
	}
	return nil
}
