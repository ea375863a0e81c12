package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/dotcommander/courtside/internal/logging"
	"github.com/dotcommander/courtside/internal/tools"
)

// ServerName is the implementation name announced to MCP clients.
const ServerName = "courtside"

const serverInstructions = "Basketball data tools: play-by-play tables for a game, " +
	"team shooting statistics and clusters for a season, knowledge base search and " +
	"full game reports."

// NewServer exposes every tool in registry over MCP.
func NewServer(registry *tools.Registry, version string, log *logging.Logger) (*server.MCPServer, error) {
	log = logging.OrNop(log)
	s := server.NewMCPServer(
		ServerName,
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)
	for _, t := range registry.List() {
		schema, err := json.Marshal(tools.Schema(t.Params()))
		if err != nil {
			return nil, fmt.Errorf("mcp schema for %s: %w", t.Name(), err)
		}
		s.AddTool(
			mcp.NewToolWithRawSchema(t.Name(), t.Description(), schema),
			handler(registry, t.Name(), log),
		)
	}
	return s, nil
}

func handler(registry *tools.Registry, name string, log *logging.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return nil, fmt.Errorf("encode arguments: %w", err)
		}
		out, err := registry.Call(ctx, name, raw)
		if err != nil {
			log.Warnw("mcp tool failed", "tool", name, "error", err)
			return mcp.NewToolResultError(err.Error()), nil
		}
		log.Debugw("mcp tool called", "tool", name, "bytes", len(out))
		return mcp.NewToolResultText(out), nil
	}
}

// ServeStdio serves s on in/out until ctx is done or in is closed.
func ServeStdio(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, in, out)
}

// HTTPHandler serves s over the streamable HTTP transport.
func HTTPHandler(s *server.MCPServer) http.Handler {
	return server.NewStreamableHTTPServer(s)
}
