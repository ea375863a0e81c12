package mcp

import (
	"context"
	"errors"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/dotcommander/courtside/internal/config"
	"github.com/dotcommander/courtside/internal/tools"
)

func testRegistry() *tools.Registry {
	return tools.NewRegistry(
		tools.Func{
			ToolName:        "team_shooting",
			ToolDescription: "Team shooting for a season.",
			Parameters:      []tools.Param{{Name: "season", Type: tools.Integer, Required: true}},
			Fn: func(_ context.Context, a tools.Args) (string, error) {
				return "| Team | Season |\n| HOU | " + strconv.Itoa(a.Int("season", 0)) + " |", nil
			},
		},
		tools.Func{
			ToolName:        "broken",
			ToolDescription: "Always fails.",
			Fn: func(context.Context, tools.Args) (string, error) {
				return "", errors.New("upstream down")
			},
		},
	)
}

func TestServer(t *testing.T) {
	ctx := context.Background()
	s, err := NewServer(testRegistry(), "test", nil)
	require.NoError(t, err)

	cli, err := client.NewInProcessClient(s)
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })
	require.NoError(t, cli.Start(ctx))
	_, err = cli.Initialize(ctx, mcp.InitializeRequest{})
	require.NoError(t, err)

	list, err := cli.ListTools(ctx, mcp.ListToolsRequest{})
	require.NoError(t, err)
	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
	}
	require.ElementsMatch(t, []string{"team_shooting", "broken"}, names)

	call := func(name string, args map[string]any) *mcp.CallToolResult {
		req := mcp.CallToolRequest{}
		req.Params.Name = name
		req.Params.Arguments = args
		res, err := cli.CallTool(ctx, req)
		require.NoError(t, err)
		return res
	}

	t.Run("call", func(t *testing.T) {
		res := call("team_shooting", map[string]any{"season": 2025})
		require.False(t, res.IsError)
		require.Equal(t, "| Team | Season |\n| HOU | 2025 |", resultText(res))
	})

	t.Run("argument error", func(t *testing.T) {
		res := call("team_shooting", nil)
		require.True(t, res.IsError)
		require.Contains(t, resultText(res), "season")
	})

	t.Run("tool error", func(t *testing.T) {
		res := call("broken", nil)
		require.True(t, res.IsError)
		require.Equal(t, "upstream down", resultText(res))
	})
}

func TestService(t *testing.T) {
	ctx := context.Background()
	s, err := NewServer(testRegistry(), "test", nil)
	require.NoError(t, err)
	srv := httptest.NewServer(HTTPHandler(s))
	t.Cleanup(srv.Close)

	cfg := config.Default()
	cfg.MCPTimeout = 5 * time.Second
	cfg.MCPServers = map[string]config.MCPServerConfig{
		"court": {Type: "http", URL: srv.URL + "/mcp"},
		"off":   {Type: "http", URL: "http://127.0.0.1:1/mcp"},
	}
	cfg.MCPDisable = []string{"off"}
	svc := New(&cfg)

	t.Run("enabled", func(t *testing.T) {
		require.True(t, svc.IsEnabled("court"))
		require.False(t, svc.IsEnabled("off"))
		var names []string
		for name := range svc.EnabledServers() {
			names = append(names, name)
		}
		require.Equal(t, []string{"court"}, names)
	})

	t.Run("specs", func(t *testing.T) {
		specs, err := svc.Specs(ctx)
		require.NoError(t, err)
		require.Len(t, specs, 2)
		require.Equal(t, "court_broken", specs[0].Name)
		require.Equal(t, "court_team_shooting", specs[1].Name)
		require.Equal(t, []string{"season"}, specs[1].Schema["required"])
	})

	t.Run("call", func(t *testing.T) {
		out, err := svc.Caller()(ctx, "court_team_shooting", []byte(`{"season":2024}`))
		require.NoError(t, err)
		require.Contains(t, out, "| HOU | 2024 |")

		_, err = svc.CallTool(ctx, "court_broken", nil)
		require.EqualError(t, err, "upstream down")
	})

	t.Run("bad names", func(t *testing.T) {
		_, err := svc.CallTool(ctx, "nounderscore", nil)
		require.Error(t, err)
		_, err = svc.CallTool(ctx, "nobody_tool", nil)
		require.Error(t, err)
		_, err = svc.CallTool(ctx, "off_tool", nil)
		require.ErrorContains(t, err, "disabled")
	})

	t.Run("disable all", func(t *testing.T) {
		cfg := cfg
		cfg.MCPDisable = []string{"*"}
		specs, err := New(&cfg).Specs(ctx)
		require.NoError(t, err)
		require.Empty(t, specs)
	})
}
