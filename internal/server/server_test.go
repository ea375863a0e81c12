package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/provider"
	"github.com/dotcommander/courtside/internal/report"
	"github.com/dotcommander/courtside/internal/stats"
	"github.com/dotcommander/courtside/internal/storage"
	"github.com/dotcommander/courtside/internal/team"
)

type fakeRunner struct {
	last team.Input
	err  error
}

func (f *fakeRunner) RunAgent(_ context.Context, a *team.Agent, in team.Input) (*team.Output, error) {
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return &team.Output{RunID: 1, SessionID: "s", AgentID: a.ID, Content: a.Name + ": " + in.Message}, nil
}

func (f *fakeRunner) RunTeam(_ context.Context, t *team.Team, in team.Input) (*team.Output, error) {
	f.last = in
	if f.err != nil {
		return nil, f.err
	}
	return &team.Output{
		RunID: 2, SessionID: "s", AgentID: t.ID, Content: "team answer",
		ToolCalls: []proto.ToolCallStatus{{Name: "ask_data_agent", Output: "rows"}},
		Members:   []*team.Output{{RunID: 3, SessionID: "s", AgentID: team.DataAgentID, Content: "rows"}},
	}, nil
}

type fakeReports struct {
	err error
}

func (f fakeReports) Run(_ context.Context, req report.Request, _ ...report.Observer) (*report.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	at := time.Date(2025, 11, 17, 0, 0, 0, 0, time.UTC)
	return &report.Result{
		RunID:   "run-1",
		Request: req,
		Report:  "## Rockets hold off Magic",
		Transitions: []report.Transition{
			{RunID: "run-1", From: report.Idle, To: report.Fetching, At: at},
			{RunID: "run-1", From: report.Narrating, To: report.Done, At: at},
		},
		FetchTime:   1500 * time.Millisecond,
		NarrateTime: 2 * time.Second,
	}, nil
}

func newTestServer(t *testing.T, runner Runner, reports Reports, archive Archive) *httptest.Server {
	t.Helper()
	sel := provider.Selection{Provider: "AzureOpenAI", Family: provider.AzureOpenAI, ModelID: "gpt-4.1"}
	opts := []Option{WithVersion("test"), WithModel("gpt-4.1"), WithCORSOrigins([]string{"http://localhost:3000"})}
	if archive != nil {
		opts = append(opts, WithArchive(archive))
	}
	srv := httptest.NewServer(New(team.Assemble(team.Deps{Model: sel}), runner, reports, opts...).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp.StatusCode, out
}

func TestServer(t *testing.T) {
	archive, err := storage.OpenArchive(t.TempDir())
	require.NoError(t, err)
	runner := &fakeRunner{}
	srv := newTestServer(t, runner, fakeReports{}, archive)

	t.Run("health", func(t *testing.T) {
		code, body := do(t, http.MethodGet, srv.URL+"/health", "")
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "healthy", body["status"])
		require.Equal(t, "test", body["version"])
	})

	t.Run("list agents", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/agents")
		require.NoError(t, err)
		defer resp.Body.Close()
		var agents []agentInfo
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&agents))
		require.Len(t, agents, 5)
		require.Equal(t, team.DataAnalysisTeamID, agents[0].ID)
		require.True(t, agents[0].Team)
		require.Equal(t, team.DataAgentID, agents[1].ID)
		require.Equal(t, "gpt-4.1", agents[1].Model)
	})

	t.Run("agent run", func(t *testing.T) {
		code, body := do(t, http.MethodPost, srv.URL+"/api/v1/agents/analyst_agent/runs",
			`{"message":"explain PER","session_id":"s","user_id":"u"}`)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, team.AnalystAgentID, body["agent_id"])
		require.Contains(t, body["content"], "explain PER")
		require.Equal(t, team.Input{SessionID: "s", UserID: "u", Message: "explain PER"}, runner.last)
	})

	t.Run("unknown agent", func(t *testing.T) {
		code, _ := do(t, http.MethodPost, srv.URL+"/api/v1/agents/coach/runs", `{"message":"hi"}`)
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("empty message", func(t *testing.T) {
		code, body := do(t, http.MethodPost, srv.URL+"/api/v1/agents/analyst_agent/runs", `{"message":"  "}`)
		require.Equal(t, http.StatusBadRequest, code)
		require.Equal(t, "message is required", body["error"])
	})

	t.Run("team run", func(t *testing.T) {
		code, body := do(t, http.MethodPost, srv.URL+"/api/v1/teams/data_analysis_team/runs", `{"message":"cluster 2025"}`)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "team answer", body["content"])
		require.Len(t, body["members"], 1)
		require.Len(t, body["tool_calls"], 1)

		code, _ = do(t, http.MethodPost, srv.URL+"/api/v1/teams/other/runs", `{"message":"x"}`)
		require.Equal(t, http.StatusNotFound, code)
	})

	var reportID string
	t.Run("game report", func(t *testing.T) {
		code, body := do(t, http.MethodPost, srv.URL+"/api/v1/workflows/game-report/runs",
			`{"date":"20251116","home_team":"hou","away_team":"orl"}`)
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "run-1", body["run_id"])
		require.Equal(t, "ORL @ HOU, 20251116", body["title"])
		require.Equal(t, "## Rockets hold off Magic", body["report"])
		require.EqualValues(t, 1500, body["fetch_ms"])
		require.Len(t, body["transitions"], 2)
		reportID, _ = body["id"].(string)
		require.Len(t, reportID, 40)
	})

	t.Run("list and get reports", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/v1/reports")
		require.NoError(t, err)
		defer resp.Body.Close()
		var entries []storage.Entry
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
		require.Len(t, entries, 1)
		require.Equal(t, "HOU", entries[0].HomeTeam)
		require.Equal(t, "ORL", entries[0].AwayTeam)
		require.Equal(t, "gpt-4.1", entries[0].Model)

		code, body := do(t, http.MethodGet, srv.URL+"/api/v1/reports/"+storage.ShortID(reportID), "")
		require.Equal(t, http.StatusOK, code)
		require.Equal(t, "## Rockets hold off Magic", body["report"])

		code, _ = do(t, http.MethodGet, srv.URL+"/api/v1/reports/ffffffff", "")
		require.Equal(t, http.StatusNotFound, code)
	})

	t.Run("filter reports by game", func(t *testing.T) {
		count := func(query string) int {
			resp, err := http.Get(srv.URL + "/api/v1/reports?" + query)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var entries []storage.Entry
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
			return len(entries)
		}
		require.Equal(t, 1, count("date=20251116&home=hou"))
		require.Equal(t, 0, count("date=20251117&home=HOU"))

		code, _ := do(t, http.MethodGet, srv.URL+"/api/v1/reports?date=20251116", "")
		require.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("invalid game", func(t *testing.T) {
		for _, body := range []string{
			`{"date":"2025-11-16","home_team":"HOU","away_team":"ORL"}`,
			`{"date":"20251116","home_team":"HOUSTON","away_team":"ORL"}`,
			`{"date":"20251116","home_team":"HOU"}`,
			`not json`,
		} {
			code, _ := do(t, http.MethodPost, srv.URL+"/api/v1/workflows/game-report/runs", body)
			require.Equal(t, http.StatusBadRequest, code, body)
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/v1/agents", nil)
		require.NoError(t, err)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, "http://localhost:3000", resp.Header.Get("Access-Control-Allow-Origin"))
	})
}

func TestServerErrors(t *testing.T) {
	for name, tc := range map[string]struct {
		err  error
		code int
	}{
		"missing game": {err: &stats.ParseError{URL: "u", Reason: "HTTP 404"}, code: http.StatusNotFound},
		"site down":    {err: &stats.FetchError{URL: "u", StatusCode: 503}, code: http.StatusBadGateway},
		"model failed": {err: &report.NarrationError{RunID: "r", Err: report.ErrEmptyReport}, code: http.StatusBadGateway},
		"other":        {err: errors.New("boom"), code: http.StatusInternalServerError},
	} {
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, &fakeRunner{err: tc.err}, fakeReports{err: tc.err}, nil)
			code, body := do(t, http.MethodPost, srv.URL+"/api/v1/workflows/game-report/runs",
				`{"date":"20251116","home_team":"HOU","away_team":"ORL"}`)
			require.Equal(t, tc.code, code)
			require.Equal(t, tc.err.Error(), body["detail"])

			code, _ = do(t, http.MethodPost, srv.URL+"/api/v1/teams/data_analysis_team/runs", `{"message":"x"}`)
			require.Equal(t, tc.code, code)
		})
	}

	t.Run("no archive", func(t *testing.T) {
		srv := newTestServer(t, &fakeRunner{}, fakeReports{}, nil)
		code, _ := do(t, http.MethodGet, srv.URL+"/api/v1/reports/abcd", "")
		require.Equal(t, http.StatusNotFound, code)
		resp, err := http.Get(srv.URL + "/api/v1/reports")
		require.NoError(t, err)
		defer resp.Body.Close()
		var entries []storage.Entry
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
		require.Empty(t, entries)
	})
}
