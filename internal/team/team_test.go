package team

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/courtside/internal/agent"
	"github.com/dotcommander/courtside/internal/chart"
	"github.com/dotcommander/courtside/internal/memory"
	"github.com/dotcommander/courtside/internal/provider"
	"github.com/dotcommander/courtside/internal/tools"
	"github.com/dotcommander/courtside/internal/tools/builtin"
)

// scriptLLM answers each request with fn.
type scriptLLM struct {
	reqs []agent.Request
	fn   func(ctx context.Context, req agent.Request) (*agent.Response, error)
}

func (s *scriptLLM) Run(ctx context.Context, req agent.Request) (*agent.Response, error) {
	s.reqs = append(s.reqs, req)
	return s.fn(ctx, req)
}

func (s *scriptLLM) names() []string {
	var out []string
	for _, r := range s.reqs {
		out = append(out, r.Name)
	}
	return out
}

func toolNames(r *tools.Registry) []string {
	var out []string
	for _, t := range r.List() {
		out = append(out, t.Name())
	}
	return out
}

func openStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "team.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

var (
	mainSel      = provider.Selection{Provider: "AzureOpenAI", Family: provider.AzureOpenAI, ModelID: "gpt-4.1"}
	reasoningSel = provider.Selection{Provider: "OpenAI-mini", Family: provider.OpenAI, ModelID: "gpt-4.1-mini"}
)

func TestAssemble(t *testing.T) {
	tm := Assemble(Deps{Model: mainSel, Reasoning: reasoningSel})
	require.Equal(t, DataAnalysisTeamID, tm.ID)
	require.Equal(t, "Data Analysis Team", tm.Name)
	require.Equal(t, "A team of agents that collaborates to analyze basketball data.", tm.Description)
	require.Len(t, tm.Members, 4)
	require.Equal(t, DefaultHistoryRuns, tm.HistoryRuns)

	data, ok := tm.Member(DataAgentID)
	require.True(t, ok)
	require.Equal(t, DataAgentOutput, data.ExpectedOutput)
	require.Equal(t, mainSel, data.Model)
	require.Equal(t, reasoningSel, data.ReasoningModel)
	require.Contains(t, data.Tools, builtin.TeamClusteringName)
	require.Contains(t, data.Tools, builtin.AnalyzeTableName)

	analyst, ok := tm.Member(AnalystAgentID)
	require.True(t, ok)
	require.Equal(t, []string{builtin.SearchKnowledgeName, builtin.AnalyzeTableName, builtin.ThinkName}, analyst.Tools)

	visual, ok := tm.Member(VisualizationAgentID)
	require.True(t, ok)
	require.Equal(t, []string{builtin.CreateChartName, builtin.ThinkName}, visual.Tools)

	_, ok = tm.Member("nobody")
	require.False(t, ok)

	t.Run("instruction override", func(t *testing.T) {
		tm := Assemble(Deps{Model: mainSel, Instructions: map[string]string{AnalystAgentID: "Only talk about defense."}})
		a, _ := tm.Member(AnalystAgentID)
		require.Equal(t, []string{"Only talk about defense."}, a.Instructions)
		d, _ := tm.Member(DataAgentID)
		require.Contains(t, d.Instructions[0], "basketball data extraction")
	})
}

func TestVisualizationAgentSavesCharts(t *testing.T) {
	ctx := context.Background()
	charts, err := chart.NewStore(t.TempDir())
	require.NoError(t, err)
	reg := builtin.Registry(builtin.Deps{Charts: charts})

	var saved string
	llm := &scriptLLM{fn: func(ctx context.Context, req agent.Request) (*agent.Response, error) {
		out, err := req.Tools.Call(ctx, builtin.CreateChartName, []byte(
			`{"chart_type":"pie","title":"Shot mix","labels":["rim","mid","three"],"values":[35,20,45]}`))
		saved = out
		return &agent.Response{Content: out}, err
	}}
	r := NewRunner(llm, reg)

	out, err := r.RunAgent(ctx, NewVisualizationAgent(Deps{Model: mainSel}), Input{SessionID: "s1", Message: "chart the shot mix"})
	require.NoError(t, err)
	require.Equal(t, []string{builtin.CreateChartName, builtin.ThinkName}, toolNames(llm.reqs[0].Tools))
	require.Equal(t, saved, out.Content)
	require.Contains(t, saved, "shot-mix-pie.html")
}

func TestRunAgent(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	reg := builtin.Registry(builtin.Deps{})
	llm := &scriptLLM{fn: func(_ context.Context, req agent.Request) (*agent.Response, error) {
		return &agent.Response{Content: "answer to " + req.Messages[len(req.Messages)-1].Content}, nil
	}}
	r := NewRunner(llm, reg, WithStore(store))
	a := NewAnalystAgent(Deps{Model: mainSel})

	out, err := r.RunAgent(ctx, a, Input{SessionID: "s1", UserID: "u1", Message: "what is PER?"})
	require.NoError(t, err)
	require.Equal(t, "answer to what is PER?", out.Content)
	require.NotZero(t, out.RunID)

	req := llm.reqs[0]
	require.Equal(t, AnalystAgentID, req.Name)
	require.Equal(t, mainSel, req.Selection)
	require.Equal(t, []string{builtin.ThinkName}, toolNames(req.Tools), "unavailable tools are skipped")
	require.Contains(t, strings.Join(req.System, "\n"), builtin.ThinkInstructions)

	t.Run("history and memories", func(t *testing.T) {
		require.NoError(t, store.AddMemory(ctx, "u1", "Favorite team is HOU."))
		_, err := r.RunAgent(ctx, a, Input{SessionID: "s1", UserID: "u1", Message: "and WS?"})
		require.NoError(t, err)
		req := llm.reqs[len(llm.reqs)-1]
		require.Len(t, req.Messages, 3)
		require.Equal(t, "what is PER?", req.Messages[0].Content)
		require.Equal(t, "answer to what is PER?", req.Messages[1].Content)
		require.Contains(t, strings.Join(req.System, "\n"), "Favorite team is HOU.")
	})

	t.Run("new session", func(t *testing.T) {
		out, err := r.RunAgent(ctx, a, Input{Message: "hi"})
		require.NoError(t, err)
		require.NotEmpty(t, out.SessionID)
		require.Len(t, llm.reqs[len(llm.reqs)-1].Messages, 1)
	})

	t.Run("llm error", func(t *testing.T) {
		r := NewRunner(&scriptLLM{fn: func(context.Context, agent.Request) (*agent.Response, error) {
			return nil, errors.New("offline")
		}}, reg)
		_, err := r.RunAgent(ctx, a, Input{Message: "hi"})
		require.EqualError(t, err, "offline")
	})
}

func TestRunAgentReasoning(t *testing.T) {
	llm := &scriptLLM{fn: func(_ context.Context, req agent.Request) (*agent.Response, error) {
		if strings.HasSuffix(req.Name, ".reasoning") {
			require.Equal(t, reasoningSel, req.Selection)
			require.Equal(t, 1, req.MaxSteps)
			return &agent.Response{Content: "1. fetch data"}, nil
		}
		return &agent.Response{Content: "done"}, nil
	}}
	r := NewRunner(llm, builtin.Registry(builtin.Deps{}), WithReasoning(true))
	_, err := r.RunAgent(context.Background(), NewDataAgent(Deps{Model: mainSel, Reasoning: reasoningSel}), Input{Message: "shooting 2025"})
	require.NoError(t, err)
	require.Equal(t, []string{"data_agent.reasoning", "data_agent"}, llm.names())
	require.Contains(t, llm.reqs[1].System, "<reasoning>\n1. fetch data\n</reasoning>")
}

func TestRunTeam(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	now := time.Date(2025, 11, 17, 9, 30, 0, 0, time.UTC)
	tm := Assemble(Deps{Model: mainSel})

	llm := &scriptLLM{}
	llm.fn = func(ctx context.Context, req agent.Request) (*agent.Response, error) {
		switch req.Name {
		case DataAnalysisTeamID:
			require.Contains(t, toolNames(req.Tools), "ask_data_agent")
			require.Contains(t, toolNames(req.Tools), rememberToolName)
			out, err := req.Tools.Call(ctx, "ask_data_agent", []byte(`{"task":"get 2025 team shooting"}`))
			if err != nil {
				return nil, err
			}
			if _, err := req.Tools.Call(ctx, rememberToolName, []byte(`{"memory":"Likes shooting data."}`)); err != nil {
				return nil, err
			}
			return &agent.Response{Content: "Team says: " + out}, nil
		case DataAgentID:
			return &agent.Response{Content: "| Team | FG% |", Stopped: true}, nil
		}
		return nil, errors.New("unexpected agent " + req.Name)
	}

	r := NewRunner(llm, builtin.Registry(builtin.Deps{}), WithStore(store), WithClock(func() time.Time { return now }))
	out, err := r.RunTeam(ctx, tm, Input{SessionID: "s", UserID: "u", Message: "cluster teams"})
	require.NoError(t, err)
	require.Equal(t, "Team says: | Team | FG% |", out.Content)
	require.Len(t, out.Members, 1)
	require.Equal(t, DataAgentID, out.Members[0].AgentID)
	require.Equal(t, []string{DataAnalysisTeamID, DataAgentID}, llm.names())

	sys := strings.Join(llm.reqs[0].System, "\n")
	require.Contains(t, sys, "The current time is 2025-11-17 09:30:00 UTC.")
	require.Contains(t, sys, "Delegate with: ask_visualization_agent")

	mems, err := store.Memories(ctx, "u")
	require.NoError(t, err)
	require.Equal(t, []string{"Likes shooting data."}, mems)

	teamRuns, err := store.History(ctx, "s", DataAnalysisTeamID, 5)
	require.NoError(t, err)
	require.Len(t, teamRuns, 1)
	memberRuns, err := store.History(ctx, "s", DataAgentID, 5)
	require.NoError(t, err)
	require.Len(t, memberRuns, 1)

	t.Run("members see team history", func(t *testing.T) {
		_, err := r.RunTeam(ctx, tm, Input{SessionID: "s", UserID: "u", Message: "again"})
		require.NoError(t, err)
		last := llm.reqs[len(llm.reqs)-1]
		require.Equal(t, DataAgentID, last.Name)
		msg := last.Messages[len(last.Messages)-1].Content
		require.True(t, strings.HasPrefix(msg, "<team_history_context>"))
		require.Contains(t, msg, "user: cluster teams")
	})

	t.Run("no store, no remember tool", func(t *testing.T) {
		llm := &scriptLLM{fn: func(_ context.Context, req agent.Request) (*agent.Response, error) {
			require.NotContains(t, toolNames(req.Tools), rememberToolName)
			require.Len(t, toolNames(req.Tools), 4)
			return &agent.Response{Content: "ok"}, nil
		}}
		out, err := NewRunner(llm, nil).RunTeam(ctx, tm, Input{UserID: "u", Message: "hi"})
		require.NoError(t, err)
		require.Zero(t, out.RunID)
	})
}
