package team

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dotcommander/courtside/internal/agent"
	"github.com/dotcommander/courtside/internal/logging"
	"github.com/dotcommander/courtside/internal/memory"
	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/tools"
	"github.com/dotcommander/courtside/internal/tools/builtin"
)

// Store persists runs and user memories. *memory.Store satisfies it.
type Store interface {
	SaveRun(ctx context.Context, r memory.Run) (int64, error)
	History(ctx context.Context, session, agent string, n int) ([]memory.Run, error)
	AddMemory(ctx context.Context, user, memory string) error
	Memories(ctx context.Context, user string) ([]string, error)
}

// rememberToolName lets the team leader store facts about the user.
const rememberToolName = "update_user_memory"

// Input is one user turn.
type Input struct {
	// SessionID groups runs for history; empty starts a new session.
	SessionID string
	UserID    string
	Message   string
	OnChunk   func(string)
	OnTool    func(proto.ToolCallStatus)
}

// Output is the result of a turn.
type Output struct {
	RunID     int64
	SessionID string
	AgentID   string
	Content   string
	Stopped   bool
	ToolCalls []proto.ToolCallStatus
	// Members are the delegated member runs of a team turn.
	Members []*Output
}

// Runner executes agent and team turns.
type Runner struct {
	llm      agent.LLM
	tools    *tools.Registry
	store    Store
	log      *logging.Logger
	now      func() time.Time
	maxSteps int

	reasoning bool
	extra     []proto.ToolSpec
	extraFn   proto.ToolCaller
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore persists runs and enables history and user memories.
func WithStore(s Store) Option { return func(r *Runner) { r.store = s } }

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option { return func(r *Runner) { r.log = logging.OrNop(l) } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

// WithMaxSteps bounds tool round trips per run.
func WithMaxSteps(n int) Option { return func(r *Runner) { r.maxSteps = n } }

// WithReasoning enables the planning step for agents with a reasoning
// model.
func WithReasoning(on bool) Option { return func(r *Runner) { r.reasoning = on } }

// WithExtraTools offers additional tools, such as MCP tools, to the team
// leader.
func WithExtraTools(specs []proto.ToolSpec, fn proto.ToolCaller) Option {
	return func(r *Runner) {
		r.extra = specs
		r.extraFn = fn
	}
}

// NewRunner returns a runner calling llm with tools from registry.
func NewRunner(llm agent.LLM, registry *tools.Registry, opts ...Option) *Runner {
	r := &Runner{
		llm:      llm,
		tools:    registry,
		log:      logging.Nop(),
		now:      time.Now,
		maxSteps: agent.DefaultMaxSteps,
	}
	for _, o := range opts {
		o(r)
	}
	if r.tools == nil {
		r.tools = tools.NewRegistry()
	}
	return r
}

// Tools returns the runner's registry.
func (r *Runner) Tools() *tools.Registry { return r.tools }

// RunAgent runs one turn of a.
func (r *Runner) RunAgent(ctx context.Context, a *Agent, in Input) (*Output, error) {
	in.SessionID = sessionID(in.SessionID)
	memories := r.memories(ctx, in.UserID)
	history := r.history(ctx, in.SessionID, a.ID, a.HistoryRuns)

	system := agentSystem(a, memories)
	if r.reasoning && a.ReasoningModel.ModelID != "" {
		plan, err := r.plan(ctx, a, history, in.Message)
		if err != nil {
			return nil, err
		}
		if plan != "" {
			system = append(system, "<reasoning>\n"+plan+"\n</reasoning>")
		}
	}

	resp, err := r.llm.Run(ctx, agent.Request{
		Name:      a.ID,
		Selection: a.Model,
		System:    system,
		Messages:  append(history, proto.Message{Role: proto.RoleUser, Content: in.Message}),
		Tools:     r.subset(a.Tools),
		MaxSteps:  r.maxSteps,
		OnChunk:   in.OnChunk,
		OnTool:    in.OnTool,
	})
	if err != nil {
		return nil, err
	}
	out := &Output{
		SessionID: in.SessionID,
		AgentID:   a.ID,
		Content:   resp.Content,
		Stopped:   resp.Stopped,
		ToolCalls: resp.ToolCalls,
	}
	out.RunID = r.save(ctx, in, a.ID, resp.Content)
	return out, nil
}

// RunTeam runs one turn of the team leader, which delegates to members
// through one ask_<member> tool each.
func (r *Runner) RunTeam(ctx context.Context, t *Team, in Input) (*Output, error) {
	in.SessionID = sessionID(in.SessionID)
	memories := r.memories(ctx, in.UserID)
	history := r.history(ctx, in.SessionID, t.ID, t.HistoryRuns)

	out := &Output{SessionID: in.SessionID, AgentID: t.ID}
	var mu sync.Mutex
	leaderTools := r.subset(t.Tools)
	for _, m := range t.Members {
		if err := leaderTools.Register(r.delegate(t, m, in, history, func(o *Output) {
			mu.Lock()
			out.Members = append(out.Members, o)
			mu.Unlock()
		})); err != nil {
			return nil, err
		}
	}
	if r.store != nil && in.UserID != "" {
		if err := leaderTools.Register(r.remember(in.UserID)); err != nil {
			return nil, err
		}
	}

	resp, err := r.llm.Run(ctx, agent.Request{
		Name:      t.ID,
		Selection: t.Model,
		System:    teamSystem(t, memories, r.now()),
		Messages:  append(history, proto.Message{Role: proto.RoleUser, Content: in.Message}),
		Tools:     leaderTools,
		Extra:     r.extra,
		ExtraFn:   r.extraFn,
		MaxSteps:  r.maxSteps,
		OnChunk:   in.OnChunk,
		OnTool:    in.OnTool,
	})
	if err != nil {
		return nil, err
	}
	out.Content = resp.Content
	out.Stopped = resp.Stopped
	out.ToolCalls = resp.ToolCalls
	out.RunID = r.save(ctx, in, t.ID, resp.Content)
	return out, nil
}

// delegateToolName is the leader's tool for member m.
func delegateToolName(m *Agent) string { return "ask_" + m.ID }

func (r *Runner) delegate(t *Team, m *Agent, in Input, teamHistory []proto.Message, record func(*Output)) tools.Tool {
	return tools.Func{
		ToolName: delegateToolName(m),
		ToolDescription: fmt.Sprintf("Delegate a task to %s: %s Returns the member's answer.",
			m.Name, m.Description),
		Parameters: []tools.Param{
			{Name: "task", Type: tools.String, Required: true, Description: "The task, with every detail the member needs."},
			{Name: "expected_output", Type: tools.String, Description: "What the answer should look like."},
		},
		Fn: func(ctx context.Context, a tools.Args) (string, error) {
			msg := a.String("task")
			if exp := a.String("expected_output"); exp != "" {
				msg += "\n\nExpected output:\n" + exp
			}
			if ctxBlock := historyBlock(teamHistory); ctxBlock != "" {
				msg = ctxBlock + "\n\n" + msg
			}
			r.log.Debugw("delegating to member", "team", t.ID, "member", m.ID)
			o, err := r.RunAgent(ctx, m, Input{
				SessionID: in.SessionID,
				UserID:    in.UserID,
				Message:   msg,
				OnTool:    in.OnTool,
			})
			if err != nil {
				return "", fmt.Errorf("%s: %w", m.ID, err)
			}
			record(o)
			return o.Content, nil
		},
	}
}

func (r *Runner) remember(user string) tools.Tool {
	return tools.Func{
		ToolName:        rememberToolName,
		ToolDescription: "Store a lasting fact or preference about the user, e.g. their favorite team.",
		Parameters: []tools.Param{
			{Name: "memory", Type: tools.String, Required: true, Description: "The fact, as one sentence."},
		},
		Fn: func(ctx context.Context, a tools.Args) (string, error) {
			if err := r.store.AddMemory(ctx, user, a.String("memory")); err != nil {
				return "", err
			}
			return "Memory saved.", nil
		},
	}
}

// plan asks the reasoning model for a step-by-step plan without tools.
func (r *Runner) plan(ctx context.Context, a *Agent, history []proto.Message, message string) (string, error) {
	sys := []string{
		"You plan how an agent should answer. Think step by step and list the steps, " +
			"the tools to call and the checks to make. Do not answer the question itself.",
		"The agent's instructions:\n" + strings.Join(a.Instructions, "\n"),
	}
	if names := r.subset(a.Tools).List(); len(names) > 0 {
		var sb strings.Builder
		sb.WriteString("The agent's tools:")
		for _, t := range names {
			fmt.Fprintf(&sb, "\n- %s: %s", t.Name(), firstLine(t.Description()))
		}
		sys = append(sys, sb.String())
	}
	resp, err := r.llm.Run(ctx, agent.Request{
		Name:      a.ID + ".reasoning",
		Selection: a.ReasoningModel,
		System:    sys,
		Messages:  append(slices.Clone(history), proto.Message{Role: proto.RoleUser, Content: message}),
		MaxSteps:  1,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Content), nil
}

// subset returns a fresh registry with the named tools the runner has.
func (r *Runner) subset(names []string) *tools.Registry {
	sub, missing := r.tools.Subset(names...)
	if len(missing) > 0 {
		r.log.Debugw("tools not available", "tools", missing)
	}
	return sub
}

func (r *Runner) memories(ctx context.Context, user string) []string {
	if r.store == nil || user == "" {
		return nil
	}
	ms, err := r.store.Memories(ctx, user)
	if err != nil {
		r.log.Warnw("could not load user memories", "user", user, "error", err)
		return nil
	}
	return ms
}

func (r *Runner) history(ctx context.Context, session, id string, n int) []proto.Message {
	if r.store == nil || n <= 0 {
		return nil
	}
	runs, err := r.store.History(ctx, session, id, n)
	if err != nil {
		r.log.Warnw("could not load history", "session", session, "agent", id, "error", err)
		return nil
	}
	msgs := make([]proto.Message, 0, 2*len(runs))
	for _, run := range runs {
		msgs = append(msgs,
			proto.Message{Role: proto.RoleUser, Content: run.Input},
			proto.Message{Role: proto.RoleAssistant, Content: run.Output},
		)
	}
	return msgs
}

func (r *Runner) save(ctx context.Context, in Input, id, output string) int64 {
	if r.store == nil {
		return 0
	}
	runID, err := r.store.SaveRun(ctx, memory.Run{
		SessionID: in.SessionID,
		AgentID:   id,
		UserID:    in.UserID,
		Input:     in.Message,
		Output:    output,
	})
	if err != nil {
		r.log.Warnw("could not save run", "session", in.SessionID, "agent", id, "error", err)
		return 0
	}
	return runID
}

func sessionID(s string) string {
	if s != "" {
		return s
	}
	return uuid.NewString()
}

func agentSystem(a *Agent, memories []string) []string {
	out := []string{a.Description}
	out = append(out, a.Instructions...)
	if a.ExpectedOutput != "" {
		out = append(out, "<expected_output>\n"+a.ExpectedOutput+"\n</expected_output>")
	}
	if slices.Contains(a.Tools, builtin.ThinkName) {
		out = append(out, builtin.ThinkInstructions)
	}
	if a.Markdown {
		out = append(out, "Use markdown to format your answers.")
	}
	return append(out, memoryBlock(memories))
}

func teamSystem(t *Team, memories []string, now time.Time) []string {
	out := []string{t.Description}
	out = append(out, t.Instructions...)

	var sb strings.Builder
	sb.WriteString("<team_members>")
	for i, m := range t.Members {
		fmt.Fprintf(&sb, "\n - Agent %d:\n   - ID: %s\n   - Name: %s\n   - Role: %s\n   - Delegate with: %s",
			i+1, m.ID, m.Name, m.Description, delegateToolName(m))
	}
	sb.WriteString("\n</team_members>")
	out = append(out, sb.String(),
		"Delegate tasks to the members with their ask_ tools, then combine their answers into one response for the user. "+
			"Pass each member all the context it needs; members do not see the conversation.")
	if slices.Contains(t.Tools, builtin.ThinkName) {
		out = append(out, builtin.ThinkInstructions)
	}
	if t.Markdown {
		out = append(out, "Use markdown to format your answers.")
	}
	out = append(out, "The current time is "+now.Format("2006-01-02 15:04:05 MST")+".")
	return append(out, memoryBlock(memories))
}

func memoryBlock(memories []string) string {
	if len(memories) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("You have access to memories from previous interactions with the user:\n<memories_from_previous_interactions>")
	for _, m := range memories {
		sb.WriteString("\n- " + m)
	}
	sb.WriteString("\n</memories_from_previous_interactions>")
	return sb.String()
}

func historyBlock(history []proto.Message) string {
	if len(history) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("<team_history_context>")
	for _, m := range history {
		fmt.Fprintf(&sb, "\n%s: %s", m.Role, m.Content)
	}
	sb.WriteString("\n</team_history_context>")
	return sb.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
