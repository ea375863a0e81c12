package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/team"
)

func newTestChat(turn TurnFunc, opts ...func(*ChatOptions)) *Chat {
	r := lipgloss.DefaultRenderer()
	o := ChatOptions{WordWrap: 80, Quiet: true, UserID: "u"}
	for _, fn := range opts {
		fn(&o)
	}
	c := NewChat(context.Background(), r, o, turn)
	// Simulate a window size so View doesn't short-circuit.
	c.width = 80
	c.height = 24
	c.viewport.Width = 80
	c.viewport.Height = 22
	return c
}

// runTurn submits prompt, runs the turn synchronously and feeds its queued
// events and completion back into c.
func runTurn(t *testing.T, c *Chat, prompt string) {
	t.Helper()
	_, cmd := c.Update(chatSubmitMsg{prompt: prompt})
	if cmd == nil {
		t.Fatal("expected a command to start the turn")
	}
	batch, ok := cmd().(tea.BatchMsg)
	if !ok {
		t.Fatal("expected a batch of commands")
	}
	// The first command runs the turn; chunk events are queued on c.events.
	done := batch[0]()
	for {
		select {
		case ev := <-c.events:
			c.Update(ev)
			continue
		default:
		}
		break
	}
	c.Update(done)
}

func TestChat_ExitCommand(t *testing.T) {
	for _, cmdText := range []string{"/exit", "/quit"} {
		c := newTestChat(nil)
		c.input.SetValue(cmdText)
		_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if cmd == nil {
			t.Fatalf("expected a command from %s", cmdText)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%s: expected tea.QuitMsg", cmdText)
		}
	}
}

func TestChat_CtrlC_InputState(t *testing.T) {
	c := newTestChat(nil)

	_, cmd := c.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatal("expected a command from ctrl+c")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
}

func TestChat_CtrlC_StreamState(t *testing.T) {
	c := newTestChat(nil)
	canceled := false
	c.state = chatStreamState
	c.activeCancel = func() { canceled = true }
	c.streamBuf.WriteString("partial")

	m, cmd := c.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	chat := m.(*Chat)
	if chat.state != chatInputState {
		t.Errorf("expected chatInputState, got %d", chat.state)
	}
	if !canceled {
		t.Error("expected the running turn to be canceled")
	}
	if cmd != nil {
		t.Error("ctrl+c during a turn should not quit")
	}
	if !strings.Contains(chat.Transcript(), "partial") {
		t.Error("expected the partial answer to stay in the transcript")
	}
}

func TestChat_BlankInput_Ignored(t *testing.T) {
	for _, in := range []string{"", "   "} {
		c := newTestChat(nil)
		c.input.SetValue(in)
		m, cmd := c.Update(tea.KeyMsg{Type: tea.KeyEnter})
		if m.(*Chat).state != chatInputState {
			t.Errorf("%q: expected state to remain chatInputState", in)
		}
		if cmd != nil {
			t.Errorf("%q: expected no command", in)
		}
	}
}

func TestChat_Turn(t *testing.T) {
	var got []team.Input
	turn := func(_ context.Context, in team.Input) (*team.Output, error) {
		got = append(got, in)
		in.OnTool(proto.ToolCallStatus{Name: "ask_data_agent"})
		in.OnChunk("The Rockets ")
		in.OnChunk("won.")
		return &team.Output{SessionID: "sess-1", Content: "The Rockets won."}, nil
	}
	c := newTestChat(turn)

	runTurn(t, c, "who won?")
	if c.state != chatInputState {
		t.Fatalf("expected chatInputState after the turn, got %d", c.state)
	}
	if c.SessionID() != "sess-1" {
		t.Errorf("expected session from the output, got %q", c.SessionID())
	}
	tr := c.Transcript()
	for _, want := range []string{"> who won?", "Ran tool: `ask_data_agent`", "The Rockets won."} {
		if !strings.Contains(tr, want) {
			t.Errorf("transcript missing %q: %q", want, tr)
		}
	}
	if strings.Count(tr, "The Rockets won.") != 1 {
		t.Errorf("streamed answer should appear once: %q", tr)
	}

	runTurn(t, c, "by how much?")
	if len(got) != 2 || got[1].SessionID != "sess-1" || got[1].UserID != "u" {
		t.Errorf("second turn should reuse the session: %+v", got)
	}
}

func TestChat_NonStreamingTurn(t *testing.T) {
	c := newTestChat(func(context.Context, team.Input) (*team.Output, error) {
		return &team.Output{SessionID: "s", Content: "Offensive rating is points per 100 possessions."}, nil
	})
	runTurn(t, c, "what is ORtg?")
	if !strings.Contains(c.Transcript(), "points per 100 possessions") {
		t.Errorf("expected the returned content in the transcript: %q", c.Transcript())
	}
}

func TestChat_TurnError(t *testing.T) {
	c := newTestChat(func(context.Context, team.Input) (*team.Output, error) {
		return nil, errors.New("provider offline")
	})
	_, cmd := c.Update(chatSubmitMsg{prompt: "hi"})
	batch := cmd().(tea.BatchMsg)
	_, quit := c.Update(batch[0]())
	if c.Error == nil || c.Error.Reason != "The team could not answer." {
		t.Fatalf("expected a team error, got %+v", c.Error)
	}
	if _, ok := quit().(tea.QuitMsg); !ok {
		t.Error("expected quit after a failed turn")
	}
}

func TestChat_InitialPrompt(t *testing.T) {
	c := newTestChat(nil, func(o *ChatOptions) { o.Prompt = "hello world" })
	if c.Init() == nil {
		t.Fatal("expected init command")
	}
}

func TestChat_ViewShowsWaitingStatusBeforeFirstChunk(t *testing.T) {
	c := newTestChat(nil)
	c.state = chatStreamState
	c.waitingSince = time.Now().Add(-3 * time.Second)
	c.historyBuf.WriteString("> hi\n\n")
	c.refreshViewport()

	if v := c.View(); !strings.Contains(v, "The team is thinking...") {
		t.Fatalf("expected waiting status in view, got: %q", v)
	}
}

func TestChat_WaitingStatusIncludesElapsedClock(t *testing.T) {
	c := newTestChat(nil)
	now := time.Date(2026, time.February, 16, 12, 0, 0, 0, time.UTC)
	c.waitingSince = now.Add(-(1*time.Minute + 15*time.Second))

	if status := c.waitingStatus(now); !strings.Contains(status, "[01:15]") {
		t.Fatalf("expected stopwatch in waiting status, got: %q", status)
	}
}
