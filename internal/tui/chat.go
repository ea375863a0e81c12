package tui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/present"
	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/team"
)

type chatState int

const (
	chatInputState chatState = iota
	chatStreamState
)

// TurnFunc runs one team turn.
type TurnFunc func(ctx context.Context, in team.Input) (*team.Output, error)

// ChatOptions configure the chat model.
type ChatOptions struct {
	SessionID string
	UserID    string
	Theme     string
	WordWrap  int
	Quiet     bool
	// Prompt is submitted as soon as the chat starts.
	Prompt string
}

// Chat is the Bubble Tea model for an interactive conversation with the team.
type Chat struct {
	Error *errs.Error

	state    chatState
	input    textinput.Model
	viewport viewport.Model
	glam     *glamour.TermRenderer
	renderer *lipgloss.Renderer
	styles   present.Styles
	spinner  spinner.Model

	historyBuf   bytes.Buffer // rendered conversation so far
	streamBuf    bytes.Buffer // current response being streamed
	events       chan tea.Msg
	listening    bool
	activeCancel context.CancelFunc

	turn      TurnFunc
	opts      ChatOptions
	sessionID string
	ctx       context.Context

	width  int
	height int

	renderScheduled bool
	dirtyOutput     bool
	gotText         bool
	waitingSince    time.Time
}

// NewChat creates the Bubble Tea model for interactive chat.
func NewChat(ctx context.Context, r *lipgloss.Renderer, opts ChatOptions, turn TurnFunc) *Chat {
	gr, _ := present.NewMarkdownRenderer(opts.Theme, opts.WordWrap)

	ti := textinput.New()
	ti.Prompt = "courtside> "
	ti.Placeholder = "ask the team about a game, a season or a stat"
	ti.Focus()
	ti.CharLimit = 0

	vp := viewport.New(0, 0)
	vp.GotoBottom()

	styles := present.MakeStyles(r)
	return &Chat{
		state:     chatInputState,
		input:     ti,
		viewport:  vp,
		glam:      gr,
		renderer:  r,
		styles:    styles,
		spinner:   spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner)),
		events:    make(chan tea.Msg, 64),
		turn:      turn,
		opts:      opts,
		sessionID: opts.SessionID,
		ctx:       ctx,
	}
}

// chatSubmitMsg is sent when the user presses Enter with non-empty input.
type chatSubmitMsg struct {
	prompt string
}

// chatChunkMsg is streamed text, or a tool call note, of the running turn.
type chatChunkMsg struct {
	content string
	tool    bool
}

// chatDoneMsg signals the turn is complete.
type chatDoneMsg struct {
	out *team.Output
	err error
}

type chatRenderMsg struct{}

type chatWaitingTickMsg struct{}

// Init implements tea.Model.
func (c *Chat) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if c.opts.Prompt != "" {
		cmds = append(cmds, func() tea.Msg {
			return chatSubmitMsg{prompt: c.opts.Prompt}
		})
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (c *Chat) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		c.width = msg.Width
		c.height = msg.Height
		c.resizeViewport()
		c.refreshViewport()
		return c, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if c.state == chatStreamState {
				c.cancelTurn()
				c.waitingSince = time.Time{}
				c.finishTurn()
				c.state = chatInputState
				c.resizeViewport()
				return c, nil
			}
			return c, tea.Quit
		case "enter":
			if c.state != chatInputState {
				break
			}
			text := strings.TrimSpace(c.input.Value())
			if text == "" {
				return c, nil
			}
			if text == "/exit" || text == "/quit" {
				return c, tea.Quit
			}
			c.input.SetValue("")
			return c, func() tea.Msg {
				return chatSubmitMsg{prompt: text}
			}
		}

	case chatSubmitMsg:
		fmt.Fprintf(&c.historyBuf, "> %s\n\n", msg.prompt)
		c.streamBuf.Reset()
		c.waitingSince = time.Now()
		c.state = chatStreamState
		c.resizeViewport()
		c.dirtyOutput = true
		c.refreshViewport()
		c.cancelTurn()
		ctx, cancel := context.WithCancel(c.ctx)
		c.activeCancel = cancel
		c.gotText = false
		next := []tea.Cmd{c.startTurnCmd(ctx, cancel, msg.prompt), c.waitingTickCmd()}
		if !c.listening {
			c.listening = true
			next = append(next, c.waitEvent)
		}
		if !c.opts.Quiet {
			next = append(next, c.spinner.Tick)
		}
		return c, tea.Batch(next...)

	case chatChunkMsg:
		if c.state != chatStreamState {
			return c, c.waitEvent
		}
		if msg.content != "" {
			c.gotText = c.gotText || !msg.tool
			c.waitingSince = time.Time{}
			c.streamBuf.WriteString(msg.content)
			c.resizeViewport()
			c.dirtyOutput = true
			if !c.renderScheduled {
				c.renderScheduled = true
				cmds = append(cmds, c.renderTickCmd())
			}
		}
		cmds = append(cmds, c.waitEvent)
		return c, tea.Batch(cmds...)

	case chatDoneMsg:
		if c.state != chatStreamState {
			return c, nil
		}
		c.activeCancel = nil
		c.waitingSince = time.Time{}
		if msg.err != nil {
			if errors.Is(msg.err, context.Canceled) {
				c.finishTurn()
				c.state = chatInputState
				return c, nil
			}
			var e errs.Error
			if !errors.As(msg.err, &e) {
				e = errs.Error{Err: msg.err, Reason: "The team could not answer."}
			}
			c.Error = &e
			return c, tea.Quit
		}
		c.sessionID = msg.out.SessionID
		if !c.gotText {
			c.streamBuf.WriteString(msg.out.Content)
		}
		c.finishTurn()
		c.state = chatInputState
		c.resizeViewport()
		c.refreshViewport()
		return c, nil

	case chatWaitingTickMsg:
		if c.state == chatStreamState && c.streamBuf.Len() == 0 {
			return c, c.waitingTickCmd()
		}
		return c, nil

	case chatRenderMsg:
		c.renderScheduled = false
		if c.dirtyOutput {
			c.refreshViewport()
		}
		return c, nil

	case spinner.TickMsg:
		if c.state != chatStreamState || c.opts.Quiet {
			return c, nil
		}
		var cmd tea.Cmd
		c.spinner, cmd = c.spinner.Update(msg)
		return c, cmd
	}

	if c.state == chatInputState {
		var cmd tea.Cmd
		c.input, cmd = c.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	var cmd tea.Cmd
	c.viewport, cmd = c.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return c, tea.Batch(cmds...)
}

// View implements tea.Model.
func (c *Chat) View() string {
	if c.width == 0 || c.height == 0 {
		return ""
	}

	divider := c.styles.Comment.Render(strings.Repeat("─", max(c.width, 1)))

	if c.state == chatStreamState && c.streamBuf.Len() == 0 {
		status := c.waitingStatus(time.Now())
		if !c.opts.Quiet {
			status = c.spinner.View() + " " + status
		}
		return c.viewport.View() + "\n" + divider + "\n" + status
	}
	return c.viewport.View() + "\n" + divider + "\n" + c.input.View()
}

// SessionID returns the session of the conversation so far.
func (c *Chat) SessionID() string {
	return c.sessionID
}

// Transcript returns the conversation as markdown.
func (c *Chat) Transcript() string {
	return strings.TrimSpace(c.historyBuf.String())
}

func (c *Chat) startTurnCmd(ctx context.Context, cancel context.CancelFunc, prompt string) tea.Cmd {
	sessionID := c.sessionID
	return func() tea.Msg {
		defer cancel()
		if c.turn == nil {
			return chatDoneMsg{err: errs.Error{Reason: "The team is not available."}}
		}
		out, err := c.turn(ctx, team.Input{
			SessionID: sessionID,
			UserID:    c.opts.UserID,
			Message:   prompt,
			OnChunk: func(s string) {
				c.send(ctx, chatChunkMsg{content: s})
			},
			OnTool: func(s proto.ToolCallStatus) {
				c.send(ctx, chatChunkMsg{content: s.String(), tool: true})
			},
		})
		return chatDoneMsg{out: out, err: err}
	}
}

func (c *Chat) send(ctx context.Context, msg tea.Msg) {
	select {
	case c.events <- msg:
	case <-ctx.Done():
	}
}

func (c *Chat) waitEvent() tea.Msg {
	return <-c.events
}

func (c *Chat) cancelTurn() {
	if c.activeCancel != nil {
		c.activeCancel()
		c.activeCancel = nil
	}
}

func (c *Chat) finishTurn() {
	if c.streamBuf.Len() > 0 {
		fmt.Fprintf(&c.historyBuf, "%s\n\n", strings.TrimSpace(c.streamBuf.String()))
		c.streamBuf.Reset()
	}
	c.dirtyOutput = true
}

func (c *Chat) refreshViewport() {
	combined := c.historyBuf.String() + c.streamBuf.String()
	if combined == "" {
		return
	}

	rendered := combined
	if c.glam != nil {
		if out, err := c.glam.Render(combined); err == nil {
			rendered = out
		}
	}
	rendered = strings.TrimRightFunc(rendered, unicode.IsSpace) + "\n"

	truncated := c.renderer.NewStyle().MaxWidth(c.width).Render(rendered)

	wasAtBottom := c.viewport.ScrollPercent() >= 1.0
	c.viewport.SetContent(truncated)
	if wasAtBottom {
		c.viewport.GotoBottom()
	}
	c.dirtyOutput = false
}

func (c *Chat) renderTickCmd() tea.Cmd {
	const renderInterval = 33 * time.Millisecond
	return tea.Tick(renderInterval, func(time.Time) tea.Msg {
		return chatRenderMsg{}
	})
}

func (c *Chat) waitingTickCmd() tea.Cmd {
	const waitingInterval = 200 * time.Millisecond
	return tea.Tick(waitingInterval, func(time.Time) tea.Msg {
		return chatWaitingTickMsg{}
	})
}

func (c *Chat) resizeViewport() {
	const footerLines = 2
	if c.width > 0 {
		c.viewport.Width = c.width
	}
	c.viewport.Height = max(c.height-footerLines, 1)
}

func (c *Chat) waitingStatus(now time.Time) string {
	if c.waitingSince.IsZero() {
		return c.styles.Comment.Render("The team is thinking...")
	}
	return c.styles.Comment.Render("The team is thinking... [" + formatElapsedClock(now.Sub(c.waitingSince)) + "]")
}
