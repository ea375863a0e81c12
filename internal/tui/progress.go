package tui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/present"
	"github.com/dotcommander/courtside/internal/report"
)

// RunFunc runs the report workflow, reporting transitions to obs and
// streamed narration to onChunk.
type RunFunc func(ctx context.Context, obs report.Observer, onChunk func(string)) (*report.Result, error)

// ProgressOptions tune the progress view.
type ProgressOptions struct {
	Title    string
	Theme    string
	WordWrap int
	// Quiet hides the stage list and spinner.
	Quiet bool
}

type transitionMsg report.Transition

type chunkMsg string

type runDoneMsg struct {
	res *report.Result
	err error
}

type renderMsg struct{}

// Progress is the Bubble Tea model shown while a game report is generated:
// a spinner over the workflow stages, then the narration as it streams.
type Progress struct {
	// Result is set once the workflow finishes successfully.
	Result *report.Result
	Error  *errs.Error

	opts     ProgressOptions
	run      RunFunc
	ctx      context.Context
	cancel   context.CancelFunc
	events   chan tea.Msg
	styles   present.Styles
	renderer *lipgloss.Renderer
	spinner  spinner.Model

	state    report.State
	started  time.Time
	stages   map[report.State]time.Time
	failedAt report.State

	glam            *glamour.TermRenderer
	glamViewport    viewport.Model
	glamOutput      string
	glamHeight      int
	outputBuf       bytes.Buffer
	dirtyOutput     bool
	renderScheduled bool
	width           int
	height          int
}

// NewProgress returns a progress model that calls run once started.
func NewProgress(ctx context.Context, r *lipgloss.Renderer, opts ProgressOptions, run RunFunc) *Progress {
	ctx, cancel := context.WithCancel(ctx)
	gr, _ := present.NewMarkdownRenderer(opts.Theme, opts.WordWrap)
	styles := present.MakeStyles(r)
	sp := spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner))
	vp := viewport.New(0, 0)
	vp.GotoBottom()
	return &Progress{
		opts:         opts,
		run:          run,
		ctx:          ctx,
		cancel:       cancel,
		events:       make(chan tea.Msg, 64),
		styles:       styles,
		renderer:     r,
		spinner:      sp,
		state:        report.Idle,
		stages:       map[report.State]time.Time{},
		failedAt:     report.Idle,
		glam:         gr,
		glamViewport: vp,
	}
}

// Init implements tea.Model.
func (m *Progress) Init() tea.Cmd {
	m.started = time.Now()
	cmds := []tea.Cmd{m.startCmd, m.waitEvent}
	if !m.opts.Quiet {
		cmds = append(cmds, m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m *Progress) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	switch msg := msg.(type) {
	case transitionMsg:
		if msg.To == report.Failed {
			m.failedAt = msg.From
		}
		m.state = msg.To
		m.stages[msg.To] = msg.At
		return m, m.waitEvent

	case chunkMsg:
		m.outputBuf.WriteString(string(msg))
		m.dirtyOutput = true
		if !m.renderScheduled {
			m.renderScheduled = true
			cmds = append(cmds, renderTick())
		}
		cmds = append(cmds, m.waitEvent)
		return m, tea.Batch(cmds...)

	case renderMsg:
		m.renderScheduled = false
		if m.dirtyOutput {
			m.renderFormattedOutput()
		}
		return m, nil

	case runDoneMsg:
		m.cancel()
		if msg.err != nil {
			e := report.UserError(msg.err)
			m.Error = &e
			return m, tea.Quit
		}
		m.Result = msg.res
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.glamViewport.Width = m.width
		m.glamViewport.Height = max(m.height-m.headerLines(), 1)
		if m.outputBuf.Len() > 0 {
			m.renderFormattedOutput()
		}
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			m.Error = &errs.Error{Err: context.Canceled, Reason: "Report canceled.", Code: errs.CodeGeneric}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.opts.Quiet || m.state.Terminal() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	if m.glamHeight > m.glamViewport.Height {
		var cmd tea.Cmd
		m.glamViewport, cmd = m.glamViewport.Update(msg)
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m *Progress) View() string {
	if m.Result != nil || m.Error != nil {
		return ""
	}
	var sb strings.Builder
	if !m.opts.Quiet {
		sb.WriteString(m.header())
	}
	if m.glamOutput != "" {
		if m.glamHeight > m.glamViewport.Height && m.glamViewport.Height > 0 {
			sb.WriteString(m.glamViewport.View())
		} else {
			sb.WriteString(m.glamOutput)
		}
	}
	return sb.String()
}

// stages lists the user-facing workflow stages in order.
var stages = []struct {
	label  string
	active report.State
	done   report.State
}{
	{report.SearchPhase, report.Fetching, report.Fetched},
	{report.WritingPhase, report.Narrating, report.Done},
}

func (m *Progress) header() string {
	var sb strings.Builder
	title := m.opts.Title
	if title == "" {
		title = "Game report"
	}
	sb.WriteString(present.MakeGradientText(m.styles.AppName, title))
	sb.WriteString(" ")
	sb.WriteString(m.styles.Timeago.Render(formatElapsedClock(time.Since(m.started))))
	sb.WriteString("\n")
	for _, st := range stages {
		sb.WriteString(m.stageLine(st.label, st.active, st.done))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	return sb.String()
}

func (m *Progress) stageLine(label string, active, done report.State) string {
	_, reachedDone := m.stages[done]
	_, reachedActive := m.stages[active]
	switch {
	case reachedDone:
		return m.styles.StateDone.Render("✓ " + label)
	case m.state == report.Failed && m.failedAt == active:
		return m.styles.StateFailed.Render("✗ " + label)
	case reachedActive:
		return m.spinner.View() + " " + m.styles.StateActive.Render(label)
	default:
		return m.styles.StatePending.Render("· " + label)
	}
}

func (m *Progress) headerLines() int {
	if m.opts.Quiet {
		return 0
	}
	return len(stages) + 2
}

func (m *Progress) startCmd() tea.Msg {
	obs := report.ObserverFunc(func(t report.Transition) {
		m.send(transitionMsg(t))
	})
	res, err := m.run(m.ctx, obs, func(s string) { m.send(chunkMsg(s)) })
	return runDoneMsg{res: res, err: err}
}

// send delivers msg unless the run was canceled.
func (m *Progress) send(msg tea.Msg) {
	select {
	case m.events <- msg:
	case <-m.ctx.Done():
	}
}

func (m *Progress) waitEvent() tea.Msg {
	return <-m.events
}

func (m *Progress) renderFormattedOutput() {
	if m.glam == nil {
		m.glamOutput = m.outputBuf.String()
		m.dirtyOutput = false
		return
	}
	wasAtBottom := m.glamViewport.ScrollPercent() == 1.0
	oldHeight := m.glamHeight
	out, err := m.glam.Render(m.outputBuf.String())
	if err != nil {
		out = m.outputBuf.String()
	}
	m.glamOutput = present.TidyRendered(out)
	m.glamHeight = lipgloss.Height(m.glamOutput)
	m.glamOutput += "\n"
	if m.width > 0 {
		m.glamViewport.SetContent(m.renderer.NewStyle().MaxWidth(m.width).Render(m.glamOutput))
	} else {
		m.glamViewport.SetContent(m.glamOutput)
	}
	if oldHeight < m.glamHeight && wasAtBottom {
		m.glamViewport.GotoBottom()
	}
	m.dirtyOutput = false
}

func renderTick() tea.Cmd {
	const renderInterval = 33 * time.Millisecond
	return tea.Tick(renderInterval, func(time.Time) tea.Msg {
		return renderMsg{}
	})
}

func formatElapsedClock(d time.Duration) string {
	totalSeconds := int(max(d, 0) / time.Second)
	hours := totalSeconds / 3600
	minutes := (totalSeconds % 3600) / 60
	seconds := totalSeconds % 60

	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
