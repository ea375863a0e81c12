package tui

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dotcommander/courtside/internal/errs"
	"github.com/dotcommander/courtside/internal/report"
	"github.com/dotcommander/courtside/internal/stats"
)

func newTestProgress(run RunFunc) *Progress {
	m := NewProgress(context.Background(), lipgloss.NewRenderer(io.Discard), ProgressOptions{
		Title:    "ORL @ HOU, 20251116",
		Theme:    "notty",
		WordWrap: 80,
	}, run)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m
}

func transition(from, to report.State) transitionMsg {
	return transitionMsg(report.Transition{From: from, To: to, At: time.Now()})
}

func TestProgress_Stages(t *testing.T) {
	m := newTestProgress(nil)
	m.started = time.Now()

	v := m.View()
	if !strings.Contains(v, "· Search Phase") || !strings.Contains(v, "· Writing Phase") {
		t.Fatalf("expected pending stages, got: %q", v)
	}

	m.Update(transition(report.Idle, report.Fetching))
	m.Update(transition(report.Fetching, report.Fetched))
	m.Update(transition(report.Fetched, report.Narrating))
	v = m.View()
	if !strings.Contains(v, "✓ Search Phase") {
		t.Errorf("expected search phase done, got: %q", v)
	}
	if strings.Contains(v, "· Writing Phase") || strings.Contains(v, "✓ Writing Phase") {
		t.Errorf("expected writing phase active, got: %q", v)
	}

	m.Update(transition(report.Narrating, report.Failed))
	if v = m.View(); !strings.Contains(v, "✗ Writing Phase") {
		t.Errorf("expected writing phase failed, got: %q", v)
	}
}

func TestProgress_StreamsNarration(t *testing.T) {
	m := newTestProgress(nil)
	m.Update(chunkMsg("## Rockets 112, Magic 108\n\n"))
	m.Update(chunkMsg("Houston closed on a 12-2 run."))
	m.Update(renderMsg{})
	if v := m.View(); !strings.Contains(v, "Houston closed on a 12-2 run.") {
		t.Fatalf("expected narration in view, got: %q", v)
	}
}

func TestProgress_RunDone(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		m := newTestProgress(nil)
		res := &report.Result{Report: "done"}
		_, cmd := m.Update(runDoneMsg{res: res})
		if m.Result != res || m.Error != nil {
			t.Fatalf("expected result, got %+v / %+v", m.Result, m.Error)
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected quit")
		}
		if m.View() != "" {
			t.Error("expected an empty view once finished")
		}
	})

	t.Run("parse failure", func(t *testing.T) {
		m := newTestProgress(nil)
		err := &stats.ParseError{Date: "20251116", Team: "HOU", Reason: "no table"}
		m.Update(runDoneMsg{err: err})
		if m.Error == nil {
			t.Fatal("expected an error")
		}
		if got := errs.ExitCode(*m.Error); got != errs.CodeParse {
			t.Errorf("expected parse exit code, got %d", got)
		}
		if !strings.Contains(m.Error.Reason, "play-by-play") {
			t.Errorf("unexpected reason %q", m.Error.Reason)
		}
	})
}

func TestProgress_Cancel(t *testing.T) {
	m := newTestProgress(nil)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if m.Error == nil || !errors.Is(m.Error, context.Canceled) {
		t.Fatalf("expected a canceled error, got %+v", m.Error)
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected quit")
	}
	if m.ctx.Err() == nil {
		t.Error("expected the run context to be canceled")
	}
}

func TestProgress_StartCmd(t *testing.T) {
	m := newTestProgress(func(_ context.Context, obs report.Observer, onChunk func(string)) (*report.Result, error) {
		obs.Observe(report.Transition{From: report.Idle, To: report.Fetching, At: time.Now()})
		onChunk("Final: HOU 112, ORL 108")
		return &report.Result{Report: "Final: HOU 112, ORL 108"}, nil
	})

	done, ok := m.startCmd().(runDoneMsg)
	if !ok {
		t.Fatal("expected runDoneMsg")
	}
	if done.err != nil || done.res.Report != "Final: HOU 112, ORL 108" {
		t.Fatalf("unexpected result %+v", done)
	}
	if _, ok := m.waitEvent().(transitionMsg); !ok {
		t.Error("expected the transition to be queued first")
	}
	if msg, ok := m.waitEvent().(chunkMsg); !ok || string(msg) != "Final: HOU 112, ORL 108" {
		t.Errorf("expected the narration chunk, got %v", msg)
	}
}

func TestFormatElapsedClock(t *testing.T) {
	for d, want := range map[time.Duration]string{
		-time.Second:     "00:00",
		75 * time.Second: "01:15",
		time.Hour + 2*time.Minute + 3*time.Second: "01:02:03",
	} {
		if got := formatElapsedClock(d); got != want {
			t.Errorf("formatElapsedClock(%s) = %q, want %q", d, got, want)
		}
	}
}

func BenchmarkStreamingRenderComparison(b *testing.B) {
	chunks := makeBenchmarkChunks(256)

	b.Run("render_every_chunk", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			m := newBenchmarkProgress()
			for _, chunk := range chunks {
				m.outputBuf.WriteString(chunk)
				m.renderFormattedOutput()
			}
		}
	})

	b.Run("throttled_render_every_12_chunks", func(b *testing.B) {
		b.ReportAllocs()
		const batchSize = 12
		for i := 0; i < b.N; i++ {
			m := newBenchmarkProgress()
			for j, chunk := range chunks {
				m.outputBuf.WriteString(chunk)
				if (j+1)%batchSize == 0 {
					m.renderFormattedOutput()
				}
			}
			if len(chunks)%batchSize != 0 {
				m.renderFormattedOutput()
			}
		}
	})
}

func newBenchmarkProgress() *Progress {
	m := NewProgress(context.Background(), lipgloss.NewRenderer(io.Discard), ProgressOptions{WordWrap: 100, Theme: "notty"}, nil)
	m.width = 120
	m.height = 40
	m.glamViewport.Width = m.width
	m.glamViewport.Height = m.height
	return m
}

func makeBenchmarkChunks(n int) []string {
	chunk := "Houston went on a 9-0 run.\n- Sengun: 4 pts\n`ORtg 118.2`\n"
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = chunk
	}
	return chunks
}
