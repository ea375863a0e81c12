package report

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dotcommander/courtside/internal/logging"
	"github.com/dotcommander/courtside/internal/stats"
)

// Name is the workflow's display name.
const Name = "Create Game Report"

// Stage names.
const (
	SearchPhase  = "Search Phase"
	WritingPhase = "Writing Phase"
)

// Request asks for one game report. AwayTeam only frames the narrative; the
// page is keyed by Date and HomeTeam.
type Request struct {
	Date     string `json:"date"`
	HomeTeam string `json:"home_team"`
	AwayTeam string `json:"away_team"`
}

// Key returns the play-by-play page key.
func (r Request) Key() stats.GameKey {
	return stats.GameKey{Date: r.Date, HomeTeam: r.HomeTeam}.Normalize()
}

// Title is a short human label for the game.
func (r Request) Title() string {
	return fmt.Sprintf("%s @ %s, %s", strings.ToUpper(r.AwayTeam), strings.ToUpper(r.HomeTeam), r.Date)
}

// Narrator writes the report from the serialized stats.
type Narrator interface {
	Narrate(ctx context.Context, req Request, data string) (string, error)
}

// NarratorFunc adapts a function to Narrator.
type NarratorFunc func(ctx context.Context, req Request, data string) (string, error)

// Narrate implements Narrator.
func (f NarratorFunc) Narrate(ctx context.Context, req Request, data string) (string, error) {
	return f(ctx, req, data)
}

// Result is a completed run.
type Result struct {
	RunID   string
	Request Request
	Report  string
	// Stats is the TOON-encoded table handed to the narrator.
	Stats       string
	Table       *stats.Table
	Transitions []Transition
	Started     time.Time
	FetchTime   time.Duration
	NarrateTime time.Duration
}

// Workflow is the fixed Search Phase then Writing Phase pipeline. A Workflow
// holds no per-run state and may run concurrently.
type Workflow struct {
	source    stats.Source
	narrator  Narrator
	log       *logging.Logger
	observers []Observer
	now       func() time.Time
	tracer    trace.Tracer
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithLogger sets the workflow logger.
func WithLogger(l *logging.Logger) Option {
	return func(w *Workflow) { w.log = l }
}

// WithObserver adds an observer notified of every run's transitions.
func WithObserver(o Observer) Option {
	return func(w *Workflow) { w.observers = append(w.observers, o) }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// New returns a Workflow fetching from source and narrating with narrator.
func New(source stats.Source, narrator Narrator, opts ...Option) *Workflow {
	w := &Workflow{
		source:   source,
		narrator: narrator,
		now:      time.Now,
		tracer:   otel.Tracer("courtside/report"),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = logging.OrNop(w.log)
	return w
}

// run tracks the state of one execution.
type run struct {
	w       *Workflow
	id      string
	state   State
	log     *logging.Logger
	extra   []Observer
	history []Transition
}

func (r *run) advance(to State, err error) error {
	if !r.state.CanTransition(to) {
		return &TransitionError{From: r.state, To: to}
	}
	t := Transition{RunID: r.id, From: r.state, To: to, At: r.w.now(), Err: err}
	r.state = to
	r.history = append(r.history, t)
	r.log.Debugw("workflow transition", "from", t.From.String(), "to", t.To.String())
	for _, o := range r.w.observers {
		o.Observe(t)
	}
	for _, o := range r.extra {
		o.Observe(t)
	}
	return nil
}

// Run executes the workflow. Stage failures abort the run: a fetch error is
// returned as the stats error (*stats.FetchError or *stats.ParseError) and
// the narrator is never called; a narration failure is a *NarrationError.
// Nothing is retried. Extra observers apply to this run only.
func (w *Workflow) Run(ctx context.Context, req Request, observers ...Observer) (*Result, error) {
	id := uuid.NewString()
	ctx, span := w.tracer.Start(ctx, Name, trace.WithAttributes(
		attribute.String("run.id", id),
		attribute.String("game.date", req.Date),
		attribute.String("game.home_team", req.HomeTeam),
		attribute.String("game.away_team", req.AwayTeam),
	))
	defer span.End()

	r := &run{
		w:     w,
		id:    id,
		state: Idle,
		log:   w.log.With("run", id, "date", req.Date, "home_team", req.HomeTeam, "away_team", req.AwayTeam),
		extra: observers,
	}
	res := &Result{RunID: id, Request: req, Started: w.now()}

	fail := func(err error) (*Result, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if terr := r.advance(Failed, err); terr != nil {
			return nil, terr
		}
		return nil, err
	}

	// Search Phase.
	if err := r.advance(Fetching, nil); err != nil {
		return nil, err
	}
	start := w.now()
	table, err := w.search(ctx, req)
	res.FetchTime = w.now().Sub(start)
	if err != nil {
		r.log.Errorw("search phase failed", "error", err)
		return fail(err)
	}
	res.Table = table
	res.Stats = stats.Encode(table)
	if err := r.advance(Fetched, nil); err != nil {
		return nil, err
	}
	r.log.Infow("search phase done", "rows", table.Len(), "columns", table.Width(), "took", res.FetchTime)

	// Writing Phase.
	if err := r.advance(Narrating, nil); err != nil {
		return nil, err
	}
	start = w.now()
	text, err := w.write(ctx, req, res.Stats)
	res.NarrateTime = w.now().Sub(start)
	if err == nil && strings.TrimSpace(text) == "" {
		err = ErrEmptyReport
	}
	if err != nil {
		nerr := &NarrationError{RunID: id, Err: err}
		r.log.Errorw("writing phase failed", "error", err)
		return fail(nerr)
	}
	res.Report = strings.TrimSpace(text)
	if err := r.advance(Done, nil); err != nil {
		return nil, err
	}
	r.log.Infow("writing phase done", "chars", len(res.Report), "took", res.NarrateTime)

	res.Transitions = r.history
	span.SetAttributes(attribute.Int("report.rows", table.Len()))
	return res, nil
}

func (w *Workflow) search(ctx context.Context, req Request) (*stats.Table, error) {
	ctx, span := w.tracer.Start(ctx, SearchPhase)
	defer span.End()
	table, err := w.source.PlayByPlay(ctx, req.Key())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return table, err
}

func (w *Workflow) write(ctx context.Context, req Request, data string) (string, error) {
	ctx, span := w.tracer.Start(ctx, WritingPhase)
	defer span.End()
	text, err := w.narrator.Narrate(ctx, req, data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return text, err
}
