// Package server exposes agents, the team, the game report workflow and the
// report archive over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dotcommander/courtside/internal/logging"
	"github.com/dotcommander/courtside/internal/report"
	"github.com/dotcommander/courtside/internal/storage"
	"github.com/dotcommander/courtside/internal/team"
)

// DefaultAddr is the listen address when none is configured.
const DefaultAddr = ":7777"

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Runner executes agent and team turns. *team.Runner satisfies it.
type Runner interface {
	RunAgent(ctx context.Context, a *team.Agent, in team.Input) (*team.Output, error)
	RunTeam(ctx context.Context, t *team.Team, in team.Input) (*team.Output, error)
}

// Reports runs the game report workflow. *report.Workflow satisfies it.
type Reports interface {
	Run(ctx context.Context, req report.Request, observers ...report.Observer) (*report.Result, error)
}

// Archive stores finished reports. *storage.Archive satisfies it.
type Archive interface {
	Put(e storage.Entry, markdown string) (storage.Entry, error)
	List() []storage.Entry
	ListGame(date, homeTeam string) []storage.Entry
	Find(in string) (*storage.Entry, error)
	Read(id string) (string, error)
}

// Server is the HTTP API.
type Server struct {
	team    *team.Team
	runner  Runner
	reports Reports
	archive Archive
	model   string
	version string
	origins []string
	mcp     http.Handler
	log     *logging.Logger

	router *mux.Router
}

// Option configures a Server.
type Option func(*Server)

// WithArchive stores workflow reports in a.
func WithArchive(a Archive) Option { return func(s *Server) { s.archive = a } }

// WithCORSOrigins sets the allowed CORS origins. Empty allows any origin.
func WithCORSOrigins(origins []string) Option { return func(s *Server) { s.origins = origins } }

// WithLogger sets the request logger.
func WithLogger(l *logging.Logger) Option { return func(s *Server) { s.log = l } }

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option { return func(s *Server) { s.version = v } }

// WithModel labels archived reports with the narrating model.
func WithModel(m string) Option { return func(s *Server) { s.model = m } }

// WithMCP mounts an MCP handler at /mcp.
func WithMCP(h http.Handler) Option { return func(s *Server) { s.mcp = h } }

// New builds the API for t, run by runner, and the report workflow.
func New(t *team.Team, runner Runner, reports Reports, opts ...Option) *Server {
	s := &Server{
		team:    t,
		runner:  runner,
		reports: reports,
		version: "dev",
		router:  mux.NewRouter(),
	}
	for _, o := range opts {
		o(s)
	}
	s.log = logging.OrNop(s.log)

	s.router.Use(s.recovery, s.logging)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/agents", s.handleListAgents).Methods(http.MethodGet)
	api.HandleFunc("/agents/{id}/runs", s.handleAgentRun).Methods(http.MethodPost)
	api.HandleFunc("/teams/{id}/runs", s.handleTeamRun).Methods(http.MethodPost)
	api.HandleFunc("/workflows/game-report/runs", s.handleReportRun).Methods(http.MethodPost)
	api.HandleFunc("/reports", s.handleListReports).Methods(http.MethodGet)
	api.HandleFunc("/reports/{id}", s.handleGetReport).Methods(http.MethodGet)

	if s.mcp != nil {
		s.router.PathPrefix("/mcp").Handler(s.mcp)
	}
	return s
}

// Handler returns the router wrapped with CORS and tracing.
func (s *Server) Handler() http.Handler {
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"Content-Length", "Content-Type"},
	})
	return otelhttp.NewHandler(c.Handler(s.router), "courtside.api",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultAddr
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Infow("api listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	s.log.Infow("api shutting down")
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				s.log.Errorw("handler panic", "path", r.URL.Path, "panic", v)
				respondError(w, http.StatusInternalServerError, "internal error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		s.log.Infow("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"took", time.Since(start),
		)
	})
}
