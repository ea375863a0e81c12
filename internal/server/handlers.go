package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/dotcommander/courtside/internal/proto"
	"github.com/dotcommander/courtside/internal/report"
	"github.com/dotcommander/courtside/internal/stats"
	"github.com/dotcommander/courtside/internal/storage"
	"github.com/dotcommander/courtside/internal/team"
)

type agentInfo struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Model       string   `json:"model"`
	Tools       []string `json:"tools"`
	Team        bool     `json:"team,omitempty"`
}

type runRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

type toolCall struct {
	Name   string `json:"name"`
	Output string `json:"output,omitempty"`
	Error  string `json:"error,omitempty"`
}

type runResponse struct {
	RunID     int64          `json:"run_id,omitempty"`
	SessionID string         `json:"session_id"`
	AgentID   string         `json:"agent_id"`
	Content   string         `json:"content"`
	ToolCalls []toolCall     `json:"tool_calls,omitempty"`
	Members   []*runResponse `json:"members,omitempty"`
}

type transition struct {
	From  string    `json:"from"`
	To    string    `json:"to"`
	At    time.Time `json:"at"`
	Error string    `json:"error,omitempty"`
}

type reportResponse struct {
	RunID       string         `json:"run_id"`
	ID          string         `json:"id,omitempty"`
	Title       string         `json:"title"`
	Request     report.Request `json:"request"`
	Report      string         `json:"report"`
	Transitions []transition   `json:"transitions"`
	FetchMS     int64          `json:"fetch_ms"`
	NarrateMS   int64          `json:"narrate_ms"`
}

type storedReport struct {
	storage.Entry
	Report string `json:"report"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "courtside",
		"version": s.version,
	})
}

func (s *Server) handleListAgents(w http.ResponseWriter, _ *http.Request) {
	out := make([]agentInfo, 0, len(s.team.Members)+1)
	out = append(out, agentInfo{
		ID:          s.team.ID,
		Name:        s.team.Name,
		Description: s.team.Description,
		Model:       s.team.Model.ModelID,
		Tools:       nonNil(s.team.Tools),
		Team:        true,
	})
	for _, m := range s.team.Members {
		out = append(out, agentInfo{
			ID:          m.ID,
			Name:        m.Name,
			Description: m.Description,
			Model:       m.Model.ModelID,
			Tools:       nonNil(m.Tools),
		})
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handleAgentRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	a, ok := s.team.Member(id)
	if !ok {
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown agent %q", id), nil)
		return
	}
	in, ok := decodeRun(w, r)
	if !ok {
		return
	}
	out, err := s.runner.RunAgent(r.Context(), a, in)
	if err != nil {
		s.log.Errorw("agent run failed", "agent", id, "error", err)
		respondError(w, statusFor(err), "agent run failed", err)
		return
	}
	respondJSON(w, http.StatusOK, toRunResponse(out))
}

func (s *Server) handleTeamRun(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if id != s.team.ID {
		respondError(w, http.StatusNotFound, fmt.Sprintf("unknown team %q", id), nil)
		return
	}
	in, ok := decodeRun(w, r)
	if !ok {
		return
	}
	out, err := s.runner.RunTeam(r.Context(), s.team, in)
	if err != nil {
		s.log.Errorw("team run failed", "team", id, "error", err)
		respondError(w, statusFor(err), "team run failed", err)
		return
	}
	respondJSON(w, http.StatusOK, toRunResponse(out))
}

func (s *Server) handleReportRun(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if strings.TrimSpace(req.AwayTeam) == "" {
		respondError(w, http.StatusBadRequest, "away_team is required", nil)
		return
	}
	if err := req.Key().Validate(); err != nil {
		respondError(w, http.StatusBadRequest, "invalid game", err)
		return
	}

	res, err := s.reports.Run(r.Context(), req)
	if err != nil {
		respondError(w, statusFor(err), "game report failed", err)
		return
	}

	out := reportResponse{
		RunID:       res.RunID,
		Title:       req.Title(),
		Request:     res.Request,
		Report:      res.Report,
		Transitions: toTransitions(res.Transitions),
		FetchMS:     res.FetchTime.Milliseconds(),
		NarrateMS:   res.NarrateTime.Milliseconds(),
	}
	if s.archive != nil {
		e, err := s.archive.Put(storage.Entry{
			Title:    req.Title(),
			Date:     req.Key().Date,
			HomeTeam: req.Key().HomeTeam,
			AwayTeam: strings.ToUpper(req.AwayTeam),
			Model:    s.model,
			RunID:    res.RunID,
		}, res.Report)
		if err != nil {
			s.log.Warnw("could not archive report", "run", res.RunID, "error", err)
		} else {
			out.ID = e.ID
		}
	}
	respondJSON(w, http.StatusOK, out)
}

// handleListReports lists archived reports, newest first. date and home
// narrow the list to one game and must be given together.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondJSON(w, http.StatusOK, []storage.Entry{})
		return
	}
	q := r.URL.Query()
	date, home := q.Get("date"), q.Get("home")
	var entries []storage.Entry
	switch {
	case date == "" && home == "":
		entries = s.archive.List()
	case date == "" || home == "":
		respondError(w, http.StatusBadRequest, "date and home must be given together", nil)
		return
	default:
		entries = s.archive.ListGame(date, home)
	}
	if entries == nil {
		entries = []storage.Entry{}
	}
	respondJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		respondError(w, http.StatusNotFound, "report archive disabled", nil)
		return
	}
	e, err := s.archive.Find(mux.Vars(r)["id"])
	switch {
	case errors.Is(err, storage.ErrNoMatches):
		respondError(w, http.StatusNotFound, "report not found", err)
		return
	case errors.Is(err, storage.ErrManyMatches):
		respondError(w, http.StatusConflict, "ambiguous report id", err)
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "could not find report", err)
		return
	}
	md, err := s.archive.Read(e.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "could not read report", err)
		return
	}
	respondJSON(w, http.StatusOK, storedReport{Entry: *e, Report: md})
}

func decodeRun(w http.ResponseWriter, r *http.Request) (team.Input, bool) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err)
		return team.Input{}, false
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required", nil)
		return team.Input{}, false
	}
	return team.Input{SessionID: req.SessionID, UserID: req.UserID, Message: req.Message}, true
}

func toRunResponse(o *team.Output) *runResponse {
	out := &runResponse{
		RunID:     o.RunID,
		SessionID: o.SessionID,
		AgentID:   o.AgentID,
		Content:   o.Content,
		ToolCalls: toToolCalls(o.ToolCalls),
	}
	for _, m := range o.Members {
		out.Members = append(out.Members, toRunResponse(m))
	}
	return out
}

func toToolCalls(calls []proto.ToolCallStatus) []toolCall {
	out := make([]toolCall, 0, len(calls))
	for _, c := range calls {
		tc := toolCall{Name: c.Name, Output: c.Output}
		if c.Err != nil {
			tc.Error = c.Err.Error()
		}
		out = append(out, tc)
	}
	return out
}

func toTransitions(ts []report.Transition) []transition {
	out := make([]transition, 0, len(ts))
	for _, t := range ts {
		tr := transition{From: t.From.String(), To: t.To.String(), At: t.At}
		if t.Err != nil {
			tr.Error = t.Err.Error()
		}
		out = append(out, tr)
	}
	return out
}

// statusFor maps pipeline errors to HTTP statuses: a missing game is 404,
// upstream fetch and model failures are 502.
func statusFor(err error) int {
	var nerr *report.NarrationError
	switch {
	case errors.Is(err, stats.ErrParse):
		return http.StatusNotFound
	case errors.Is(err, stats.ErrFetch), errors.As(err, &nerr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string, err error) {
	body := map[string]string{"error": msg}
	if err != nil {
		body["detail"] = err.Error()
	}
	respondJSON(w, status, body)
}
