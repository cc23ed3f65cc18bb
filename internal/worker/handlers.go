package worker

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/internal/continuity"
	"github.com/GoSecreto/UniMem/internal/search"
	"github.com/GoSecreto/UniMem/internal/tokens"
	"github.com/GoSecreto/UniMem/internal/worker/sse"
	"github.com/GoSecreto/UniMem/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func internalError(w http.ResponseWriter, op string, err error) {
	log.Error().Err(err).Str("op", op).Msg("Request failed")
	writeError(w, http.StatusInternalServerError, err.Error())
}

// requireProject returns the project query parameter or answers 400.
func requireProject(w http.ResponseWriter, r *http.Request) (string, bool) {
	project := r.URL.Query().Get("project")
	if project == "" {
		writeError(w, http.StatusBadRequest, "project query parameter required")
		return "", false
	}
	return project, true
}

func intParam(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "starting"
	if s.ready.Load() {
		status = "ready"
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": status, "version": s.version})
}

func (s *Service) handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	if !s.ready.Load() {
		writeError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Service) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := s.app.Search.UnifiedSearch(r.Context(), search.SearchParams{
		Query:   q.Get("query"),
		Project: q.Get("project"),
		CLITool: models.CLITool(q.Get("cli_tool")),
		Type:    q.Get("type"),
		Format:  q.Get("format"),
		Limit:   intParam(r, "limit", 20),
	})
	if err != nil {
		internalError(w, "search", err)
		return
	}
	s.metrics.RecordSearch(r.Context())
	writeJSON(w, http.StatusOK, result)
}

func (s *Service) handleProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.GetAllProjects(r.Context())
	if err != nil {
		internalError(w, "projects", err)
		return
	}
	if projects == nil {
		projects = []string{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Service) handleSessions(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r)
	if !ok {
		return
	}
	sessions, err := s.store.GetRecentSessions(r.Context(), project, intParam(r, "limit", 10))
	if err != nil {
		internalError(w, "sessions", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sessions))
}

func (s *Service) handleObservations(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r)
	if !ok {
		return
	}
	obs, err := s.store.GetObservationsByProject(r.Context(), project, intParam(r, "limit", 50))
	if err != nil {
		internalError(w, "observations", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(obs))
}

func (s *Service) handleTimeline(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r)
	if !ok {
		return
	}
	anchor, err := strconv.ParseInt(r.URL.Query().Get("anchor"), 10, 64)
	if err != nil || anchor <= 0 {
		writeError(w, http.StatusBadRequest, "anchor query parameter required")
		return
	}
	obs, err := s.store.GetTimeline(r.Context(), project, anchor, intParam(r, "before", 5), intParam(r, "after", 5))
	if err != nil {
		internalError(w, "timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(obs))
}

func (s *Service) handleSummaries(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r)
	if !ok {
		return
	}
	sums, err := s.store.GetRecentSummaries(r.Context(), project, intParam(r, "limit", 3))
	if err != nil {
		internalError(w, "summaries", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(sums))
}

func (s *Service) handleHandoffs(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r)
	if !ok {
		return
	}
	hs, err := s.store.GetHandoffHistory(r.Context(), project, intParam(r, "limit", 20))
	if err != nil {
		internalError(w, "handoffs", err)
		return
	}
	writeJSON(w, http.StatusOK, orEmpty(hs))
}

func (s *Service) handlePendingHandoff(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r)
	if !ok {
		return
	}
	h, err := s.store.GetPendingHandoff(r.Context(), project)
	if err != nil {
		internalError(w, "pending handoff", err)
		return
	}
	if h == nil {
		writeJSON(w, http.StatusOK, nil)
		return
	}
	writeJSON(w, http.StatusOK, h)
}

// CreateHandoffRequest is the body of POST /api/handoffs.
type CreateHandoffRequest struct {
	SessionID string               `json:"session_id"`
	Project   string               `json:"project"`
	CLITool   models.CLITool       `json:"cli_tool"`
	Reason    models.HandoffReason `json:"reason"`
	Notes     string               `json:"notes,omitempty"`
	Task      string               `json:"task,omitempty"`
	NextSteps []string             `json:"next_steps,omitempty"`
}

func (s *Service) handleCreateHandoff(w http.ResponseWriter, r *http.Request) {
	var req CreateHandoffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Project == "" {
		writeError(w, http.StatusBadRequest, "project required")
		return
	}
	req.CLITool = models.ParseCLITool(string(req.CLITool), models.CLIClaudeCode)
	if req.SessionID == "" {
		var err error
		if req.SessionID, req.CLITool, err = s.app.OpenSession(r.Context(), req.Project, req.CLITool, false); err != nil {
			internalError(w, "create handoff", err)
			return
		}
	}

	h, err := s.engine.Handoff(r.Context(), continuity.HandoffRequest{
		SessionID: req.SessionID,
		Project:   req.Project,
		CLI:       req.CLITool,
		Reason:    req.Reason,
		Notes:     req.Notes,
		Task:      req.Task,
		NextSteps: req.NextSteps,
	})
	if errors.Is(err, continuity.ErrInvalidReason) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		internalError(w, "create handoff", err)
		return
	}
	s.metrics.RecordHandoff(r.Context(), string(h.Reason))
	s.sseBroadcaster.Publish(sse.Event{Type: sse.EventHandoffCreated, Project: h.Project, SessionID: h.FromSessionID, Data: h})
	writeJSON(w, http.StatusCreated, h)
}

// ResumeResponse is the body of GET /api/resume.
type ResumeResponse struct {
	Context  *models.ResumeContext `json:"context"`
	Markdown string                `json:"markdown"`
	Tokens   int                   `json:"tokens"`
}

// handleResume is passive: it never consumes a pending handoff.
func (s *Service) handleResume(w http.ResponseWriter, r *http.Request) {
	project, ok := requireProject(w, r)
	if !ok {
		return
	}
	rc, md, err := s.app.Resume(r.Context(), project, "")
	if err != nil {
		internalError(w, "resume", err)
		return
	}
	writeJSON(w, http.StatusOK, ResumeResponse{Context: rc, Markdown: md, Tokens: tokens.Count(md)})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Version           string          `json:"version"`
	Backend           string          `json:"backend"`
	Port              int             `json:"port"`
	Uptime            string          `json:"uptime"`
	Projects          []string        `json:"projects"`
	Project           string          `json:"project,omitempty"`
	TotalObservations int64           `json:"total_observations"`
	LastSession       *models.Session `json:"last_session,omitempty"`
	PendingHandoff    *models.Handoff `json:"pending_handoff,omitempty"`
	ActiveSessions    int             `json:"active_sessions"`
	SSEClients        int             `json:"sse_clients"`
	Stats             Stats           `json:"stats"`
}

func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	project := r.URL.Query().Get("project")

	projects, err := s.store.GetAllProjects(ctx)
	if err != nil {
		internalError(w, "status", err)
		return
	}
	resp := StatusResponse{
		Version:        s.version,
		Backend:        string(s.config.StoreBackend),
		Port:           s.config.WorkerPort,
		Uptime:         time.Since(s.startTime).Round(time.Second).String(),
		Projects:       orEmpty(projects),
		Project:        project,
		ActiveSessions: s.sessionManager.GetActiveSessionCount(),
		SSEClients:     s.sseBroadcaster.ClientCount(),
		Stats:          s.metrics.Snapshot(),
	}
	if project != "" {
		if resp.TotalObservations, err = s.store.CountObservations(ctx, project); err != nil {
			internalError(w, "status", err)
			return
		}
		if resp.LastSession, err = s.store.GetLastActiveSession(ctx, project); err != nil {
			internalError(w, "status", err)
			return
		}
		if resp.PendingHandoff, err = s.store.GetPendingHandoff(ctx, project); err != nil {
			internalError(w, "status", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetStats returns the worker counters.
func (s *Service) GetStats() Stats {
	return s.metrics.Snapshot()
}

func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
