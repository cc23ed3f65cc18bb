package worker

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/internal/contextfile"
	"github.com/GoSecreto/UniMem/internal/privacy"
	"github.com/GoSecreto/UniMem/internal/tokens"
	"github.com/GoSecreto/UniMem/internal/worker/sse"
	"github.com/GoSecreto/UniMem/pkg/models"
)

var (
	editTools  = []string{"Edit", "Write", "replace", "insert", "NotebookEdit", "write_file", "apply_patch"}
	readTools  = []string{"Read", "cat", "Glob", "Grep", "find", "read_file", "search"}
	shellTools = []string{"Bash", "shell", "terminal", "run_shell_command"}
)

// CategorizeTool maps a tool name to the observation type it produces.
func CategorizeTool(toolName string) models.ObservationType {
	for _, t := range editTools {
		if strings.Contains(toolName, t) {
			return models.ObsTypeImplementation
		}
	}
	for _, group := range [][]string{readTools, shellTools} {
		for _, t := range group {
			if strings.Contains(toolName, t) {
				return models.ObsTypeDiscovery
			}
		}
	}
	return models.ObsTypeDiscovery
}

// handleHook serves POST /api/hooks/{hookType}.
func (s *Service) handleHook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	hookType := models.HookType(chi.URLParam(r, "hookType"))
	if !hookType.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown hook type %q", hookType))
		return
	}

	var ev models.HookEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if ev.Project == "" {
		writeError(w, http.StatusBadRequest, "project required")
		return
	}
	ev.CLITool = models.ParseCLITool(string(ev.CLITool), models.CLIClaudeCode)
	if ev.SessionID == "" {
		ev.SessionID = models.NewSessionID(ev.CLITool, s.app.Now())
	}

	log.Info().Str("hook", string(hookType)).Str("cli", string(ev.CLITool)).Str("session", ev.SessionID).Msg("Hook received")

	res, err := s.dispatchHook(r.Context(), hookType, &ev)
	s.metrics.RecordHook(r.Context(), string(hookType), time.Since(start), err != nil)
	if err != nil {
		internalError(w, "hook "+string(hookType), err)
		return
	}
	res.Success = true
	res.SessionID = ev.SessionID
	writeJSON(w, http.StatusOK, res)
}

func (s *Service) dispatchHook(ctx context.Context, hookType models.HookType, ev *models.HookEvent) (*models.HookResult, error) {
	switch hookType {
	case models.HookSessionStart:
		return s.hookSessionStart(ctx, ev)
	case models.HookToolUse:
		return s.hookToolUse(ctx, ev)
	case models.HookPrompt:
		return s.hookPrompt(ctx, ev)
	case models.HookSessionEnd:
		return s.hookSessionEnd(ctx, ev)
	case models.HookSessionAutosave:
		return s.hookAutosave(ctx, ev)
	case models.HookAutoDetect:
		return s.hookAutoDetect(ctx, ev)
	}
	return nil, fmt.Errorf("unhandled hook type %q", hookType)
}

func (s *Service) hookSessionStart(ctx context.Context, ev *models.HookEvent) (*models.HookResult, error) {
	sess := models.NewSession(ev.SessionID, ev.Project, ev.CLITool, s.app.Now())
	sess.CLIVersion = models.NullString(ev.CLIVersion)
	if prompt := privacy.Clean(ev.Prompt); prompt != "" {
		sess.UserPrompt = models.NullString(prompt)
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	s.track(ctx, ev)
	return &models.HookResult{}, nil
}

func (s *Service) hookToolUse(ctx context.Context, ev *models.HookEvent) (*models.HookResult, error) {
	toolName := ev.ToolName
	if toolName == "" {
		toolName = "Tool"
	}
	if ev.Summary != "" && privacy.IsEntirelyPrivate(ev.Summary) {
		return &models.HookResult{Message: "skipped private content"}, nil
	}

	read := s.filterFiles(ev.FilesRead)
	modified := s.filterFiles(ev.FilesModified)
	narrative := privacy.Clean(ev.Summary)
	if narrative == "" {
		narrative = "Used " + toolName
	}

	obs := models.NewObservation(ev.SessionID, ev.Project, ev.CLITool, CategorizeTool(toolName), observationTitle(toolName, modified, read), s.app.Now())
	obs.Narrative = models.NullString(narrative)
	obs.Concepts = []string{toolName}
	obs.FilesRead = read
	obs.FilesModified = modified
	obs.DiscoveryTokens = int64(tokens.Count(narrative))

	s.track(ctx, ev)
	id, err := s.store.SaveObservation(ctx, obs)
	if err != nil {
		return nil, fmt.Errorf("save observation: %w", err)
	}
	s.metrics.RecordObservation(ctx, string(ev.CLITool))
	s.sseBroadcaster.Publish(sse.Event{Type: sse.EventObservation, Project: ev.Project, SessionID: ev.SessionID, Data: obs})

	count := s.sessionManager.RecordObservation(ev.SessionID, ev.Project, ev.CLITool)
	if every := int64(s.config.SummaryEvery); every > 0 && count%every == 0 {
		s.summarize(ctx, ev)
	}
	return &models.HookResult{ObservationID: id}, nil
}

func (s *Service) hookPrompt(ctx context.Context, ev *models.HookEvent) (*models.HookResult, error) {
	if strings.TrimSpace(ev.Prompt) == "" || privacy.IsEntirelyPrivate(ev.Prompt) {
		return &models.HookResult{Message: "skipped empty or private prompt"}, nil
	}
	s.track(ctx, ev)
	p := &models.UserPrompt{
		SessionID:  ev.SessionID,
		Project:    ev.Project,
		CLITool:    ev.CLITool,
		PromptText: privacy.Clean(ev.Prompt),
	}
	if err := s.engine.RecordPrompt(ctx, p); err != nil {
		return nil, fmt.Errorf("record prompt: %w", err)
	}
	s.sessionManager.RecordPrompt(ev.SessionID, ev.Project, ev.CLITool)
	s.metrics.RecordPrompt()
	s.sseBroadcaster.Publish(sse.Event{
		Type: sse.EventPrompt, Project: ev.Project, SessionID: ev.SessionID,
		Data: map[string]int{"prompt_number": p.PromptNumber},
	})
	return &models.HookResult{}, nil
}

func (s *Service) hookSessionEnd(ctx context.Context, ev *models.HookEvent) (*models.HookResult, error) {
	if err := s.store.UpdateSessionStatus(ctx, ev.SessionID, models.SessionStatusCompleted, "session_end"); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	s.sessionManager.DeleteSession(ev.SessionID)
	return &models.HookResult{}, nil
}

// hookAutosave snapshots the ending session. A session that captured nothing
// is completed instead.
func (s *Service) hookAutosave(ctx context.Context, ev *models.HookEvent) (*models.HookResult, error) {
	h, err := s.engine.HandoffOnExit(ctx, ev.SessionID, ev.Project, ev.CLITool, ev.ExitReason)
	switch {
	case err != nil && h == nil:
		return nil, fmt.Errorf("handoff on exit: %w", err)
	case err != nil:
		log.Warn().Err(err).Str("session", ev.SessionID).Msg("Handoff saved but summary failed")
	}
	s.sessionManager.DeleteSession(ev.SessionID)

	if h == nil {
		if err := s.store.UpdateSessionStatus(ctx, ev.SessionID, models.SessionStatusCompleted, "session_end"); err != nil {
			return nil, fmt.Errorf("complete session: %w", err)
		}
		return &models.HookResult{Message: "nothing captured, session completed"}, nil
	}

	s.metrics.RecordHandoff(ctx, string(h.Reason))
	s.metrics.RecordSummary(ctx)
	s.sseBroadcaster.Publish(sse.Event{Type: sse.EventHandoffCreated, Project: h.Project, SessionID: h.FromSessionID, Data: h})
	log.Info().Str("cli", string(ev.CLITool)).Str("session", ev.SessionID).Str("reason", string(h.Reason)).Msg("Auto-saved handoff")
	return &models.HookResult{HandoffID: h.ID}, nil
}

// hookAutoDetect injects context from another CLI's recent work. With a cwd it
// also consumes any pending handoff and rewrites the CLI's context file.
func (s *Service) hookAutoDetect(ctx context.Context, ev *models.HookEvent) (*models.HookResult, error) {
	note, err := s.engine.DetectOnStart(ctx, ev.Project, ev.CLITool, ev.SessionID)
	if err != nil {
		return nil, fmt.Errorf("detect on start: %w", err)
	}
	res := &models.HookResult{Context: note}
	if note == "" || ev.CWD == "" {
		return res, nil
	}

	rc, md, err := s.app.ResumeSession(ctx, ev.Project, ev.CLITool, ev.SessionID)
	if err != nil {
		return nil, err
	}
	if rc.PickedUpBy != "" {
		s.metrics.RecordPickup()
		s.sseBroadcaster.Publish(sse.Event{
			Type: sse.EventHandoffPickedUp, Project: ev.Project, SessionID: rc.PickedUpBy,
			Data: map[string]string{"cli_tool": string(ev.CLITool)},
		})
	}

	path, err := contextfile.Write(ev.CWD, ev.CLITool, md)
	if err != nil {
		return nil, fmt.Errorf("write context file: %w", err)
	}
	s.metrics.RecordContextFile()
	res.File = path
	log.Info().Str("cli", string(ev.CLITool)).Str("file", path).Msg("Injected context from previous CLI")
	return res, nil
}

// track registers the session with the manager, seeding its observation
// counter from the store the first time the worker sees it.
func (s *Service) track(ctx context.Context, ev *models.HookEvent) {
	sess, created := s.sessionManager.Touch(ev.SessionID, ev.Project, ev.CLITool)
	if !created {
		return
	}
	n, err := s.store.CountSessionObservations(ctx, ev.SessionID)
	if err != nil {
		log.Debug().Err(err).Str("session", ev.SessionID).Msg("Failed to count session observations")
		return
	}
	sess.SeedObservations(n)
}

func (s *Service) summarize(ctx context.Context, ev *models.HookEvent) {
	sum, err := s.engine.RollingSummary(ctx, ev.SessionID, ev.Project, ev.CLITool)
	if err != nil {
		log.Warn().Err(err).Str("session", ev.SessionID).Msg("Rolling summary failed")
		return
	}
	if sum == nil {
		return
	}
	s.metrics.RecordSummary(ctx)
	s.sseBroadcaster.Publish(sse.Event{Type: sse.EventSummary, Project: ev.Project, SessionID: ev.SessionID, Data: sum})
}

func (s *Service) filterFiles(paths []string) []string {
	var out []string
	for _, p := range paths {
		if p == "" || s.config.Ignored(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func observationTitle(toolName string, modified, read []string) string {
	switch {
	case len(modified) > 0:
		return toolName + " " + filepath.Base(modified[0])
	case len(read) > 0:
		return toolName + " " + filepath.Base(read[0])
	default:
		return toolName
	}
}
