// Package continuity implements the automatic save layers: rolling session
// summaries, handoffs on exit and cross-CLI detection on session start.
package continuity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GoSecreto/UniMem/internal/policy"
	"github.com/GoSecreto/UniMem/internal/store"
	"github.com/GoSecreto/UniMem/pkg/models"
)

const (
	// MinSummaryObservations is the smallest session that gets a rolling summary.
	MinSummaryObservations = 3

	summaryFetchLimit   = 50
	handoffRecentLimit  = 10
	inProgressLimit     = 3
	learnedLimit        = 3
	detectRecentLimit   = 5
	defaultDetectWindow = 30 * time.Minute
	defaultSummaryEvery = 3
)

// Engine runs the auto-save layers against a store.
type Engine struct {
	store        store.Store
	policy       *policy.Table
	now          func() time.Time
	detectWindow time.Duration
	summaryEvery int
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithDetectWindow sets how far back DetectOnStart looks for another CLI.
func WithDetectWindow(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.detectWindow = d
		}
	}
}

// WithSummaryEvery sets the prompt interval that triggers a rolling summary.
func WithSummaryEvery(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.summaryEvery = n
		}
	}
}

// NewEngine creates an engine. A nil table uses the default exit-reason rules.
func NewEngine(st store.Store, table *policy.Table, opts ...Option) *Engine {
	if table == nil {
		table = policy.Default()
	}
	e := &Engine{
		store:        st,
		policy:       table,
		now:          time.Now,
		detectWindow: defaultDetectWindow,
		summaryEvery: defaultSummaryEvery,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DetectWindow returns the recent-activity window.
func (e *Engine) DetectWindow() time.Duration {
	return e.detectWindow
}

// RollingSummary recomputes and upserts the summary of a session from its
// newest observations. Sessions with fewer than three observations are skipped.
func (e *Engine) RollingSummary(ctx context.Context, sessionID, project string, cli models.CLITool) (*models.SessionSummary, error) {
	obs, err := e.store.GetObservationsBySession(ctx, sessionID, summaryFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	if len(obs) < MinSummaryObservations {
		return nil, nil
	}

	files := collectFiles(obs)
	var discoveries, work []string
	var implementations, bugfixes []string
	for _, o := range obs {
		title := o.TitleOr("")
		if title == "" {
			continue
		}
		switch o.Type {
		case models.ObsTypeDiscovery:
			discoveries = append(discoveries, title)
		case models.ObsTypeImplementation:
			implementations = append(implementations, title)
		case models.ObsTypeBugfix:
			bugfixes = append(bugfixes, title)
		}
	}
	work = append(implementations, bugfixes...)

	learned := discoveries
	if len(learned) > learnedLimit {
		learned = learned[:learnedLimit]
	}

	sum := models.NewSessionSummary(sessionID, project, cli, models.SummaryFields{
		Request:      obs[len(obs)-1].TitleOr("Session work"),
		Investigated: strings.Join(discoveries, "; "),
		Completed:    strings.Join(work, "; "),
		Learned:      strings.Join(learned, "; "),
		Notes:        fmt.Sprintf("Auto-generated rolling summary (%d observations)", len(obs)),
	}, e.now())
	sum.FilesRead = files.Read
	sum.FilesEdited = files.Modified

	if _, err := e.store.SaveSummary(ctx, sum); err != nil {
		return nil, fmt.Errorf("save summary: %w", err)
	}
	log.Debug().Str("session", sessionID).Int("observations", len(obs)).Msg("Rolling summary saved")
	return sum, nil
}

// RecordPrompt stores a user prompt and refreshes the rolling summary on every
// summaryEvery-th prompt of the session.
func (e *Engine) RecordPrompt(ctx context.Context, p *models.UserPrompt) error {
	if _, err := e.store.SaveUserPrompt(ctx, p); err != nil {
		return fmt.Errorf("save prompt: %w", err)
	}
	if p.PromptNumber%e.summaryEvery != 0 {
		return nil
	}
	_, err := e.RollingSummary(ctx, p.SessionID, p.Project, p.CLITool)
	return err
}

// HandoffOnExit snapshots a session that is ending, whatever the exit reason,
// and refreshes its rolling summary. Sessions without observations are skipped.
// A failed summary is reported alongside the handoff that was already saved.
func (e *Engine) HandoffOnExit(ctx context.Context, sessionID, project string, cli models.CLITool, exitReason string) (*models.Handoff, error) {
	obs, err := e.store.GetObservationsBySession(ctx, sessionID, summaryFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}
	if len(obs) == 0 {
		return nil, nil
	}

	reason := e.policy.Classify(exitReason)
	now := e.now()
	snap := buildSnapshot(obs, project, cli, now)
	snap.Notes = fmt.Sprintf("Auto-saved on session exit (%s). %d observations captured.", reason, len(obs))

	h := &models.Handoff{
		Project:        project,
		FromSessionID:  sessionID,
		FromCLI:        cli,
		StateSnapshot:  snap,
		Reason:         reason,
		CreatedAtEpoch: now.Unix(),
	}
	_, createErr := e.store.CreateHandoff(ctx, h)
	_, sumErr := e.RollingSummary(ctx, sessionID, project, cli)
	if createErr != nil {
		return nil, errors.Join(createErr, sumErr)
	}
	log.Info().Str("project", project).Str("from", string(cli)).Str("reason", string(reason)).Msg("Handoff saved on exit")
	return h, sumErr
}

// HandoffRequest is an explicit switch requested by the user or an agent.
type HandoffRequest struct {
	SessionID string
	Project   string
	CLI       models.CLITool
	Reason    models.HandoffReason
	Notes     string
	// Task, NextSteps and Decisions override what is derived from observations.
	Task      string
	NextSteps []string
	Decisions []string
}

// ErrInvalidReason is returned for a handoff reason outside the known set.
var ErrInvalidReason = errors.New("invalid handoff reason")

// Handoff records an explicit handoff. Unlike HandoffOnExit it is written even
// when the session has no observations.
func (e *Engine) Handoff(ctx context.Context, req HandoffRequest) (*models.Handoff, error) {
	if req.Reason == "" {
		req.Reason = models.HandoffManual
	}
	if !req.Reason.Valid() {
		return nil, fmt.Errorf("%w %q", ErrInvalidReason, req.Reason)
	}
	obs, err := e.store.GetObservationsBySession(ctx, req.SessionID, summaryFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("load observations: %w", err)
	}

	now := e.now()
	snap := buildSnapshot(obs, req.Project, req.CLI, now)
	snap.Task.Status = "handed_off"
	if req.Task != "" {
		snap.Task.Request = req.Task
	}
	if len(req.NextSteps) > 0 {
		snap.NextSteps = req.NextSteps
	}
	if len(req.Decisions) > 0 {
		snap.DecisionsMade = req.Decisions
	}
	snap.Notes = req.Notes

	h := &models.Handoff{
		Project:        req.Project,
		FromSessionID:  req.SessionID,
		FromCLI:        req.CLI,
		StateSnapshot:  snap,
		Reason:         req.Reason,
		CreatedAtEpoch: now.Unix(),
	}
	if _, err := e.store.CreateHandoff(ctx, h); err != nil {
		return nil, fmt.Errorf("create handoff: %w", err)
	}
	log.Info().Str("project", req.Project).Str("from", string(req.CLI)).Str("reason", string(req.Reason)).Msg("Handoff saved")
	return h, nil
}

// buildSnapshot derives the working state from obs, newest first.
func buildSnapshot(obs []*models.Observation, project string, cli models.CLITool, now time.Time) models.HandoffSnapshot {
	snap := models.HandoffSnapshot{
		Project:   project,
		FromCLI:   cli,
		Timestamp: now.UTC().Format(time.RFC3339),
		Task: models.TaskState{
			Request: "Unknown task",
			Status:  "interrupted",
		},
		Completed:          []string{},
		InProgress:         []string{},
		DecisionsMade:      []string{},
		NextSteps:          []string{},
		RecentObservations: []models.ObservationRef{},
		FilesTouched:       collectFiles(obs),
	}
	if len(obs) > 0 {
		snap.Task.Request = obs[0].TitleOr("Unknown task")
	}
	for _, o := range obs {
		switch {
		case o.Type.IsWork():
			snap.Completed = append(snap.Completed, o.TitleOr("Untitled"))
		case o.Type == models.ObsTypeDiscovery && len(snap.InProgress) < inProgressLimit:
			snap.InProgress = append(snap.InProgress, o.TitleOr("Untitled"))
		}
	}
	for i, o := range obs {
		if i == handoffRecentLimit {
			break
		}
		snap.RecentObservations = append(snap.RecentObservations, models.ObservationRef{
			ID: o.ID, Title: o.TitleOr("Untitled"), Type: o.Type,
		})
	}
	return snap
}

// DetectOnStart returns a markdown note about recent work by a different CLI
// on the same project, or "" when there is none. sessionID is the caller's own
// session, which may already be registered and is never treated as prior work.
func (e *Engine) DetectOnStart(ctx context.Context, project string, cli models.CLITool, sessionID string) (string, error) {
	recent, err := e.store.DetectRecentActivity(ctx, project, e.detectWindow, sessionID)
	if err != nil {
		return "", fmt.Errorf("detect recent activity: %w", err)
	}
	if recent == nil || recent.CLITool == cli {
		return "", nil
	}

	pending, err := e.store.GetPendingHandoff(ctx, project)
	if err != nil {
		return "", err
	}
	obs, err := e.store.GetObservationsByProject(ctx, project, detectRecentLimit)
	if err != nil {
		return "", err
	}
	var latest *models.SessionSummary
	if pending == nil {
		sums, err := e.store.GetRecentSummaries(ctx, project, 1)
		if err != nil {
			return "", err
		}
		if len(sums) > 0 {
			latest = sums[0]
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## UniMem: Continuing from %s\n", recent.CLITool)
	fmt.Fprintf(&b, "Previous session ended %s.\n", Ago(e.now(), recent.LastTouchedEpoch()))

	switch {
	case pending != nil:
		snap := pending.StateSnapshot
		fmt.Fprintf(&b, "**Reason**: %s\n", pending.Reason)
		if len(snap.Completed) > 0 {
			fmt.Fprintf(&b, "**Completed**: %s\n", strings.Join(snap.Completed, ", "))
		}
		if len(snap.NextSteps) > 0 {
			fmt.Fprintf(&b, "**Next steps**: %s\n", strings.Join(snap.NextSteps, ", "))
		}
	case latest != nil:
		if latest.Completed.String != "" {
			fmt.Fprintf(&b, "**Completed**: %s\n", latest.Completed.String)
		}
		if latest.NextSteps.String != "" {
			fmt.Fprintf(&b, "**Next steps**: %s\n", latest.NextSteps.String)
		}
	}

	if len(obs) > 0 {
		b.WriteString("\n**Recent observations**:\n")
		for _, o := range obs {
			fmt.Fprintf(&b, "- [%s] %s (%s)\n", o.Type, o.TitleOr("Untitled"), o.CLITool)
		}
	}

	b.WriteString("\n_Context auto-injected by UniMem. Use memory_resume for full details._")
	return b.String(), nil
}

// Ago renders the distance from epoch to now as "just now", "N min ago", "Nh ago" or "Nd ago".
func Ago(now time.Time, epoch int64) string {
	diff := now.Unix() - epoch
	switch {
	case diff < 60:
		return "just now"
	case diff < 3600:
		return fmt.Sprintf("%d min ago", diff/60)
	case diff < 86400:
		return fmt.Sprintf("%dh ago", diff/3600)
	default:
		return fmt.Sprintf("%dd ago", diff/86400)
	}
}

func collectFiles(obs []*models.Observation) models.FilesTouched {
	var read, modified [][]string
	for _, o := range obs {
		read = append(read, o.FilesRead)
		modified = append(modified, o.FilesModified)
	}
	files := models.FilesTouched{
		Read:     models.Dedup(read...),
		Modified: models.Dedup(modified...),
	}
	if files.Read == nil {
		files.Read = []string{}
	}
	if files.Modified == nil {
		files.Modified = []string{}
	}
	return files
}
