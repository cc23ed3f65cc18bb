// Package resume assembles the "where work stands" view of a project.
package resume

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/GoSecreto/UniMem/internal/store"
	"github.com/GoSecreto/UniMem/pkg/models"
)

const (
	recentObservationLimit = 10
	recentSummaryLimit     = 3
)

// Builder builds ResumeContext values from a store.
type Builder struct {
	store  store.Store
	now    func() time.Time
	window time.Duration
}

// NewBuilder creates a builder. window bounds the recent-activity fallback.
func NewBuilder(st store.Store, window time.Duration, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &Builder{store: st, now: now, window: window}
}

// Build assembles the resume context of project. When currentCLI is set and a
// handoff is pending, the handoff is consumed by a new session of that CLI.
// currentSession, when set, is left out of the recent-activity check.
func (b *Builder) Build(ctx context.Context, project string, currentCLI models.CLITool, currentSession string) (*models.ResumeContext, error) {
	var (
		pending   *models.Handoff
		last      *models.Session
		recent    []*models.Observation
		summaries []*models.SessionSummary
		total     int64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		pending, err = b.store.GetPendingHandoff(gctx, project)
		return err
	})
	g.Go(func() (err error) {
		last, err = b.store.GetLastActiveSession(gctx, project)
		return err
	})
	g.Go(func() (err error) {
		recent, err = b.store.GetObservationsByProject(gctx, project, recentObservationLimit)
		return err
	})
	g.Go(func() (err error) {
		summaries, err = b.store.GetRecentSummaries(gctx, project, recentSummaryLimit)
		return err
	})
	g.Go(func() (err error) {
		total, err = b.store.CountObservations(gctx, project)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load resume data: %w", err)
	}

	now := b.now()
	rc := &models.ResumeContext{
		Project:            project,
		Completed:          []string{},
		InProgress:         []string{},
		NextSteps:          []string{},
		FilesTouched:       []string{},
		RecentObservations: make([]models.RecentObservation, 0, len(recent)),
		RecentSummaries:    summaries,
		TotalObservations:  total,
		GeneratedAt:        now.UTC().Format(time.RFC3339),
	}
	for _, o := range recent {
		rc.RecentObservations = append(rc.RecentObservations, models.ToRecent(o))
	}
	if rc.RecentSummaries == nil {
		rc.RecentSummaries = []*models.SessionSummary{}
	}

	if last != nil {
		rc.LastSession = &models.LastSessionInfo{
			CLI:       last.CLITool,
			SessionID: last.SessionID,
			EndedAgo:  EndedAgo(now, last.LastTouchedEpoch()),
			Status:    last.Status,
			Reason:    last.PauseReason.String,
		}
	}

	if pending != nil {
		if err := b.applyHandoff(ctx, rc, pending, currentCLI, now); err != nil {
			return nil, err
		}
		return rc, nil
	}

	active, err := b.store.DetectRecentActivity(ctx, project, b.window, currentSession)
	if err != nil {
		return nil, fmt.Errorf("detect recent activity: %w", err)
	}
	if active != nil && active.CLITool != currentCLI && len(summaries) > 0 {
		latest := summaries[0]
		rc.TaskSummary = latest.Request.String
		rc.NextSteps = SplitSteps(latest.NextSteps.String)
	}
	return rc, nil
}

func (b *Builder) applyHandoff(ctx context.Context, rc *models.ResumeContext, h *models.Handoff, currentCLI models.CLITool, now time.Time) error {
	snap := h.StateSnapshot
	rc.PendingHandoff = h
	rc.TaskSummary = snap.Task.Request
	rc.Completed = orEmpty(snap.Completed)
	rc.InProgress = orEmpty(snap.InProgress)
	rc.NextSteps = orEmpty(snap.NextSteps)
	rc.FilesTouched = orEmpty(snap.FilesTouched.All())

	if currentCLI == "" {
		return nil
	}

	request := snap.Task.Request
	if request == "" {
		request = "continuation"
	}
	sess := models.NewSession(models.NewSessionID(currentCLI, now), rc.Project, currentCLI, now)
	sess.ParentSessionID = models.NullString(h.FromSessionID)
	sess.UserPrompt = models.NullString(fmt.Sprintf("Resumed from %s: %s", h.FromCLI, request))
	if err := b.store.CreateSession(ctx, sess); err != nil {
		return fmt.Errorf("create resumed session: %w", err)
	}
	if err := b.store.MarkHandoffPickedUp(ctx, h.ID, sess.SessionID, currentCLI); err != nil {
		return fmt.Errorf("mark handoff picked up: %w", err)
	}
	rc.PickedUpBy = sess.SessionID
	log.Info().Int64("handoff", h.ID).Str("session", sess.SessionID).Str("cli", string(currentCLI)).Msg("Handoff picked up")
	return nil
}

// EndedAgo renders elapsed time as "N min ago" under an hour, else "Xh Ym ago".
func EndedAgo(now time.Time, epoch int64) string {
	minutes := (now.Unix() - epoch) / 60
	if minutes < 0 {
		minutes = 0
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min ago", minutes)
	}
	return fmt.Sprintf("%dh %dm ago", minutes/60, minutes%60)
}

var stepSeparator = regexp.MustCompile(`\r?\n|; `)

// SplitSteps splits a free-text next-steps field into trimmed, non-empty steps.
func SplitSteps(s string) []string {
	steps := []string{}
	for _, part := range stepSeparator.Split(s, -1) {
		part = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(part), "-*"))
		if part != "" {
			steps = append(steps, part)
		}
	}
	return steps
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
