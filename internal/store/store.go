// Package store defines the persistence contract of the continuity engine.
// Every method treats absence as a nil result with a nil error.
package store

import (
	"context"
	"time"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// SessionStore manages sessions.
type SessionStore interface {
	// CreateSession inserts s unless a session with the same session_id exists.
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	// GetLastActiveSession returns the newest session of project, whatever its status.
	GetLastActiveSession(ctx context.Context, project string) (*models.Session, error)
	GetRecentSessions(ctx context.Context, project string, limit int) ([]*models.Session, error)
	// UpdateSessionStatus is ignored once a session is completed.
	UpdateSessionStatus(ctx context.Context, sessionID string, status models.SessionStatus, reason string) error
	// DetectRecentActivity returns the newest session created within the window,
	// ignoring exceptSessionID (the caller's own session) when it is set.
	DetectRecentActivity(ctx context.Context, project string, within time.Duration, exceptSessionID string) (*models.Session, error)
	GetAllProjects(ctx context.Context) ([]string, error)
}

// ObservationStore manages the append-only observation log.
type ObservationStore interface {
	SaveObservation(ctx context.Context, o *models.Observation) (int64, error)
	GetObservationsBySession(ctx context.Context, sessionID string, limit int) ([]*models.Observation, error)
	GetObservationsByProject(ctx context.Context, project string, limit int) ([]*models.Observation, error)
	CountObservations(ctx context.Context, project string) (int64, error)
	CountSessionObservations(ctx context.Context, sessionID string) (int64, error)
	GetTimeline(ctx context.Context, project string, anchorID int64, before, after int) ([]*models.Observation, error)
	SearchObservations(ctx context.Context, q models.ObservationQuery) ([]*models.Observation, error)
}

// SummaryStore manages rolling session summaries.
type SummaryStore interface {
	// SaveSummary upserts by session_id.
	SaveSummary(ctx context.Context, s *models.SessionSummary) (int64, error)
	GetSummary(ctx context.Context, sessionID string) (*models.SessionSummary, error)
	GetRecentSummaries(ctx context.Context, project string, limit int) ([]*models.SessionSummary, error)
	SearchSummaries(ctx context.Context, query, project string, limit int) ([]*models.SessionSummary, error)
}

// HandoffStore manages handoffs.
type HandoffStore interface {
	// CreateHandoff inserts h and pauses its from-session in one transaction.
	// An older pending handoff for the same project is marked picked up by h's
	// source session so at most one stays pending.
	CreateHandoff(ctx context.Context, h *models.Handoff) (int64, error)
	GetPendingHandoff(ctx context.Context, project string) (*models.Handoff, error)
	MarkHandoffPickedUp(ctx context.Context, id int64, toSessionID string, toCLI models.CLITool) error
	GetHandoffHistory(ctx context.Context, project string, limit int) ([]*models.Handoff, error)
}

// PromptStore manages user prompts.
type PromptStore interface {
	SaveUserPrompt(ctx context.Context, p *models.UserPrompt) (int64, error)
	GetPromptsBySession(ctx context.Context, sessionID string) ([]*models.UserPrompt, error)
	NextPromptNumber(ctx context.Context, sessionID string) (int, error)
}

// Store is the full persistence contract.
type Store interface {
	SessionStore
	ObservationStore
	SummaryStore
	HandoffStore
	PromptStore
	Ping(ctx context.Context) error
	Close() error
}
