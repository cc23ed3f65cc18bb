package gorm

import (
	"database/sql"
	"time"

	"gorm.io/gorm"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// Note: JSONStringArray and HandoffSnapshot come from pkg/models and already
// implement sql.Scanner and driver.Valuer.

// Session is the sessions table.
type Session struct {
	ID               int64          `gorm:"primaryKey;autoIncrement"`
	SessionID        string         `gorm:"uniqueIndex;not null"`
	Project          string         `gorm:"index:idx_sessions_project_created,priority:1;not null"`
	CLITool          string         `gorm:"type:text;not null"`
	CLIVersion       sql.NullString `gorm:"type:text"`
	Status           string         `gorm:"type:text;check:status IN ('active', 'paused', 'completed', 'rate_limited');default:'active';not null"`
	PauseReason      sql.NullString `gorm:"type:text"`
	ParentSessionID  sql.NullString `gorm:"type:text"`
	UserPrompt       sql.NullString `gorm:"type:text"`
	CreatedAt        string         `gorm:"not null"`
	CreatedAtEpoch   int64          `gorm:"index:idx_sessions_project_created,priority:2,sort:desc;not null"`
	UpdatedAtEpoch   sql.NullInt64
	CompletedAtEpoch sql.NullInt64
}

func (Session) TableName() string { return "sessions" }

// BeforeCreate hook to ensure timestamps are set.
func (s *Session) BeforeCreate(tx *gorm.DB) error {
	if s.CreatedAtEpoch == 0 {
		s.CreatedAtEpoch = time.Now().Unix()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = time.Unix(s.CreatedAtEpoch, 0).UTC().Format(time.RFC3339)
	}
	return nil
}

// Observation is the observations table.
type Observation struct {
	ID              int64                  `gorm:"primaryKey;autoIncrement"`
	SessionID       string                 `gorm:"index;not null"`
	Project         string                 `gorm:"index:idx_observations_project_created,priority:1;not null"`
	CLITool         string                 `gorm:"type:text;not null"`
	Type            string                 `gorm:"type:text;not null"`
	Title           sql.NullString         `gorm:"type:text"`
	Subtitle        sql.NullString         `gorm:"type:text"`
	Narrative       sql.NullString         `gorm:"type:text"`
	Facts           models.JSONStringArray `gorm:"type:text"`
	Concepts        models.JSONStringArray `gorm:"type:text"`
	FilesRead       models.JSONStringArray `gorm:"type:text"`
	FilesModified   models.JSONStringArray `gorm:"type:text"`
	PromptNumber    sql.NullInt64
	DiscoveryTokens int64  `gorm:"default:0"`
	CreatedAt       string `gorm:"not null"`
	CreatedAtEpoch  int64  `gorm:"index:idx_observations_project_created,priority:2,sort:desc;not null"`
}

func (Observation) TableName() string { return "observations" }

// BeforeCreate hook to ensure timestamps are set.
func (o *Observation) BeforeCreate(tx *gorm.DB) error {
	if o.CreatedAtEpoch == 0 {
		o.CreatedAtEpoch = time.Now().Unix()
	}
	if o.CreatedAt == "" {
		o.CreatedAt = time.Unix(o.CreatedAtEpoch, 0).UTC().Format(time.RFC3339)
	}
	return nil
}

// SessionSummary is the session_summaries table.
type SessionSummary struct {
	ID              int64                  `gorm:"primaryKey;autoIncrement"`
	SessionID       string                 `gorm:"uniqueIndex;not null"`
	Project         string                 `gorm:"index;not null"`
	CLITool         string                 `gorm:"type:text;not null"`
	Request         sql.NullString         `gorm:"type:text"`
	Investigated    sql.NullString         `gorm:"type:text"`
	Learned         sql.NullString         `gorm:"type:text"`
	Completed       sql.NullString         `gorm:"type:text"`
	NextSteps       sql.NullString         `gorm:"column:next_steps;type:text"`
	Notes           sql.NullString         `gorm:"type:text"`
	FilesRead       models.JSONStringArray `gorm:"type:text"`
	FilesEdited     models.JSONStringArray `gorm:"type:text"`
	DiscoveryTokens int64                  `gorm:"default:0"`
	CreatedAt       string                 `gorm:"not null"`
	CreatedAtEpoch  int64                  `gorm:"index:idx_summaries_created,sort:desc;not null"`
}

func (SessionSummary) TableName() string { return "session_summaries" }

// Handoff is the handoffs table.
type Handoff struct {
	ID              int64                  `gorm:"primaryKey;autoIncrement"`
	Project         string                 `gorm:"index:idx_handoffs_project_created,priority:1;not null"`
	FromSessionID   string                 `gorm:"not null"`
	FromCLI         string                 `gorm:"column:from_cli;type:text;not null"`
	ToSessionID     sql.NullString         `gorm:"type:text"`
	ToCLI           sql.NullString         `gorm:"column:to_cli;type:text"`
	StateSnapshot   models.HandoffSnapshot `gorm:"type:text;not null"`
	Reason          string                 `gorm:"type:text;check:reason IN ('rate_limit', 'token_exhausted', 'preference', 'manual');not null"`
	CreatedAtEpoch  int64                  `gorm:"index:idx_handoffs_project_created,priority:2,sort:desc;not null"`
	PickedUpAtEpoch sql.NullInt64
}

func (Handoff) TableName() string { return "handoffs" }

// UserPrompt is the user_prompts table.
type UserPrompt struct {
	ID             int64  `gorm:"primaryKey;autoIncrement"`
	SessionID      string `gorm:"not null;uniqueIndex:idx_user_prompts_session_number,priority:1"`
	Project        string `gorm:"index;not null"`
	CLITool        string `gorm:"type:text;not null"`
	PromptNumber   int    `gorm:"not null;uniqueIndex:idx_user_prompts_session_number,priority:2"`
	PromptText     string `gorm:"type:text;not null"`
	CreatedAtEpoch int64  `gorm:"not null"`
}

func (UserPrompt) TableName() string { return "user_prompts" }

func toModelSession(s *Session) *models.Session {
	return &models.Session{
		ID:               s.ID,
		SessionID:        s.SessionID,
		Project:          s.Project,
		CLITool:          models.CLITool(s.CLITool),
		CLIVersion:       s.CLIVersion,
		Status:           models.SessionStatus(s.Status),
		PauseReason:      s.PauseReason,
		ParentSessionID:  s.ParentSessionID,
		UserPrompt:       s.UserPrompt,
		CreatedAt:        s.CreatedAt,
		CreatedAtEpoch:   s.CreatedAtEpoch,
		UpdatedAtEpoch:   s.UpdatedAtEpoch,
		CompletedAtEpoch: s.CompletedAtEpoch,
	}
}

func toModelObservation(o *Observation) *models.Observation {
	return &models.Observation{
		ID:              o.ID,
		SessionID:       o.SessionID,
		Project:         o.Project,
		CLITool:         models.CLITool(o.CLITool),
		Type:            models.ObservationType(o.Type),
		Title:           o.Title,
		Subtitle:        o.Subtitle,
		Narrative:       o.Narrative,
		Facts:           o.Facts,
		Concepts:        o.Concepts,
		FilesRead:       o.FilesRead,
		FilesModified:   o.FilesModified,
		PromptNumber:    o.PromptNumber,
		DiscoveryTokens: o.DiscoveryTokens,
		CreatedAt:       o.CreatedAt,
		CreatedAtEpoch:  o.CreatedAtEpoch,
	}
}

func toModelObservations(rows []Observation) []*models.Observation {
	if len(rows) == 0 {
		return nil
	}
	out := make([]*models.Observation, len(rows))
	for i := range rows {
		out[i] = toModelObservation(&rows[i])
	}
	return out
}

func toModelSummary(s *SessionSummary) *models.SessionSummary {
	return &models.SessionSummary{
		ID:              s.ID,
		SessionID:       s.SessionID,
		Project:         s.Project,
		CLITool:         models.CLITool(s.CLITool),
		Request:         s.Request,
		Investigated:    s.Investigated,
		Learned:         s.Learned,
		Completed:       s.Completed,
		NextSteps:       s.NextSteps,
		Notes:           s.Notes,
		FilesRead:       s.FilesRead,
		FilesEdited:     s.FilesEdited,
		DiscoveryTokens: s.DiscoveryTokens,
		CreatedAt:       s.CreatedAt,
		CreatedAtEpoch:  s.CreatedAtEpoch,
	}
}

func toModelSummaries(rows []SessionSummary) []*models.SessionSummary {
	if len(rows) == 0 {
		return nil
	}
	out := make([]*models.SessionSummary, len(rows))
	for i := range rows {
		out[i] = toModelSummary(&rows[i])
	}
	return out
}

func toModelHandoff(h *Handoff) *models.Handoff {
	return &models.Handoff{
		ID:              h.ID,
		Project:         h.Project,
		FromSessionID:   h.FromSessionID,
		FromCLI:         models.CLITool(h.FromCLI),
		ToSessionID:     h.ToSessionID,
		ToCLI:           h.ToCLI,
		StateSnapshot:   h.StateSnapshot,
		Reason:          models.HandoffReason(h.Reason),
		CreatedAtEpoch:  h.CreatedAtEpoch,
		PickedUpAtEpoch: h.PickedUpAtEpoch,
	}
}
