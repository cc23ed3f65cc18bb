package models

import (
	"database/sql"
	"time"

	"github.com/goccy/go-json"
)

// SessionSummary is the rolling summary of a session. One per session.
type SessionSummary struct {
	ID              int64           `db:"id" json:"id"`
	SessionID       string          `db:"session_id" json:"session_id"`
	Project         string          `db:"project" json:"project"`
	CLITool         CLITool         `db:"cli_tool" json:"cli_tool"`
	Request         sql.NullString  `db:"request" json:"request,omitempty"`
	Investigated    sql.NullString  `db:"investigated" json:"investigated,omitempty"`
	Learned         sql.NullString  `db:"learned" json:"learned,omitempty"`
	Completed       sql.NullString  `db:"completed" json:"completed,omitempty"`
	NextSteps       sql.NullString  `db:"next_steps" json:"next_steps,omitempty"`
	Notes           sql.NullString  `db:"notes" json:"notes,omitempty"`
	FilesRead       JSONStringArray `db:"files_read" json:"files_read,omitempty"`
	FilesEdited     JSONStringArray `db:"files_edited" json:"files_edited,omitempty"`
	DiscoveryTokens int64           `db:"discovery_tokens" json:"discovery_tokens"`
	CreatedAt       string          `db:"created_at" json:"created_at"`
	CreatedAtEpoch  int64           `db:"created_at_epoch" json:"created_at_epoch"`
}

// SummaryFields are the free-text parts of a summary.
type SummaryFields struct {
	Request      string
	Investigated string
	Learned      string
	Completed    string
	NextSteps    string
	Notes        string
}

// NewSessionSummary builds a summary stamped at now.
func NewSessionSummary(sessionID, project string, cli CLITool, f SummaryFields, now time.Time) *SessionSummary {
	return &SessionSummary{
		SessionID:      sessionID,
		Project:        project,
		CLITool:        cli,
		Request:        NullString(f.Request),
		Investigated:   NullString(f.Investigated),
		Learned:        NullString(f.Learned),
		Completed:      NullString(f.Completed),
		NextSteps:      NullString(f.NextSteps),
		Notes:          NullString(f.Notes),
		CreatedAt:      now.UTC().Format(time.RFC3339),
		CreatedAtEpoch: now.Unix(),
	}
}

// SessionSummaryJSON is a JSON-friendly representation of SessionSummary.
type SessionSummaryJSON struct {
	SessionID       string   `json:"session_id"`
	Project         string   `json:"project"`
	CLITool         CLITool  `json:"cli_tool"`
	Request         string   `json:"request,omitempty"`
	Investigated    string   `json:"investigated,omitempty"`
	Learned         string   `json:"learned,omitempty"`
	Completed       string   `json:"completed,omitempty"`
	NextSteps       string   `json:"next_steps,omitempty"`
	Notes           string   `json:"notes,omitempty"`
	CreatedAt       string   `json:"created_at"`
	FilesRead       []string `json:"files_read,omitempty"`
	FilesEdited     []string `json:"files_edited,omitempty"`
	ID              int64    `json:"id"`
	DiscoveryTokens int64    `json:"discovery_tokens"`
	CreatedAtEpoch  int64    `json:"created_at_epoch"`
}

// MarshalJSON converts sql.NullString fields to plain strings.
func (s *SessionSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(SessionSummaryJSON{
		ID:              s.ID,
		SessionID:       s.SessionID,
		Project:         s.Project,
		CLITool:         s.CLITool,
		Request:         s.Request.String,
		Investigated:    s.Investigated.String,
		Learned:         s.Learned.String,
		Completed:       s.Completed.String,
		NextSteps:       s.NextSteps.String,
		Notes:           s.Notes.String,
		FilesRead:       s.FilesRead,
		FilesEdited:     s.FilesEdited,
		DiscoveryTokens: s.DiscoveryTokens,
		CreatedAt:       s.CreatedAt,
		CreatedAtEpoch:  s.CreatedAtEpoch,
	})
}
