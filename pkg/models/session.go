// Package models contains domain models for unimem.
package models

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// CLITool identifies an AI coding-assistant CLI.
type CLITool string

const (
	CLIClaudeCode CLITool = "claude-code"
	CLIGemini     CLITool = "gemini"
	CLICodex      CLITool = "codex"
	CLICopilot    CLITool = "copilot"
	CLICursor     CLITool = "cursor"
	CLIAider      CLITool = "aider"
)

// CLITools lists every supported CLI in declaration order.
var CLITools = []CLITool{CLIClaudeCode, CLIGemini, CLICodex, CLICopilot, CLICursor, CLIAider}

// Valid reports whether c is a known CLI tool.
func (c CLITool) Valid() bool {
	for _, t := range CLITools {
		if t == c {
			return true
		}
	}
	return false
}

// ParseCLITool returns the CLI tool for s, falling back to def when s is unknown.
func ParseCLITool(s string, def CLITool) CLITool {
	c := CLITool(strings.ToLower(strings.TrimSpace(s)))
	if c.Valid() {
		return c
	}
	return def
}

// SessionStatus represents the lifecycle state of a session.
type SessionStatus string

const (
	SessionStatusActive      SessionStatus = "active"
	SessionStatusPaused      SessionStatus = "paused"
	SessionStatusCompleted   SessionStatus = "completed"
	SessionStatusRateLimited SessionStatus = "rate_limited"
)

// SessionStatuses lists every status.
var SessionStatuses = []SessionStatus{
	SessionStatusActive, SessionStatusPaused, SessionStatusCompleted, SessionStatusRateLimited,
}

// Valid reports whether s is a known status.
func (s SessionStatus) Valid() bool {
	for _, v := range SessionStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Session is one contiguous period of work by one CLI on one project.
type Session struct {
	ID               int64          `db:"id" json:"id"`
	SessionID        string         `db:"session_id" json:"session_id"`
	Project          string         `db:"project" json:"project"`
	CLITool          CLITool        `db:"cli_tool" json:"cli_tool"`
	CLIVersion       sql.NullString `db:"cli_version" json:"cli_version,omitempty"`
	Status           SessionStatus  `db:"status" json:"status"`
	PauseReason      sql.NullString `db:"pause_reason" json:"pause_reason,omitempty"`
	ParentSessionID  sql.NullString `db:"parent_session_id" json:"parent_session_id,omitempty"`
	UserPrompt       sql.NullString `db:"user_prompt" json:"user_prompt,omitempty"`
	CreatedAt        string         `db:"created_at" json:"created_at"`
	CreatedAtEpoch   int64          `db:"created_at_epoch" json:"created_at_epoch"`
	UpdatedAtEpoch   sql.NullInt64  `db:"updated_at_epoch" json:"updated_at_epoch,omitempty"`
	CompletedAtEpoch sql.NullInt64  `db:"completed_at_epoch" json:"completed_at_epoch,omitempty"`
}

// NewSession builds an active session stamped at now.
func NewSession(sessionID, project string, cli CLITool, now time.Time) *Session {
	return &Session{
		SessionID:      sessionID,
		Project:        project,
		CLITool:        cli,
		Status:         SessionStatusActive,
		CreatedAt:      now.UTC().Format(time.RFC3339),
		CreatedAtEpoch: now.Unix(),
	}
}

// LastTouchedEpoch is updated_at_epoch when set, else created_at_epoch.
func (s *Session) LastTouchedEpoch() int64 {
	if s.UpdatedAtEpoch.Valid && s.UpdatedAtEpoch.Int64 > 0 {
		return s.UpdatedAtEpoch.Int64
	}
	return s.CreatedAtEpoch
}

// SessionJSON is a JSON-friendly representation of Session.
type SessionJSON struct {
	SessionID        string        `json:"session_id"`
	Project          string        `json:"project"`
	CLITool          CLITool       `json:"cli_tool"`
	CLIVersion       string        `json:"cli_version,omitempty"`
	Status           SessionStatus `json:"status"`
	PauseReason      string        `json:"pause_reason,omitempty"`
	ParentSessionID  string        `json:"parent_session_id,omitempty"`
	UserPrompt       string        `json:"user_prompt,omitempty"`
	CreatedAt        string        `json:"created_at"`
	ID               int64         `json:"id"`
	CreatedAtEpoch   int64         `json:"created_at_epoch"`
	UpdatedAtEpoch   int64         `json:"updated_at_epoch,omitempty"`
	CompletedAtEpoch int64         `json:"completed_at_epoch,omitempty"`
}

// MarshalJSON flattens the nullable columns.
func (s *Session) MarshalJSON() ([]byte, error) {
	return json.Marshal(SessionJSON{
		ID:               s.ID,
		SessionID:        s.SessionID,
		Project:          s.Project,
		CLITool:          s.CLITool,
		CLIVersion:       s.CLIVersion.String,
		Status:           s.Status,
		PauseReason:      s.PauseReason.String,
		ParentSessionID:  s.ParentSessionID.String,
		UserPrompt:       s.UserPrompt.String,
		CreatedAt:        s.CreatedAt,
		CreatedAtEpoch:   s.CreatedAtEpoch,
		UpdatedAtEpoch:   s.UpdatedAtEpoch.Int64,
		CompletedAtEpoch: s.CompletedAtEpoch.Int64,
	})
}

// NewSessionID returns "{cli}-{base36 millis}-{6 random chars}".
func NewSessionID(cli CLITool, now time.Time) string {
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("%s-%s-%s", cli, strconv.FormatInt(now.UnixMilli(), 36), random)
}

// NullString wraps s, treating "" as NULL.
func NullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
