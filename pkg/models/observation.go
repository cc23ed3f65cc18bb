package models

import (
	"database/sql"
	"time"

	"github.com/goccy/go-json"
)

// ObservationType classifies a recorded event.
type ObservationType string

const (
	ObsTypeDiscovery      ObservationType = "discovery"
	ObsTypeBugfix         ObservationType = "bugfix"
	ObsTypeImplementation ObservationType = "implementation"
	ObsTypeArchitecture   ObservationType = "architecture"
	ObsTypeRefactor       ObservationType = "refactor"
	ObsTypeConfiguration  ObservationType = "configuration"
	ObsTypeDocumentation  ObservationType = "documentation"
	ObsTypeTesting        ObservationType = "testing"
)

// ObservationTypes lists every observation type.
var ObservationTypes = []ObservationType{
	ObsTypeDiscovery, ObsTypeBugfix, ObsTypeImplementation, ObsTypeArchitecture,
	ObsTypeRefactor, ObsTypeConfiguration, ObsTypeDocumentation, ObsTypeTesting,
}

// Valid reports whether t is a known observation type.
func (t ObservationType) Valid() bool {
	for _, v := range ObservationTypes {
		if v == t {
			return true
		}
	}
	return false
}

// IsWork reports whether t records finished work (implementation or bugfix).
func (t ObservationType) IsWork() bool {
	return t == ObsTypeImplementation || t == ObsTypeBugfix
}

// Observation is a single recorded event within a session.
type Observation struct {
	ID              int64           `db:"id" json:"id"`
	SessionID       string          `db:"session_id" json:"session_id"`
	Project         string          `db:"project" json:"project"`
	CLITool         CLITool         `db:"cli_tool" json:"cli_tool"`
	Type            ObservationType `db:"type" json:"type"`
	Title           sql.NullString  `db:"title" json:"title,omitempty"`
	Subtitle        sql.NullString  `db:"subtitle" json:"subtitle,omitempty"`
	Narrative       sql.NullString  `db:"narrative" json:"narrative,omitempty"`
	Facts           JSONStringArray `db:"facts" json:"facts,omitempty"`
	Concepts        JSONStringArray `db:"concepts" json:"concepts,omitempty"`
	FilesRead       JSONStringArray `db:"files_read" json:"files_read,omitempty"`
	FilesModified   JSONStringArray `db:"files_modified" json:"files_modified,omitempty"`
	PromptNumber    sql.NullInt64   `db:"prompt_number" json:"prompt_number,omitempty"`
	DiscoveryTokens int64           `db:"discovery_tokens" json:"discovery_tokens"`
	CreatedAt       string          `db:"created_at" json:"created_at"`
	CreatedAtEpoch  int64           `db:"created_at_epoch" json:"created_at_epoch"`
}

// NewObservation builds an observation stamped at now.
func NewObservation(sessionID, project string, cli CLITool, typ ObservationType, title string, now time.Time) *Observation {
	if !typ.Valid() {
		typ = ObsTypeDiscovery
	}
	return &Observation{
		SessionID:      sessionID,
		Project:        project,
		CLITool:        cli,
		Type:           typ,
		Title:          NullString(title),
		CreatedAt:      now.UTC().Format(time.RFC3339),
		CreatedAtEpoch: now.Unix(),
	}
}

// TitleOr returns the title, or def when the title is empty.
func (o *Observation) TitleOr(def string) string {
	if o.Title.Valid && o.Title.String != "" {
		return o.Title.String
	}
	return def
}

// ObservationJSON is a JSON-friendly representation of Observation.
type ObservationJSON struct {
	SessionID       string          `json:"session_id"`
	Project         string          `json:"project"`
	CLITool         CLITool         `json:"cli_tool"`
	Type            ObservationType `json:"type"`
	Title           string          `json:"title,omitempty"`
	Subtitle        string          `json:"subtitle,omitempty"`
	Narrative       string          `json:"narrative,omitempty"`
	CreatedAt       string          `json:"created_at"`
	Facts           []string        `json:"facts,omitempty"`
	Concepts        []string        `json:"concepts,omitempty"`
	FilesRead       []string        `json:"files_read,omitempty"`
	FilesModified   []string        `json:"files_modified,omitempty"`
	ID              int64           `json:"id"`
	PromptNumber    int64           `json:"prompt_number,omitempty"`
	DiscoveryTokens int64           `json:"discovery_tokens"`
	CreatedAtEpoch  int64           `json:"created_at_epoch"`
}

// MarshalJSON flattens the nullable columns.
func (o *Observation) MarshalJSON() ([]byte, error) {
	return json.Marshal(ObservationJSON{
		ID:              o.ID,
		SessionID:       o.SessionID,
		Project:         o.Project,
		CLITool:         o.CLITool,
		Type:            o.Type,
		Title:           o.Title.String,
		Subtitle:        o.Subtitle.String,
		Narrative:       o.Narrative.String,
		Facts:           o.Facts,
		Concepts:        o.Concepts,
		FilesRead:       o.FilesRead,
		FilesModified:   o.FilesModified,
		PromptNumber:    o.PromptNumber.Int64,
		DiscoveryTokens: o.DiscoveryTokens,
		CreatedAt:       o.CreatedAt,
		CreatedAtEpoch:  o.CreatedAtEpoch,
	})
}

// ObservationQuery filters a lexical search.
type ObservationQuery struct {
	Query   string
	Project string
	CLITool CLITool
	Limit   int
}
