package models

import (
	"database/sql"
	"database/sql/driver"

	"github.com/goccy/go-json"
)

// HandoffReason is why a session stopped.
type HandoffReason string

const (
	HandoffRateLimit      HandoffReason = "rate_limit"
	HandoffTokenExhausted HandoffReason = "token_exhausted"
	HandoffPreference     HandoffReason = "preference"
	HandoffManual         HandoffReason = "manual"
)

// HandoffReasons lists every handoff reason.
var HandoffReasons = []HandoffReason{HandoffRateLimit, HandoffTokenExhausted, HandoffPreference, HandoffManual}

// Valid reports whether r is a known handoff reason.
func (r HandoffReason) Valid() bool {
	for _, v := range HandoffReasons {
		if v == r {
			return true
		}
	}
	return false
}

// TaskState describes the task a handoff is carrying.
type TaskState struct {
	Request         string `json:"request"`
	Status          string `json:"status"`
	ProgressPercent *int   `json:"progress_percent,omitempty"`
}

// FilesTouched separates read and modified paths.
type FilesTouched struct {
	Read     []string `json:"read"`
	Modified []string `json:"modified"`
}

// All returns read and modified paths, deduplicated.
func (f FilesTouched) All() []string {
	return Dedup(f.Read, f.Modified)
}

// ObservationRef is a compact pointer to an observation inside a snapshot.
type ObservationRef struct {
	ID    int64           `json:"id"`
	Title string          `json:"title"`
	Type  ObservationType `json:"type"`
}

// HandoffSnapshot is the serialized working state passed from one CLI to the next.
type HandoffSnapshot struct {
	Project            string           `json:"project"`
	FromCLI            CLITool          `json:"from_cli"`
	Timestamp          string           `json:"timestamp"`
	Task               TaskState        `json:"task"`
	Completed          []string         `json:"completed"`
	InProgress         []string         `json:"in_progress"`
	DecisionsMade      []string         `json:"decisions_made"`
	FilesTouched       FilesTouched     `json:"files_touched"`
	RecentObservations []ObservationRef `json:"recent_observations"`
	NextSteps          []string         `json:"next_steps"`
	Notes              string           `json:"notes"`
}

// Scan implements sql.Scanner.
func (s *HandoffSnapshot) Scan(value interface{}) error {
	return scanJSON(value, s)
}

// Value implements driver.Valuer.
func (s HandoffSnapshot) Value() (driver.Value, error) {
	return valueJSON(s)
}

// Handoff records that one session stopped and what the next should know.
type Handoff struct {
	ID              int64           `db:"id" json:"id"`
	Project         string          `db:"project" json:"project"`
	FromSessionID   string          `db:"from_session_id" json:"from_session_id"`
	FromCLI         CLITool         `db:"from_cli" json:"from_cli"`
	ToSessionID     sql.NullString  `db:"to_session_id" json:"to_session_id,omitempty"`
	ToCLI           sql.NullString  `db:"to_cli" json:"to_cli,omitempty"`
	StateSnapshot   HandoffSnapshot `db:"state_snapshot" json:"state_snapshot"`
	Reason          HandoffReason   `db:"reason" json:"reason"`
	CreatedAtEpoch  int64           `db:"created_at_epoch" json:"created_at_epoch"`
	PickedUpAtEpoch sql.NullInt64   `db:"picked_up_at_epoch" json:"picked_up_at_epoch,omitempty"`
}

// Pending reports whether no later session has picked the handoff up.
func (h *Handoff) Pending() bool {
	return !h.PickedUpAtEpoch.Valid
}

// HandoffJSON is a JSON-friendly representation of Handoff.
type HandoffJSON struct {
	Project         string          `json:"project"`
	FromSessionID   string          `json:"from_session_id"`
	FromCLI         CLITool         `json:"from_cli"`
	ToSessionID     string          `json:"to_session_id,omitempty"`
	ToCLI           string          `json:"to_cli,omitempty"`
	Reason          HandoffReason   `json:"reason"`
	StateSnapshot   HandoffSnapshot `json:"state_snapshot"`
	ID              int64           `json:"id"`
	CreatedAtEpoch  int64           `json:"created_at_epoch"`
	PickedUpAtEpoch int64           `json:"picked_up_at_epoch,omitempty"`
}

// MarshalJSON flattens the nullable columns.
func (h *Handoff) MarshalJSON() ([]byte, error) {
	return json.Marshal(HandoffJSON{
		ID:              h.ID,
		Project:         h.Project,
		FromSessionID:   h.FromSessionID,
		FromCLI:         h.FromCLI,
		ToSessionID:     h.ToSessionID.String,
		ToCLI:           h.ToCLI.String,
		StateSnapshot:   h.StateSnapshot,
		Reason:          h.Reason,
		CreatedAtEpoch:  h.CreatedAtEpoch,
		PickedUpAtEpoch: h.PickedUpAtEpoch.Int64,
	})
}
