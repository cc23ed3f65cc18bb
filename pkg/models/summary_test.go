package models

import (
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// SummarySuite is a test suite for SessionSummary and the other session records.
type SummarySuite struct {
	suite.Suite
}

func TestSummarySuite(t *testing.T) {
	suite.Run(t, new(SummarySuite))
}

func (s *SummarySuite) TestNewSessionSummary() {
	now := time.Unix(1700000000, 0)
	sum := NewSessionSummary("sess-1", "proj", CLICodex, SummaryFields{
		Request:   "Fix login",
		Completed: "Patched handler",
	}, now)

	s.Equal("sess-1", sum.SessionID)
	s.Equal(CLICodex, sum.CLITool)
	s.True(sum.Request.Valid)
	s.Equal("Fix login", sum.Request.String)
	s.False(sum.Learned.Valid)
	s.Equal(int64(1700000000), sum.CreatedAtEpoch)
	s.Equal("2023-11-14T22:13:20Z", sum.CreatedAt)
}

func (s *SummarySuite) TestSessionSummary_MarshalJSON_AllEmpty() {
	sum := &SessionSummary{ID: 3, SessionID: "s", Project: "p"}
	data, err := json.Marshal(sum)
	s.Require().NoError(err)
	s.Contains(string(data), `"id":3`)
	s.NotContains(string(data), `"request"`)
	s.NotContains(string(data), `"next_steps"`)
}

func (s *SummarySuite) TestSession_MarshalJSON() {
	sess := &Session{
		ID:          1,
		SessionID:   "gemini-abc-123456",
		Project:     "p",
		CLITool:     CLIGemini,
		Status:      SessionStatusPaused,
		PauseReason: sql.NullString{String: "rate_limit", Valid: true},
	}
	data, err := json.Marshal(sess)
	s.Require().NoError(err)
	s.Contains(string(data), `"status":"paused"`)
	s.Contains(string(data), `"pause_reason":"rate_limit"`)
	s.NotContains(string(data), `"parent_session_id"`)
}

func (s *SummarySuite) TestSession_LastTouchedEpoch() {
	sess := &Session{CreatedAtEpoch: 10}
	s.Equal(int64(10), sess.LastTouchedEpoch())
	sess.UpdatedAtEpoch = sql.NullInt64{Int64: 20, Valid: true}
	s.Equal(int64(20), sess.LastTouchedEpoch())
}

func (s *SummarySuite) TestEnumValidity() {
	for _, c := range CLITools {
		s.True(c.Valid())
	}
	for _, st := range SessionStatuses {
		s.True(st.Valid())
	}
	for _, r := range HandoffReasons {
		s.True(r.Valid())
	}
	s.False(CLITool("vim").Valid())
	s.False(SessionStatus("failed").Valid())
	s.False(HandoffReason("crash").Valid())
}

func (s *SummarySuite) TestParseCLITool() {
	s.Equal(CLIGemini, ParseCLITool(" Gemini ", CLIClaudeCode))
	s.Equal(CLIClaudeCode, ParseCLITool("emacs", CLIClaudeCode))
}

func TestNewSessionID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewSessionID(CLIClaudeCode, now)
	assert.Regexp(t, regexp.MustCompile(`^claude-code-[0-9a-z]+-[0-9a-f]{6}$`), id)
	assert.Contains(t, id, "-loyw3v5n-")
	assert.NotEqual(t, id, NewSessionID(CLIClaudeCode, now))
}

func TestHandoffSnapshot_ScanValue(t *testing.T) {
	snap := HandoffSnapshot{
		Project: "p",
		FromCLI: CLIGemini,
		Task:    TaskState{Request: "Refactor", Status: "interrupted"},
		FilesTouched: FilesTouched{
			Read:     []string{"a.go", "b.go"},
			Modified: []string{"b.go", "c.go"},
		},
		RecentObservations: []ObservationRef{{ID: 7, Title: "Read", Type: ObsTypeDiscovery}},
	}
	v, err := snap.Value()
	require.NoError(t, err)

	var got HandoffSnapshot
	require.NoError(t, got.Scan(v))
	assert.Equal(t, snap.Task, got.Task)
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, got.FilesTouched.All())
	assert.Equal(t, int64(7), got.RecentObservations[0].ID)

	var empty HandoffSnapshot
	assert.NoError(t, empty.Scan(nil))
	assert.Error(t, empty.Scan(3.5))
}

func TestHandoff_Pending(t *testing.T) {
	h := &Handoff{}
	assert.True(t, h.Pending())
	h.PickedUpAtEpoch = sql.NullInt64{Int64: 1, Valid: true}
	assert.False(t, h.Pending())
}
