package continuity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/GoSecreto/UniMem/internal/db/sqlite"
	"github.com/GoSecreto/UniMem/internal/store"
	"github.com/GoSecreto/UniMem/pkg/models"
)

var errSummaryWrite = errors.New("summary write failed")

// brokenSummaries fails every summary write.
type brokenSummaries struct {
	store.Store
}

func (brokenSummaries) SaveSummary(context.Context, *models.SessionSummary) (int64, error) {
	return 0, errSummaryWrite
}

type EngineSuite struct {
	suite.Suite
	mem    *sqlite.Memory
	engine *Engine
	clock  time.Time
	ctx    context.Context
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	mem, err := sqlite.Open(sqlite.StoreConfig{Path: filepath.Join(s.T().TempDir(), "test.db"), WALMode: true})
	s.Require().NoError(err)
	s.mem = mem
	s.ctx = context.Background()
	s.clock = time.Unix(1_700_000_000, 0)
	now := func() time.Time { return s.clock }
	s.mem.SetClock(now)
	s.engine = NewEngine(mem, nil, WithClock(now))
}

func (s *EngineSuite) TearDownTest() {
	s.NoError(s.mem.Close())
}

func (s *EngineSuite) observe(session string, cli models.CLITool, typ models.ObservationType, title string, read, modified []string) int64 {
	s.clock = s.clock.Add(time.Second)
	o := models.NewObservation(session, "proj", cli, typ, title, s.clock)
	o.FilesRead = read
	o.FilesModified = modified
	id, err := s.mem.SaveObservation(s.ctx, o)
	s.Require().NoError(err)
	return id
}

func (s *EngineSuite) TestRollingSummarySkipsSmallSessions() {
	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "one", nil, nil)
	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "two", nil, nil)

	sum, err := s.engine.RollingSummary(s.ctx, "a", "proj", models.CLIClaudeCode)
	s.NoError(err)
	s.Nil(sum)

	stored, err := s.mem.GetSummary(s.ctx, "a")
	s.NoError(err)
	s.Nil(stored)
}

func (s *EngineSuite) TestRollingSummaryContent() {
	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "read config", []string{"config.go"}, nil)
	s.observe("a", models.CLIClaudeCode, models.ObsTypeImplementation, "add loader", []string{"config.go"}, []string{"loader.go"})
	s.observe("a", models.CLIClaudeCode, models.ObsTypeBugfix, "fix nil map", nil, []string{"loader.go"})
	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "found race", []string{"main.go"}, nil)

	sum, err := s.engine.RollingSummary(s.ctx, "a", "proj", models.CLIClaudeCode)
	s.Require().NoError(err)
	s.Require().NotNil(sum)

	stored, err := s.mem.GetSummary(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal("read config", stored.Request.String, "request is the oldest observation")
	s.Equal("found race; read config", stored.Investigated.String)
	s.Equal("add loader; fix nil map", stored.Completed.String)
	s.Equal("found race; read config", stored.Learned.String)
	s.Equal("Auto-generated rolling summary (4 observations)", stored.Notes.String)
	s.Equal([]string{"main.go", "config.go"}, []string(stored.FilesRead))
	s.Equal([]string{"loader.go"}, []string(stored.FilesEdited))

	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "more", nil, nil)
	_, err = s.engine.RollingSummary(s.ctx, "a", "proj", models.CLIClaudeCode)
	s.Require().NoError(err)
	recent, err := s.mem.GetRecentSummaries(s.ctx, "proj", 10)
	s.Require().NoError(err)
	s.Len(recent, 1, "summary is upserted")
	s.Equal("Auto-generated rolling summary (5 observations)", recent[0].Notes.String)
}

func (s *EngineSuite) TestRecordPromptTriggersSummaryEveryThird() {
	for i := 0; i < 3; i++ {
		s.observe("a", models.CLIGemini, models.ObsTypeImplementation, "work", nil, nil)
	}
	for i := 1; i <= 3; i++ {
		s.Require().NoError(s.engine.RecordPrompt(s.ctx, &models.UserPrompt{
			SessionID: "a", Project: "proj", CLITool: models.CLIGemini, PromptText: "go on",
		}))
		sum, err := s.mem.GetSummary(s.ctx, "a")
		s.Require().NoError(err)
		if i < 3 {
			s.Nil(sum, "prompt %d", i)
		} else {
			s.NotNil(sum)
		}
	}
}

func (s *EngineSuite) TestHandoffOnExitSkipsEmptySession() {
	h, err := s.engine.HandoffOnExit(s.ctx, "empty", "proj", models.CLIClaudeCode, "rate limit")
	s.NoError(err)
	s.Nil(h)

	pending, err := s.mem.GetPendingHandoff(s.ctx, "proj")
	s.NoError(err)
	s.Nil(pending)
}

func (s *EngineSuite) TestHandoffOnExitSnapshot() {
	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "d1", []string{"a.go"}, nil)
	s.observe("a", models.CLIClaudeCode, models.ObsTypeImplementation, "impl", nil, []string{"b.go"})
	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "d2", nil, nil)
	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "d3", nil, nil)
	s.observe("a", models.CLIClaudeCode, models.ObsTypeDiscovery, "d4", []string{"a.go"}, nil)

	h, err := s.engine.HandoffOnExit(s.ctx, "a", "proj", models.CLIClaudeCode, "API Error: 429 Too Many Requests")
	s.Require().NoError(err)
	s.Require().NotNil(h)

	s.Equal(models.HandoffRateLimit, h.Reason)
	snap := h.StateSnapshot
	s.Equal("d4", snap.Task.Request, "request is the most recent observation")
	s.Equal("interrupted", snap.Task.Status)
	s.Equal([]string{"impl"}, snap.Completed)
	s.Equal([]string{"d4", "d3", "d2"}, snap.InProgress)
	s.Equal([]string{"a.go"}, snap.FilesTouched.Read)
	s.Equal([]string{"b.go"}, snap.FilesTouched.Modified)
	s.Len(snap.RecentObservations, 5)
	s.Equal("Auto-saved on session exit (rate_limit). 5 observations captured.", snap.Notes)

	sess, err := s.mem.GetSession(s.ctx, "a")
	s.Require().NoError(err)
	s.Equal(models.SessionStatusPaused, sess.Status)

	sum, err := s.mem.GetSummary(s.ctx, "a")
	s.Require().NoError(err)
	s.NotNil(sum, "rolling summary runs after the handoff")
}

func (s *EngineSuite) TestHandoffOnExitReasonTable() {
	tests := []struct {
		exit string
		want models.HandoffReason
	}{
		{"", models.HandoffManual},
		{"other", models.HandoffManual},
		{"token budget exceeded", models.HandoffTokenExhausted},
		{"user closed terminal", models.HandoffManual},
	}
	for i, tt := range tests {
		s.Run(tt.exit, func() {
			session := models.NewSessionID(models.CLICodex, s.clock) + string(rune('a'+i))
			s.observe(session, models.CLICodex, models.ObsTypeRefactor, "r", nil, nil)
			h, err := s.engine.HandoffOnExit(s.ctx, session, "proj", models.CLICodex, tt.exit)
			s.Require().NoError(err)
			s.Equal(tt.want, h.Reason)
		})
	}
}

func (s *EngineSuite) TestHandoffOnExitKeepsHandoffWhenSummaryFails() {
	for _, t := range []string{"a", "b", "c"} {
		s.observe("claude-1", models.CLIClaudeCode, models.ObsTypeImplementation, t, nil, nil)
	}
	engine := NewEngine(brokenSummaries{s.mem}, nil, WithClock(func() time.Time { return s.clock }))

	h, err := engine.HandoffOnExit(s.ctx, "claude-1", "proj", models.CLIClaudeCode, "429")
	s.ErrorIs(err, errSummaryWrite)
	s.Require().NotNil(h)
	s.NotZero(h.ID)

	pending, err := s.mem.GetPendingHandoff(s.ctx, "proj")
	s.Require().NoError(err)
	s.Require().NotNil(pending)
	s.Equal(h.ID, pending.ID)
}

func (s *EngineSuite) TestDetectOnStart() {
	got, err := s.engine.DetectOnStart(s.ctx, "proj", models.CLIGemini, "")
	s.NoError(err)
	s.Empty(got, "no activity")

	s.observe("claude-1", models.CLIClaudeCode, models.ObsTypeImplementation, "wrote parser", nil, nil)
	s.Require().NoError(s.mem.CreateSession(s.ctx, models.NewSession("claude-1", "proj", models.CLIClaudeCode, s.clock)))

	got, err = s.engine.DetectOnStart(s.ctx, "proj", models.CLIClaudeCode, "")
	s.NoError(err)
	s.Empty(got, "same CLI")

	s.clock = s.clock.Add(5 * time.Minute)
	got, err = s.engine.DetectOnStart(s.ctx, "proj", models.CLIGemini, "")
	s.Require().NoError(err)
	s.Contains(got, "## UniMem: Continuing from claude-code")
	s.Contains(got, "Previous session ended 5 min ago.")
	s.Contains(got, "- [implementation] wrote parser (claude-code)")
	s.Contains(got, "Use memory_resume for full details.")

	s.clock = s.clock.Add(time.Hour)
	got, err = s.engine.DetectOnStart(s.ctx, "proj", models.CLIGemini, "")
	s.NoError(err)
	s.Empty(got, "outside the window")
}

func (s *EngineSuite) TestDetectOnStartLooksPastOwnSession() {
	s.observe("claude-1", models.CLIClaudeCode, models.ObsTypeImplementation, "wrote parser", nil, nil)
	s.Require().NoError(s.mem.CreateSession(s.ctx, models.NewSession("claude-1", "proj", models.CLIClaudeCode, s.clock)))
	s.clock = s.clock.Add(2 * time.Minute)
	s.Require().NoError(s.mem.CreateSession(s.ctx, models.NewSession("gemini-1", "proj", models.CLIGemini, s.clock)))

	got, err := s.engine.DetectOnStart(s.ctx, "proj", models.CLIGemini, "")
	s.Require().NoError(err)
	s.Empty(got, "newest session is gemini's own")

	got, err = s.engine.DetectOnStart(s.ctx, "proj", models.CLIGemini, "gemini-1")
	s.Require().NoError(err)
	s.Contains(got, "## UniMem: Continuing from claude-code")
}

func (s *EngineSuite) TestDetectOnStartPrefersHandoff() {
	for _, t := range []string{"a", "b", "c"} {
		s.observe("claude-1", models.CLIClaudeCode, models.ObsTypeImplementation, t, nil, nil)
	}
	_, err := s.engine.HandoffOnExit(s.ctx, "claude-1", "proj", models.CLIClaudeCode, "rate limited")
	s.Require().NoError(err)

	got, err := s.engine.DetectOnStart(s.ctx, "proj", models.CLICodex, "")
	s.Require().NoError(err)
	s.Contains(got, "**Reason**: rate_limit")
	s.Contains(got, "**Completed**: c, b, a")
}

func (s *EngineSuite) TestDetectOnStartFallsBackToSummary() {
	for _, t := range []string{"a", "b", "c"} {
		s.observe("claude-1", models.CLIClaudeCode, models.ObsTypeBugfix, t, nil, nil)
	}
	_, err := s.engine.RollingSummary(s.ctx, "claude-1", "proj", models.CLIClaudeCode)
	s.Require().NoError(err)

	got, err := s.engine.DetectOnStart(s.ctx, "proj", models.CLICodex, "")
	s.Require().NoError(err)
	s.NotContains(got, "**Reason**")
	s.Contains(got, "**Completed**: c; b; a")
}

func (s *EngineSuite) TestExplicitHandoff() {
	s.observe("g1", models.CLIGemini, models.ObsTypeImplementation, "add cache", nil, []string{"cache.go"})

	h, err := s.engine.Handoff(s.ctx, HandoffRequest{
		SessionID: "g1",
		Project:   "proj",
		CLI:       models.CLIGemini,
		Reason:    models.HandoffPreference,
		Notes:     "codex is better at tests",
		NextSteps: []string{"write cache tests"},
	})
	s.Require().NoError(err)
	s.Equal(models.HandoffPreference, h.Reason)
	s.Equal("add cache", h.StateSnapshot.Task.Request)
	s.Equal("handed_off", h.StateSnapshot.Task.Status)
	s.Equal([]string{"write cache tests"}, h.StateSnapshot.NextSteps)
	s.Equal([]string{"add cache"}, h.StateSnapshot.Completed)
	s.Equal("codex is better at tests", h.StateSnapshot.Notes)

	sess, err := s.mem.GetSession(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal(models.SessionStatusPaused, sess.Status)
}

func (s *EngineSuite) TestExplicitHandoffWithoutObservations() {
	h, err := s.engine.Handoff(s.ctx, HandoffRequest{
		SessionID: "fresh", Project: "proj", CLI: models.CLICodex, Task: "port the parser",
	})
	s.Require().NoError(err)
	s.Equal(models.HandoffManual, h.Reason, "empty reason defaults to manual")
	s.Equal("port the parser", h.StateSnapshot.Task.Request)

	pending, err := s.mem.GetPendingHandoff(s.ctx, "proj")
	s.Require().NoError(err)
	s.Require().NotNil(pending)
	s.Equal(h.ID, pending.ID)
}

func (s *EngineSuite) TestExplicitHandoffRejectsUnknownReason() {
	_, err := s.engine.Handoff(s.ctx, HandoffRequest{SessionID: "x", Project: "proj", Reason: "bored"})
	s.ErrorIs(err, ErrInvalidReason)
}

func TestAgo(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	tests := []struct {
		offset time.Duration
		want   string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5 min ago"},
		{3 * time.Hour, "3h ago"},
		{50 * time.Hour, "2d ago"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Ago(now, now.Add(-tt.offset).Unix()); got != tt.want {
				t.Errorf("Ago = %q, want %q", got, tt.want)
			}
		})
	}
}
