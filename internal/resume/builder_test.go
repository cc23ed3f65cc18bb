package resume

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/GoSecreto/UniMem/internal/db/sqlite"
	"github.com/GoSecreto/UniMem/pkg/models"
)

type BuilderSuite struct {
	suite.Suite
	mem     *sqlite.Memory
	builder *Builder
	clock   time.Time
	ctx     context.Context
}

func TestBuilderSuite(t *testing.T) {
	suite.Run(t, new(BuilderSuite))
}

func (s *BuilderSuite) SetupTest() {
	mem, err := sqlite.Open(sqlite.StoreConfig{Path: filepath.Join(s.T().TempDir(), "test.db"), WALMode: true})
	s.Require().NoError(err)
	s.mem = mem
	s.ctx = context.Background()
	s.clock = time.Unix(1_700_000_000, 0)
	now := func() time.Time { return s.clock }
	mem.SetClock(now)
	s.builder = NewBuilder(mem, 30*time.Minute, now)
}

func (s *BuilderSuite) TearDownTest() {
	s.NoError(s.mem.Close())
}

func (s *BuilderSuite) observe(session string, cli models.CLITool, title string) {
	s.clock = s.clock.Add(time.Second)
	_, err := s.mem.SaveObservation(s.ctx, models.NewObservation(session, "proj", cli, models.ObsTypeImplementation, title, s.clock))
	s.Require().NoError(err)
}

func (s *BuilderSuite) TestEmptyProject() {
	rc, err := s.builder.Build(s.ctx, "proj", models.CLIGemini, "")
	s.Require().NoError(err)
	s.Equal("proj", rc.Project)
	s.Nil(rc.LastSession)
	s.Nil(rc.PendingHandoff)
	s.Empty(rc.RecentObservations)
	s.NotNil(rc.Completed)
	s.Zero(rc.TotalObservations)
}

func (s *BuilderSuite) TestPendingHandoffIsConsumedByKnownCLI() {
	s.observe("claude-1", models.CLIClaudeCode, "wrote parser")
	h := &models.Handoff{
		Project: "proj", FromSessionID: "claude-1", FromCLI: models.CLIClaudeCode, Reason: models.HandoffRateLimit,
		StateSnapshot: models.HandoffSnapshot{
			Task:         models.TaskState{Request: "build parser", Status: "interrupted"},
			Completed:    []string{"lexer"},
			NextSteps:    []string{"grammar"},
			FilesTouched: models.FilesTouched{Read: []string{"a.go", "b.go"}, Modified: []string{"b.go", "c.go"}},
		},
	}
	_, err := s.mem.CreateHandoff(s.ctx, h)
	s.Require().NoError(err)

	s.clock = s.clock.Add(90 * time.Minute)
	rc, err := s.builder.Build(s.ctx, "proj", models.CLIGemini, "")
	s.Require().NoError(err)

	s.Require().NotNil(rc.PendingHandoff)
	s.Equal("build parser", rc.TaskSummary)
	s.Equal([]string{"lexer"}, rc.Completed)
	s.Equal([]string{"grammar"}, rc.NextSteps)
	s.Equal([]string{"a.go", "b.go", "c.go"}, rc.FilesTouched)
	s.Require().NotNil(rc.LastSession)
	s.Equal("1h 30m ago", rc.LastSession.EndedAgo)
	s.Equal("rate_limit", rc.LastSession.Reason)
	s.Equal(int64(1), rc.TotalObservations)
	s.NotEmpty(rc.PickedUpBy)

	pending, err := s.mem.GetPendingHandoff(s.ctx, "proj")
	s.Require().NoError(err)
	s.Nil(pending)

	sess, err := s.mem.GetSession(s.ctx, rc.PickedUpBy)
	s.Require().NoError(err)
	s.Require().NotNil(sess)
	s.Equal(models.CLIGemini, sess.CLITool)
	s.Equal("claude-1", sess.ParentSessionID.String)
	s.Equal("Resumed from claude-code: build parser", sess.UserPrompt.String)
}

func (s *BuilderSuite) TestPendingHandoffIsReadOnlyWithoutCLI() {
	s.observe("claude-1", models.CLIClaudeCode, "x")
	_, err := s.mem.CreateHandoff(s.ctx, &models.Handoff{
		Project: "proj", FromSessionID: "claude-1", FromCLI: models.CLIClaudeCode, Reason: models.HandoffManual,
	})
	s.Require().NoError(err)

	rc, err := s.builder.Build(s.ctx, "proj", "", "")
	s.Require().NoError(err)
	s.NotNil(rc.PendingHandoff)
	s.Empty(rc.PickedUpBy)

	pending, err := s.mem.GetPendingHandoff(s.ctx, "proj")
	s.Require().NoError(err)
	s.NotNil(pending)
}

func (s *BuilderSuite) TestRecentActivityBorrowsSummary() {
	s.observe("claude-1", models.CLIClaudeCode, "a")
	sum := models.NewSessionSummary("claude-1", "proj", models.CLIClaudeCode, models.SummaryFields{
		Request:   "ship search",
		NextSteps: "add tests\nwire MCP; update docs",
	}, s.clock)
	_, err := s.mem.SaveSummary(s.ctx, sum)
	s.Require().NoError(err)

	rc, err := s.builder.Build(s.ctx, "proj", models.CLICodex, "")
	s.Require().NoError(err)
	s.Equal("ship search", rc.TaskSummary)
	s.Equal([]string{"add tests", "wire MCP", "update docs"}, rc.NextSteps)
	s.Len(rc.RecentSummaries, 1)

	rc, err = s.builder.Build(s.ctx, "proj", models.CLIClaudeCode, "")
	s.Require().NoError(err)
	s.Empty(rc.TaskSummary, "same CLI does not borrow")
}

func (s *BuilderSuite) TestRecentActivityIgnoresCurrentSession() {
	s.observe("claude-1", models.CLIClaudeCode, "a")
	sum := models.NewSessionSummary("claude-1", "proj", models.CLIClaudeCode, models.SummaryFields{
		Request: "ship search", NextSteps: "add tests",
	}, s.clock)
	_, err := s.mem.SaveSummary(s.ctx, sum)
	s.Require().NoError(err)
	s.clock = s.clock.Add(time.Minute)
	s.Require().NoError(s.mem.CreateSession(s.ctx, models.NewSession("codex-1", "proj", models.CLICodex, s.clock)))

	rc, err := s.builder.Build(s.ctx, "proj", models.CLICodex, "codex-1")
	s.Require().NoError(err)
	s.Equal("ship search", rc.TaskSummary)
	s.Equal([]string{"add tests"}, rc.NextSteps)
}

func TestEndedAgo(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	assert.Equal(t, "0 min ago", EndedAgo(now, now.Unix()))
	assert.Equal(t, "59 min ago", EndedAgo(now, now.Add(-59*time.Minute).Unix()))
	assert.Equal(t, "2h 5m ago", EndedAgo(now, now.Add(-125*time.Minute).Unix()))
}

func TestSplitSteps(t *testing.T) {
	assert.Equal(t, []string{}, SplitSteps(""))
	assert.Equal(t, []string{"one", "two", "three"}, SplitSteps("- one\r\n* two; three\n\n"))
}
