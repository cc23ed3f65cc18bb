package gorm

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm/logger"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// PostgresSuite runs against a live server named by UNIMEM_TEST_POSTGRES_DSN.
type PostgresSuite struct {
	suite.Suite
	mem   *Memory
	clock time.Time
}

func TestPostgresSuite(t *testing.T) {
	if os.Getenv("UNIMEM_TEST_POSTGRES_DSN") == "" {
		t.Skip("UNIMEM_TEST_POSTGRES_DSN not set")
	}
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	mem, err := Open(Config{
		DSN:      os.Getenv("UNIMEM_TEST_POSTGRES_DSN"),
		MaxConns: 8,
		LogLevel: logger.Silent,
	})
	s.Require().NoError(err)
	s.mem = mem
	s.mem.SetClock(func() time.Time { return s.clock })
}

func (s *PostgresSuite) TearDownSuite() {
	if s.mem != nil {
		s.NoError(s.mem.Close())
	}
}

func (s *PostgresSuite) SetupTest() {
	s.clock = time.Unix(1_700_000_000, 0)
	s.Require().NoError(s.mem.db.DB.Exec(
		`TRUNCATE user_prompts, handoffs, session_summaries, observations, sessions RESTART IDENTITY`,
	).Error)
}

func (s *PostgresSuite) tick(d time.Duration) {
	s.clock = s.clock.Add(d)
}

func (s *PostgresSuite) TestMigrationsAreIdempotent() {
	s.NoError(runMigrations(s.mem.db.DB))
}

func (s *PostgresSuite) TestPing() {
	s.NoError(s.mem.Ping(context.Background()))
}

func (s *PostgresSuite) TestSessionLifecycle() {
	ctx := context.Background()
	sess := models.NewSession("claude-code-a", "proj", models.CLIClaudeCode, s.clock)
	s.Require().NoError(s.mem.CreateSession(ctx, sess))
	s.Require().NoError(s.mem.CreateSession(ctx, sess), "re-insert is a no-op")

	s.tick(time.Minute)
	s.Require().NoError(s.mem.UpdateSessionStatus(ctx, "claude-code-a", models.SessionStatusCompleted, "done"))
	got, err := s.mem.GetSession(ctx, "claude-code-a")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Equal(models.SessionStatusCompleted, got.Status)
	firstCompleted := got.CompletedAtEpoch.Int64

	s.tick(time.Minute)
	s.Require().NoError(s.mem.UpdateSessionStatus(ctx, "claude-code-a", models.SessionStatusActive, ""))
	got, err = s.mem.GetSession(ctx, "claude-code-a")
	s.Require().NoError(err)
	s.Equal(models.SessionStatusCompleted, got.Status)
	s.Equal(firstCompleted, got.CompletedAtEpoch.Int64)

	missing, err := s.mem.GetSession(ctx, "nope")
	s.NoError(err)
	s.Nil(missing)
}

func (s *PostgresSuite) TestRecentActivityAndProjects() {
	ctx := context.Background()
	s.Require().NoError(s.mem.CreateSession(ctx, models.NewSession("gemini-a", "alpha", models.CLIGemini, s.clock)))
	s.tick(10 * time.Minute)

	got, err := s.mem.DetectRecentActivity(ctx, "alpha", 5*time.Minute, "")
	s.NoError(err)
	s.Nil(got)

	got, err = s.mem.DetectRecentActivity(ctx, "alpha", 15*time.Minute, "")
	s.NoError(err)
	s.Require().NotNil(got)
	s.Equal("gemini-a", got.SessionID)

	got, err = s.mem.DetectRecentActivity(ctx, "alpha", 15*time.Minute, "gemini-a")
	s.NoError(err)
	s.Nil(got)

	_, err = s.mem.SaveObservation(ctx, models.NewObservation("gemini-b", "beta", models.CLIGemini, models.ObsTypeImplementation, "x", s.clock))
	s.Require().NoError(err)
	projects, err := s.mem.GetAllProjects(ctx)
	s.NoError(err)
	s.Equal([]string{"alpha", "beta"}, projects)
}

func (s *PostgresSuite) TestTimelineBreaksTiesByID() {
	ctx := context.Background()
	var ids []int64
	for i := 0; i < 5; i++ {
		if i != 2 {
			s.tick(time.Second)
		}
		id, err := s.mem.SaveObservation(ctx, models.NewObservation("sess", "proj", models.CLIClaudeCode, models.ObsTypeRefactor, "t", s.clock))
		s.Require().NoError(err)
		ids = append(ids, id)
	}

	window, err := s.mem.GetTimeline(ctx, "proj", ids[2], 2, 2)
	s.Require().NoError(err)
	var got []int64
	for _, o := range window {
		got = append(got, o.ID)
	}
	s.Equal([]int64{ids[1], ids[2], ids[3], ids[4]}, got)
}

func (s *PostgresSuite) TestSearchFallsBackToILike() {
	ctx := context.Background()
	obs := models.NewObservation("sess", "proj", models.CLIClaudeCode, models.ObsTypeBugfix, "Fix auth token refresh", s.clock)
	obs.Narrative = models.NullString("refreshing tokens early")
	_, err := s.mem.SaveObservation(ctx, obs)
	s.Require().NoError(err)

	cases := []struct {
		name  string
		query string
		want  int
	}{
		{"full text", "auth token", 1},
		{"substring only", "fresh", 1},
		{"operators stripped", `auth AND "token"`, 1},
		{"empty returns recent", "", 1},
		{"no match", "kubernetes", 0},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			res, err := s.mem.SearchObservations(ctx, models.ObservationQuery{Query: tc.query, Project: "proj"})
			s.NoError(err)
			s.Len(res, tc.want)
		})
	}
}

func (s *PostgresSuite) TestSummaryUpsert() {
	ctx := context.Background()
	sum := models.NewSessionSummary("sess", "proj", models.CLICodex, models.SummaryFields{Request: "first"}, s.clock)
	id1, err := s.mem.SaveSummary(ctx, sum)
	s.Require().NoError(err)

	s.tick(time.Minute)
	sum2 := models.NewSessionSummary("sess", "proj", models.CLICodex, models.SummaryFields{Request: "second"}, s.clock)
	id2, err := s.mem.SaveSummary(ctx, sum2)
	s.Require().NoError(err)
	s.Equal(id1, id2)

	got, err := s.mem.GetSummary(ctx, "sess")
	s.Require().NoError(err)
	s.Equal("second", got.Request.String)

	found, err := s.mem.SearchSummaries(ctx, "SECOND", "proj", 5)
	s.NoError(err)
	s.Len(found, 1)
}

func (s *PostgresSuite) TestHandoffSupersedesPending() {
	ctx := context.Background()
	first := &models.Handoff{Project: "proj", FromSessionID: "a", FromCLI: models.CLIClaudeCode, Reason: models.HandoffRateLimit}
	_, err := s.mem.CreateHandoff(ctx, first)
	s.Require().NoError(err)

	s.tick(time.Second)
	second := &models.Handoff{Project: "proj", FromSessionID: "b", FromCLI: models.CLIGemini, Reason: models.HandoffManual}
	_, err = s.mem.CreateHandoff(ctx, second)
	s.Require().NoError(err)

	pending, err := s.mem.GetPendingHandoff(ctx, "proj")
	s.Require().NoError(err)
	s.Require().NotNil(pending)
	s.Equal(second.ID, pending.ID)

	history, err := s.mem.GetHandoffHistory(ctx, "proj", 10)
	s.Require().NoError(err)
	s.Require().Len(history, 2)
	s.Equal("b", history[1].ToSessionID.String)

	sess, err := s.mem.GetSession(ctx, "b")
	s.Require().NoError(err)
	s.Equal(models.SessionStatusPaused, sess.Status)
	s.Equal("manual", sess.PauseReason.String)

	s.Require().NoError(s.mem.MarkHandoffPickedUp(ctx, second.ID, "c", models.CLICodex))
	pending, err = s.mem.GetPendingHandoff(ctx, "proj")
	s.NoError(err)
	s.Nil(pending)
}

func (s *PostgresSuite) TestConcurrentHandoffsLeaveOnePending() {
	ctx := context.Background()
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h := &models.Handoff{Project: "race", FromSessionID: models.NewSessionID(models.CLIClaudeCode, time.Now()), FromCLI: models.CLIClaudeCode, Reason: models.HandoffPreference}
			_, err := s.mem.CreateHandoff(ctx, h)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.NoError(err)
	}

	var pending int64
	s.Require().NoError(s.mem.db.DB.Model(&Handoff{}).Where("project = ? AND picked_up_at_epoch IS NULL", "race").Count(&pending).Error)
	s.Equal(int64(1), pending)
}

func (s *PostgresSuite) TestPromptNumbering() {
	ctx := context.Background()
	for _, text := range []string{"one", "two"} {
		_, err := s.mem.SaveUserPrompt(ctx, &models.UserPrompt{SessionID: "sess", Project: "proj", CLITool: models.CLIClaudeCode, PromptText: text})
		s.Require().NoError(err)
	}
	prompts, err := s.mem.GetPromptsBySession(ctx, "sess")
	s.Require().NoError(err)
	s.Require().Len(prompts, 2)
	s.Equal(1, prompts[0].PromptNumber)
	s.Equal("two", prompts[1].PromptText)

	n, err := s.mem.NextPromptNumber(ctx, "sess")
	s.NoError(err)
	s.Equal(3, n)
}

func TestNewStoreRejectsEmptyDSN(t *testing.T) {
	_, err := NewStore(Config{})
	require.Error(t, err)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 10, clampLimit(0, 10))
	assert.Equal(t, 10, clampLimit(-3, 10))
	assert.Equal(t, 7, clampLimit(7, 10))
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `100\% \_x\\`, escapeLike(`100% _x\`))
}
