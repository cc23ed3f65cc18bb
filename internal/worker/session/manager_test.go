package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// ManagerSuite is a test suite for Manager operations.
type ManagerSuite struct {
	suite.Suite
	manager *Manager
	clock   time.Time
}

func (s *ManagerSuite) SetupTest() {
	s.clock = time.Unix(1_700_000_000, 0)
	s.manager = NewManager(time.Hour)
	s.manager.now = func() time.Time { return s.clock }
}

func (s *ManagerSuite) TearDownTest() {
	s.manager.Shutdown()
}

func TestManagerSuite(t *testing.T) {
	suite.Run(t, new(ManagerSuite))
}

func (s *ManagerSuite) TestTouchCreatesOnce() {
	var created []string
	s.manager.SetOnSessionCreated(func(id string) { created = append(created, id) })

	sess, isNew := s.manager.Touch("claude-code-1", "proj", models.CLIClaudeCode)
	s.True(isNew)
	s.Equal("proj", sess.Project)
	s.Equal(models.CLIClaudeCode, sess.CLITool)
	s.Equal(s.clock, sess.StartTime)

	s.clock = s.clock.Add(time.Minute)
	again, isNew := s.manager.Touch("claude-code-1", "proj", models.CLIClaudeCode)
	s.False(isNew)
	s.Same(sess, again)
	s.Equal(s.clock.Unix(), again.LastActivity().Unix())
	s.Equal([]string{"claude-code-1"}, created)
}

func (s *ManagerSuite) TestGetActiveSessionCount() {
	s.Equal(0, s.manager.GetActiveSessionCount())

	s.manager.Touch("a", "proj", models.CLIGemini)
	s.manager.Touch("b", "proj", models.CLICodex)

	s.Equal(2, s.manager.GetActiveSessionCount())
	s.Len(s.manager.GetAllSessions(), 2)
}

func (s *ManagerSuite) TestCounters() {
	for i := int64(1); i <= 4; i++ {
		s.Equal(i, s.manager.RecordObservation("a", "proj", models.CLIGemini))
	}
	s.Equal(int64(1), s.manager.RecordPrompt("a", "proj", models.CLIGemini))

	sess := s.manager.GetSession("a")
	s.Require().NotNil(sess)
	s.Equal(int64(4), sess.Observations())
	s.Equal(int64(1), sess.Prompts())

	sess.SeedObservations(10)
	s.Equal(int64(11), s.manager.RecordObservation("a", "proj", models.CLIGemini))
}

func (s *ManagerSuite) TestGetProjectSessions() {
	s.manager.Touch("a", "alpha", models.CLIGemini)
	s.manager.Touch("b", "beta", models.CLIGemini)
	s.manager.Touch("c", "alpha", models.CLIAider)

	s.Len(s.manager.GetProjectSessions("alpha"), 2)
	s.Len(s.manager.GetProjectSessions("beta"), 1)
	s.Empty(s.manager.GetProjectSessions("gamma"))
}

// TestDeleteSession tests session deletion.
func (s *ManagerSuite) TestDeleteSession() {
	s.manager.Touch("a", "proj", models.CLIClaudeCode)

	var deletedID string
	s.manager.SetOnSessionDeleted(func(id string) { deletedID = id })

	s.manager.DeleteSession("a")
	s.Equal(0, s.manager.GetActiveSessionCount())
	s.Equal("a", deletedID)
	s.Nil(s.manager.GetSession("a"))

	deletedID = ""
	s.manager.DeleteSession("a")
	s.Empty(deletedID, "double delete is a no-op")
}

func (s *ManagerSuite) TestCleanupIdle() {
	s.manager.Touch("old", "proj", models.CLIClaudeCode)
	s.clock = s.clock.Add(50 * time.Minute)
	s.manager.Touch("fresh", "proj", models.CLIGemini)
	s.clock = s.clock.Add(20 * time.Minute)

	s.Equal(1, s.manager.CleanupIdle())
	s.Nil(s.manager.GetSession("old"))
	s.NotNil(s.manager.GetSession("fresh"))
}

func TestNewManagerDefaults(t *testing.T) {
	m := NewManager(0)
	defer m.Shutdown()
	assert.Equal(t, DefaultIdleTimeout, m.idleTimeout)
	assert.NotNil(t, m.sessions)
}

func TestManagerConcurrentAccess(t *testing.T) {
	m := NewManager(time.Hour)
	defer m.Shutdown()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordObservation("shared", "proj", models.CLICodex)
			_ = m.GetAllSessions()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, m.GetActiveSessionCount())
	assert.Equal(t, int64(50), m.GetSession("shared").Observations())
}
