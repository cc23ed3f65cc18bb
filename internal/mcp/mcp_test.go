package mcp

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/suite"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/internal/config"
	"github.com/GoSecreto/UniMem/pkg/models"
)

const project = "unimem"

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

type ToolsSuite struct {
	suite.Suite
	app *app.App
	ctx context.Context
}

func TestToolsSuite(t *testing.T) {
	suite.Run(t, new(ToolsSuite))
}

func (s *ToolsSuite) SetupTest() {
	dir := s.T().TempDir()
	s.T().Setenv("UNIMEM_DATA_DIR", dir)
	cfg := config.Default()
	cfg.DBPath = filepath.Join(dir, "unimem.db")
	a, err := app.New(cfg)
	s.Require().NoError(err)
	s.app = a
	s.ctx = context.Background()
}

func (s *ToolsSuite) TearDownTest() {
	s.NoError(s.app.Close())
}

func (s *ToolsSuite) save(title, text string, cli models.CLITool) int64 {
	o := models.NewObservation(string(cli)+"-1", project, cli, models.ObsTypeImplementation, title, s.app.Now())
	o.Narrative = models.NullString(text)
	id, err := s.app.Store.SaveObservation(s.ctx, o)
	s.Require().NoError(err)
	return id
}

func (s *ToolsSuite) TestServerRegistersTools() {
	srv := New(s.app, "test", project)
	tools := srv.ListTools()
	for _, name := range []string{"memory_search", "memory_save", "memory_resume", "memory_handoff", "memory_timeline"} {
		s.Contains(tools, name)
	}
}

func (s *ToolsSuite) TestSave() {
	tool := NewSaveTool(s.app, project)
	s.Equal("memory_save", tool.Definition().Name)

	tests := []struct {
		name    string
		args    map[string]interface{}
		isError bool
		want    string
	}{
		{"missing text", map[string]interface{}{}, true, "'text' is required"},
		{"private only", map[string]interface{}{"text": "<private>x</private>"}, true, "'text' is required"},
		{"bad type", map[string]interface{}{"text": "x", "type": "gossip"}, true, "unknown type"},
		{"defaults", map[string]interface{}{"text": "the cache is per project"}, false, `"Manual Observation" (discovery)`},
		{"explicit", map[string]interface{}{
			"text": "switched to pgx", "title": "Postgres driver", "type": "architecture", "cli_tool": "gemini",
		}, false, `"Postgres driver" (architecture)`},
	}
	for _, tt := range tests {
		s.Run(tt.name, func() {
			res, err := tool.Handle(s.ctx, makeReq(tt.args))
			s.Require().NoError(err)
			s.Equal(tt.isError, res.IsError)
			s.Contains(resultText(res), tt.want)
		})
	}

	obs, err := s.app.Store.GetObservationsByProject(s.ctx, project, 10)
	s.Require().NoError(err)
	s.Require().Len(obs, 2)
	s.Equal(models.CLIGemini, obs[0].CLITool)
	s.Equal(models.CLIClaudeCode, obs[1].CLITool)
}

func (s *ToolsSuite) TestSaveReusesOpenSession() {
	sess := models.NewSession("claude-code-open", project, models.CLIClaudeCode, s.app.Now())
	s.Require().NoError(s.app.Store.CreateSession(s.ctx, sess))

	res, err := NewSaveTool(s.app, project).Handle(s.ctx, makeReq(map[string]interface{}{"text": "note"}))
	s.Require().NoError(err)
	s.Contains(resultText(res), "Session: claude-code-open")
}

func (s *ToolsSuite) TestSaveSkipsDuplicates() {
	tool := NewSaveTool(s.app, project)
	args := map[string]interface{}{"title": "Cache layout", "text": "The resume cache is keyed per project."}

	res, err := tool.Handle(s.ctx, makeReq(args))
	s.Require().NoError(err)
	s.Contains(resultText(res), "Memory saved")

	res, err = tool.Handle(s.ctx, makeReq(args))
	s.Require().NoError(err)
	s.False(res.IsError)
	s.Contains(resultText(res), `Similar memory already saved: "Cache layout"`)

	n, err := s.app.Store.CountObservations(s.ctx, project)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
}

func (s *ToolsSuite) TestSearch() {
	tool := NewSearchTool(s.app, "")
	s.save("Wire the loader", "loader reads settings.json", models.CLIClaudeCode)

	res, err := tool.Handle(s.ctx, makeReq(map[string]interface{}{}))
	s.Require().NoError(err)
	s.True(res.IsError)

	res, err = tool.Handle(s.ctx, makeReq(map[string]interface{}{"query": "loader", "project": project}))
	s.Require().NoError(err)
	s.False(res.IsError)
	s.Contains(resultText(res), "Wire the loader")

	res, err = tool.Handle(s.ctx, makeReq(map[string]interface{}{"query": "kubernetes"}))
	s.Require().NoError(err)
	s.Equal("No memories found matching your query.", resultText(res))
}

func (s *ToolsSuite) TestHandoffAndResume() {
	s.save("Add retry to CreateHandoff", "retries on unique violation", models.CLIClaudeCode)

	handoff := NewHandoffTool(s.app, project)
	res, err := handoff.Handle(s.ctx, makeReq(map[string]interface{}{"reason": "bored"}))
	s.Require().NoError(err)
	s.True(res.IsError)

	res, err = handoff.Handle(s.ctx, makeReq(map[string]interface{}{
		"reason":     "token_exhausted",
		"notes":      "tests still red",
		"next_steps": []interface{}{"fix the gorm test", "update docs"},
	}))
	s.Require().NoError(err)
	s.Require().False(res.IsError, resultText(res))
	text := resultText(res)
	s.Contains(text, "(token_exhausted) from claude-code session claude-code-1")
	s.Contains(text, "Next steps: fix the gorm test, update docs")

	h, err := s.app.Store.GetPendingHandoff(s.ctx, project)
	s.Require().NoError(err)
	s.Require().NotNil(h)
	s.Equal("tests still red", h.StateSnapshot.Notes)

	resume := NewResumeTool(s.app, project)
	res, err = resume.Handle(s.ctx, makeReq(map[string]interface{}{}))
	s.Require().NoError(err)
	s.Contains(resultText(res), "fix the gorm test")
	h, err = s.app.Store.GetPendingHandoff(s.ctx, project)
	s.Require().NoError(err)
	s.NotNil(h, "resume without cli_tool must not consume the handoff")

	res, err = resume.Handle(s.ctx, makeReq(map[string]interface{}{"cli_tool": "gemini"}))
	s.Require().NoError(err)
	s.Contains(resultText(res), "Handoff picked up as session gemini-")
	h, err = s.app.Store.GetPendingHandoff(s.ctx, project)
	s.Require().NoError(err)
	s.Nil(h)
}

func (s *ToolsSuite) TestResumeEmptyProject() {
	res, err := NewResumeTool(s.app, "").Handle(s.ctx, makeReq(map[string]interface{}{"project": "nothing-here"}))
	s.Require().NoError(err)
	s.Equal("No previous work recorded for nothing-here.", resultText(res))

	res, err = NewResumeTool(s.app, "").Handle(s.ctx, makeReq(map[string]interface{}{}))
	s.Require().NoError(err)
	s.True(res.IsError)
}

func (s *ToolsSuite) TestTimeline() {
	var ids []int64
	for _, title := range []string{"first", "second", "third"} {
		ids = append(ids, s.save(title, title+" narrative", models.CLIClaudeCode))
	}
	tool := NewTimelineTool(s.app, project)

	res, err := tool.Handle(s.ctx, makeReq(map[string]interface{}{"observation_id": float64(ids[1]), "before": float64(2), "after": float64(1)}))
	s.Require().NoError(err)
	text := resultText(res)
	s.Contains(text, "first")
	s.Contains(text, "> #"+strconv.FormatInt(ids[1], 10))
	s.Contains(text, "second narrative")
	s.Contains(text, "third")
	s.NotContains(text, "third narrative")

	res, err = tool.Handle(s.ctx, makeReq(map[string]interface{}{"observation_id": float64(999)}))
	s.Require().NoError(err)
	s.True(strings.HasPrefix(resultText(res), "Observation #999 not found"))

	res, err = tool.Handle(s.ctx, makeReq(map[string]interface{}{}))
	s.Require().NoError(err)
	s.True(res.IsError)
}
