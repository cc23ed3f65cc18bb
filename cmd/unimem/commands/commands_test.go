package commands

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type CommandsSuite struct {
	suite.Suite
	dataDir string
	workDir string
}

func TestCommandsSuite(t *testing.T) {
	suite.Run(t, new(CommandsSuite))
}

func unusedPort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func (s *CommandsSuite) SetupTest() {
	t := s.T()
	s.dataDir = t.TempDir()
	s.workDir = t.TempDir()
	t.Setenv("UNIMEM_DATA_DIR", s.dataDir)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("UNIMEM_WORKER_PORT", strconv.Itoa(unusedPort(t)))
	t.Setenv("UNIMEM_INTERNAL", "")
	t.Setenv("CLAUDE_CODE", "")
	t.Setenv("GEMINI_CLI", "")
	t.Chdir(s.workDir)
}

// run executes the CLI and returns stdout and stderr.
func (s *CommandsSuite) run(stdin string, args ...string) (string, string, error) {
	cmd := NewRootCommand("1.2.3")
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (s *CommandsSuite) TestVersion() {
	out, _, err := s.run("", "version")
	s.Require().NoError(err)
	s.Equal("unimem 1.2.3\n", out)
}

func (s *CommandsSuite) TestHandoffStatusResumeClean() {
	out, _, err := s.run("", "handoff", "--project", "billing", "--reason", "rate_limit",
		"--cli", "claude-code", "--notes", "halfway through", "--task", "Port the exporter", "--next", "wire metrics,add tests")
	s.Require().NoError(err)
	s.Contains(out, "saved")
	s.Contains(out, "(rate_limit) from claude-code")
	s.Contains(out, "wire metrics; add tests")

	out, _, err = s.run("", "status", "--project", "billing")
	s.Require().NoError(err)
	s.Contains(out, "offline")
	s.Contains(out, "from claude-code (rate_limit): Port the exporter")

	out, _, err = s.run("", "resume", "--project", "billing")
	s.Require().NoError(err)
	s.Contains(out, "Port the exporter")
	_, err = os.Stat(filepath.Join(s.workDir, "GEMINI.md"))
	s.True(os.IsNotExist(err), "passive resume writes nothing")

	out, errOut, err := s.run("", "resume", "--project", "billing", "--cli", "gemini")
	s.Require().NoError(err)
	s.Contains(out, "Port the exporter")
	s.Contains(errOut, "Handoff picked up as session gemini-")
	data, err := os.ReadFile(filepath.Join(s.workDir, "GEMINI.md"))
	s.Require().NoError(err)
	s.Contains(string(data), "Port the exporter")

	out, _, err = s.run("", "status", "--project", "billing")
	s.Require().NoError(err)
	s.Contains(out, "Pending handoff")
	s.NotContains(out, "Port the exporter")

	_, _, err = s.run("", "clean", "--cli", "gemini")
	s.Require().NoError(err)
	data, err = os.ReadFile(filepath.Join(s.workDir, "GEMINI.md"))
	s.Require().NoError(err)
	s.NotContains(string(data), "Port the exporter")
}

func (s *CommandsSuite) TestHandoffRejectsUnknownReason() {
	_, _, err := s.run("", "handoff", "--project", "billing", "--reason", "bored")
	s.Require().Error(err)
}

func (s *CommandsSuite) TestResumeEmptyProject() {
	out, _, err := s.run("", "resume", "--project", "nothing-here")
	s.Require().NoError(err)
	s.Equal("No previous work recorded for nothing-here.\n", out)
}

func (s *CommandsSuite) TestCleanUnknownCLI() {
	_, _, err := s.run("", "clean", "--cli", "emacs")
	s.Require().Error(err)
}

func (s *CommandsSuite) TestInstallClaude() {
	out, _, err := s.run("", "install", "--claude")
	s.Require().NoError(err)
	s.Contains(out, "Installed into Claude Code")
	s.NotContains(out, "Gemini")

	home := os.Getenv("HOME")
	_, err = os.Stat(filepath.Join(home, ".claude", "settings.json"))
	s.NoError(err)
	_, err = os.Stat(filepath.Join(home, ".mcp.json"))
	s.NoError(err)
}

func (s *CommandsSuite) TestInstallAllSkipsMissingGemini() {
	out, _, err := s.run("", "install")
	s.Require().NoError(err)
	s.Contains(out, "Gemini CLI not found, skipped")

	_, _, err = s.run("", "install", "--gemini")
	s.Require().Error(err)
}

func (s *CommandsSuite) TestHookSkipsInternalCalls() {
	s.T().Setenv("UNIMEM_INTERNAL", "1")
	out, _, err := s.run(`{"tool_name":"apply_patch"}`, "hook", "tool-use", "--cli", "codex")
	s.Require().NoError(err)
	s.JSONEq(`{"success":true}`, out)
}

func (s *CommandsSuite) TestHookRequiresEvent() {
	_, _, err := s.run("", "hook")
	s.Require().Error(err)
}
