package install

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/suite"
)

type InstallSuite struct {
	suite.Suite
	inst *Installer
}

func TestInstallSuite(t *testing.T) {
	suite.Run(t, new(InstallSuite))
}

func (s *InstallSuite) SetupTest() {
	home := s.T().TempDir()
	s.inst = &Installer{Home: home, BinDir: filepath.Join(home, ".unimem", "bin")}
}

func (s *InstallSuite) write(rel, content string) {
	path := filepath.Join(s.inst.Home, rel)
	s.Require().NoError(os.MkdirAll(filepath.Dir(path), 0o750))
	s.Require().NoError(os.WriteFile(path, []byte(content), 0o600))
}

func (s *InstallSuite) read(rel string) map[string]interface{} {
	data, err := os.ReadFile(filepath.Join(s.inst.Home, rel))
	s.Require().NoError(err)
	out := map[string]interface{}{}
	s.Require().NoError(json.Unmarshal(data, &out))
	return out
}

func groupsOf(settings map[string]interface{}, event string) []interface{} {
	hooks, _ := settings["hooks"].(map[string]interface{})
	groups, _ := hooks[event].([]interface{})
	return groups
}

func commandOf(group interface{}) string {
	g := group.(map[string]interface{})
	h := g["hooks"].([]interface{})[0].(map[string]interface{})
	return h["command"].(string)
}

func (s *InstallSuite) TestClaudeFreshInstall() {
	files, err := s.inst.Claude()
	s.Require().NoError(err)
	s.Len(files, 2)

	settings := s.read(".claude/settings.json")
	for event, bin := range map[string]string{
		"SessionStart":     "session-start",
		"UserPromptSubmit": "user-prompt-submit",
		"PostToolUse":      "post-tool-use",
		"SessionEnd":       "session-end",
	} {
		groups := groupsOf(settings, event)
		s.Require().Len(groups, 1, event)
		s.Equal(filepath.Join(s.inst.BinDir, "hooks", bin), commandOf(groups[0]))
	}
	s.Equal("*", groupsOf(settings, "PostToolUse")[0].(map[string]interface{})["matcher"])
	s.Equal(filepath.Join(s.inst.BinDir, "hooks", "statusline"), settings["statusLine"].(map[string]interface{})["command"])

	mcp := s.read(".mcp.json")
	server := mcp["mcpServers"].(map[string]interface{})["unimem"].(map[string]interface{})
	s.Equal(filepath.Join(s.inst.BinDir, "mcp-server"), server["command"])
}

func (s *InstallSuite) TestClaudePreservesUserSettings() {
	s.write(".claude/settings.json", `{
  "model": "opus",
  "statusLine": {"type": "command", "command": "~/bin/my-status"},
  "hooks": {"PostToolUse": [{"matcher": "Bash", "hooks": [{"type": "command", "command": "lint.sh"}]}]}
}`)
	s.write(".mcp.json", `{"mcpServers": {"other": {"command": "other-server"}}}`)

	_, err := s.inst.Claude()
	s.Require().NoError(err)
	// Installing twice does not duplicate hooks.
	_, err = s.inst.Claude()
	s.Require().NoError(err)

	settings := s.read(".claude/settings.json")
	s.Equal("opus", settings["model"])
	s.Equal("~/bin/my-status", settings["statusLine"].(map[string]interface{})["command"])

	groups := groupsOf(settings, "PostToolUse")
	s.Require().Len(groups, 2)
	s.Equal("lint.sh", commandOf(groups[0]))
	s.Equal(filepath.Join(s.inst.BinDir, "hooks", "post-tool-use"), commandOf(groups[1]))

	servers := s.read(".mcp.json")["mcpServers"].(map[string]interface{})
	s.Contains(servers, "other")
	s.Contains(servers, "unimem")
}

func (s *InstallSuite) TestGemini() {
	_, err := s.inst.Gemini()
	s.ErrorIs(err, ErrCLINotFound)

	s.write(".gemini/settings.json", `{"theme": "dark"}`)
	files, err := s.inst.Gemini()
	s.Require().NoError(err)
	s.Equal([]string{filepath.Join(s.inst.Home, ".gemini", "settings.json")}, files)

	settings := s.read(".gemini/settings.json")
	s.Equal("dark", settings["theme"])
	s.Contains(settings["mcpServers"], "unimem")
	groups := groupsOf(settings, "AfterTool")
	s.Require().Len(groups, 1)
	s.Equal(filepath.Join(s.inst.BinDir, "unimem")+" hook tool-use --cli gemini", commandOf(groups[0]))
	s.Len(groupsOf(settings, "BeforeAgent"), 1)
}

func (s *InstallSuite) TestMalformedSettings() {
	s.write(".claude/settings.json", `{broken`)
	_, err := s.inst.Claude()
	s.Require().Error(err)
	s.Contains(err.Error(), "parse")
}
