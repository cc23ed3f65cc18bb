package hooks

import (
	"strings"

	"github.com/GoSecreto/UniMem/pkg/models"
)

var cliEnv = []struct {
	vars []string
	cli  models.CLITool
}{
	{[]string{"CLAUDE_CODE", "CLAUDE_SESSION_ID"}, models.CLIClaudeCode},
	{[]string{"GEMINI_CLI", "GEMINI_SESSION_ID"}, models.CLIGemini},
	{[]string{"CODEX_CLI", "CODEX_SESSION_ID"}, models.CLICodex},
	{[]string{"CURSOR_SESSION_ID", "VSCODE_PID"}, models.CLICursor},
	{[]string{"GITHUB_COPILOT_CLI"}, models.CLICopilot},
}

var parentCommands = []struct {
	needle string
	cli    models.CLITool
}{
	{"gemini", models.CLIGemini},
	{"claude", models.CLIClaudeCode},
	{"codex", models.CLICodex},
	{"cursor", models.CLICursor},
	{"aider", models.CLIAider},
}

// DetectCLI guesses the calling CLI from its environment, then from the
// parent command in "_". It defaults to claude-code.
func DetectCLI(getenv func(string) string) models.CLITool {
	for _, e := range cliEnv {
		for _, v := range e.vars {
			if getenv(v) != "" {
				return e.cli
			}
		}
	}
	parent := strings.ToLower(getenv("_"))
	for _, p := range parentCommands {
		if strings.Contains(parent, p.needle) {
			return p.cli
		}
	}
	return models.CLIClaudeCode
}
