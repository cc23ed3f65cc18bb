// Package main provides the Claude Code UserPromptSubmit hook.
package main

import (
	"github.com/GoSecreto/UniMem/pkg/hooks"
	"github.com/GoSecreto/UniMem/pkg/models"
)

func main() {
	hooks.Run(models.CLIClaudeCode, "UserPromptSubmit")
}
