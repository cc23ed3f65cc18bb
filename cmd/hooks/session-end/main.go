// Package main provides the Claude Code SessionEnd hook. It snapshots the
// session so the next CLI can pick it up.
package main

import (
	"github.com/GoSecreto/UniMem/pkg/hooks"
	"github.com/GoSecreto/UniMem/pkg/models"
)

func main() {
	hooks.Run(models.CLIClaudeCode, "SessionEnd")
}
