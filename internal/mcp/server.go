// Package mcp exposes the continuity engine to AI CLIs as MCP tools over stdio.
package mcp

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/server"

	"github.com/GoSecreto/UniMem/internal/app"
)

const instructions = `UniMem keeps working memory across AI coding CLIs.
Call memory_resume at the start of a session to pick up where another CLI stopped.
Call memory_handoff before you run out of tokens or hit a rate limit, with notes for the next CLI.
Use memory_search to find earlier work and memory_timeline to see what happened around a result.
Use memory_save for decisions worth keeping that no tool call captured.`

// New builds the MCP server. defaultProject fills the project argument when a
// call omits it.
func New(a *app.App, version, defaultProject string) *server.MCPServer {
	s := server.NewMCPServer(
		"unimem",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	searchTool := NewSearchTool(a, defaultProject)
	s.AddTool(searchTool.Definition(), searchTool.Handle)

	saveTool := NewSaveTool(a, defaultProject)
	s.AddTool(saveTool.Definition(), saveTool.Handle)

	resumeTool := NewResumeTool(a, defaultProject)
	s.AddTool(resumeTool.Definition(), resumeTool.Handle)

	handoffTool := NewHandoffTool(a, defaultProject)
	s.AddTool(handoffTool.Definition(), handoffTool.Handle)

	timelineTool := NewTimelineTool(a, defaultProject)
	s.AddTool(timelineTool.Definition(), timelineTool.Handle)

	return s
}

// Serve runs s over the given streams until ctx is cancelled or stdin closes.
func Serve(ctx context.Context, s *server.MCPServer, stdin io.Reader, stdout io.Writer) error {
	return server.NewStdioServer(s).Listen(ctx, stdin, stdout)
}
