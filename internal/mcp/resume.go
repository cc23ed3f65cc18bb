package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/pkg/models"
)

// ResumeTool handles memory_resume.
type ResumeTool struct {
	app     *app.App
	project string
}

// NewResumeTool creates a ResumeTool.
func NewResumeTool(a *app.App, defaultProject string) *ResumeTool {
	return &ResumeTool{app: a, project: defaultProject}
}

// Definition returns the MCP tool definition for memory_resume.
func (t *ResumeTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_resume",
		mcp.WithDescription(
			"Get the working state of a project: last session, pending handoff, completed and "+
				"in-progress work, next steps and touched files. Passing cli_tool picks up the pending handoff.",
		),
		mcp.WithString("project",
			mcp.Description("Project name"),
		),
		mcp.WithString("cli_tool",
			mcp.Description("The CLI resuming work; when set, a pending handoff is marked picked up"),
			mcp.Enum(cliNames()...),
		),
	)
}

// Handle processes the memory_resume tool call.
func (t *ResumeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := projectArg(req, t.project)
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}
	var cli models.CLITool
	if raw := req.GetString("cli_tool", ""); raw != "" {
		cli = models.ParseCLITool(raw, models.CLIClaudeCode)
	}

	rc, md, err := t.app.Resume(ctx, project, cli)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("resume failed: %v", err)), nil
	}
	if rc.Empty() {
		return mcp.NewToolResultText(fmt.Sprintf("No previous work recorded for %s.", project)), nil
	}
	if rc.PickedUpBy != "" {
		md += fmt.Sprintf("\n\nHandoff picked up as session %s.", rc.PickedUpBy)
	}
	return mcp.NewToolResultText(md), nil
}
