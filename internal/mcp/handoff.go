package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/internal/continuity"
	"github.com/GoSecreto/UniMem/pkg/models"
)

// HandoffTool handles memory_handoff.
type HandoffTool struct {
	app     *app.App
	project string
}

// NewHandoffTool creates a HandoffTool.
func NewHandoffTool(a *app.App, defaultProject string) *HandoffTool {
	return &HandoffTool{app: a, project: defaultProject}
}

func handoffReasons() []string {
	out := make([]string, len(models.HandoffReasons))
	for i, r := range models.HandoffReasons {
		out[i] = string(r)
	}
	return out
}

// Definition returns the MCP tool definition for memory_handoff.
func (t *HandoffTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_handoff",
		mcp.WithDescription(
			"Hand the current work over to another CLI. Snapshots the session, pauses it and leaves "+
				"a pending handoff that the next CLI picks up on start.",
		),
		mcp.WithString("reason",
			mcp.Description("Why work is moving (default: manual)"),
			mcp.Enum(handoffReasons()...),
		),
		mcp.WithString("notes",
			mcp.Description("Free-form notes for the next CLI"),
		),
		mcp.WithString("task",
			mcp.Description("The task being handed over; derived from recent work when omitted"),
		),
		mcp.WithArray("next_steps",
			mcp.Description("Ordered next steps"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("decisions",
			mcp.Description("Decisions made so far"),
			mcp.WithStringItems(),
		),
		mcp.WithString("project",
			mcp.Description("Project name"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session being handed off (default: the project's open session)"),
		),
		mcp.WithString("cli_tool",
			mcp.Description("CLI handing off (default: claude-code)"),
			mcp.Enum(cliNames()...),
		),
	)
}

// Handle processes the memory_handoff tool call.
func (t *HandoffTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	project := projectArg(req, t.project)
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}
	cli := cliArg(req, models.CLIClaudeCode)

	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		var err error
		if sessionID, cli, err = t.app.OpenSession(ctx, project, cli, false); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to find session: %v", err)), nil
		}
	}

	h, err := t.app.Engine.Handoff(ctx, continuity.HandoffRequest{
		SessionID: sessionID,
		Project:   project,
		CLI:       cli,
		Reason:    models.HandoffReason(req.GetString("reason", "")),
		Notes:     req.GetString("notes", ""),
		Task:      req.GetString("task", ""),
		NextSteps: stringSliceArg(req, "next_steps"),
		Decisions: stringSliceArg(req, "decisions"),
	})
	if errors.Is(err, continuity.ErrInvalidReason) {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("handoff failed: %v", err)), nil
	}

	snap := h.StateSnapshot
	var b strings.Builder
	fmt.Fprintf(&b, "Handoff #%d saved (%s) from %s session %s.\n", h.ID, h.Reason, h.FromCLI, h.FromSessionID)
	fmt.Fprintf(&b, "Task: %s\n", snap.Task.Request)
	if len(snap.Completed) > 0 {
		fmt.Fprintf(&b, "Completed: %s\n", strings.Join(snap.Completed, ", "))
	}
	if len(snap.NextSteps) > 0 {
		fmt.Fprintf(&b, "Next steps: %s\n", strings.Join(snap.NextSteps, ", "))
	}
	b.WriteString("The next CLI to start on this project will pick it up.")
	return mcp.NewToolResultText(b.String()), nil
}
