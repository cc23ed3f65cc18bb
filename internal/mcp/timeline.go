package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GoSecreto/UniMem/internal/app"
)

// TimelineTool handles memory_timeline.
type TimelineTool struct {
	app     *app.App
	project string
}

// NewTimelineTool creates a TimelineTool.
func NewTimelineTool(a *app.App, defaultProject string) *TimelineTool {
	return &TimelineTool{app: a, project: defaultProject}
}

// Definition returns the MCP tool definition for memory_timeline.
func (t *TimelineTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_timeline",
		mcp.WithDescription(
			"Show the observations recorded around one observation, across CLIs. "+
				"Use after memory_search to see what led up to a result.",
		),
		mcp.WithNumber("observation_id",
			mcp.Required(),
			mcp.Description("The observation to center on (from memory_search)"),
		),
		mcp.WithNumber("before",
			mcp.Description("Observations before the anchor (default: 5)"),
		),
		mcp.WithNumber("after",
			mcp.Description("Observations after the anchor (default: 5)"),
		),
		mcp.WithString("project",
			mcp.Description("Project name"),
		),
	)
}

// Handle processes the memory_timeline tool call.
func (t *TimelineTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	anchor := int64(intArg(req, "observation_id", 0))
	if anchor <= 0 {
		return mcp.NewToolResultError("'observation_id' is required"), nil
	}
	project := projectArg(req, t.project)
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}

	obs, err := t.app.Store.GetTimeline(ctx, project, anchor, intArg(req, "before", 5), intArg(req, "after", 5))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("timeline failed: %v", err)), nil
	}
	if len(obs) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Observation #%d not found in %s.", anchor, project)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Timeline around #%d (%s):\n\n", anchor, project)
	for _, o := range obs {
		marker := "  "
		if o.ID == anchor {
			marker = "> "
		}
		ts := time.Unix(o.CreatedAtEpoch, 0).UTC().Format("2006-01-02 15:04")
		fmt.Fprintf(&b, "%s#%d %s [%s/%s] %s\n", marker, o.ID, ts, o.CLITool, o.Type, o.TitleOr("Untitled"))
		if o.ID == anchor && o.Narrative.String != "" {
			fmt.Fprintf(&b, "    %s\n", o.Narrative.String)
		}
	}
	return mcp.NewToolResultText(b.String()), nil
}
