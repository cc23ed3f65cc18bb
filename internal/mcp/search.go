package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/internal/search"
	"github.com/GoSecreto/UniMem/pkg/models"
)

// SearchTool handles memory_search.
type SearchTool struct {
	app     *app.App
	project string
}

// NewSearchTool creates a SearchTool.
func NewSearchTool(a *app.App, defaultProject string) *SearchTool {
	return &SearchTool{app: a, project: defaultProject}
}

// Definition returns the MCP tool definition for memory_search.
func (t *SearchTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_search",
		mcp.WithDescription(
			"Search observations and session summaries recorded by every CLI. "+
				"Results carry ids usable with memory_timeline.",
		),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Keywords to search for"),
		),
		mcp.WithString("project",
			mcp.Description("Restrict to one project"),
		),
		mcp.WithString("cli_tool",
			mcp.Description("Restrict to observations from one CLI"),
			mcp.Enum(cliNames()...),
		),
		mcp.WithString("type",
			mcp.Description("observations or summaries (default: both)"),
			mcp.Enum("observations", "summaries"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Max results (default: 10, max: 100)"),
		),
	)
}

// Handle processes the memory_search tool call.
func (t *SearchTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := req.GetString("query", "")
	if strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("'query' is required"), nil
	}

	result, err := t.app.Search.UnifiedSearch(ctx, search.SearchParams{
		Query:   query,
		Project: projectArg(req, t.project),
		CLITool: models.CLITool(req.GetString("cli_tool", "")),
		Type:    req.GetString("type", ""),
		Limit:   intArg(req, "limit", 10),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(result.Results) == 0 {
		return mcp.NewToolResultText("No memories found matching your query."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d results:\n\n", len(result.Results))
	for i, r := range result.Results {
		kind := string(r.Type)
		if r.ObsType != "" {
			kind = r.ObsType
		}
		fmt.Fprintf(&b, "[%d] #%d (%s, %s) %s\n", i+1, r.ID, kind, r.CLITool, r.Title)
		if r.Content != "" {
			fmt.Fprintf(&b, "    %s\n", r.Content)
		}
		fmt.Fprintf(&b, "    project: %s | session: %s\n\n", r.Project, r.SessionID)
	}
	return mcp.NewToolResultText(b.String()), nil
}
