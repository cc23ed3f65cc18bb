package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/internal/privacy"
	"github.com/GoSecreto/UniMem/internal/tokens"
	"github.com/GoSecreto/UniMem/pkg/models"
	"github.com/GoSecreto/UniMem/pkg/similarity"
)

const (
	defaultSaveTitle = "Manual Observation"
	// A memory this close to one of the last duplicateWindow is not saved again.
	duplicateThreshold = 0.9
	duplicateWindow    = 50
)

// SaveTool handles memory_save.
type SaveTool struct {
	app     *app.App
	project string
}

// NewSaveTool creates a SaveTool.
func NewSaveTool(a *app.App, defaultProject string) *SaveTool {
	return &SaveTool{app: a, project: defaultProject}
}

func observationTypes() []string {
	out := make([]string, len(models.ObservationTypes))
	for i, t := range models.ObservationTypes {
		out[i] = string(t)
	}
	return out
}

// Definition returns the MCP tool definition for memory_save.
func (t *SaveTool) Definition() mcp.Tool {
	return mcp.NewTool("memory_save",
		mcp.WithDescription(
			"Save an observation that no tool call captured: a decision, a discovery, a gotcha. "+
				"It shows up in resume context for every CLI.",
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("What to remember"),
		),
		mcp.WithString("title",
			mcp.Description("Short searchable title (default: Manual Observation)"),
		),
		mcp.WithString("type",
			mcp.Description("Observation type (default: discovery)"),
			mcp.Enum(observationTypes()...),
		),
		mcp.WithString("project",
			mcp.Description("Project name"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session to attach to (default: the project's open session, else a new one)"),
		),
		mcp.WithString("cli_tool",
			mcp.Description("CLI saving the observation (default: claude-code)"),
			mcp.Enum(cliNames()...),
		),
	)
}

// Handle processes the memory_save tool call.
func (t *SaveTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text := privacy.Clean(req.GetString("text", ""))
	if text == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}
	project := projectArg(req, t.project)
	if project == "" {
		return mcp.NewToolResultError("'project' is required"), nil
	}
	cli := cliArg(req, models.CLIClaudeCode)
	typ := models.ObservationType(req.GetString("type", string(models.ObsTypeDiscovery)))
	if !typ.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("unknown type %q", typ)), nil
	}

	sessionID := req.GetString("session_id", "")
	if sessionID == "" {
		var err error
		if sessionID, _, err = t.app.OpenSession(ctx, project, cli, true); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to find session: %v", err)), nil
		}
	}

	title := req.GetString("title", defaultSaveTitle)
	obs := models.NewObservation(sessionID, project, cli, typ, title, t.app.Now())
	obs.Narrative = models.NullString(text)
	obs.DiscoveryTokens = int64(tokens.Count(text))

	recent, err := t.app.Store.GetObservationsByProject(ctx, project, duplicateWindow)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to load recent memories: %v", err)), nil
	}
	if dup := similarity.MostSimilar(obs, recent, duplicateThreshold); dup != nil {
		return mcp.NewToolResultText(fmt.Sprintf("Similar memory already saved: %q\nID: %d", dup.Title.String, dup.ID)), nil
	}

	id, err := t.app.Store.SaveObservation(ctx, obs)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to save observation: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Memory saved: %q (%s)\nID: %d\nSession: %s", title, typ, id, sessionID)), nil
}
