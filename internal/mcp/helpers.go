package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// intArg reads a numeric argument; JSON numbers arrive as float64.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// stringSliceArg reads an array of strings, skipping non-string items.
func stringSliceArg(req mcp.CallToolRequest, key string) []string {
	raw, ok := req.GetArguments()[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func projectArg(req mcp.CallToolRequest, defaultProject string) string {
	return req.GetString("project", defaultProject)
}

func cliArg(req mcp.CallToolRequest, def models.CLITool) models.CLITool {
	return models.ParseCLITool(req.GetString("cli_tool", ""), def)
}

func cliNames() []string {
	names := make([]string, len(models.CLITools))
	for i, c := range models.CLITools {
		names[i] = string(c)
	}
	return names
}
