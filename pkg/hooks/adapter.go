package hooks

import (
	"fmt"
	"strings"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// Input is a CLI's raw hook payload.
type Input map[string]interface{}

func (in Input) str(keys ...string) string {
	for _, k := range keys {
		if v, ok := in[k].(string); ok && v != "" {
			return v
		}
	}
	return ""
}

func (in Input) object(key string) Input {
	if m, ok := in[key].(map[string]interface{}); ok {
		return Input(m)
	}
	return Input{}
}

// Call is one request to the worker produced by a hook event.
type Call struct {
	Hook  models.HookType
	Event models.HookEvent
}

// Adapter converts a CLI's native hook events into worker calls.
type Adapter interface {
	CLI() models.CLITool
	// Normalize returns the worker calls for event, or nil when the event is
	// not recorded.
	Normalize(event string, in Input) []Call
}

// AdapterFor returns the adapter of cli. CLIs without native hook support use
// the generic adapter.
func AdapterFor(cli models.CLITool) Adapter {
	switch cli {
	case models.CLIClaudeCode:
		return ClaudeAdapter{}
	case models.CLIGemini:
		return GeminiAdapter{}
	default:
		return GenericAdapter{cli: cli}
	}
}

// lifecycle is the CLI-independent meaning of a native event.
type lifecycle int

const (
	lifecycleUnknown lifecycle = iota
	lifecycleStart
	lifecyclePrompt
	lifecycleTool
	lifecycleEnd
)

type toolFiles struct {
	read     []string
	modified []string
}

// normalize builds the calls shared by every adapter.
func normalize(cli models.CLITool, kind lifecycle, in Input, files func(tool string, args Input) toolFiles) []Call {
	base := models.HookEvent{
		SessionID:  in.str("session_id"),
		CLITool:    cli,
		CLIVersion: in.str("cli_version", "version"),
		CWD:        in.str("cwd"),
	}

	switch kind {
	case lifecycleStart:
		start := base
		start.Prompt = in.str("prompt")
		return []Call{
			{Hook: models.HookSessionStart, Event: start},
			{Hook: models.HookAutoDetect, Event: base},
		}
	case lifecyclePrompt:
		prompt := in.str("prompt", "user_prompt")
		if strings.TrimSpace(prompt) == "" {
			return nil
		}
		ev := base
		ev.Prompt = prompt
		return []Call{{Hook: models.HookPrompt, Event: ev}}
	case lifecycleTool:
		tool := in.str("tool_name")
		if tool == "" {
			return nil
		}
		args := in.object("tool_input")
		f := files(tool, args)
		ev := base
		ev.ToolName = tool
		ev.Summary = in.str("summary")
		if ev.Summary == "" {
			ev.Summary = describeTool(tool, args, f)
		}
		ev.FilesRead = f.read
		ev.FilesModified = f.modified
		return []Call{{Hook: models.HookToolUse, Event: ev}}
	case lifecycleEnd:
		ev := base
		ev.ExitReason = in.str("reason", "stop_reason", "exit_reason")
		if ev.ExitReason == "" {
			ev.ExitReason = "unknown"
		}
		return []Call{{Hook: models.HookSessionAutosave, Event: ev}}
	}
	return nil
}

// describeTool writes the one-line narrative of a tool call.
func describeTool(tool string, args Input, f toolFiles) string {
	switch {
	case len(f.modified) > 0:
		return "Edited file: " + f.modified[0]
	case len(f.read) > 0 && (tool == "Read" || tool == "read_file"):
		return "Read file: " + f.read[0]
	}
	switch tool {
	case "Bash", "shell", "run_shell_command":
		return "Ran command: " + truncate(args.str("command"), 100)
	case "Grep", "search", "search_file_content":
		return "Searched for: " + args.str("pattern", "query")
	case "Glob", "glob":
		return "Listed files: " + args.str("pattern")
	case "WebFetch", "web_fetch":
		return "Fetched: " + args.str("url", "prompt")
	}
	return fmt.Sprintf("Used %s", tool)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func pathArgs(args Input, keys ...string) []string {
	var out []string
	for _, k := range keys {
		if v := args.str(k); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func oneOf(tool string, names ...string) bool {
	for _, n := range names {
		if tool == n {
			return true
		}
	}
	return false
}

// ClaudeAdapter handles Claude Code hook payloads.
type ClaudeAdapter struct{}

// CLI implements Adapter.
func (ClaudeAdapter) CLI() models.CLITool { return models.CLIClaudeCode }

// Normalize implements Adapter.
func (a ClaudeAdapter) Normalize(event string, in Input) []Call {
	var kind lifecycle
	switch event {
	case "SessionStart", "session-start":
		kind = lifecycleStart
	case "UserPromptSubmit", "prompt":
		kind = lifecyclePrompt
	case "PostToolUse", "tool-use":
		kind = lifecycleTool
	case "SessionEnd", "session-end":
		kind = lifecycleEnd
	}
	// Stop fires after every assistant turn, not when the session exits.
	return normalize(a.CLI(), kind, in, func(tool string, args Input) toolFiles {
		var f toolFiles
		if oneOf(tool, "Read", "Glob", "Grep") {
			f.read = pathArgs(args, "file_path", "path")
		}
		if oneOf(tool, "Edit", "MultiEdit", "Write", "NotebookEdit") {
			f.modified = pathArgs(args, "file_path", "notebook_path")
		}
		return f
	})
}

// GeminiAdapter handles Gemini CLI hook payloads.
type GeminiAdapter struct{}

// CLI implements Adapter.
func (GeminiAdapter) CLI() models.CLITool { return models.CLIGemini }

// Normalize implements Adapter.
func (a GeminiAdapter) Normalize(event string, in Input) []Call {
	var kind lifecycle
	switch event {
	case "SessionStart", "session-start":
		kind = lifecycleStart
	case "BeforeAgent", "before-agent", "prompt":
		kind = lifecyclePrompt
	case "AfterTool", "after-tool", "tool-use":
		kind = lifecycleTool
	case "SessionEnd", "session-end":
		kind = lifecycleEnd
	}
	return normalize(a.CLI(), kind, in, func(tool string, args Input) toolFiles {
		var f toolFiles
		if oneOf(tool, "read_file", "Read") {
			f.read = pathArgs(args, "path", "file_path")
		}
		if oneOf(tool, "write_file", "Edit", "replace") {
			f.modified = pathArgs(args, "path", "file_path")
		}
		return f
	})
}

// GenericAdapter handles CLIs that call `unimem hook` with UniMem's own event
// names and a flat payload.
type GenericAdapter struct {
	cli models.CLITool
}

// CLI implements Adapter.
func (a GenericAdapter) CLI() models.CLITool { return a.cli }

// Normalize implements Adapter.
func (a GenericAdapter) Normalize(event string, in Input) []Call {
	var kind lifecycle
	switch event {
	case "session-start":
		kind = lifecycleStart
	case "prompt":
		kind = lifecyclePrompt
	case "tool-use":
		kind = lifecycleTool
	case "session-end":
		kind = lifecycleEnd
	}
	return normalize(a.cli, kind, in, func(_ string, args Input) toolFiles {
		f := toolFiles{
			read:     stringList(in["files_read"]),
			modified: stringList(in["files_modified"]),
		}
		if p := args.str("file_path", "path"); p != "" && len(f.read)+len(f.modified) == 0 {
			f.read = []string{p}
		}
		return f
	})
}

func stringList(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	var out []string
	for _, it := range items {
		if s, ok := it.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
