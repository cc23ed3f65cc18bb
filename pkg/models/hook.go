package models

// HookType names an event posted by a hook process to the worker.
type HookType string

const (
	HookSessionStart    HookType = "session-start"
	HookToolUse         HookType = "tool-use"
	HookPrompt          HookType = "prompt"
	HookSessionEnd      HookType = "session-end"
	HookSessionAutosave HookType = "session-end-autosave"
	HookAutoDetect      HookType = "auto-detect"
)

// HookTypes lists every hook type the worker accepts.
var HookTypes = []HookType{
	HookSessionStart, HookToolUse, HookPrompt, HookSessionEnd, HookSessionAutosave, HookAutoDetect,
}

// Valid reports whether h is a known hook type.
func (h HookType) Valid() bool {
	for _, v := range HookTypes {
		if v == h {
			return true
		}
	}
	return false
}

// HookEvent is the normalized body of POST /api/hooks/{hookType}. Every CLI
// adapter converts its native payload into this shape.
type HookEvent struct {
	SessionID     string   `json:"session_id"`
	Project       string   `json:"project"`
	CLITool       CLITool  `json:"cli_tool"`
	CLIVersion    string   `json:"cli_version,omitempty"`
	CWD           string   `json:"cwd,omitempty"`
	Prompt        string   `json:"prompt,omitempty"`
	ToolName      string   `json:"tool_name,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	ExitReason    string   `json:"exit_reason,omitempty"`
	FilesRead     []string `json:"files_read,omitempty"`
	FilesModified []string `json:"files_modified,omitempty"`
}

// HookResult is the worker's reply to a hook event.
type HookResult struct {
	Success       bool   `json:"success"`
	SessionID     string `json:"session_id,omitempty"`
	Message       string `json:"message,omitempty"`
	Context       string `json:"context,omitempty"`
	File          string `json:"file,omitempty"`
	ObservationID int64  `json:"observation_id,omitempty"`
	HandoffID     int64  `json:"handoff_id,omitempty"`
}
