package models

// UserPrompt represents a user prompt captured during a session.
type UserPrompt struct {
	SessionID      string  `db:"session_id" json:"session_id"`
	Project        string  `db:"project" json:"project"`
	CLITool        CLITool `db:"cli_tool" json:"cli_tool"`
	PromptText     string  `db:"prompt_text" json:"prompt_text"`
	ID             int64   `db:"id" json:"id"`
	PromptNumber   int     `db:"prompt_number" json:"prompt_number"`
	CreatedAtEpoch int64   `db:"created_at_epoch" json:"created_at_epoch"`
}
