package models

// LastSessionInfo describes the most recent session of a project.
type LastSessionInfo struct {
	CLI       CLITool       `json:"cli"`
	SessionID string        `json:"session_id"`
	EndedAgo  string        `json:"ended_ago"`
	Status    SessionStatus `json:"status"`
	Reason    string        `json:"reason,omitempty"`
}

// RecentObservation is the compact form of an observation shown in context.
type RecentObservation struct {
	ID             int64           `json:"id"`
	Type           ObservationType `json:"type"`
	Title          string          `json:"title"`
	CLITool        CLITool         `json:"cli_tool"`
	CreatedAt      string          `json:"created_at"`
	CreatedAtEpoch int64           `json:"created_at_epoch"`
}

// ResumeContext is everything a new session needs to pick up the work.
type ResumeContext struct {
	Project            string              `json:"project"`
	LastSession        *LastSessionInfo    `json:"last_session,omitempty"`
	PendingHandoff     *Handoff            `json:"pending_handoff,omitempty"`
	TaskSummary        string              `json:"task_summary,omitempty"`
	Completed          []string            `json:"completed"`
	InProgress         []string            `json:"in_progress"`
	NextSteps          []string            `json:"next_steps"`
	FilesTouched       []string            `json:"files_touched"`
	RecentObservations []RecentObservation `json:"recent_observations"`
	RecentSummaries    []*SessionSummary   `json:"recent_summaries"`
	TotalObservations  int64               `json:"total_observations"`
	GeneratedAt        string              `json:"generated_at"`
	// PickedUpBy is the session created when the pending handoff was consumed.
	PickedUpBy string `json:"picked_up_by,omitempty"`
}

// Empty reports whether nothing has been recorded for the project.
func (rc *ResumeContext) Empty() bool {
	return rc.LastSession == nil && rc.PendingHandoff == nil && rc.TotalObservations == 0
}

// ToRecent converts an observation into its compact form.
func ToRecent(o *Observation) RecentObservation {
	return RecentObservation{
		ID:             o.ID,
		Type:           o.Type,
		Title:          o.TitleOr("Untitled"),
		CLITool:        o.CLITool,
		CreatedAt:      o.CreatedAt,
		CreatedAtEpoch: o.CreatedAtEpoch,
	}
}
