// Package main provides the statusline hook for Claude Code.
// It prints one line summarizing UniMem's state for the current project.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/GoSecreto/UniMem/pkg/hooks"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// WorkerStatus is the subset of GET /api/status the statusline shows.
type WorkerStatus struct {
	Project           string `json:"project"`
	TotalObservations int64  `json:"total_observations"`
	ActiveSessions    int    `json:"active_sessions"`
	PendingHandoff    *struct {
		FromCLI string `json:"from_cli"`
		Reason  string `json:"reason"`
	} `json:"pending_handoff"`
	Stats struct {
		HandoffsCreated  int64 `json:"handoffs_created"`
		HandoffsPickedUp int64 `json:"handoffs_picked_up"`
	} `json:"stats"`
}

func main() {
	hooks.RunStatuslineHook(render)
}

func render(in hooks.Input, port int) string {
	project := projectOf(in)
	return formatStatusLine(fetchStatus(port, project), statusOptions())
}

// projectOf prefers the workspace directories Claude reports over cwd.
func projectOf(in hooks.Input) string {
	dir := ""
	if ws, ok := in["workspace"].(map[string]interface{}); ok {
		for _, k := range []string{"project_dir", "current_dir"} {
			if v, ok := ws[k].(string); ok && v != "" {
				dir = v
				break
			}
		}
	}
	if dir == "" {
		dir, _ = in["cwd"].(string)
	}
	if dir == "" {
		return ""
	}
	return hooks.DeriveProjectName(dir)
}

// fetchStatus returns nil when the worker is not reachable in time; the
// statusline must not slow the host down.
func fetchStatus(port int, project string) *WorkerStatus {
	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	c := hooks.NewClient(port)
	c.HTTP = &http.Client{Timeout: 150 * time.Millisecond}
	var st WorkerStatus
	if err := c.Status(ctx, project, &st); err != nil {
		return nil
	}
	return &st
}

type options struct {
	format string
	colors bool
}

func statusOptions() options {
	o := options{
		format: os.Getenv("UNIMEM_STATUSLINE_FORMAT"),
		colors: os.Getenv("NO_COLOR") == "" && os.Getenv("TERM") != "dumb",
	}
	switch os.Getenv("UNIMEM_STATUSLINE_COLORS") {
	case "false":
		o.colors = false
	case "true":
		o.colors = true
	}
	if o.format == "" {
		o.format = "default"
	}
	return o
}

func paint(o options, color, s string) string {
	if !o.colors {
		return s
	}
	return color + s + colorReset
}

func formatStatusLine(st *WorkerStatus, o options) string {
	if st == nil {
		return paint(o, colorCyan, "[unimem]") + " " + paint(o, colorGray, "○")
	}
	switch o.format {
	case "minimal":
		return formatMinimal(st, o)
	case "compact":
		return formatCompact(st, o)
	default:
		return formatDefault(st, o)
	}
}

// formatDefault: [unimem] ● 42 memories | handoff from gemini (rate_limit) | 2 active
func formatDefault(st *WorkerStatus, o options) string {
	var parts []string
	if st.Project != "" {
		parts = append(parts, fmt.Sprintf("%d memories", st.TotalObservations))
	}
	if h := st.PendingHandoff; h != nil {
		parts = append(parts, paint(o, colorYellow, fmt.Sprintf("handoff from %s (%s)", h.FromCLI, h.Reason)))
	}
	if st.ActiveSessions > 0 {
		parts = append(parts, fmt.Sprintf("%d active", st.ActiveSessions))
	}

	line := paint(o, colorCyan, "[unimem]") + " " + paint(o, colorGreen, "●")
	if len(parts) > 0 {
		line += " " + strings.Join(parts, " | ")
	}
	return line
}

// formatCompact: [u] ● 42 ⇄3/2
func formatCompact(st *WorkerStatus, o options) string {
	line := fmt.Sprintf("%s %s %d ⇄%d/%d",
		paint(o, colorCyan, "[u]"), paint(o, colorGreen, "●"),
		st.TotalObservations, st.Stats.HandoffsCreated, st.Stats.HandoffsPickedUp)
	if st.PendingHandoff != nil {
		line += " " + paint(o, colorYellow, "↪")
	}
	return line
}

func formatMinimal(st *WorkerStatus, o options) string {
	return fmt.Sprintf("%s %d", paint(o, colorGreen, "●"), st.TotalObservations)
}
