// Package render turns a ResumeContext into the markdown block injected into
// CLI context files.
package render

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GoSecreto/UniMem/pkg/models"
)

// Markers delimit the generated block inside files the user also edits.
const (
	StartMarker = "<!-- UNIMEM:START - Auto-generated, do not edit -->"
	EndMarker   = "<!-- UNIMEM:END -->"

	TruncatedNotice = "... (truncated for context budget)"

	DefaultMaxChars  = 8000
	DefaultMaxRecent = 10
	maxFiles         = 15
	headLines        = 8
	tailLines        = 3
)

// Options controls rendering.
type Options struct {
	MaxChars  int
	MaxRecent int
	Now       time.Time
}

func (o Options) withDefaults() Options {
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	if o.MaxRecent <= 0 {
		o.MaxRecent = DefaultMaxRecent
	}
	if o.Now.IsZero() {
		o.Now = time.Now()
	}
	return o
}

// Markdown renders rc. The output always starts with StartMarker, ends with
// EndMarker and is at most opts.MaxChars bytes long.
func Markdown(rc *models.ResumeContext, opts Options) string {
	opts = opts.withDefaults()
	var lines []string
	add := func(format string, args ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	lines = append(lines, StartMarker)
	add("<!-- UniMem Context | Project: %s | Generated: %s -->", rc.Project, opts.Now.UTC().Format(time.RFC3339))
	lines = append(lines, "")

	if ls := rc.LastSession; ls != nil {
		lines = append(lines, "## Session Continuity")
		detail := ls.EndedAgo
		if ls.Reason != "" {
			detail += ", paused: " + ls.Reason
		}
		add("**Previous CLI**: %s (%s)", ls.CLI, detail)
		if rc.TaskSummary != "" {
			add("**Task**: %s", rc.TaskSummary)
		}
		lines = append(lines, "")
	}

	if h := rc.PendingHandoff; h != nil {
		lines = append(lines, "## Pending Handoff")
		add("A **%s** session was paused (reason: %s).", h.FromCLI, h.Reason)
		if notes := h.StateSnapshot.Notes; notes != "" {
			add("**Notes**: %s", notes)
		}
		lines = append(lines, "Use `memory_resume` MCP tool for full context, or continue from the information below.", "")
	}

	lines = appendList(lines, "### Completed", rc.Completed, false)
	lines = appendList(lines, "### In Progress", rc.InProgress, false)
	lines = appendList(lines, "### Next Steps", rc.NextSteps, true)

	if files := rc.FilesTouched; len(files) > 0 {
		lines = append(lines, "### Files Involved")
		for i, f := range files {
			if i == maxFiles {
				add("- ... and %d more", len(files)-maxFiles)
				break
			}
			add("- `%s`", f)
		}
		lines = append(lines, "")
	}

	if recent := rc.RecentObservations; len(recent) > 0 {
		shown := recent
		if len(shown) > opts.MaxRecent {
			shown = shown[:opts.MaxRecent]
		}
		total := rc.TotalObservations
		if total < int64(len(recent)) {
			total = int64(len(recent))
		}
		add("## Recent Activity (%d of %d observations)", len(shown), total)
		lines = append(lines, "", "| Time | CLI | Type | Title | ID |", "|------|-----|------|-------|----|")
		for _, o := range shown {
			add("| %s | %s | %s | %s | #%d |", RelativeTime(opts.Now, o.CreatedAtEpoch), o.CLITool, o.Type, escapeCell(o.Title), o.ID)
		}
		lines = append(lines, "")
	}

	if len(rc.RecentSummaries) > 0 {
		sum := rc.RecentSummaries[0]
		lines = append(lines, "## Last Session Summary")
		for _, f := range []struct{ label, value string }{
			{"Request", sum.Request.String},
			{"Learned", sum.Learned.String},
			{"Completed", sum.Completed.String},
			{"Next Steps", sum.NextSteps.String},
		} {
			if f.value != "" {
				add("**%s**: %s", f.label, f.value)
			}
		}
		lines = append(lines, "")
	}

	lines = append(lines,
		"<!-- Use `memory_search` MCP tool to query full history -->",
		"<!-- Use `memory_resume` MCP tool for detailed continuation context -->",
		EndMarker,
	)

	out := strings.Join(lines, "\n")
	if len(out) <= opts.MaxChars {
		return out
	}
	return truncate(lines, opts.MaxChars)
}

func appendList(lines []string, heading string, items []string, numbered bool) []string {
	if len(items) == 0 {
		return lines
	}
	lines = append(lines, heading)
	for i, item := range items {
		if numbered {
			lines = append(lines, fmt.Sprintf("%d. %s", i+1, item))
		} else {
			lines = append(lines, "- "+item)
		}
	}
	return append(lines, "")
}

// truncate keeps the first and last lines verbatim and as much of the middle as fits.
func truncate(lines []string, maxChars int) string {
	head, tail := headLines, tailLines
	if len(lines) < head+tail {
		head, tail = 1, 1
	}
	header := strings.Join(lines[:head], "\n")
	footer := strings.Join(lines[len(lines)-tail:], "\n")
	middle := "\n" + strings.Join(lines[head:len(lines)-tail], "\n")
	notice := "\n\n" + TruncatedNotice + "\n\n"

	budget := maxChars - len(header) - len(footer) - len(notice)
	if budget < 0 {
		header, footer = StartMarker, EndMarker
		budget = maxChars - len(header) - len(footer) - len(notice)
		if budget < 0 {
			return StartMarker + "\n" + EndMarker
		}
		middle = ""
	}
	if len(middle) > budget {
		cut := budget
		for cut > 0 && !utf8.RuneStart(middle[cut]) {
			cut--
		}
		middle = middle[:cut]
	}
	return header + middle + notice + footer
}

// RelativeTime renders "just now", "Nm ago", "Nh ago" or "Nd ago".
func RelativeTime(now time.Time, epoch int64) string {
	minutes := (now.Unix() - epoch) / 60
	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return fmt.Sprintf("%dm ago", minutes)
	case minutes < 24*60:
		return fmt.Sprintf("%dh ago", minutes/60)
	default:
		return fmt.Sprintf("%dd ago", minutes/(24*60))
	}
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
