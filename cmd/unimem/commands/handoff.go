package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoSecreto/UniMem/internal/continuity"
	"github.com/GoSecreto/UniMem/pkg/hooks"
	"github.com/GoSecreto/UniMem/pkg/models"
)

func newHandoffCommand(opts *rootOptions) *cobra.Command {
	var (
		project, reason, notes, task, cli string
		next                              []string
	)
	cmd := &cobra.Command{
		Use:   "handoff",
		Short: "Record a handoff so the next CLI can continue the work",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project = projectFlag(project)
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			tool := hooks.DetectCLI(os.Getenv)
			if cli != "" {
				tool = models.ParseCLITool(cli, tool)
			}
			sessionID, tool, err := a.OpenSession(cmd.Context(), project, tool, false)
			if err != nil {
				return err
			}
			h, err := a.Engine.Handoff(cmd.Context(), continuity.HandoffRequest{
				SessionID: sessionID,
				Project:   project,
				CLI:       tool,
				Reason:    models.HandoffReason(reason),
				Notes:     notes,
				Task:      task,
				NextSteps: next,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Handoff #%d saved", h.ID))+dimStyle.Render(fmt.Sprintf(" (%s) from %s session %s", h.Reason, h.FromCLI, h.FromSessionID)))
			if t := h.StateSnapshot.Task.Request; t != "" {
				fmt.Fprintln(out, row("Task", t))
			}
			if len(h.StateSnapshot.NextSteps) > 0 {
				fmt.Fprintln(out, row("Next steps", strings.Join(h.StateSnapshot.NextSteps, "; ")))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name (default: derived from the working directory)")
	cmd.Flags().StringVar(&reason, "reason", string(models.HandoffManual), "Handoff reason: "+reasonNames())
	cmd.Flags().StringVar(&notes, "notes", "", "Free-form notes for the next CLI")
	cmd.Flags().StringVar(&task, "task", "", "Task description (default: derived from recent work)")
	cmd.Flags().StringSliceVar(&next, "next", nil, "Next steps, comma separated or repeated")
	cmd.Flags().StringVar(&cli, "cli", "", "CLI handing off (default: detected)")
	return cmd
}

func reasonNames() string {
	names := make([]string, len(models.HandoffReasons))
	for i, r := range models.HandoffReasons {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
