package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSecreto/UniMem/internal/worker"
	"github.com/GoSecreto/UniMem/pkg/hooks"
	"github.com/GoSecreto/UniMem/pkg/models"
)

// statusView is the part of GET /api/status the command prints.
type statusView struct {
	Version           string              `json:"version"`
	Backend           string              `json:"backend"`
	Port              int                 `json:"port"`
	Uptime            string              `json:"uptime"`
	Projects          []string            `json:"projects"`
	TotalObservations int64               `json:"total_observations"`
	LastSession       *models.SessionJSON `json:"last_session"`
	PendingHandoff    *models.HandoffJSON `json:"pending_handoff"`
	ActiveSessions    int                 `json:"active_sessions"`
	Stats             worker.Stats        `json:"stats"`
	online            bool
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the worker and the project's continuity state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project = projectFlag(project)
			st, err := fetchStatusView(cmd.Context(), opts, project)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), project, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name (default: derived from the working directory)")
	return cmd
}

// fetchStatusView asks the worker, falling back to reading the store when no
// worker is running.
func fetchStatusView(ctx context.Context, opts *rootOptions, project string) (*statusView, error) {
	cctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var st statusView
	if err := hooks.NewClient(hooks.GetWorkerPort()).Status(cctx, project, &st); err == nil {
		st.online = true
		return &st, nil
	}

	a, err := openApp(opts)
	if err != nil {
		return nil, err
	}
	defer a.Close()

	st = statusView{Backend: string(a.Config.StoreBackend), Port: a.Config.WorkerPort}
	if st.Projects, err = a.Store.GetAllProjects(ctx); err != nil {
		return nil, err
	}
	if st.TotalObservations, err = a.Store.CountObservations(ctx, project); err != nil {
		return nil, err
	}
	last, err := a.Store.GetLastActiveSession(ctx, project)
	if err != nil {
		return nil, err
	}
	if last != nil {
		st.LastSession = &models.SessionJSON{
			SessionID:      last.SessionID,
			CLITool:        last.CLITool,
			Status:         last.Status,
			PauseReason:    last.PauseReason.String,
			CreatedAtEpoch: last.CreatedAtEpoch,
		}
	}
	pending, err := a.Store.GetPendingHandoff(ctx, project)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		st.PendingHandoff = &models.HandoffJSON{
			ID:             pending.ID,
			FromCLI:        pending.FromCLI,
			Reason:         pending.Reason,
			StateSnapshot:  pending.StateSnapshot,
			CreatedAtEpoch: pending.CreatedAtEpoch,
		}
	}
	return &st, nil
}

func printStatus(w io.Writer, project string, st *statusView) {
	fmt.Fprintln(w, titleStyle.Render("UniMem"))
	if st.online {
		fmt.Fprintln(w, row("Worker", okStyle.Render("running")+dimStyle.Render(fmt.Sprintf(" v%s on :%d, up %s", st.Version, st.Port, st.Uptime))))
	} else {
		fmt.Fprintln(w, row("Worker", warnStyle.Render("offline")+dimStyle.Render(fmt.Sprintf(" (port %d)", st.Port))))
	}
	fmt.Fprintln(w, row("Backend", st.Backend))
	fmt.Fprintln(w, row("Projects", fmt.Sprintf("%d", len(st.Projects))))
	fmt.Fprintln(w)

	fmt.Fprintln(w, titleStyle.Render(project))
	fmt.Fprintln(w, row("Observations", fmt.Sprintf("%d", st.TotalObservations)))
	if s := st.LastSession; s != nil {
		line := fmt.Sprintf("%s (%s, %s)", s.SessionID, s.CLITool, s.Status)
		if s.PauseReason != "" {
			line += " " + dimStyle.Render(s.PauseReason)
		}
		fmt.Fprintln(w, row("Last session", line))
	} else {
		fmt.Fprintln(w, row("Last session", dimStyle.Render("none")))
	}
	if h := st.PendingHandoff; h != nil {
		line := fmt.Sprintf("#%d from %s (%s)", h.ID, h.FromCLI, h.Reason)
		if task := h.StateSnapshot.Task.Request; task != "" {
			line += ": " + task
		}
		fmt.Fprintln(w, row("Pending handoff", warnStyle.Render(line)))
		if len(h.StateSnapshot.NextSteps) > 0 {
			fmt.Fprintln(w, row("Next steps", strings.Join(h.StateSnapshot.NextSteps, "; ")))
		}
	} else {
		fmt.Fprintln(w, row("Pending handoff", dimStyle.Render("none")))
	}
	if st.online {
		fmt.Fprintln(w, row("Active sessions", fmt.Sprintf("%d", st.ActiveSessions)))
		fmt.Fprintln(w, row("Handoffs", fmt.Sprintf("%d created, %d picked up", st.Stats.HandoffsCreated, st.Stats.HandoffsPickedUp)))
	}
}
