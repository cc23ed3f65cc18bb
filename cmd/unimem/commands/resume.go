package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSecreto/UniMem/internal/contextfile"
	"github.com/GoSecreto/UniMem/pkg/models"
)

func newResumeCommand(opts *rootOptions) *cobra.Command {
	var project, cli string
	var write bool
	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Print the resume context of a project",
		Long: `Print the resume context of a project as markdown.

With --cli the pending handoff, if any, is picked up by a new session of that
CLI and the context is written to the CLI's context file in the working
directory. Without --cli nothing is consumed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			project = projectFlag(project)
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			var tool models.CLITool
			if cli != "" {
				tool = models.ParseCLITool(cli, models.CLIClaudeCode)
			}
			rc, md, err := a.Resume(cmd.Context(), project, tool)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if rc.Empty() {
				fmt.Fprintf(out, "No previous work recorded for %s.\n", project)
				return nil
			}
			fmt.Fprintln(out, md)

			errOut := cmd.ErrOrStderr()
			if rc.PickedUpBy != "" {
				fmt.Fprintln(errOut, okStyle.Render("Handoff picked up as session "+rc.PickedUpBy))
			}
			if tool != "" && write {
				cwd, err := os.Getwd()
				if err != nil {
					return err
				}
				path, err := contextfile.Write(cwd, tool, md)
				if err != nil {
					return err
				}
				fmt.Fprintln(errOut, dimStyle.Render("Context written to "+path))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&project, "project", "", "Project name (default: derived from the working directory)")
	cmd.Flags().StringVar(&cli, "cli", "", "CLI taking over; consumes the pending handoff")
	cmd.Flags().BoolVar(&write, "write", true, "With --cli, write the CLI's context file")
	return cmd
}
