package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoSecreto/UniMem/internal/install"
)

func newInstallCommand(opts *rootOptions) *cobra.Command {
	var claude, gemini, all bool
	cmd := &cobra.Command{
		Use:   "install",
		Short: "Register hooks and the MCP server with Claude Code and Gemini CLI",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			inst, err := install.New()
			if err != nil {
				return err
			}
			if !claude && !gemini {
				all = true
			}
			out := cmd.OutOrStdout()

			if claude || all {
				files, err := inst.Claude()
				if err != nil {
					return fmt.Errorf("install claude code: %w", err)
				}
				fmt.Fprintln(out, okStyle.Render("Installed into Claude Code")+dimStyle.Render(fmt.Sprintf(" %v", files)))
			}
			if gemini || all {
				files, err := inst.Gemini()
				switch {
				case errors.Is(err, install.ErrCLINotFound) && !gemini:
					fmt.Fprintln(out, warnStyle.Render("Gemini CLI not found, skipped"))
				case err != nil:
					return fmt.Errorf("install gemini: %w", err)
				default:
					fmt.Fprintln(out, okStyle.Render("Installed into Gemini CLI")+dimStyle.Render(fmt.Sprintf(" %v", files)))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&claude, "claude", false, "Install into Claude Code")
	cmd.Flags().BoolVar(&gemini, "gemini", false, "Install into Gemini CLI")
	cmd.Flags().BoolVar(&all, "all", false, "Install into every supported CLI (default)")
	return cmd
}
