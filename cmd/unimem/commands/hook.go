package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSecreto/UniMem/pkg/hooks"
	"github.com/GoSecreto/UniMem/pkg/models"
)

func newHookCommand(_ *rootOptions) *cobra.Command {
	var cli string
	cmd := &cobra.Command{
		Use:   "hook <event>",
		Short: "Handle a CLI hook event read from stdin",
		Long: `Handle a hook event of a CLI. The payload is read from stdin as JSON.

The command always exits 0 so a failure never interrupts the host CLI;
errors are printed to stderr.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tool := hooks.DetectCLI(os.Getenv)
			if cli != "" {
				tool = models.ParseCLITool(cli, tool)
			}
			r := hooks.NewRunner(tool)
			r.Stdout = cmd.OutOrStdout()
			r.Stderr = cmd.ErrOrStderr()
			r.Run(cmd.Context(), args[0], hooks.ReadInput(cmd.InOrStdin(), hooks.InputTimeout))
			return nil
		},
	}
	cmd.Flags().StringVar(&cli, "cli", "", "CLI sending the event (default: detected)")
	return cmd
}
