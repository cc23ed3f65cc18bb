package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GoSecreto/UniMem/internal/contextfile"
	"github.com/GoSecreto/UniMem/pkg/models"
)

func newCleanCommand(_ *rootOptions) *cobra.Command {
	var cli string
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove injected context blocks from the working directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cwd, err := os.Getwd()
			if err != nil {
				return err
			}
			tools := models.CLITools
			if cli != "" {
				tool := models.ParseCLITool(cli, "")
				if tool == "" {
					return fmt.Errorf("unknown cli %q", cli)
				}
				tools = []models.CLITool{tool}
			}
			for _, tool := range tools {
				if err := contextfile.Clean(cwd, tool); err != nil {
					return fmt.Errorf("clean %s: %w", tool, err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), okStyle.Render(fmt.Sprintf("Cleaned context for %d CLI(s)", len(tools))))
			return nil
		},
	}
	cmd.Flags().StringVar(&cli, "cli", "", "Only clean this CLI's context file")
	return cmd
}
