// Package commands implements the unimem subcommands.
package commands

import (
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/GoSecreto/UniMem/internal/app"
	"github.com/GoSecreto/UniMem/internal/config"
	"github.com/GoSecreto/UniMem/pkg/hooks"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("242")).Width(18)
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
)

type rootOptions struct {
	version string
	debug   bool
}

// NewRootCommand creates the root command.
func NewRootCommand(version string) *cobra.Command {
	opts := &rootOptions{version: version}
	rootCmd := &cobra.Command{
		Use:           "unimem",
		Short:         "Shared memory and session handoff across AI coding CLIs",
		Long:          `unimem records what each AI coding CLI does in a project and hands the work over when you switch tools.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newStartCommand(opts),
		newStatusCommand(opts),
		newHandoffCommand(opts),
		newResumeCommand(opts),
		newInstallCommand(opts),
		newCleanCommand(opts),
		newHookCommand(opts),
		newVersionCommand(opts),
	)
	return rootCmd
}

// Execute runs the root command.
func Execute(version string) {
	if err := NewRootCommand(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig prepares the data directory and reads settings.
func loadConfig() (*config.Config, error) {
	if err := config.EnsureAll(); err != nil {
		return nil, fmt.Errorf("prepare data directory: %w", err)
	}
	return config.Load()
}

// openApp is used by short-lived commands. Their logging stays quiet unless
// --debug is given.
func openApp(opts *rootOptions) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	app.SetupLogging("warn", opts.debug, "")
	return app.New(cfg)
}

// projectFlag returns the given project or the name derived from the
// working directory.
func projectFlag(project string) string {
	if project != "" {
		return project
	}
	cwd, _ := os.Getwd()
	return hooks.DeriveProjectName(cwd)
}

func row(label, value string) string {
	return labelStyle.Render(label) + value
}
