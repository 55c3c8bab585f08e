// Package cli wires the skywatch commands: a worker process serving the
// stage activities and a run command that submits a pipeline execution.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahrav/skywatch/internal/config"
)

// RootCommand builds the skywatch command tree.
func RootCommand() *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "skywatch",
		Short:         "Radio transient and variable source detection pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "",
		"path to YAML config file")

	rootCmd.AddCommand(workerCommand(&configPath))
	rootCmd.AddCommand(runCommand(&configPath))
	return rootCmd
}

// loadSettings reads and validates settings for a subcommand.
func loadSettings(configPath string) (config.Settings, error) {
	settings, err := config.Load(configPath)
	if err != nil {
		return config.Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return config.Settings{}, err
	}
	return settings, nil
}

// newLogger builds the process logger. Plain text to stderr; the workflow
// runtime carries its own structured logging for stage execution.
func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, nil))
}
