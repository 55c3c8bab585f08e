package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/skywatch/internal/worker"
)

// workerCommand builds the command that runs a pipeline worker until
// interrupted.
func workerCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run a pipeline worker serving all stage activities",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger()

			c, err := client.Dial(client.Options{
				HostPort:  settings.Temporal.HostPort,
				Namespace: settings.Temporal.Namespace,
			})
			if err != nil {
				return fmt.Errorf("connect to temporal at %s: %w", settings.Temporal.HostPort, err)
			}
			defer c.Close()

			w := sdkworker.New(c, settings.Temporal.TaskQueue, sdkworker.Options{})
			worker.RegisterAll(w, worker.InitializeRunner(), settings.Tools)

			logger.Info("worker starting",
				"task_queue", settings.Temporal.TaskQueue,
				"namespace", settings.Temporal.Namespace)
			return w.Run(sdkworker.InterruptCh())
		},
	}
}
