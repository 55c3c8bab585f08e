package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.temporal.io/sdk/client"

	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/workflow"
)

// runCommand builds the command that submits one pipeline run and waits
// for its result.
func runCommand(configPath *string) *cobra.Command {
	var detach bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Submit a pipeline run over the configured image list",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger()

			req, err := buildRequest(settings)
			if err != nil {
				return err
			}

			c, err := client.Dial(client.Options{
				HostPort:  settings.Temporal.HostPort,
				Namespace: settings.Temporal.Namespace,
			})
			if err != nil {
				return fmt.Errorf("connect to temporal at %s: %w", settings.Temporal.HostPort, err)
			}
			defer c.Close()

			opts := client.StartWorkflowOptions{
				ID:        "skywatch-" + uuid.NewString(),
				TaskQueue: settings.Temporal.TaskQueue,
			}
			run, err := c.ExecuteWorkflow(cmd.Context(), opts, workflow.PipelineWorkflow, req)
			if err != nil {
				return fmt.Errorf("start pipeline: %w", err)
			}
			logger.Info("pipeline started",
				"workflow_id", run.GetID(),
				"run_id", run.GetRunID(),
				"epochs", len(req.Images))
			if detach {
				return nil
			}

			var result domain.PipelineResult
			if err := run.Get(cmd.Context(), &result); err != nil {
				return fmt.Errorf("pipeline failed: %w", err)
			}
			logger.Info("pipeline complete",
				"flux_table", result.FluxTable.Path,
				"stats_table", result.StatsTable.Path,
				"summary_plot", result.SummaryPlot)
			if result.Candidates != nil {
				logger.Info("transient candidates found",
					"catalogue", result.Candidates.Path,
					"plot", result.TransientPlot)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&detach, "detach", false,
		"submit the run and exit without waiting for completion")
	return cmd
}

// buildRequest assembles the immutable pipeline request from settings plus
// the image list file: one image path per line, blank lines and #-comments
// ignored.
func buildRequest(settings config.Settings) (domain.PipelineRequest, error) {
	images, err := readImageList(settings.ImageList)
	if err != nil {
		return domain.PipelineRequest{}, err
	}

	req := domain.PipelineRequest{
		Images:    images,
		OutputDir: settings.OutputDir,
		Warp:      settings.Warp,
		RefCat: domain.RefCatalogue{
			Path:   settings.RefCat.Path,
			RACol:  settings.RefCat.RACol,
			DecCol: settings.RefCat.DecCol,
		},
		Region: domain.OptionalFile{
			Path:    settings.Region.Path,
			Enabled: settings.Region.Enabled,
		},
		MonitorList: domain.OptionalFile{
			Path:    settings.Monitor.Path,
			Enabled: settings.Monitor.Enabled,
		},
		GroupPlotsByEpoch: settings.GroupPlotsByEpoch,
	}
	if err := req.Validate(); err != nil {
		return domain.PipelineRequest{}, err
	}
	return req, nil
}

func readImageList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open image list: %w", err)
	}
	defer f.Close()

	var images []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		images = append(images, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read image list: %w", err)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("image list %s is empty", path)
	}
	return images, nil
}
