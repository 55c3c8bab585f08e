// Package worker exposes helpers to register workflows/activities with a Temporal worker.
package worker

import (
	sdkworker "go.temporal.io/sdk/worker"

	"github.com/ahrav/skywatch/internal/astrometry"
	"github.com/ahrav/skywatch/internal/background"
	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/fluxtable"
	"github.com/ahrav/skywatch/internal/masking"
	"github.com/ahrav/skywatch/internal/meanimage"
	"github.com/ahrav/skywatch/internal/monitor"
	"github.com/ahrav/skywatch/internal/plotting"
	"github.com/ahrav/skywatch/internal/sourcefind"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/internal/transient"
	"github.com/ahrav/skywatch/internal/variability"
	"github.com/ahrav/skywatch/internal/workflow"
	"github.com/ahrav/skywatch/pkg/activity"
	"github.com/ahrav/skywatch/pkg/events"
)

// RegisterAll registers the pipeline workflow and every stage activity with
// the Temporal worker. Must be called once during worker startup, before
// the worker runs.
//
// Stage activity instances share one tool runner and one base-activities
// value, so event emission and logging behave identically across stages.
func RegisterAll(w sdkworker.Worker, runner toolexec.Runner, tools config.ToolSettings) {
	eventSink := events.NewNoOpEventSink()
	base := activity.NewBaseActivities(eventSink)

	backgroundActivities := background.NewActivities(base, runner, tools)
	sourcefindActivities := sourcefind.NewActivities(base, runner, tools)
	astrometryActivities := astrometry.NewActivities(base, runner, tools)
	meanimageActivities := meanimage.NewActivities(base)
	monitorActivities := monitor.NewActivities(base, runner, tools)
	fluxtableActivities := fluxtable.NewActivities(base, runner, tools)
	variabilityActivities := variability.NewActivities(base, runner, tools)
	maskingActivities := masking.NewActivities(base, runner, tools)
	transientActivities := transient.NewActivities(base, runner, tools)
	plottingActivities := plotting.NewActivities(base)

	w.RegisterWorkflow(workflow.PipelineWorkflow)

	w.RegisterActivity(backgroundActivities.EstimateBackground)
	w.RegisterActivity(sourcefindActivities.FindSources)
	w.RegisterActivity(astrometryActivities.WarpImage)
	w.RegisterActivity(astrometryActivities.AliasImage)
	w.RegisterActivity(meanimageActivities.BuildMean)
	w.RegisterActivity(monitorActivities.AugmentMaster)
	w.RegisterActivity(monitorActivities.MeasureEpoch)
	w.RegisterActivity(fluxtableActivities.JoinFluxTables)
	w.RegisterActivity(variabilityActivities.EstimateDOF)
	w.RegisterActivity(variabilityActivities.ComputeStats)
	w.RegisterActivity(maskingActivities.MaskSources)
	w.RegisterActivity(transientActivities.FilterCandidates)
	w.RegisterActivity(transientActivities.CompileCandidates)
	w.RegisterActivity(plottingActivities.PlotLightCurves)
	w.RegisterActivity(plottingActivities.PlotSummary)
	w.RegisterActivity(plottingActivities.PlotTransients)
}
