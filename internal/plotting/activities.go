package plotting

import (
	"context"
	"fmt"
	"os"

	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles plot-rendering Temporal activities. Unlike the
// subprocess stages these render in-process, so no tool runner is needed.
type Activities struct {
	activity.BaseActivities
}

// NewActivities creates plotting activities.
func NewActivities(base activity.BaseActivities) *Activities {
	return &Activities{BaseActivities: base}
}

// PlotLightCurves renders one light-curve PNG per monitored source. Plots
// that already exist are kept as is, so a resumed run only renders what is
// missing.
func (a *Activities) PlotLightCurves(
	ctx context.Context,
	in domain.PlotLightCurvesInput,
) (*domain.PlotLightCurvesOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("PlotLightCurves", err, "invalid input")
	}
	for _, p := range []string{in.FluxTable.Path, in.StatsTable.Path} {
		if !toolexec.Exists(p) {
			return nil, nonRetryable("PlotLightCurves", domain.ErrMissingInput, p)
		}
	}
	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return nil, nonRetryable("PlotLightCurves", err, "create plot directory")
	}

	activity.SafeLog(ctx, "Rendering light curves",
		"flux_table", in.FluxTable.Path, "out_dir", in.OutDir)
	a.RecordHeartbeat(ctx, "rendering light curves")

	plots, err := renderLightCurves(in.FluxTable.Path, in.StatsTable.Path, in.OutDir,
		in.GroupByEpoch, toolexec.Exists)
	if err != nil {
		return nil, nonRetryable("PlotLightCurves", err, "light-curve rendering failed")
	}

	activity.SafeLog(ctx, "Light curves rendered", "count", len(plots))
	return &domain.PlotLightCurvesOutput{Plots: plots}, nil
}

// PlotSummary renders the variability summary plot from the statistics
// table.
func (a *Activities) PlotSummary(
	ctx context.Context,
	in domain.PlotSummaryInput,
) (*domain.PlotSummaryOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("PlotSummary", err, "invalid input")
	}
	if !toolexec.Exists(in.StatsTable.Path) {
		return nil, nonRetryable("PlotSummary", domain.ErrMissingInput, in.StatsTable.Path)
	}

	activity.SafeLog(ctx, "Rendering variability summary", "plot", in.OutPlot)
	a.RecordHeartbeat(ctx, "rendering variability summary")

	if err := renderSummary(in.StatsTable.Path, in.OutPlot); err != nil {
		return nil, nonRetryable("PlotSummary", err, "summary rendering failed")
	}
	return &domain.PlotSummaryOutput{Plot: in.OutPlot}, nil
}

// PlotTransients renders the candidate diagnostic plot. A nil candidate
// table means no epoch produced residual detections; the stage reports an
// empty plot rather than failing the run tail.
func (a *Activities) PlotTransients(
	ctx context.Context,
	in domain.PlotTransientsInput,
) (*domain.PlotTransientsOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("PlotTransients", err, "invalid input")
	}
	if in.Candidates == nil || in.Candidates.Path == "" {
		activity.SafeLog(ctx, "No transient candidates, skipping plot")
		return &domain.PlotTransientsOutput{}, nil
	}
	if !toolexec.Exists(in.Candidates.Path) {
		return nil, nonRetryable("PlotTransients", domain.ErrMissingInput,
			fmt.Sprintf("candidate table %s", in.Candidates.Path))
	}

	activity.SafeLog(ctx, "Rendering transient candidates",
		"catalogue", in.Candidates.Path, "plot", in.OutPlot)
	a.RecordHeartbeat(ctx, "rendering transient candidates")

	if err := renderTransients(in.Candidates.Path, in.OutPlot); err != nil {
		return nil, nonRetryable("PlotTransients", err, "candidate rendering failed")
	}
	return &domain.PlotTransientsOutput{Plot: in.OutPlot}, nil
}
