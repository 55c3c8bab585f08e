// Package background implements the background/noise estimation stage. It
// wraps the BANE-equivalent external tool that turns one sky image into the
// background and RMS rasters the source finder needs.
package background

import (
	"context"
	"path/filepath"

	"github.com/ahrav/skywatch/internal/cache"
	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles background-estimation Temporal activities.
type Activities struct {
	activity.BaseActivities
	runner toolexec.Runner
	tools  config.ToolSettings
}

// NewActivities creates background activities with the provided runner and
// tool locations.
func NewActivities(base activity.BaseActivities, runner toolexec.Runner, tools config.ToolSettings) *Activities {
	return &Activities{BaseActivities: base, runner: runner, tools: tools}
}

// EstimateBackground computes the background and RMS rasters for one image
// by invoking the configured estimator. The rasters are one-to-one with the
// image and consumed only by source finding for the same image; a failure
// here fails that image's branch, nothing else.
//
// The invocation is memoized: when a marker for the same (image, output)
// pair exists and both rasters are on disk, the tool is not re-run.
func (a *Activities) EstimateBackground(
	ctx context.Context,
	in domain.EstimateBackgroundInput,
) (*domain.EstimateBackgroundOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("EstimateBackground", err, "invalid input")
	}
	if !toolexec.Exists(in.Image.Path) {
		return nil, nonRetryable("EstimateBackground", domain.ErrMissingInput, in.Image.Path)
	}

	out := &domain.EstimateBackgroundOutput{
		Background: in.OutBase + "_bkg.fits",
		RMS:        in.OutBase + "_rms.fits",
	}

	inv := toolexec.Invocation{
		Name: a.tools.Background,
		Path: a.tools.Background,
		Args: []string{"--out", in.OutBase, in.Image.Path},
	}

	store := cache.New(filepath.Dir(in.OutBase))
	key := store.Key("background", in.Image.Path, in.OutBase)
	if store.Fresh(key, out.Background, out.RMS) {
		activity.SafeLog(ctx, "Background maps up to date, skipping",
			"image", in.Image.Path)
		return out, nil
	}

	activity.SafeLog(ctx, "Estimating background",
		"image", in.Image.Path, "cmd", inv.String())
	a.RecordHeartbeat(ctx, "estimating background for "+in.Image.Base())

	if err := a.runner.Run(ctx, inv); err != nil {
		return nil, nonRetryable("EstimateBackground", err, "background estimator failed")
	}
	if !toolexec.Exists(out.Background) || !toolexec.Exists(out.RMS) {
		return nil, nonRetryable("EstimateBackground", domain.ErrMissingOutput,
			"estimator exited cleanly but rasters are absent")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	return out, nil
}
