// Package masking implements the image masking stage: suppressing every
// master-catalogue source in a warped epoch image so that only residual,
// non-catalogued flux survives for transient detection.
package masking

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/ahrav/skywatch/internal/cache"
	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles masking-stage Temporal activities.
type Activities struct {
	activity.BaseActivities
	runner toolexec.Runner
	tools  config.ToolSettings
}

// NewActivities creates masking activities with the provided runner and
// tool locations.
func NewActivities(base activity.BaseActivities, runner toolexec.Runner, tools config.ToolSettings) *Activities {
	return &Activities{BaseActivities: base, runner: runner, tools: tools}
}

// MaskSources blanks pixels attributable to known persistent sources in one
// warped image, at the configured significance threshold, producing the
// residual image the transient finder runs on.
func (a *Activities) MaskSources(
	ctx context.Context,
	in domain.MaskSourcesInput,
) (*domain.MaskSourcesOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("MaskSources", err, "invalid input")
	}
	for _, path := range []string{in.Master.Path, in.Image.Path} {
		if !toolexec.Exists(path) {
			return nil, nonRetryable("MaskSources", domain.ErrMissingInput, path)
		}
	}

	inv := toolexec.Invocation{
		Name: a.tools.Mask,
		Path: a.tools.Mask,
		Args: []string{
			"-c", in.Master.Path,
			"-f", in.Image.Path,
			"-r", in.OutImage,
			"--mask",
			"--sigma", strconv.FormatFloat(in.Sigma, 'g', -1, 64),
		},
	}

	store := cache.New(filepath.Dir(in.OutImage))
	key := store.Key("masking", inv.Args...)
	if store.Fresh(key, in.OutImage) {
		activity.SafeLog(ctx, "Masked image up to date, skipping", "image", in.OutImage)
		return &domain.MaskSourcesOutput{
			Masked: domain.ImageRef{Path: in.OutImage, Epoch: in.Image.Epoch},
		}, nil
	}

	activity.SafeLog(ctx, "Masking known sources",
		"image", in.Image.Path, "sigma", in.Sigma, "cmd", inv.String())
	a.RecordHeartbeat(ctx, "masking "+in.Image.Base())

	if err := a.runner.Run(ctx, inv); err != nil {
		return nil, nonRetryable("MaskSources", err, "source masking failed")
	}
	if !toolexec.Exists(in.OutImage) {
		return nil, nonRetryable("MaskSources", domain.ErrMissingOutput,
			"masker exited cleanly but produced no image")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	return &domain.MaskSourcesOutput{
		Masked: domain.ImageRef{Path: in.OutImage, Epoch: in.Image.Epoch},
	}, nil
}
