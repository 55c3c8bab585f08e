// Package meanimage implements the mean-image builder: the pixel-wise
// average of every warped epoch image, which becomes the deep reference
// image the master catalogue is extracted from. This is one of the few
// computations the pipeline performs itself rather than delegating.
package meanimage

import (
	"context"
	"path/filepath"

	"github.com/ahrav/skywatch/internal/cache"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles mean-image Temporal activities.
type Activities struct {
	activity.BaseActivities
}

// NewActivities creates mean-image activities.
func NewActivities(base activity.BaseActivities) *Activities {
	return &Activities{BaseActivities: base}
}

// BuildMean averages all warped images into the single reference mean
// image. Fewer than two inputs is a fatal, explicitly reported condition:
// a "mean" of one epoch would silently defeat every variability statistic
// computed downstream.
func (a *Activities) BuildMean(
	ctx context.Context,
	in domain.BuildMeanInput,
) (*domain.BuildMeanOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("BuildMean", err, "invalid input")
	}

	paths := make([]string, len(in.Images))
	for i, img := range in.Images {
		if !toolexec.Exists(img.Path) {
			return nil, nonRetryable("BuildMean", domain.ErrMissingInput, img.Path)
		}
		paths[i] = img.Path
	}

	store := cache.New(filepath.Dir(in.OutImage))
	key := store.Key("meanimage", append(append([]string{}, paths...), in.OutImage)...)
	if store.Fresh(key, in.OutImage) {
		activity.SafeLog(ctx, "Mean image up to date, skipping", "image", in.OutImage)
		return &domain.BuildMeanOutput{Mean: domain.ImageRef{Path: in.OutImage}}, nil
	}

	activity.SafeLog(ctx, "Building mean image",
		"epochs", len(paths), "out", in.OutImage)
	a.RecordHeartbeat(ctx, "averaging epoch images")

	if err := buildMean(paths, in.OutImage); err != nil {
		return nil, nonRetryable("BuildMean", err, "mean image construction failed")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	return &domain.BuildMeanOutput{Mean: domain.ImageRef{Path: in.OutImage}}, nil
}
