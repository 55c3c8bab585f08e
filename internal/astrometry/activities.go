// Package astrometry implements the warp stage: cross-matching each image's
// catalogue against the reference catalogue to fit a spatial offset field,
// then resampling the image along it. When warping is disabled the stage
// degenerates to an identity alias so downstream filenames are unchanged.
package astrometry

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahrav/skywatch/internal/cache"
	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles astrometric-correction Temporal activities.
type Activities struct {
	activity.BaseActivities
	runner toolexec.Runner
	tools  config.ToolSettings
}

// NewActivities creates astrometry activities with the provided runner and
// tool locations.
func NewActivities(base activity.BaseActivities, runner toolexec.Runner, tools config.ToolSettings) *Activities {
	return &Activities{BaseActivities: base, runner: runner, tools: tools}
}

// WarpImage corrects one image's systematic astrometric offset. The tool
// performs both sub-steps in one invocation: cross-match the image
// catalogue against the shared read-only reference catalogue, then resample
// the pixels along the fitted offset field. The cross-match table is kept
// next to the warped image for inspection.
func (a *Activities) WarpImage(
	ctx context.Context,
	in domain.WarpImageInput,
) (*domain.WarpImageOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("WarpImage", err, "invalid input")
	}
	for _, path := range []string{in.Image.Path, in.Catalogue.Path, in.RefCat.Path} {
		if !toolexec.Exists(path) {
			return nil, nonRetryable("WarpImage", domain.ErrMissingInput, path)
		}
	}

	xmatch := strings.TrimSuffix(in.OutImage, filepath.Ext(in.OutImage)) + "_xm.fits"
	inv := toolexec.Invocation{
		Name: a.tools.Warp,
		Path: a.tools.Warp,
		Args: []string{
			"--infits", in.Image.Path,
			"--outfits", in.OutImage,
			"--incat", in.Catalogue.Path,
			"--refcat", in.RefCat.Path,
			"--ra1", in.ImageRACol,
			"--dec1", in.ImageDecCol,
			"--ra2", in.RefCat.RACol,
			"--dec2", in.RefCat.DecCol,
			"--xm", xmatch,
		},
	}

	store := cache.New(filepath.Dir(in.OutImage))
	key := store.Key("warp", append([]string{in.Image.Path}, inv.Args...)...)
	if store.Fresh(key, in.OutImage) {
		activity.SafeLog(ctx, "Warped image up to date, skipping", "image", in.OutImage)
		return &domain.WarpImageOutput{
			Warped: domain.ImageRef{Path: in.OutImage, Epoch: in.Image.Epoch},
		}, nil
	}

	activity.SafeLog(ctx, "Warping image", "image", in.Image.Path, "cmd", inv.String())
	a.RecordHeartbeat(ctx, "warping "+in.Image.Base())

	if err := a.runner.Run(ctx, inv); err != nil {
		return nil, nonRetryable("WarpImage", err, "astrometric warp failed")
	}
	if !toolexec.Exists(in.OutImage) {
		return nil, nonRetryable("WarpImage", domain.ErrMissingOutput,
			"warp exited cleanly but produced no image")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	return &domain.WarpImageOutput{
		Warped: domain.ImageRef{Path: in.OutImage, Epoch: in.Image.Epoch},
	}, nil
}

// AliasImage produces a byte-identical stand-in for the image under the
// warped naming scheme, used when warping is disabled. A hard link is
// attempted first; filesystems that refuse links get a plain copy.
func (a *Activities) AliasImage(
	ctx context.Context,
	in domain.AliasImageInput,
) (*domain.AliasImageOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("AliasImage", err, "invalid input")
	}
	if !toolexec.Exists(in.Image.Path) {
		return nil, nonRetryable("AliasImage", domain.ErrMissingInput, in.Image.Path)
	}

	if !toolexec.Exists(in.Alias) {
		if err := linkOrCopy(in.Image.Path, in.Alias); err != nil {
			return nil, nonRetryable("AliasImage", err, "failed to alias image")
		}
	}
	activity.SafeLog(ctx, "Aliased image without warping",
		"image", in.Image.Path, "alias", in.Alias)

	return &domain.AliasImageOutput{
		Warped: domain.ImageRef{Path: in.Alias, Epoch: in.Image.Epoch},
	}, nil
}

// linkOrCopy hard-links src to dst, falling back to a full copy.
func linkOrCopy(src, dst string) error {
	if err := os.Link(src, dst); err == nil {
		return nil
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
