// Package sourcefind implements the source-finding stage in its three
// variants: blind detection on a raw or mean image, and priorized
// re-measurement at fixed prior positions. All variants wrap the same
// external finder; they differ only in flags.
package sourcefind

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

// Activities handles source-finding Temporal activities.
type Activities struct {
	activity.BaseActivities
	runner toolexec.Runner
	tools  config.ToolSettings
}

// NewActivities creates source-finding activities with the provided runner
// and tool locations.
func NewActivities(base activity.BaseActivities, runner toolexec.Runner, tools config.ToolSettings) *Activities {
	return &Activities{BaseActivities: base, runner: runner, tools: tools}
}

// FindSources detects sources on one image using its background/RMS pair
// and writes a component catalogue.
//
// In priorized mode (Prior set) the finder re-measures flux at the prior
// catalogue's positions with re-clustering disabled, so output rows are
// locked one-to-one, in order, to the prior rows. No sources are added or
// removed, only re-measured.
//
// With AllowEmpty set (masked residual images), the finder producing no
// catalogue is a legitimate empty result: the activity returns a nil
// catalogue reference and the epoch simply contributes nothing downstream.
func (a *Activities) FindSources(
	ctx context.Context,
	in domain.FindSourcesInput,
) (*domain.FindSourcesOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("FindSources", err, "invalid input")
	}
	if !toolexec.Exists(in.Image.Path) {
		return nil, nonRetryable("FindSources", domain.ErrMissingInput, in.Image.Path)
	}

	inv := a.buildInvocation(in)

	store := cache.New(filepath.Dir(in.OutCatalogue))
	key := store.Key("sourcefind", append([]string{in.Image.Path}, inv.Args...)...)
	if store.Fresh(key, in.OutCatalogue) {
		activity.SafeLog(ctx, "Catalogue up to date, skipping", "catalogue", in.OutCatalogue)
		return &domain.FindSourcesOutput{
			Catalogue: &domain.CatalogueRef{Path: in.OutCatalogue, Epoch: in.Image.Epoch},
		}, nil
	}

	activity.SafeLog(ctx, "Finding sources",
		"image", in.Image.Path,
		"priorized", in.Prior != nil,
		"cmd", inv.String())
	a.RecordHeartbeat(ctx, "finding sources on "+in.Image.Base())

	if err := a.runner.Run(ctx, inv); err != nil {
		return nil, nonRetryable("FindSources", err, "source finder failed")
	}

	if !toolexec.Exists(in.OutCatalogue) {
		if in.AllowEmpty {
			activity.SafeLog(ctx, "No sources detected, empty result",
				"image", in.Image.Path)
			return &domain.FindSourcesOutput{}, nil
		}
		return nil, nonRetryable("FindSources", domain.ErrMissingOutput,
			"finder exited cleanly but produced no catalogue")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	return &domain.FindSourcesOutput{
		Catalogue: &domain.CatalogueRef{Path: in.OutCatalogue, Epoch: in.Image.Epoch},
	}, nil
}

// buildInvocation assembles the finder command line for one input. Kept
// separate so tests can assert flag substitution without running anything.
func (a *Activities) buildInvocation(in domain.FindSourcesInput) toolexec.Invocation {
	args := []string{
		"--background", in.Background,
		"--noise", in.RMS,
		"--table", in.OutCatalogue,
	}
	if in.Region.Active() {
		args = append(args, "--region", in.Region.Path)
	}
	if in.Prior != nil {
		// noregroup pins output identity and order to the prior catalogue.
		args = append(args,
			"--input", in.Prior.Path,
			"--priorized", strconv.Itoa(1),
			"--noregroup",
		)
	}
	args = append(args, in.Image.Path)
	return toolexec.Invocation{Name: a.tools.Finder, Path: a.tools.Finder, Args: args}
}
