// Package monitor implements the priorized source monitor: re-measuring
// flux at every master-catalogue position in each individual epoch image,
// and tagging the measurements with their provenance so the joined flux
// table knows which image and epoch each column group came from.
package monitor

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ahrav/skywatch/internal/cache"
	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles monitor-stage Temporal activities.
type Activities struct {
	activity.BaseActivities
	runner toolexec.Runner
	tools  config.ToolSettings
	events *EventEmitter
}

// NewActivities creates monitor activities with the provided runner and
// tool locations.
func NewActivities(base activity.BaseActivities, runner toolexec.Runner, tools config.ToolSettings) *Activities {
	return &Activities{
		BaseActivities: base,
		runner:         runner,
		tools:          tools,
		events:         NewEventEmitter(base),
	}
}

// MeasureEpoch re-measures flux at each master-catalogue position in one
// epoch image. The finder runs priorized with re-clustering disabled, so
// the output carries exactly one row per master row, in master order.
//
// Provenance (image base name, epoch index) is decided here, as a typed
// record on the input, and only then materialised as table columns by the
// table tool; no stage downstream parses filenames to recover identity.
func (a *Activities) MeasureEpoch(
	ctx context.Context,
	in domain.MeasureEpochInput,
) (*domain.MeasureEpochOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("MeasureEpoch", err, "invalid input")
	}
	for _, path := range []string{in.Master.Path, in.Image.Path, in.Background, in.RMS} {
		if !toolexec.Exists(path) {
			return nil, nonRetryable("MeasureEpoch", domain.ErrMissingInput, path)
		}
	}

	raw := rawCataloguePath(in.OutCatalogue)
	findInv := a.priorizedInvocation(in, raw)
	tagInv := a.tagInvocation(raw, in.OutCatalogue, in.Provenance)

	store := cache.New(filepath.Dir(in.OutCatalogue))
	key := store.Key("monitor",
		append(append([]string{}, findInv.Args...), tagInv.Args...)...)
	if store.Fresh(key, in.OutCatalogue) {
		activity.SafeLog(ctx, "Epoch measurements up to date, skipping",
			"catalogue", in.OutCatalogue)
		return &domain.MeasureEpochOutput{
			Catalogue: domain.CatalogueRef{Path: in.OutCatalogue, Epoch: in.Provenance.Epoch},
		}, nil
	}

	activity.SafeLog(ctx, "Measuring epoch fluxes",
		"image", in.Image.Path,
		"epoch", in.Provenance.Epoch,
		"cmd", findInv.String())
	a.RecordHeartbeat(ctx, "priorized measurement on "+in.Image.Base())

	if err := a.runner.Run(ctx, findInv); err != nil {
		return nil, nonRetryable("MeasureEpoch", err, "priorized source finder failed")
	}
	if !toolexec.Exists(raw) {
		return nil, nonRetryable("MeasureEpoch", domain.ErrMissingOutput,
			"finder exited cleanly but produced no catalogue")
	}

	if err := a.runner.Run(ctx, tagInv); err != nil {
		return nil, nonRetryable("MeasureEpoch", err, "provenance tagging failed")
	}
	if !toolexec.Exists(in.OutCatalogue) {
		return nil, nonRetryable("MeasureEpoch", domain.ErrMissingOutput,
			"tagging exited cleanly but produced no catalogue")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	wfCtx := a.GetWorkflowContext(ctx)
	a.events.EmitEpochMeasured(ctx, in, wfCtx)

	return &domain.MeasureEpochOutput{
		Catalogue: domain.CatalogueRef{Path: in.OutCatalogue, Epoch: in.Provenance.Epoch},
	}, nil
}

// AugmentMaster concatenates the monitoring-source list onto the master
// catalogue so fixed positions are measured in every epoch even when the
// mean image never detects them.
func (a *Activities) AugmentMaster(
	ctx context.Context,
	in domain.AugmentMasterInput,
) (*domain.AugmentMasterOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("AugmentMaster", err, "invalid input")
	}
	for _, path := range []string{in.Master.Path, in.MonitorList} {
		if !toolexec.Exists(path) {
			return nil, nonRetryable("AugmentMaster", domain.ErrMissingInput, path)
		}
	}

	inv := toolexec.Invocation{
		Name: a.tools.Table,
		Path: a.tools.Table,
		Args: []string{
			"tcat",
			"nin=2",
			"in1=" + in.Master.Path,
			"in2=" + in.MonitorList,
			"ofmt=fits",
			"out=" + in.OutCatalogue,
		},
	}

	store := cache.New(filepath.Dir(in.OutCatalogue))
	key := store.Key("augment", inv.Args...)
	if store.Fresh(key, in.OutCatalogue) {
		activity.SafeLog(ctx, "Augmented master up to date, skipping",
			"catalogue", in.OutCatalogue)
		return &domain.AugmentMasterOutput{
			Master: domain.CatalogueRef{Path: in.OutCatalogue},
		}, nil
	}

	activity.SafeLog(ctx, "Appending monitoring sources to master catalogue",
		"cmd", inv.String())
	a.RecordHeartbeat(ctx, "augmenting master catalogue")

	if err := a.runner.Run(ctx, inv); err != nil {
		return nil, nonRetryable("AugmentMaster", err, "catalogue concatenation failed")
	}
	if !toolexec.Exists(in.OutCatalogue) {
		return nil, nonRetryable("AugmentMaster", domain.ErrMissingOutput,
			"concatenation exited cleanly but produced no catalogue")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	return &domain.AugmentMasterOutput{
		Master: domain.CatalogueRef{Path: in.OutCatalogue},
	}, nil
}

// priorizedInvocation builds the finder command for fixed-position
// re-measurement.
func (a *Activities) priorizedInvocation(in domain.MeasureEpochInput, out string) toolexec.Invocation {
	return toolexec.Invocation{
		Name: a.tools.Finder,
		Path: a.tools.Finder,
		Args: []string{
			"--background", in.Background,
			"--noise", in.RMS,
			"--table", out,
			"--input", in.Master.Path,
			"--priorized", "1",
			"--noregroup",
			in.Image.Path,
		},
	}
}

// tagInvocation builds the table-tool command that appends the provenance
// columns to the raw measurement catalogue.
func (a *Activities) tagInvocation(in, out string, prov domain.Provenance) toolexec.Invocation {
	return toolexec.Invocation{
		Name: a.tools.Table,
		Path: a.tools.Table,
		Args: []string{
			"tpipe",
			"in=" + in,
			fmt.Sprintf("cmd=addcol image %q", prov.Image),
			fmt.Sprintf("cmd=addcol epoch %d", prov.Epoch),
			"ofmt=fits",
			"out=" + out,
		},
	}
}

// rawCataloguePath names the untagged intermediate catalogue next to the
// final tagged one.
func rawCataloguePath(tagged string) string {
	ext := filepath.Ext(tagged)
	return tagged[:len(tagged)-len(ext)] + "_raw" + ext
}
