// Package transient implements the tail of the transient branch: screening
// residual detections against known artifact signatures and concatenating
// the surviving per-epoch catalogues into the candidate table.
package transient

import (
	"context"
	"path/filepath"

	"github.com/ahrav/skywatch/internal/cache"
	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles transient-stage Temporal activities.
type Activities struct {
	activity.BaseActivities
	runner toolexec.Runner
	tools  config.ToolSettings
	events *EventEmitter
}

// NewActivities creates transient activities with the provided runner and
// tool locations.
func NewActivities(base activity.BaseActivities, runner toolexec.Runner, tools config.ToolSettings) *Activities {
	return &Activities{
		BaseActivities: base,
		runner:         runner,
		tools:          tools,
		events:         NewEventEmitter(base),
	}
}

// FilterCandidates screens one epoch's residual detections for artifacts
// (sidelobes, edge effects) by inspecting the image they were found in.
//
// When the filter rejects every detection, the unfiltered catalogue is kept
// rather than discarded. That conservative fallback favours recall over
// precision and matches the long-standing behaviour of this pipeline; see
// DESIGN.md before changing it.
func (a *Activities) FilterCandidates(
	ctx context.Context,
	in domain.FilterCandidatesInput,
) (*domain.FilterCandidatesOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("FilterCandidates", err, "invalid input")
	}
	for _, path := range []string{in.Catalogue.Path, in.Image.Path} {
		if !toolexec.Exists(path) {
			return nil, nonRetryable("FilterCandidates", domain.ErrMissingInput, path)
		}
	}

	tool := a.tools.Helper(a.tools.Filter)
	inv := toolexec.Invocation{
		Name: a.tools.Filter,
		Path: tool,
		Args: []string{
			"--incat", in.Catalogue.Path,
			"--image", in.Image.Path,
			"--outcat", in.OutCatalogue,
		},
	}

	activity.SafeLog(ctx, "Filtering residual detections",
		"catalogue", in.Catalogue.Path, "cmd", inv.String())
	a.RecordHeartbeat(ctx, "filtering candidates for epoch")

	if err := a.runner.Run(ctx, inv); err != nil {
		return nil, nonRetryable("FilterCandidates", err, "candidate filter failed")
	}

	if !toolexec.Exists(in.OutCatalogue) {
		activity.SafeLog(ctx, "Filter removed everything, keeping unfiltered catalogue",
			"catalogue", in.Catalogue.Path)
		return &domain.FilterCandidatesOutput{Catalogue: in.Catalogue}, nil
	}

	return &domain.FilterCandidatesOutput{
		Catalogue: domain.CatalogueRef{Path: in.OutCatalogue, Epoch: in.Catalogue.Epoch},
	}, nil
}

// CompileCandidates concatenates every epoch's filtered catalogue into one
// candidate table. Nil entries mark epochs with no residual detections and
// are skipped; only when every epoch is empty does the stage report a nil
// table instead of invoking the tool on nothing.
func (a *Activities) CompileCandidates(
	ctx context.Context,
	in domain.CompileCandidatesInput,
) (*domain.CompileCandidatesOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("CompileCandidates", err, "invalid input")
	}

	var present []domain.CatalogueRef
	for _, e := range in.Epochs {
		if e == nil || e.IsZero() {
			continue
		}
		if !toolexec.Exists(e.Path) {
			activity.SafeLog(ctx, "Skipping missing candidate catalogue", "path", e.Path)
			continue
		}
		present = append(present, *e)
	}

	if len(present) == 0 {
		activity.SafeLog(ctx, "No transient candidates in any epoch")
		return &domain.CompileCandidatesOutput{}, nil
	}

	args := []string{"tcat"}
	for _, e := range present {
		args = append(args, "in="+e.Path)
	}
	args = append(args, "ofmt=fits", "out="+in.OutTable)
	inv := toolexec.Invocation{Name: a.tools.Table, Path: a.tools.Table, Args: args}

	store := cache.New(filepath.Dir(in.OutTable))
	key := store.Key("transients", inv.Args...)
	if !store.Fresh(key, in.OutTable) {
		activity.SafeLog(ctx, "Compiling transient candidates",
			"epochs", len(present), "cmd", inv.String())
		a.RecordHeartbeat(ctx, "compiling transient candidates")

		if err := a.runner.Run(ctx, inv); err != nil {
			return nil, nonRetryable("CompileCandidates", err, "candidate concatenation failed")
		}
		if !toolexec.Exists(in.OutTable) {
			return nil, nonRetryable("CompileCandidates", domain.ErrMissingOutput,
				"concatenation exited cleanly but produced no table")
		}
		if err := store.Commit(key); err != nil {
			activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
		}
	}

	wfCtx := a.GetWorkflowContext(ctx)
	a.events.EmitCandidatesCompiled(ctx, len(present), in.OutTable, wfCtx)

	return &domain.CompileCandidatesOutput{
		Candidates: &domain.CatalogueRef{Path: in.OutTable},
	}, nil
}
