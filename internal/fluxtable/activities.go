// Package fluxtable implements the flux joiner: the synchronization point
// where every epoch's tagged measurement catalogue is merged into one wide
// table, one row per master-catalogue source, one column group per epoch.
package fluxtable

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/ahrav/skywatch/internal/cache"
	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles flux-join Temporal activities.
type Activities struct {
	activity.BaseActivities
	runner toolexec.Runner
	tools  config.ToolSettings
}

// NewActivities creates flux-join activities with the provided runner and
// tool locations.
func NewActivities(base activity.BaseActivities, runner toolexec.Runner, tools config.ToolSettings) *Activities {
	return &Activities{BaseActivities: base, runner: runner, tools: tools}
}

// JoinFluxTables merges the per-epoch catalogues side by side. Every input
// shares the master catalogue's row order (the noregroup contract), so a
// row join is an identity-aligned join. Inputs are sorted by epoch before
// the command is built, making the result independent of the order the
// workflow collected them in.
func (a *Activities) JoinFluxTables(
	ctx context.Context,
	in domain.JoinFluxInput,
) (*domain.JoinFluxOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("JoinFluxTables", err, "invalid input")
	}
	if !toolexec.Exists(in.Master.Path) {
		return nil, nonRetryable("JoinFluxTables", domain.ErrMissingInput, in.Master.Path)
	}
	for _, e := range in.Epochs {
		if !toolexec.Exists(e.Path) {
			return nil, nonRetryable("JoinFluxTables", domain.ErrMissingInput, e.Path)
		}
	}

	inv := a.buildInvocation(in)

	store := cache.New(filepath.Dir(in.OutTable))
	key := store.Key("fluxjoin", inv.Args...)
	if store.Fresh(key, in.OutTable) {
		activity.SafeLog(ctx, "Flux table up to date, skipping", "table", in.OutTable)
		return &domain.JoinFluxOutput{FluxTable: domain.CatalogueRef{Path: in.OutTable}}, nil
	}

	activity.SafeLog(ctx, "Joining flux tables",
		"epochs", len(in.Epochs), "cmd", inv.String())
	a.RecordHeartbeat(ctx, "joining flux tables")

	if err := a.runner.Run(ctx, inv); err != nil {
		return nil, nonRetryable("JoinFluxTables", err, "table join failed")
	}
	if !toolexec.Exists(in.OutTable) {
		return nil, nonRetryable("JoinFluxTables", domain.ErrMissingOutput,
			"join exited cleanly but produced no table")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	return &domain.JoinFluxOutput{FluxTable: domain.CatalogueRef{Path: in.OutTable}}, nil
}

// buildInvocation assembles the row-join command: master first for column
// reference, then each epoch catalogue in ascending epoch order.
func (a *Activities) buildInvocation(in domain.JoinFluxInput) toolexec.Invocation {
	epochs := append([]domain.CatalogueRef(nil), in.Epochs...)
	sort.Slice(epochs, func(i, j int) bool { return epochs[i].Epoch < epochs[j].Epoch })

	args := []string{"tjoin", fmt.Sprintf("nin=%d", len(epochs)+1), "in1=" + in.Master.Path}
	for i, e := range epochs {
		args = append(args, fmt.Sprintf("in%d=%s", i+2, e.Path))
	}
	args = append(args, "ofmt=fits", "out="+in.OutTable)
	return toolexec.Invocation{Name: a.tools.Table, Path: a.tools.Table, Args: args}
}
