// Package variability implements the statistics stage: two sequential
// external computations over the flux table. First the effective degrees of
// freedom are estimated from pairwise epoch autocorrelation, then that
// value feeds the per-source variability statistics (modulation index,
// chi-squared, p-values).
package variability

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ahrav/skywatch/internal/cache"
	"github.com/ahrav/skywatch/internal/config"
	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/toolexec"
	"github.com/ahrav/skywatch/pkg/activity"
)

// Activities handles variability-statistics Temporal activities.
type Activities struct {
	activity.BaseActivities
	runner toolexec.Runner
	tools  config.ToolSettings
}

// NewActivities creates variability activities with the provided runner and
// tool locations.
func NewActivities(base activity.BaseActivities, runner toolexec.Runner, tools config.ToolSettings) *Activities {
	return &Activities{BaseActivities: base, runner: runner, tools: tools}
}

// EstimateDOF runs the degrees-of-freedom estimator over the flux table.
// The estimator reports a single number on stdout; anything unparsable is a
// stage failure, not a default.
func (a *Activities) EstimateDOF(
	ctx context.Context,
	in domain.EstimateDOFInput,
) (*domain.EstimateDOFOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("EstimateDOF", err, "invalid input")
	}
	if !toolexec.Exists(in.FluxTable.Path) {
		return nil, nonRetryable("EstimateDOF", domain.ErrMissingInput, in.FluxTable.Path)
	}

	tool := a.tools.Helper(a.tools.DOF)
	inv := toolexec.Invocation{
		Name: a.tools.DOF,
		Path: tool,
		Args: []string{"--table", in.FluxTable.Path},
	}

	activity.SafeLog(ctx, "Estimating degrees of freedom", "cmd", inv.String())
	a.RecordHeartbeat(ctx, "estimating degrees of freedom")

	stdout, err := a.runner.Output(ctx, inv)
	if err != nil {
		return nil, nonRetryable("EstimateDOF", err, "degrees-of-freedom estimator failed")
	}

	ndof, err := strconv.ParseFloat(strings.TrimSpace(string(stdout)), 64)
	if err != nil {
		return nil, nonRetryable("EstimateDOF",
			fmt.Errorf("parse estimator output %q: %w", strings.TrimSpace(string(stdout)), err),
			"malformed estimator output")
	}

	return &domain.EstimateDOFOutput{NDOF: ndof}, nil
}

// ComputeStats runs the per-source variability computation using the
// previously estimated degrees of freedom. The output table is row-aligned
// with the flux table.
func (a *Activities) ComputeStats(
	ctx context.Context,
	in domain.ComputeStatsInput,
) (*domain.ComputeStatsOutput, error) {
	if err := in.Validate(); err != nil {
		return nil, nonRetryable("ComputeStats", err, "invalid input")
	}
	if !toolexec.Exists(in.FluxTable.Path) {
		return nil, nonRetryable("ComputeStats", domain.ErrMissingInput, in.FluxTable.Path)
	}

	tool := a.tools.Helper(a.tools.Variability)
	inv := toolexec.Invocation{
		Name: a.tools.Variability,
		Path: tool,
		Args: []string{
			"--table", in.FluxTable.Path,
			"--ndof", strconv.FormatFloat(in.NDOF, 'g', -1, 64),
			"--out", in.OutTable,
		},
	}

	store := cache.New(filepath.Dir(in.OutTable))
	key := store.Key("variability", inv.Args...)
	if store.Fresh(key, in.OutTable) {
		activity.SafeLog(ctx, "Statistics table up to date, skipping", "table", in.OutTable)
		return &domain.ComputeStatsOutput{StatsTable: domain.CatalogueRef{Path: in.OutTable}}, nil
	}

	activity.SafeLog(ctx, "Computing variability statistics", "cmd", inv.String())
	a.RecordHeartbeat(ctx, "computing variability statistics")

	if err := a.runner.Run(ctx, inv); err != nil {
		return nil, nonRetryable("ComputeStats", err, "variability computation failed")
	}
	if !toolexec.Exists(in.OutTable) {
		return nil, nonRetryable("ComputeStats", domain.ErrMissingOutput,
			"computation exited cleanly but produced no table")
	}
	if err := store.Commit(key); err != nil {
		activity.SafeLogError(ctx, "Failed to record cache marker", "error", err)
	}

	return &domain.ComputeStatsOutput{StatsTable: domain.CatalogueRef{Path: in.OutTable}}, nil
}
