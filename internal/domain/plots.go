package domain

import "fmt"

// PlotLightCurvesInput asks for one light-curve PNG per monitored source,
// rendered from the flux table with annotations from the statistics table.
type PlotLightCurvesInput struct {
	FluxTable  CatalogueRef `json:"flux_table"`
	StatsTable CatalogueRef `json:"stats_table"`
	// GroupByEpoch packs the samples of each curve at consecutive
	// positions. When false each sample sits at its epoch identifier
	// instead, leaving visible gaps where epochs dropped out of the run.
	GroupByEpoch bool `json:"group_by_epoch"`
	// OutDir receives one PNG per source.
	OutDir string `json:"out_dir"`
}

// Validate checks the light-curve plotting contract.
func (in *PlotLightCurvesInput) Validate() error {
	if in.FluxTable.IsZero() || in.StatsTable.IsZero() {
		return fmt.Errorf("%w: light curves need flux and stats tables", ErrInvalidRequest)
	}
	if in.OutDir == "" {
		return fmt.Errorf("%w: no output directory", ErrInvalidRequest)
	}
	return nil
}

// PlotLightCurvesOutput reports the rendered per-source plots.
type PlotLightCurvesOutput struct {
	Plots []string `json:"plots"`
}

// PlotSummaryInput asks for the variability summary plot: debiased
// modulation index against log p-value, colour-coded by mean flux, with the
// variable / not-variable decision regions shaded.
type PlotSummaryInput struct {
	StatsTable CatalogueRef `json:"stats_table"`
	OutPlot    string       `json:"out_plot"`
}

// Validate checks the summary plotting contract.
func (in *PlotSummaryInput) Validate() error {
	if in.StatsTable.IsZero() {
		return fmt.Errorf("%w: no stats table", ErrInvalidRequest)
	}
	if in.OutPlot == "" {
		return fmt.Errorf("%w: no output plot", ErrInvalidRequest)
	}
	return nil
}

// PlotSummaryOutput reports the rendered summary plot.
type PlotSummaryOutput struct {
	Plot string `json:"plot"`
}

// PlotTransientsInput asks for the candidate diagnostic plot: sky-position
// scatter with shape ellipses, colour-coded by peak flux. Candidates may be
// nil when no epoch produced residual detections; the stage then renders
// nothing and reports an empty plot path.
type PlotTransientsInput struct {
	Candidates *CatalogueRef `json:"candidates,omitempty"`
	OutPlot    string        `json:"out_plot"`
}

// Validate checks the transient plotting contract.
func (in *PlotTransientsInput) Validate() error {
	if in.OutPlot == "" {
		return fmt.Errorf("%w: no output plot", ErrInvalidRequest)
	}
	return nil
}

// PlotTransientsOutput reports the rendered candidate plot, empty when
// there was nothing to draw.
type PlotTransientsOutput struct {
	Plot string `json:"plot,omitempty"`
}
