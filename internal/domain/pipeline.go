package domain

import "fmt"

// PipelineRequest is the immutable input to one pipeline run. It is built
// once by the CLI from configuration plus the image list file and never
// mutated afterwards; every stage reads from it, none writes to it.
type PipelineRequest struct {
	// Images are the raw epoch image paths, in image-list order. The list
	// index becomes the epoch identifier for everything downstream.
	Images []string `json:"images"`

	// OutputDir receives every intermediate and final file of the run.
	OutputDir string `json:"output_dir"`

	// Warp enables astrometric correction against RefCat. When false the
	// warp stage degenerates to an identity pass-through and warped images
	// are byte-identical aliases of the raw images.
	Warp bool `json:"warp"`

	// RefCat is the reference catalogue used for astrometric cross-matching.
	// Required when Warp is true, ignored otherwise.
	RefCat RefCatalogue `json:"ref_cat"`

	// Region optionally restricts source finding to a region of interest.
	Region OptionalFile `json:"region"`

	// MonitorList optionally appends externally chosen positions to the
	// master catalogue so they are flux-monitored even when the mean image
	// does not detect them.
	MonitorList OptionalFile `json:"monitor_list"`

	// GroupPlotsByEpoch controls the light-curve x axis: packed at
	// consecutive positions when set, spread over epoch identifiers (with
	// gaps for dropped epochs) when not.
	GroupPlotsByEpoch bool `json:"group_plots_by_epoch"`
}

// Validate checks the request before any stage runs. Image-count and
// file-existence checks that belong to individual stages are not duplicated
// here; this only rejects requests that no stage could act on.
func (r *PipelineRequest) Validate() error {
	if len(r.Images) == 0 {
		return fmt.Errorf("%w: empty image list", ErrInvalidRequest)
	}
	for i, img := range r.Images {
		if img == "" {
			return fmt.Errorf("%w: image %d has empty path", ErrInvalidRequest, i)
		}
	}
	if r.OutputDir == "" {
		return fmt.Errorf("%w: output directory not set", ErrInvalidRequest)
	}
	if r.Warp && r.RefCat.Path == "" {
		return fmt.Errorf("%w: warping enabled but no reference catalogue given", ErrInvalidRequest)
	}
	if r.Warp && (r.RefCat.RACol == "" || r.RefCat.DecCol == "") {
		return fmt.Errorf("%w: reference catalogue coordinate columns not named", ErrInvalidRequest)
	}
	return nil
}

// PipelineResult summarises one completed run. Intermediate files stay on
// disk under the output directory for inspection and resume.
type PipelineResult struct {
	MeanImage  ImageRef     `json:"mean_image"`
	MasterCat  CatalogueRef `json:"master_cat"`
	FluxTable  CatalogueRef `json:"flux_table"`
	StatsTable CatalogueRef `json:"stats_table"`

	// Candidates is nil when no epoch produced any residual detection.
	Candidates *CatalogueRef `json:"candidates,omitempty"`

	// SummaryPlot and TransientPlot are paths to the rendered diagnostics.
	// TransientPlot is empty when Candidates is nil.
	SummaryPlot   string `json:"summary_plot,omitempty"`
	TransientPlot string `json:"transient_plot,omitempty"`
}
