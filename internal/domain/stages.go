package domain

import "fmt"

// Stage operation contracts. Each stage is file-in/file-out: inputs name the
// files a stage consumes plus the paths it must produce, outputs echo back
// references for the next stage. Inputs validate themselves so activities
// can fail fast with a non-retryable error before touching any tool.

// EstimateBackgroundInput asks for background and noise maps of one image.
type EstimateBackgroundInput struct {
	Image ImageRef `json:"image"`
	// OutBase is the path prefix for the derived rasters; the stage writes
	// <OutBase>_bkg.fits and <OutBase>_rms.fits.
	OutBase string `json:"out_base"`
}

// Validate checks the background estimation contract.
func (in *EstimateBackgroundInput) Validate() error {
	if in.Image.IsZero() {
		return fmt.Errorf("%w: no image", ErrInvalidRequest)
	}
	if in.OutBase == "" {
		return fmt.Errorf("%w: no output base", ErrInvalidRequest)
	}
	return nil
}

// EstimateBackgroundOutput carries the two per-image auxiliary rasters.
type EstimateBackgroundOutput struct {
	Background string `json:"background"`
	RMS        string `json:"rms"`
}

// FindSourcesInput asks for a component catalogue of one image. The same
// contract serves the raw, mean, and masked variants; the variants differ
// only in which optional fields are set.
type FindSourcesInput struct {
	Image      ImageRef `json:"image"`
	Background string   `json:"background"`
	RMS        string   `json:"rms"`

	// Region optionally restricts detection to a region of interest.
	Region OptionalFile `json:"region"`

	// Prior switches the finder to priorized mode: flux is re-measured at
	// the prior catalogue's positions with re-clustering disabled, so the
	// output rows are identity- and order-locked to the prior rows.
	Prior *CatalogueRef `json:"prior,omitempty"`

	// AllowEmpty marks zero detections as a legitimate result (masked
	// variant): the stage then reports a nil catalogue instead of failing.
	AllowEmpty bool `json:"allow_empty"`

	// OutCatalogue is the catalogue path to produce.
	OutCatalogue string `json:"out_catalogue"`
}

// Validate checks the source-finding contract.
func (in *FindSourcesInput) Validate() error {
	if in.Image.IsZero() {
		return fmt.Errorf("%w: no image", ErrInvalidRequest)
	}
	if in.Background == "" || in.RMS == "" {
		return fmt.Errorf("%w: background/rms pair incomplete", ErrInvalidRequest)
	}
	if in.OutCatalogue == "" {
		return fmt.Errorf("%w: no output catalogue", ErrInvalidRequest)
	}
	if in.Prior != nil && in.Prior.IsZero() {
		return fmt.Errorf("%w: empty prior catalogue reference", ErrInvalidRequest)
	}
	return nil
}

// FindSourcesOutput reports the produced catalogue. Catalogue is nil iff
// AllowEmpty was set and the finder detected nothing.
type FindSourcesOutput struct {
	Catalogue *CatalogueRef `json:"catalogue,omitempty"`
}

// WarpImageInput asks for an astrometrically corrected copy of one image:
// cross-match the image's own catalogue against the reference catalogue to
// fit an offset field, then resample the image along it.
type WarpImageInput struct {
	Image     ImageRef     `json:"image"`
	Catalogue CatalogueRef `json:"catalogue"`
	RefCat    RefCatalogue `json:"ref_cat"`
	// ImageRACol and ImageDecCol name the coordinate columns of the image's
	// own catalogue, which need not match the reference naming.
	ImageRACol  string `json:"image_ra_col"`
	ImageDecCol string `json:"image_dec_col"`
	// OutImage is the corrected image path to produce.
	OutImage string `json:"out_image"`
}

// Validate checks the warp contract.
func (in *WarpImageInput) Validate() error {
	if in.Image.IsZero() || in.Catalogue.IsZero() {
		return fmt.Errorf("%w: warp needs image and catalogue", ErrInvalidRequest)
	}
	if in.RefCat.Path == "" || in.RefCat.RACol == "" || in.RefCat.DecCol == "" {
		return fmt.Errorf("%w: reference catalogue incomplete", ErrInvalidRequest)
	}
	if in.OutImage == "" {
		return fmt.Errorf("%w: no output image", ErrInvalidRequest)
	}
	return nil
}

// WarpImageOutput carries the corrected image.
type WarpImageOutput struct {
	Warped ImageRef `json:"warped"`
}

// AliasImageInput asks for a byte-identical stand-in of an image under the
// warped-image naming scheme, used when warping is disabled so that every
// downstream stage sees the same filenames either way.
type AliasImageInput struct {
	Image ImageRef `json:"image"`
	Alias string   `json:"alias"`
}

// Validate checks the alias contract.
func (in *AliasImageInput) Validate() error {
	if in.Image.IsZero() || in.Alias == "" {
		return fmt.Errorf("%w: alias needs image and target path", ErrInvalidRequest)
	}
	return nil
}

// AliasImageOutput carries the aliased image.
type AliasImageOutput struct {
	Warped ImageRef `json:"warped"`
}

// BuildMeanInput asks for the pixel-wise average of all warped images.
type BuildMeanInput struct {
	Images []ImageRef `json:"images"`
	// OutImage is the mean image path to produce.
	OutImage string `json:"out_image"`
}

// Validate enforces the fatal minimum of two input images.
func (in *BuildMeanInput) Validate() error {
	if len(in.Images) < 2 {
		return fmt.Errorf("%w: got %d", ErrTooFewImages, len(in.Images))
	}
	if in.OutImage == "" {
		return fmt.Errorf("%w: no output image", ErrInvalidRequest)
	}
	return nil
}

// BuildMeanOutput carries the mean image.
type BuildMeanOutput struct {
	Mean ImageRef `json:"mean"`
}

// AugmentMasterInput asks for the master catalogue to be extended with an
// externally chosen monitoring-source list, so fixed positions are flux
// monitored even when the mean image never detects them.
type AugmentMasterInput struct {
	Master      CatalogueRef `json:"master"`
	MonitorList string       `json:"monitor_list"`
	// OutCatalogue is the combined catalogue path to produce.
	OutCatalogue string `json:"out_catalogue"`
}

// Validate checks the augmentation contract.
func (in *AugmentMasterInput) Validate() error {
	if in.Master.IsZero() {
		return fmt.Errorf("%w: no master catalogue", ErrInvalidRequest)
	}
	if in.MonitorList == "" {
		return fmt.Errorf("%w: no monitoring-source list", ErrInvalidRequest)
	}
	if in.OutCatalogue == "" {
		return fmt.Errorf("%w: no output catalogue", ErrInvalidRequest)
	}
	return nil
}

// AugmentMasterOutput carries the combined master catalogue.
type AugmentMasterOutput struct {
	Master CatalogueRef `json:"master"`
}

// MeasureEpochInput asks for priorized flux measurements of one epoch image
// at every master-catalogue position, tagged with the epoch's provenance.
type MeasureEpochInput struct {
	Master     CatalogueRef `json:"master"`
	Image      ImageRef     `json:"image"`
	Background string       `json:"background"`
	RMS        string       `json:"rms"`
	Provenance Provenance   `json:"provenance"`
	// OutCatalogue is the tagged per-epoch catalogue path to produce.
	OutCatalogue string `json:"out_catalogue"`
}

// Validate checks the monitor contract.
func (in *MeasureEpochInput) Validate() error {
	if in.Master.IsZero() {
		return fmt.Errorf("%w: no master catalogue", ErrInvalidRequest)
	}
	if in.Image.IsZero() {
		return fmt.Errorf("%w: no epoch image", ErrInvalidRequest)
	}
	if in.Background == "" || in.RMS == "" {
		return fmt.Errorf("%w: background/rms pair incomplete", ErrInvalidRequest)
	}
	if in.OutCatalogue == "" {
		return fmt.Errorf("%w: no output catalogue", ErrInvalidRequest)
	}
	if in.Provenance.Image == "" {
		return fmt.Errorf("%w: provenance has no image name", ErrInvalidRequest)
	}
	return nil
}

// MeasureEpochOutput carries the tagged per-epoch catalogue. Its row order
// and identities are locked to the master catalogue.
type MeasureEpochOutput struct {
	Catalogue CatalogueRef `json:"catalogue"`
}

// JoinFluxInput asks for the wide flux table joining every epoch's tagged
// catalogue. Epochs may arrive in any order; the join is keyed by source
// identity and the stage pins a deterministic epoch order itself.
type JoinFluxInput struct {
	Master CatalogueRef   `json:"master"`
	Epochs []CatalogueRef `json:"epochs"`
	// OutTable is the flux table path to produce.
	OutTable string `json:"out_table"`
}

// Validate checks the join contract.
func (in *JoinFluxInput) Validate() error {
	if in.Master.IsZero() {
		return fmt.Errorf("%w: no master catalogue", ErrInvalidRequest)
	}
	if len(in.Epochs) == 0 {
		return fmt.Errorf("%w: no epoch catalogues to join", ErrInvalidRequest)
	}
	for i, e := range in.Epochs {
		if e.IsZero() {
			return fmt.Errorf("%w: epoch catalogue %d is empty", ErrInvalidRequest, i)
		}
	}
	if in.OutTable == "" {
		return fmt.Errorf("%w: no output table", ErrInvalidRequest)
	}
	return nil
}

// JoinFluxOutput carries the wide flux table.
type JoinFluxOutput struct {
	FluxTable CatalogueRef `json:"flux_table"`
}

// EstimateDOFInput asks for the effective degrees of freedom of the flux
// table, derived from pairwise epoch autocorrelation.
type EstimateDOFInput struct {
	FluxTable CatalogueRef `json:"flux_table"`
}

// Validate checks the degrees-of-freedom contract.
func (in *EstimateDOFInput) Validate() error {
	if in.FluxTable.IsZero() {
		return fmt.Errorf("%w: no flux table", ErrInvalidRequest)
	}
	return nil
}

// EstimateDOFOutput carries the estimated degrees of freedom.
type EstimateDOFOutput struct {
	NDOF float64 `json:"ndof"`
}

// ComputeStatsInput asks for per-source variability statistics over the
// flux table, using a previously estimated degrees-of-freedom value.
type ComputeStatsInput struct {
	FluxTable CatalogueRef `json:"flux_table"`
	NDOF      float64      `json:"ndof"`
	// OutTable is the statistics table path to produce, row-aligned with
	// the flux table.
	OutTable string `json:"out_table"`
}

// Validate checks the statistics contract.
func (in *ComputeStatsInput) Validate() error {
	if in.FluxTable.IsZero() {
		return fmt.Errorf("%w: no flux table", ErrInvalidRequest)
	}
	if in.OutTable == "" {
		return fmt.Errorf("%w: no output table", ErrInvalidRequest)
	}
	return nil
}

// ComputeStatsOutput carries the variability statistics table.
type ComputeStatsOutput struct {
	StatsTable CatalogueRef `json:"stats_table"`
}

// MaskSourcesInput asks for a copy of one warped image with every
// master-catalogue source suppressed, exposing residual flux for transient
// detection.
type MaskSourcesInput struct {
	Master CatalogueRef `json:"master"`
	Image  ImageRef     `json:"image"`
	// Sigma is the significance threshold below which pixels near known
	// sources are blanked.
	Sigma float64 `json:"sigma"`
	// OutImage is the masked image path to produce.
	OutImage string `json:"out_image"`
}

// Validate checks the masking contract.
func (in *MaskSourcesInput) Validate() error {
	if in.Master.IsZero() || in.Image.IsZero() {
		return fmt.Errorf("%w: masking needs master catalogue and image", ErrInvalidRequest)
	}
	if in.OutImage == "" {
		return fmt.Errorf("%w: no output image", ErrInvalidRequest)
	}
	return nil
}

// MaskSourcesOutput carries the masked residual image.
type MaskSourcesOutput struct {
	Masked ImageRef `json:"masked"`
}

// FilterCandidatesInput asks for artifact screening of one epoch's residual
// detections against the image they were found in.
type FilterCandidatesInput struct {
	Catalogue CatalogueRef `json:"catalogue"`
	Image     ImageRef     `json:"image"`
	// OutCatalogue is the filtered catalogue path to produce.
	OutCatalogue string `json:"out_catalogue"`
}

// Validate checks the filter contract.
func (in *FilterCandidatesInput) Validate() error {
	if in.Catalogue.IsZero() || in.Image.IsZero() {
		return fmt.Errorf("%w: filter needs catalogue and image", ErrInvalidRequest)
	}
	if in.OutCatalogue == "" {
		return fmt.Errorf("%w: no output catalogue", ErrInvalidRequest)
	}
	return nil
}

// FilterCandidatesOutput carries the screened catalogue. When the filter
// rejects everything the unfiltered input is handed back unchanged, keeping
// recall over precision.
type FilterCandidatesOutput struct {
	Catalogue CatalogueRef `json:"catalogue"`
}

// CompileCandidatesInput asks for the concatenation of every epoch's
// (possibly absent) filtered residual catalogue into one candidate table.
type CompileCandidatesInput struct {
	// Epochs holds one entry per epoch; nil entries mark epochs with no
	// residual detections and are skipped, not failed.
	Epochs []*CatalogueRef `json:"epochs"`
	// OutTable is the candidate table path to produce.
	OutTable string `json:"out_table"`
}

// Validate checks the compile contract.
func (in *CompileCandidatesInput) Validate() error {
	if in.OutTable == "" {
		return fmt.Errorf("%w: no output table", ErrInvalidRequest)
	}
	return nil
}

// CompileCandidatesOutput carries the candidate table, or nil when every
// epoch came up empty.
type CompileCandidatesOutput struct {
	Candidates *CatalogueRef `json:"candidates,omitempty"`
}
