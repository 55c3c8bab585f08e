// Package workflow orchestrates the transient-detection pipeline as a
// Temporal workflow. The workflow owns the stage graph and file naming;
// all file and subprocess work happens in activities, keeping workflow
// code deterministic and replay-safe.
package workflow

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/ahrav/skywatch/internal/domain"
)

// maskSigma is the significance threshold handed to the masking stage.
const maskSigma = 4.0

// epochState tracks one epoch image's artifacts as its branch progresses.
// A nil Warped means the epoch dropped out in the image-preparation phase;
// later phases skip it.
type epochState struct {
	Epoch      int
	Image      domain.ImageRef
	Background string
	RMS        string
	Warped     *domain.ImageRef
	// WarpedBackground/WarpedRMS are the noise maps of the warped image,
	// used by the monitor and masked-finding stages.
	WarpedBackground string
	WarpedRMS        string

	Measured *domain.CatalogueRef
	// Residuals is nil when the epoch's masked image held no detections or
	// when the epoch dropped out earlier.
	Residuals *domain.CatalogueRef

	// Err records a preparation failure; the epoch drops out of the run.
	Err error
	// MonitorErr records a monitoring-phase failure. Unlike preparation
	// failures it is fatal: the flux join must see every surviving epoch,
	// and a partial join would silently skew the variability statistics.
	MonitorErr error
}

// PipelineWorkflow runs the full detection pipeline over one epoch image
// set: per-epoch image preparation, mean-image master catalogue, per-epoch
// flux monitoring and residual search, then statistics and plots.
func PipelineWorkflow(
	ctx workflow.Context,
	req domain.PipelineRequest,
) (*domain.PipelineResult, error) {
	const currentVersion = 1
	_ = workflow.GetVersion(ctx, "pipeline.v", workflow.DefaultVersion, currentVersion)

	if err := req.Validate(); err != nil {
		return nil, temporal.NewNonRetryableApplicationError(
			"invalid pipeline request", "Validation", err)
	}
	if len(req.Images) < 2 {
		return nil, temporal.NewNonRetryableApplicationError(
			"mean image requires at least 2 input images", "Validation",
			domain.ErrTooFewImages)
	}

	// Stages wrap long-running external tools; retrying a deterministic
	// tool on unchanged inputs only repeats the failure, so each attempt
	// stands alone.
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 4 * time.Hour,
		HeartbeatTimeout:    10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)
	logger := workflow.GetLogger(ctx)

	epochs := make([]*epochState, len(req.Images))
	for i, img := range req.Images {
		epochs[i] = &epochState{
			Epoch: i,
			Image: domain.ImageRef{Path: img, Epoch: i},
		}
	}

	// Phase 1: per-epoch image preparation in parallel. Individual epochs
	// may drop out; the run only dies if fewer than two survive.
	prepareEpochs(ctx, epochs, req)

	survivors := 0
	for _, e := range epochs {
		if e.Err != nil {
			logger.Warn("Epoch dropped from run",
				"epoch", e.Epoch, "image", e.Image.Path, "error", e.Err)
			continue
		}
		survivors++
	}
	if survivors < 2 {
		return nil, temporal.NewNonRetryableApplicationError(
			"mean image requires at least 2 input images", "TooFewImages",
			domain.ErrTooFewImages)
	}

	// Phase 2: mean image and master catalogue.
	master, mean, err := buildMaster(ctx, epochs, req)
	if err != nil {
		return nil, err
	}

	// Phase 3: per-epoch monitoring and residual search against the master.
	monitorEpochs(ctx, epochs, master, req)

	measured := make([]domain.CatalogueRef, 0, len(epochs))
	residuals := make([]*domain.CatalogueRef, 0, len(epochs))
	for _, e := range epochs {
		if e.Err != nil {
			continue
		}
		if e.MonitorErr != nil {
			return nil, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("epoch %d monitoring failed", e.Epoch),
				"Monitor", e.MonitorErr)
		}
		if e.Measured == nil {
			return nil, temporal.NewNonRetryableApplicationError(
				fmt.Sprintf("epoch %d produced no flux measurements", e.Epoch),
				"Monitor", nil)
		}
		measured = append(measured, *e.Measured)
		residuals = append(residuals, e.Residuals)
	}

	// Phase 4: flux table, candidate table, statistics, plots.
	var joined domain.JoinFluxOutput
	err = workflow.ExecuteActivity(ctx, "JoinFluxTables", domain.JoinFluxInput{
		Master:   master,
		Epochs:   measured,
		OutTable: filepath.Join(req.OutputDir, "flux_table.fits"),
	}).Get(ctx, &joined)
	if err != nil {
		return nil, err
	}

	var compiled domain.CompileCandidatesOutput
	err = workflow.ExecuteActivity(ctx, "CompileCandidates", domain.CompileCandidatesInput{
		Epochs:   residuals,
		OutTable: filepath.Join(req.OutputDir, "transients.fits"),
	}).Get(ctx, &compiled)
	if err != nil {
		return nil, err
	}

	var dof domain.EstimateDOFOutput
	err = workflow.ExecuteActivity(ctx, "EstimateDOF", domain.EstimateDOFInput{
		FluxTable: joined.FluxTable,
	}).Get(ctx, &dof)
	if err != nil {
		return nil, err
	}

	var stats domain.ComputeStatsOutput
	err = workflow.ExecuteActivity(ctx, "ComputeStats", domain.ComputeStatsInput{
		FluxTable: joined.FluxTable,
		NDOF:      dof.NDOF,
		OutTable:  filepath.Join(req.OutputDir, "stats_table.fits"),
	}).Get(ctx, &stats)
	if err != nil {
		return nil, err
	}

	summaryPlot, transientPlot, err := renderPlots(ctx, req, joined, stats, compiled)
	if err != nil {
		return nil, err
	}

	return &domain.PipelineResult{
		MeanImage:     mean,
		MasterCat:     master,
		FluxTable:     joined.FluxTable,
		StatsTable:    stats.StatsTable,
		Candidates:    compiled.Candidates,
		SummaryPlot:   summaryPlot,
		TransientPlot: transientPlot,
	}, nil
}

// prepareEpochs runs the image-preparation branch of every epoch in
// parallel: background estimation, blind source finding, then either
// astrometric warping or the identity alias. Failures land on the epoch's
// Err field instead of failing the run.
func prepareEpochs(ctx workflow.Context, epochs []*epochState, req domain.PipelineRequest) {
	wg := workflow.NewWaitGroup(ctx)
	for _, e := range epochs {
		e := e
		wg.Add(1)
		workflow.Go(ctx, func(gctx workflow.Context) {
			defer wg.Done()
			e.Err = prepareEpoch(gctx, e, req)
		})
	}
	wg.Wait(ctx)
}

func prepareEpoch(ctx workflow.Context, e *epochState, req domain.PipelineRequest) error {
	base := outBase(req.OutputDir, e.Image.Path)

	var bkg domain.EstimateBackgroundOutput
	err := workflow.ExecuteActivity(ctx, "EstimateBackground", domain.EstimateBackgroundInput{
		Image:   e.Image,
		OutBase: base,
	}).Get(ctx, &bkg)
	if err != nil {
		return err
	}
	e.Background, e.RMS = bkg.Background, bkg.RMS

	var found domain.FindSourcesOutput
	err = workflow.ExecuteActivity(ctx, "FindSources", domain.FindSourcesInput{
		Image:        e.Image,
		Background:   e.Background,
		RMS:          e.RMS,
		Region:       req.Region,
		OutCatalogue: base + "_comp.fits",
	}).Get(ctx, &found)
	if err != nil {
		return err
	}
	if found.Catalogue == nil {
		return fmt.Errorf("no sources detected in %s", e.Image.Path)
	}

	warpedPath := base + "_warped.fits"
	if req.Warp {
		var warped domain.WarpImageOutput
		err = workflow.ExecuteActivity(ctx, "WarpImage", domain.WarpImageInput{
			Image:       e.Image,
			Catalogue:   *found.Catalogue,
			RefCat:      req.RefCat,
			ImageRACol:  "ra",
			ImageDecCol: "dec",
			OutImage:    warpedPath,
		}).Get(ctx, &warped)
		if err != nil {
			return err
		}
		e.Warped = &warped.Warped
	} else {
		var aliased domain.AliasImageOutput
		err = workflow.ExecuteActivity(ctx, "AliasImage", domain.AliasImageInput{
			Image: e.Image,
			Alias: warpedPath,
		}).Get(ctx, &aliased)
		if err != nil {
			return err
		}
		e.Warped = &aliased.Warped
	}

	// The monitor and residual stages measure on the warped image, so they
	// need that image's own noise maps.
	var wbkg domain.EstimateBackgroundOutput
	err = workflow.ExecuteActivity(ctx, "EstimateBackground", domain.EstimateBackgroundInput{
		Image:   *e.Warped,
		OutBase: outBase(req.OutputDir, warpedPath),
	}).Get(ctx, &wbkg)
	if err != nil {
		return err
	}
	e.WarpedBackground, e.WarpedRMS = wbkg.Background, wbkg.RMS
	return nil
}

// buildMaster averages the surviving warped images and source-finds the
// result. When a monitoring-source list is active its positions are
// appended to the detected catalogue.
func buildMaster(
	ctx workflow.Context,
	epochs []*epochState,
	req domain.PipelineRequest,
) (domain.CatalogueRef, domain.ImageRef, error) {
	var none domain.CatalogueRef
	var noImg domain.ImageRef

	warped := make([]domain.ImageRef, 0, len(epochs))
	for _, e := range epochs {
		if e.Err == nil && e.Warped != nil {
			warped = append(warped, *e.Warped)
		}
	}

	meanPath := filepath.Join(req.OutputDir, "mean.fits")
	var mean domain.BuildMeanOutput
	err := workflow.ExecuteActivity(ctx, "BuildMean", domain.BuildMeanInput{
		Images:   warped,
		OutImage: meanPath,
	}).Get(ctx, &mean)
	if err != nil {
		return none, noImg, err
	}

	var bkg domain.EstimateBackgroundOutput
	err = workflow.ExecuteActivity(ctx, "EstimateBackground", domain.EstimateBackgroundInput{
		Image:   mean.Mean,
		OutBase: outBase(req.OutputDir, meanPath),
	}).Get(ctx, &bkg)
	if err != nil {
		return none, noImg, err
	}

	var found domain.FindSourcesOutput
	err = workflow.ExecuteActivity(ctx, "FindSources", domain.FindSourcesInput{
		Image:        mean.Mean,
		Background:   bkg.Background,
		RMS:          bkg.RMS,
		Region:       req.Region,
		OutCatalogue: filepath.Join(req.OutputDir, "mean_comp.fits"),
	}).Get(ctx, &found)
	if err != nil {
		return none, noImg, err
	}
	if found.Catalogue == nil {
		return none, noImg, temporal.NewNonRetryableApplicationError(
			"no sources detected in mean image", "EmptyMaster", nil)
	}
	master := *found.Catalogue

	if req.MonitorList.Active() {
		var augmented domain.AugmentMasterOutput
		err = workflow.ExecuteActivity(ctx, "AugmentMaster", domain.AugmentMasterInput{
			Master:       master,
			MonitorList:  req.MonitorList.Path,
			OutCatalogue: filepath.Join(req.OutputDir, "master_comp.fits"),
		}).Get(ctx, &augmented)
		if err != nil {
			return none, noImg, err
		}
		master = augmented.Master
	}
	return master, mean.Mean, nil
}

// monitorEpochs runs the measurement and residual-search branches of every
// surviving epoch in parallel against the master catalogue. Failures here
// land on MonitorErr and abort the run after the barrier; the dropout
// tolerance of image preparation does not extend past the master build.
func monitorEpochs(
	ctx workflow.Context,
	epochs []*epochState,
	master domain.CatalogueRef,
	req domain.PipelineRequest,
) {
	wg := workflow.NewWaitGroup(ctx)
	for _, e := range epochs {
		if e.Err != nil {
			continue
		}
		e := e
		wg.Add(1)
		workflow.Go(ctx, func(gctx workflow.Context) {
			defer wg.Done()
			e.MonitorErr = monitorEpoch(gctx, e, master, req)
		})
	}
	wg.Wait(ctx)
}

func monitorEpoch(
	ctx workflow.Context,
	e *epochState,
	master domain.CatalogueRef,
	req domain.PipelineRequest,
) error {
	base := outBase(req.OutputDir, e.Image.Path)

	// Flux monitoring and the residual search read the same inputs and can
	// proceed side by side within the epoch.
	wg := workflow.NewWaitGroup(ctx)
	var measureErr, residErr error

	wg.Add(1)
	workflow.Go(ctx, func(gctx workflow.Context) {
		defer wg.Done()
		var measured domain.MeasureEpochOutput
		measureErr = workflow.ExecuteActivity(gctx, "MeasureEpoch", domain.MeasureEpochInput{
			Master:     master,
			Image:      *e.Warped,
			Background: e.WarpedBackground,
			RMS:        e.WarpedRMS,
			Provenance: domain.Provenance{Image: e.Image.Base(), Epoch: e.Epoch},
			OutCatalogue: base + "_prior_comp.fits",
		}).Get(gctx, &measured)
		if measureErr == nil {
			e.Measured = &measured.Catalogue
		}
	})

	wg.Add(1)
	workflow.Go(ctx, func(gctx workflow.Context) {
		defer wg.Done()
		residErr = searchResiduals(gctx, e, master, base)
	})

	wg.Wait(ctx)
	if measureErr != nil {
		return measureErr
	}
	return residErr
}

// searchResiduals masks the master sources out of the epoch's warped image
// and source-finds what is left. No detections is a normal outcome and
// leaves e.Residuals nil.
func searchResiduals(
	ctx workflow.Context,
	e *epochState,
	master domain.CatalogueRef,
	base string,
) error {
	var masked domain.MaskSourcesOutput
	err := workflow.ExecuteActivity(ctx, "MaskSources", domain.MaskSourcesInput{
		Master:   master,
		Image:    *e.Warped,
		Sigma:    maskSigma,
		OutImage: base + "_masked.fits",
	}).Get(ctx, &masked)
	if err != nil {
		return err
	}

	var found domain.FindSourcesOutput
	err = workflow.ExecuteActivity(ctx, "FindSources", domain.FindSourcesInput{
		Image:        masked.Masked,
		Background:   e.WarpedBackground,
		RMS:          e.WarpedRMS,
		AllowEmpty:   true,
		OutCatalogue: base + "_resid_comp.fits",
	}).Get(ctx, &found)
	if err != nil {
		return err
	}
	if found.Catalogue == nil {
		return nil
	}

	var filtered domain.FilterCandidatesOutput
	err = workflow.ExecuteActivity(ctx, "FilterCandidates", domain.FilterCandidatesInput{
		Catalogue:    *found.Catalogue,
		Image:        *e.Warped,
		OutCatalogue: base + "_resid_filtered.fits",
	}).Get(ctx, &filtered)
	if err != nil {
		return err
	}
	e.Residuals = &filtered.Catalogue
	return nil
}

// renderPlots draws the variability summary, per-source light curves, and
// the transient candidate chart.
func renderPlots(
	ctx workflow.Context,
	req domain.PipelineRequest,
	joined domain.JoinFluxOutput,
	stats domain.ComputeStatsOutput,
	compiled domain.CompileCandidatesOutput,
) (summaryPlot, transientPlot string, err error) {
	var summary domain.PlotSummaryOutput
	err = workflow.ExecuteActivity(ctx, "PlotSummary", domain.PlotSummaryInput{
		StatsTable: stats.StatsTable,
		OutPlot:    filepath.Join(req.OutputDir, "variables.png"),
	}).Get(ctx, &summary)
	if err != nil {
		return "", "", err
	}

	var curves domain.PlotLightCurvesOutput
	err = workflow.ExecuteActivity(ctx, "PlotLightCurves", domain.PlotLightCurvesInput{
		FluxTable:    joined.FluxTable,
		StatsTable:   stats.StatsTable,
		GroupByEpoch: req.GroupPlotsByEpoch,
		OutDir:       filepath.Join(req.OutputDir, "plots"),
	}).Get(ctx, &curves)
	if err != nil {
		return "", "", err
	}

	var transients domain.PlotTransientsOutput
	err = workflow.ExecuteActivity(ctx, "PlotTransients", domain.PlotTransientsInput{
		Candidates: compiled.Candidates,
		OutPlot:    filepath.Join(req.OutputDir, "transients.png"),
	}).Get(ctx, &transients)
	if err != nil {
		return "", "", err
	}
	return summary.Plot, transients.Plot, nil
}

// outBase maps an input image path to its per-epoch output prefix under
// the run's output directory.
func outBase(outputDir, imagePath string) string {
	name := filepath.Base(imagePath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return filepath.Join(outputDir, name)
}
