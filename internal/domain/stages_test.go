package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStageInputValidation(t *testing.T) {
	img := ImageRef{Path: "epoch1.fits"}
	cat := CatalogueRef{Path: "epoch1_comp.fits"}

	t.Run("background needs image and out base", func(t *testing.T) {
		in := EstimateBackgroundInput{Image: img, OutBase: "out/epoch1"}
		assert.NoError(t, in.Validate())

		in.OutBase = ""
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)

		in = EstimateBackgroundInput{OutBase: "out/epoch1"}
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)
	})

	t.Run("find sources needs noise maps", func(t *testing.T) {
		in := FindSourcesInput{
			Image:        img,
			Background:   "epoch1_bkg.fits",
			RMS:          "epoch1_rms.fits",
			OutCatalogue: "epoch1_comp.fits",
		}
		assert.NoError(t, in.Validate())

		in.RMS = ""
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)
	})

	t.Run("find sources rejects empty prior reference", func(t *testing.T) {
		in := FindSourcesInput{
			Image:        img,
			Background:   "epoch1_bkg.fits",
			RMS:          "epoch1_rms.fits",
			OutCatalogue: "epoch1_comp.fits",
			Prior:        &CatalogueRef{},
		}
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)
	})

	t.Run("warp needs complete reference catalogue", func(t *testing.T) {
		in := WarpImageInput{
			Image:     img,
			Catalogue: cat,
			RefCat:    RefCatalogue{Path: "ref.fits", RACol: "RAJ2000", DecCol: "DEJ2000"},
			OutImage:  "epoch1_warped.fits",
		}
		assert.NoError(t, in.Validate())

		in.RefCat.RACol = ""
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)
	})

	t.Run("mean of one image is fatal", func(t *testing.T) {
		in := BuildMeanInput{Images: []ImageRef{img}, OutImage: "mean.fits"}
		assert.ErrorIs(t, in.Validate(), ErrTooFewImages)

		in.Images = []ImageRef{img, {Path: "epoch2.fits", Epoch: 1}}
		assert.NoError(t, in.Validate())
	})

	t.Run("measure epoch needs provenance", func(t *testing.T) {
		in := MeasureEpochInput{
			Master:       cat,
			Image:        img,
			Background:   "epoch1_bkg.fits",
			RMS:          "epoch1_rms.fits",
			Provenance:   Provenance{Image: "epoch1", Epoch: 0},
			OutCatalogue: "epoch1_prior_comp.fits",
		}
		assert.NoError(t, in.Validate())

		in.Provenance.Image = ""
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)
	})

	t.Run("join rejects empty epoch entries", func(t *testing.T) {
		in := JoinFluxInput{
			Master:   cat,
			Epochs:   []CatalogueRef{{Path: "e0.fits"}, {}},
			OutTable: "flux_table.fits",
		}
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)

		in.Epochs[1] = CatalogueRef{Path: "e1.fits", Epoch: 1}
		assert.NoError(t, in.Validate())
	})

	t.Run("compile tolerates nil epochs", func(t *testing.T) {
		in := CompileCandidatesInput{
			Epochs:   []*CatalogueRef{nil, nil},
			OutTable: "transients.fits",
		}
		assert.NoError(t, in.Validate())

		in.OutTable = ""
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)
	})

	t.Run("augment needs list and master", func(t *testing.T) {
		in := AugmentMasterInput{
			Master:       cat,
			MonitorList:  "monitor.fits",
			OutCatalogue: "master_comp.fits",
		}
		assert.NoError(t, in.Validate())

		in.MonitorList = ""
		assert.ErrorIs(t, in.Validate(), ErrInvalidRequest)
	})
}

func TestImageRefBase(t *testing.T) {
	assert.Equal(t, "epoch1", ImageRef{Path: "/data/run7/epoch1.fits"}.Base())
	assert.Equal(t, "epoch1_warped", ImageRef{Path: "epoch1_warped.fits"}.Base())
}
