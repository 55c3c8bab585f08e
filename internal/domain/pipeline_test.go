package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRequest() PipelineRequest {
	return PipelineRequest{
		Images:    []string{"epoch1.fits", "epoch2.fits", "epoch3.fits"},
		OutputDir: "results",
		Warp:      true,
		RefCat: RefCatalogue{
			Path:   "refcat.fits",
			RACol:  "RAJ2000",
			DecCol: "DEJ2000",
		},
	}
}

func TestPipelineRequestValidate(t *testing.T) {
	t.Run("valid request passes", func(t *testing.T) {
		req := validRequest()
		require.NoError(t, req.Validate())
	})

	t.Run("empty image list rejected", func(t *testing.T) {
		req := validRequest()
		req.Images = nil
		assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
	})

	t.Run("blank image path rejected", func(t *testing.T) {
		req := validRequest()
		req.Images[1] = ""
		assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
	})

	t.Run("missing output dir rejected", func(t *testing.T) {
		req := validRequest()
		req.OutputDir = ""
		assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
	})

	t.Run("warp without reference catalogue rejected", func(t *testing.T) {
		req := validRequest()
		req.RefCat.Path = ""
		assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
	})

	t.Run("warp without coordinate columns rejected", func(t *testing.T) {
		req := validRequest()
		req.RefCat.DecCol = ""
		assert.ErrorIs(t, req.Validate(), ErrInvalidRequest)
	})

	t.Run("no warp needs no reference catalogue", func(t *testing.T) {
		req := validRequest()
		req.Warp = false
		req.RefCat = RefCatalogue{}
		assert.NoError(t, req.Validate())
	})
}

func TestOptionalFileActive(t *testing.T) {
	assert.False(t, OptionalFile{}.Active())
	assert.False(t, OptionalFile{Path: "sources.fits"}.Active())
	assert.False(t, OptionalFile{Enabled: true}.Active())
	assert.True(t, OptionalFile{Path: "sources.fits", Enabled: true}.Active())
}
