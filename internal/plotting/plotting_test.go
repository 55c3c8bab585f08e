package plotting

import (
	"context"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/skywatch/internal/domain"
	"github.com/ahrav/skywatch/internal/fitstab"
	"github.com/ahrav/skywatch/pkg/activity"
	"github.com/ahrav/skywatch/pkg/events"
)

// writeTable writes a single binary table FITS file from parallel column
// slices, covering the schemas the renderers consume.
func writeTable(t *testing.T, path string, cols []fitsio.Column, rows []interface{}) {
	t.Helper()

	w, err := os.Create(path)
	require.NoError(t, err)
	defer w.Close()

	f, err := fitsio.Create(w)
	require.NoError(t, err)
	defer f.Close()

	phdu, err := fitsio.NewPrimaryHDU(nil)
	require.NoError(t, err)
	require.NoError(t, f.Write(phdu))

	tbl, err := fitsio.NewTable("data", cols, fitsio.BINARY_TBL)
	require.NoError(t, err)
	defer tbl.Close()
	for _, row := range rows {
		require.NoError(t, tbl.Write(row))
	}
	require.NoError(t, f.Write(tbl))
}

type statsRow struct {
	UUID string  `fits:"uuid"`
	M    float64 `fits:"m"`
	MD   float64 `fits:"md"`
	Chi  float64 `fits:"chisq_peak_flux"`
	Pval float64 `fits:"pval_peak_flux"`
	Mean float64 `fits:"mean_peak_flux"`
}

var statsCols = []fitsio.Column{
	{Name: "uuid", Format: "24A"},
	{Name: "m", Format: "D"},
	{Name: "md", Format: "D"},
	{Name: "chisq_peak_flux", Format: "D"},
	{Name: "pval_peak_flux", Format: "D"},
	{Name: "mean_peak_flux", Format: "D"},
}

type fluxRow struct {
	UUID  string  `fits:"uuid"`
	Flux1 float64 `fits:"peak_flux_1"`
	Err1  float64 `fits:"err_peak_flux_1"`
	Flux2 float64 `fits:"peak_flux_2"`
	Err2  float64 `fits:"err_peak_flux_2"`
}

var fluxCols = []fitsio.Column{
	{Name: "uuid", Format: "24A"},
	{Name: "peak_flux_1", Format: "D"},
	{Name: "err_peak_flux_1", Format: "D"},
	{Name: "peak_flux_2", Format: "D"},
	{Name: "err_peak_flux_2", Format: "D"},
}

type candidateRow struct {
	RA   float64 `fits:"ra"`
	Dec  float64 `fits:"dec"`
	A    float64 `fits:"a"`
	B    float64 `fits:"b"`
	PA   float64 `fits:"pa"`
	Peak float64 `fits:"peak_flux"`
}

var candidateCols = []fitsio.Column{
	{Name: "ra", Format: "D"},
	{Name: "dec", Format: "D"},
	{Name: "a", Format: "D"},
	{Name: "b", Format: "D"},
	{Name: "pa", Format: "D"},
	{Name: "peak_flux", Format: "D"},
}

func requirePNG(t *testing.T, path string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	_, err = png.Decode(f)
	require.NoError(t, err, "plot must be a decodable PNG")
}

func newTestActivities() *Activities {
	return NewActivities(activity.NewBaseActivities(events.NewNoOpEventSink()))
}

func TestPlotSummary(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	stats := filepath.Join(dir, "stats_table.fits")
	writeTable(t, stats, statsCols, []interface{}{
		&statsRow{UUID: "src-a", M: 0.2, MD: 0.15, Chi: 40, Pval: 1e-6, Mean: 1.2},
		&statsRow{UUID: "src-b", M: 0.01, MD: -0.01, Chi: 9, Pval: 0.6, Mean: 0.3},
		// Non-positive p-values are cut, matching the stats assembly.
		&statsRow{UUID: "src-c", M: 0.05, MD: 0.02, Chi: 11, Pval: 0, Mean: 0.1},
	})

	a := newTestActivities()
	out, err := a.PlotSummary(ctx, domain.PlotSummaryInput{
		StatsTable: domain.CatalogueRef{Path: stats},
		OutPlot:    filepath.Join(dir, "variables.png"),
	})
	require.NoError(t, err)
	requirePNG(t, out.Plot)
}

func TestPlotSummaryMissingColumns(t *testing.T) {
	dir := t.TempDir()
	stats := filepath.Join(dir, "stats_table.fits")
	writeTable(t, stats, []fitsio.Column{{Name: "md", Format: "D"}},
		[]interface{}{&struct {
			MD float64 `fits:"md"`
		}{0.1}})

	a := newTestActivities()
	_, err := a.PlotSummary(context.Background(), domain.PlotSummaryInput{
		StatsTable: domain.CatalogueRef{Path: stats},
		OutPlot:    filepath.Join(dir, "variables.png"),
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "missing column")
}

func TestPlotLightCurves(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	flux := filepath.Join(dir, "flux_table.fits")
	stats := filepath.Join(dir, "stats_table.fits")
	writeTable(t, flux, fluxCols, []interface{}{
		&fluxRow{UUID: "src-a", Flux1: 1.0, Err1: 0.1, Flux2: 1.4, Err2: 0.1},
		&fluxRow{UUID: "src-b", Flux1: 0.5, Err1: 0.05, Flux2: 0.45, Err2: 0.04},
	})
	writeTable(t, stats, statsCols, []interface{}{
		&statsRow{UUID: "src-a", M: 0.2, MD: 0.15, Chi: 40, Pval: 1e-6, Mean: 1.2},
		&statsRow{UUID: "src-b", M: 0.01, MD: -0.01, Chi: 9, Pval: 0.6, Mean: 0.5},
	})

	a := newTestActivities()
	outDir := filepath.Join(dir, "plots")

	out, err := a.PlotLightCurves(ctx, domain.PlotLightCurvesInput{
		FluxTable:    domain.CatalogueRef{Path: flux},
		StatsTable:   domain.CatalogueRef{Path: stats},
		GroupByEpoch: true,
		OutDir:       outDir,
	})
	require.NoError(t, err)
	require.Len(t, out.Plots, 2)
	assert.Contains(t, out.Plots, filepath.Join(outDir, "src-a.png"))
	for _, p := range out.Plots {
		requirePNG(t, p)
	}

	t.Run("existing plots are kept", func(t *testing.T) {
		marker := filepath.Join(outDir, "src-a.png")
		info, err := os.Stat(marker)
		require.NoError(t, err)

		again, err := a.PlotLightCurves(ctx, domain.PlotLightCurvesInput{
			FluxTable:  domain.CatalogueRef{Path: flux},
			StatsTable: domain.CatalogueRef{Path: stats},
			OutDir:     outDir,
		})
		require.NoError(t, err)
		assert.Len(t, again.Plots, 2)

		after, err := os.Stat(marker)
		require.NoError(t, err)
		assert.Equal(t, info.ModTime(), after.ModTime(), "resume must not re-render")
	})
}

func TestPlotTransients(t *testing.T) {
	ctx := context.Background()

	t.Run("renders candidate ellipses", func(t *testing.T) {
		dir := t.TempDir()
		cat := filepath.Join(dir, "transients.fits")
		writeTable(t, cat, candidateCols, []interface{}{
			&candidateRow{RA: 120.5, Dec: -35.2, A: 30, B: 20, PA: 45, Peak: 0.8},
			&candidateRow{RA: 120.9, Dec: -35.4, A: 25, B: 25, PA: 0, Peak: 0.1},
		})

		a := newTestActivities()
		out, err := a.PlotTransients(ctx, domain.PlotTransientsInput{
			Candidates: &domain.CatalogueRef{Path: cat},
			OutPlot:    filepath.Join(dir, "transients.png"),
		})
		require.NoError(t, err)
		requirePNG(t, out.Plot)
	})

	t.Run("nil candidates yields no plot", func(t *testing.T) {
		a := newTestActivities()
		out, err := a.PlotTransients(ctx, domain.PlotTransientsInput{
			OutPlot: filepath.Join(t.TempDir(), "transients.png"),
		})
		require.NoError(t, err)
		assert.Empty(t, out.Plot)
	})
}

func TestEpochColumns(t *testing.T) {
	dir := t.TempDir()
	flux := filepath.Join(dir, "flux_table.fits")

	type wideRow struct {
		F1  float64 `fits:"peak_flux_1"`
		F2  float64 `fits:"peak_flux_2"`
		F10 float64 `fits:"peak_flux_10"`
	}
	writeTable(t, flux, []fitsio.Column{
		{Name: "peak_flux_1", Format: "D"},
		{Name: "peak_flux_10", Format: "D"},
		{Name: "peak_flux_2", Format: "D"},
	}, []interface{}{&wideRow{1, 2, 3}})

	tab, err := fitstab.Read(flux)
	require.NoError(t, err)
	assert.Equal(t, []string{"peak_flux_1", "peak_flux_2", "peak_flux_10"},
		epochColumns(tab, "peak_flux"))
}

func TestEpochPositions(t *testing.T) {
	cols := []string{"peak_flux_0", "peak_flux_3", "peak_flux_7"}
	assert.Equal(t, []float64{0, 1, 2}, epochPositions(cols, true),
		"grouped curves pack samples at consecutive positions")
	assert.Equal(t, []float64{0, 3, 7}, epochPositions(cols, false),
		"ungrouped curves leave gaps at missing epochs")
}

func TestViridisReversed(t *testing.T) {
	low := viridisReversed(0)
	high := viridisReversed(1)
	assert.NotEqual(t, low, high)
	// Out-of-range inputs clamp instead of wrapping.
	assert.Equal(t, low, viridisReversed(-2))
	assert.Equal(t, high, viridisReversed(3))
}
