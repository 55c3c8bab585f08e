package fitstab

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/astrogo/fitsio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsRow struct {
	UUID string  `fits:"uuid"`
	M    float64 `fits:"m"`
	MD   float64 `fits:"md"`
	Flux float32 `fits:"peak_flux_1"`
	N    int32   `fits:"n"`
}

func writeStatsTable(t *testing.T, path string, rows []statsRow) {
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

	tbl, err := fitsio.NewTable("stats", []fitsio.Column{
		{Name: "uuid", Format: "24A"},
		{Name: "m", Format: "D"},
		{Name: "md", Format: "D"},
		{Name: "peak_flux_1", Format: "E"},
		{Name: "n", Format: "J"},
	}, fitsio.BINARY_TBL)
	require.NoError(t, err)
	defer tbl.Close()

	for i := range rows {
		require.NoError(t, tbl.Write(&rows[i]))
	}
	require.NoError(t, f.Write(tbl))
}

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats_table.fits")
	writeStatsTable(t, path, []statsRow{
		{UUID: "src-a", M: 0.12, MD: 0.08, Flux: 1.5, N: 3},
		{UUID: "src-b", M: -0.04, MD: -0.02, Flux: 0.25, N: 5},
	})

	tab, err := Read(path)
	require.NoError(t, err)

	t.Run("shape and columns", func(t *testing.T) {
		assert.Equal(t, 2, tab.Len())
		assert.Equal(t, []string{"uuid", "m", "md", "peak_flux_1", "n"}, tab.Columns())
		assert.True(t, tab.Has("md"))
		assert.False(t, tab.Has("pval_peak_flux"))
	})

	t.Run("numeric columns as float64", func(t *testing.T) {
		m, err := tab.Floats("m")
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{0.12, -0.04}, m, 1e-9)

		flux, err := tab.Floats("peak_flux_1")
		require.NoError(t, err)
		assert.InDeltaSlice(t, []float64{1.5, 0.25}, flux, 1e-6)

		n, err := tab.Floats("n")
		require.NoError(t, err)
		assert.Equal(t, []float64{3, 5}, n)
	})

	t.Run("string columns", func(t *testing.T) {
		uuids, err := tab.Strings("uuid")
		require.NoError(t, err)
		assert.Equal(t, []string{"src-a", "src-b"}, uuids)

		_, err = tab.Floats("uuid")
		assert.Error(t, err, "string column is not numeric")
	})

	t.Run("prefix discovery skips string columns", func(t *testing.T) {
		assert.Equal(t, []string{"peak_flux_1"}, tab.ColumnsWithPrefix("peak_flux"))
		assert.Empty(t, tab.ColumnsWithPrefix("err_peak_flux"))
	})
}

func TestReadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Read(filepath.Join(t.TempDir(), "absent.fits"))
		assert.Error(t, err)
	})

	t.Run("not a fits file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "junk.fits")
		require.NoError(t, os.WriteFile(path, []byte("not fits"), 0o644))
		_, err := Read(path)
		assert.Error(t, err)
	})
}

func TestFormatKind(t *testing.T) {
	for format, want := range map[string]byte{
		"E": 'E', "1D": 'D', "24A": 'A', "J": 'J', "K": 'K', "I": 'I', "L": 'L',
	} {
		kind, err := formatKind(format)
		require.NoError(t, err, format)
		assert.Equal(t, want, kind)
	}

	_, err := formatKind("3X")
	assert.Error(t, err)
	_, err = formatKind("")
	assert.Error(t, err)
}
