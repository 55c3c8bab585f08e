package plotting

import (
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/fogleman/gg"

	"github.com/ahrav/skywatch/internal/fitstab"
)

const (
	lcWidth  = 640
	lcHeight = 480
)

// sourceStats carries the variability numbers annotated on a light curve.
type sourceStats struct {
	m     float64
	md    float64
	chisq float64
}

// renderLightCurves draws one errorbar plot per source from the joined flux
// table, annotated with that source's statistics. Plots that already exist
// on disk are left alone so re-runs only fill in the gaps. Returns the paths
// of all plots, pre-existing or not.
//
// groupByEpoch packs the samples at consecutive x positions; when false
// each sample sits at its epoch identifier, so dropped epochs leave gaps.
func renderLightCurves(fluxPath, statsPath, outDir string, groupByEpoch bool, exists func(string) bool) ([]string, error) {
	flux, err := fitstab.Read(fluxPath)
	if err != nil {
		return nil, fmt.Errorf("read flux table: %w", err)
	}
	stats, err := fitstab.Read(statsPath)
	if err != nil {
		return nil, fmt.Errorf("read stats table: %w", err)
	}

	fluxCols := epochColumns(flux, "peak_flux")
	errCols := epochColumns(flux, "err_peak_flux")
	if len(fluxCols) == 0 {
		return nil, fmt.Errorf("flux table %s has no peak_flux columns", fluxPath)
	}

	names := sourceNames(flux)
	byName, err := statsByName(stats)
	if err != nil {
		return nil, err
	}
	xs := epochPositions(fluxCols, groupByEpoch)

	series := make([][]float64, len(fluxCols))
	for i, col := range fluxCols {
		if series[i], err = flux.Floats(col); err != nil {
			return nil, fmt.Errorf("flux table %s: %w", fluxPath, err)
		}
	}
	errSeries := make([][]float64, len(errCols))
	for i, col := range errCols {
		if errSeries[i], err = flux.Floats(col); err != nil {
			return nil, fmt.Errorf("flux table %s: %w", fluxPath, err)
		}
	}

	plots := make([]string, 0, flux.Len())
	for row := 0; row < flux.Len(); row++ {
		name := names[row]
		path := filepath.Join(outDir, name+".png")
		plots = append(plots, path)
		if exists != nil && exists(path) {
			continue
		}

		ys := make([]float64, len(series))
		for i := range series {
			ys[i] = series[i][row]
		}
		yerrs := make([]float64, len(series))
		for i := range errSeries {
			yerrs[i] = math.Abs(errSeries[i][row])
		}
		if err := renderLightCurve(path, name, xs, ys, yerrs, byName[name]); err != nil {
			return nil, err
		}
	}
	return plots, nil
}

// renderLightCurve draws a single flux-vs-epoch errorbar plot.
func renderLightCurve(path, title string, xs, ys, yerrs []float64, st sourceStats) error {
	lo, hi, ok := finiteRange(ys)
	if !ok {
		lo, hi = 0, 1
	}
	span := math.Max(hi-lo, 1e-12)
	xlo, xhi := xs[0], xs[len(xs)-1]
	f := newFrame(70, 50, lcWidth-30, lcHeight-60,
		xlo-0.5, xhi+0.5, lo-0.15*span, hi+0.15*span)

	dc := gg.NewContext(lcWidth, lcHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	f.drawAxes(dc, "Epoch", "Flux Density (Jy/Beam)")
	dc.DrawStringAnchored(title, lcWidth/2, 25, 0.5, 0.5)

	dc.SetRGB(0.12, 0.47, 0.71)
	dc.SetLineWidth(1.5)
	var prevSet bool
	var prevX, prevY float64
	for i, v := range ys {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			prevSet = false
			continue
		}
		px, py := f.x(xs[i]), f.y(v)
		if prevSet {
			dc.DrawLine(prevX, prevY, px, py)
			dc.Stroke()
		}
		prevX, prevY, prevSet = px, py, true

		if e := yerrs[i]; e > 0 && !math.IsNaN(e) && !math.IsInf(e, 0) {
			top, bot := f.y(v+e), f.y(v-e)
			dc.DrawLine(px, top, px, bot)
			dc.DrawLine(px-3, top, px+3, top)
			dc.DrawLine(px-3, bot, px+3, bot)
			dc.Stroke()
		}
		dc.DrawCircle(px, py, 3)
		dc.Fill()
	}

	dc.SetRGB(0, 0, 0)
	label := fmt.Sprintf("m=%5.3f\nmd=%4.2f\nchisq=%4.1f", st.m, st.md, st.chisq)
	ty := 60.0
	for _, line := range strings.Split(label, "\n") {
		dc.DrawString(line, lcWidth-140, ty)
		ty += 16
	}
	return dc.SavePNG(path)
}

// epochColumns returns the columns sharing a prefix, ordered by their
// numeric epoch suffix so _10 sorts after _2.
func epochColumns(t *fitstab.Table, prefix string) []string {
	cols := t.ColumnsWithPrefix(prefix)
	sort.Slice(cols, func(i, j int) bool {
		a, b := epochSuffix(cols[i]), epochSuffix(cols[j])
		if a != b {
			return a < b
		}
		return cols[i] < cols[j]
	})
	return cols
}

// epochPositions picks the x position of each epoch column: consecutive
// when grouped, the column's own epoch identifier otherwise.
func epochPositions(cols []string, grouped bool) []float64 {
	xs := make([]float64, len(cols))
	for i, col := range cols {
		if grouped {
			xs[i] = float64(i)
		} else {
			xs[i] = float64(epochSuffix(col))
		}
	}
	return xs
}

func epochSuffix(col string) int {
	idx := strings.LastIndex(col, "_")
	if idx < 0 {
		return 0
	}
	n, err := strconv.Atoi(col[idx+1:])
	if err != nil {
		return 0
	}
	return n
}

// sourceNames picks the uuid column when present, falling back to row index.
func sourceNames(t *fitstab.Table) []string {
	if t.Has("uuid") {
		if names, err := t.Strings("uuid"); err == nil {
			return names
		}
	}
	names := make([]string, t.Len())
	for i := range names {
		names[i] = fmt.Sprintf("source_%04d", i)
	}
	return names
}

// statsByName indexes per-source statistics by uuid. Missing columns yield
// zero-valued stats rather than failing the whole plot run.
func statsByName(t *fitstab.Table) (map[string]sourceStats, error) {
	out := make(map[string]sourceStats, t.Len())
	if !t.Has("uuid") {
		return out, nil
	}
	names, err := t.Strings("uuid")
	if err != nil {
		return nil, fmt.Errorf("stats table: %w", err)
	}
	col := func(name string) []float64 {
		if !t.Has(name) {
			return nil
		}
		v, err := t.Floats(name)
		if err != nil {
			return nil
		}
		return v
	}
	m, md, chisq := col("m"), col("md"), col("chisq_peak_flux")
	for i, name := range names {
		var st sourceStats
		if i < len(m) {
			st.m = m[i]
		}
		if i < len(md) {
			st.md = md[i]
		}
		if i < len(chisq) {
			st.chisq = chisq[i]
		}
		out[name] = st
	}
	return out, nil
}
