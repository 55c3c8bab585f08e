package plotting

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"

	"github.com/ahrav/skywatch/internal/fitstab"
)

const (
	summaryWidth  = 500
	summaryHeight = 800

	// Sources below pvalThreshold in log10(p) and above mdThreshold in
	// debiased modulation index are flagged as variable.
	pvalThreshold = 0.05
	mdThreshold   = 0.05
)

// renderSummary draws the variability summary: debiased modulation index
// against log10 of the peak-flux p-value for every monitored source, colour
// coded by log10 of the mean peak flux. The unshaded corner holds the
// variable candidates.
func renderSummary(statsPath, outPath string) error {
	stats, err := fitstab.Read(statsPath)
	if err != nil {
		return fmt.Errorf("read stats table: %w", err)
	}
	for _, col := range []string{"pval_peak_flux", "md", "mean_peak_flux"} {
		if !stats.Has(col) {
			return fmt.Errorf("stats table %s missing column %s", statsPath, col)
		}
	}
	pvals, err := stats.Floats("pval_peak_flux")
	if err != nil {
		return err
	}
	md, err := stats.Floats("md")
	if err != nil {
		return err
	}
	mean, err := stats.Floats("mean_peak_flux")
	if err != nil {
		return err
	}

	// Keep only rows with a usable p-value, mirroring the pval > 0 cut
	// applied when the stats were assembled.
	var xs, ys, cs []float64
	for i, p := range pvals {
		if !(p > 0) || math.IsNaN(md[i]) {
			continue
		}
		xs = append(xs, md[i])
		ys = append(ys, math.Log10(p))
		cs = append(cs, math.Log10(math.Abs(mean[i])))
	}

	f := newFrame(70, 40, summaryWidth-40, summaryHeight-70, -0.3, 0.3, -11, 1.001)

	dc := gg.NewContext(summaryWidth, summaryHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	// Shade the non-variable regions: everything left of the modulation
	// threshold, and the high p-value band to its right.
	dc.SetRGBA(0, 0, 0, 0.2)
	dc.DrawRectangle(f.x(-0.3), f.y(1.001), f.x(mdThreshold)-f.x(-0.3), f.y(-11)-f.y(1.001))
	dc.Fill()
	dc.DrawRectangle(f.x(mdThreshold), f.y(1.001), f.x(0.3)-f.x(mdThreshold), f.y(-3)-f.y(1.001))
	dc.Fill()

	colors := normalize(cs)
	for i := range xs {
		px, py := f.x(xs[i]), f.y(clamp(ys[i], -11, 1.001))
		c := viridisReversed(colors[i])
		dc.SetRGB(c.R, c.G, c.B)
		dc.DrawCircle(px, py, 4)
		dc.Fill()
	}

	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawLine(f.x(-0.3), f.y(-3), f.x(0.3), f.y(-3))
	dc.DrawLine(f.x(mdThreshold), f.y(-11), f.x(mdThreshold), f.y(1.001))
	dc.Stroke()

	dc.DrawStringAnchored("variable", f.x(0.1), f.y(-5), 0, 0.5)
	dc.DrawStringAnchored("not variable", f.x(-0.25), f.y(-5), 0, 0.5)

	f.drawAxes(dc, "Debiased modulation index (md)", "log(p_val)")
	return dc.SavePNG(outPath)
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
