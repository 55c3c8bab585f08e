// Package plotting renders the pipeline's diagnostic plots natively: the
// per-source light curves, the variability summary, and the transient
// candidate chart. Rendering is deliberately simple raster drawing; the
// plots are operator diagnostics, not publication figures.
package plotting

import (
	"math"
	"strconv"

	"github.com/fogleman/gg"
	colorful "github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/floats"
)

// frame maps data coordinates onto a pixel viewport and draws the
// surrounding axes. y grows upward in data space, downward in pixels.
type frame struct {
	// Pixel viewport.
	px0, py0, px1, py1 float64
	// Data limits.
	xmin, xmax, ymin, ymax float64
}

// newFrame builds a frame with the given pixel viewport and data limits,
// padding degenerate ranges so a flat series still renders.
func newFrame(px0, py0, px1, py1, xmin, xmax, ymin, ymax float64) frame {
	if xmax <= xmin {
		xmax = xmin + 1
	}
	if ymax <= ymin {
		pad := math.Max(math.Abs(ymin)*0.1, 1e-12)
		ymin -= pad
		ymax = ymin + 2*pad
	}
	return frame{px0: px0, py0: py0, px1: px1, py1: py1,
		xmin: xmin, xmax: xmax, ymin: ymin, ymax: ymax}
}

// x maps a data x coordinate to pixels.
func (f frame) x(v float64) float64 {
	return f.px0 + (v-f.xmin)/(f.xmax-f.xmin)*(f.px1-f.px0)
}

// y maps a data y coordinate to pixels.
func (f frame) y(v float64) float64 {
	return f.py1 - (v-f.ymin)/(f.ymax-f.ymin)*(f.py1-f.py0)
}

// drawAxes strokes the viewport box with simple min/mid/max tick labels.
func (f frame) drawAxes(dc *gg.Context, xlabel, ylabel string) {
	dc.SetRGB(0, 0, 0)
	dc.SetLineWidth(1)
	dc.DrawRectangle(f.px0, f.py0, f.px1-f.px0, f.py1-f.py0)
	dc.Stroke()

	for _, t := range []float64{0, 0.5, 1} {
		xv := f.xmin + t*(f.xmax-f.xmin)
		yv := f.ymin + t*(f.ymax-f.ymin)
		dc.DrawStringAnchored(formatTick(xv), f.x(xv), f.py1+14, 0.5, 0.5)
		dc.DrawStringAnchored(formatTick(yv), f.px0-6, f.y(yv), 1, 0.5)
	}

	dc.DrawStringAnchored(xlabel, (f.px0+f.px1)/2, f.py1+30, 0.5, 0.5)
	dc.Push()
	dc.RotateAbout(-math.Pi/2, f.px0-42, (f.py0+f.py1)/2)
	dc.DrawStringAnchored(ylabel, f.px0-42, (f.py0+f.py1)/2, 0.5, 0.5)
	dc.Pop()
}

// formatTick renders a tick value compactly.
func formatTick(v float64) string {
	av := math.Abs(v)
	switch {
	case av != 0 && (av < 0.01 || av >= 10000):
		return trimFloat(v, 'e', 1)
	case av < 1:
		return trimFloat(v, 'f', 3)
	default:
		return trimFloat(v, 'f', 1)
	}
}

func trimFloat(v float64, format byte, prec int) string {
	return strconv.FormatFloat(v, format, prec, 64)
}

// viridisStops approximates the viridis colormap; the original plots used
// its reversed form for flux colour-coding.
var viridisStops = []colorful.Color{
	{R: 0.267, G: 0.005, B: 0.329},
	{R: 0.254, G: 0.265, B: 0.530},
	{R: 0.164, G: 0.471, B: 0.558},
	{R: 0.128, G: 0.567, B: 0.551},
	{R: 0.267, G: 0.749, B: 0.441},
	{R: 0.741, G: 0.873, B: 0.150},
	{R: 0.993, G: 0.906, B: 0.144},
}

// viridisReversed maps t in [0,1] onto the reversed viridis gradient.
func viridisReversed(t float64) colorful.Color {
	t = 1 - math.Min(math.Max(t, 0), 1)
	pos := t * float64(len(viridisStops)-1)
	i := int(pos)
	if i >= len(viridisStops)-1 {
		return viridisStops[len(viridisStops)-1]
	}
	return viridisStops[i].BlendLuv(viridisStops[i+1], pos-float64(i))
}

// normalize rescales values onto [0,1] over their finite range.
func normalize(vals []float64) []float64 {
	finite := make([]float64, 0, len(vals))
	for _, v := range vals {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	out := make([]float64, len(vals))
	if len(finite) == 0 {
		return out
	}
	lo, hi := floats.Min(finite), floats.Max(finite)
	if hi <= lo {
		return out
	}
	for i, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = 0
			continue
		}
		out[i] = (v - lo) / (hi - lo)
	}
	return out
}

// finiteRange returns the min and max over the finite entries, with a flag
// for whether any finite entry existed.
func finiteRange(vals []float64) (lo, hi float64, ok bool) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
		ok = true
	}
	return lo, hi, ok
}
