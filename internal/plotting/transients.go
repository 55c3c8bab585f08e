package plotting

import (
	"fmt"
	"math"

	"github.com/fogleman/gg"

	"github.com/ahrav/skywatch/internal/fitstab"
)

const (
	trWidth  = 800
	trHeight = 600
)

// renderTransients draws the transient candidates on the sky: one ellipse
// per candidate at its fitted position and shape, colour coded by peak
// flux. An empty candidate table still produces a plot so downstream
// consumers always find the file.
func renderTransients(cataloguePath, outPath string) error {
	var ras, decs, as, bs, pas, fluxes []float64
	if cataloguePath != "" {
		tab, err := fitstab.Read(cataloguePath)
		if err != nil {
			return fmt.Errorf("read candidate table: %w", err)
		}
		if tab.Len() > 0 {
			for _, col := range []string{"ra", "dec"} {
				if !tab.Has(col) {
					return fmt.Errorf("candidate table %s missing column %s", cataloguePath, col)
				}
			}
			if ras, err = tab.Floats("ra"); err != nil {
				return err
			}
			if decs, err = tab.Floats("dec"); err != nil {
				return err
			}
			as = optionalFloats(tab, "a")
			bs = optionalFloats(tab, "b")
			pas = optionalFloats(tab, "pa")
			fluxes = optionalFloats(tab, "peak_flux")
		}
	}

	dc := gg.NewContext(trWidth, trHeight)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	if len(ras) == 0 {
		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored("no transient candidates", trWidth/2, trHeight/2, 0.5, 0.5)
		return dc.SavePNG(outPath)
	}

	raLo, raHi, _ := finiteRange(ras)
	decLo, decHi, _ := finiteRange(decs)
	raPad := math.Max((raHi-raLo)*0.05, 0.01)
	decPad := math.Max((decHi-decLo)*0.05, 0.01)
	// RA increases to the left on the sky, so the x axis is flipped.
	f := newFrame(70, 40, trWidth-40, trHeight-70,
		-(raHi + raPad), -(raLo - raPad), decLo-decPad, decHi+decPad)

	colors := normalize(fluxes)
	for i := range ras {
		px, py := f.x(-ras[i]), f.y(decs[i])

		c := viridisReversed(0.5)
		if i < len(colors) {
			c = viridisReversed(colors[i])
		}
		dc.SetRGBA(c.R, c.G, c.B, 0.8)

		// Fitted shapes are in arcsec; scale onto the degree axes with a
		// floor so point sources stay visible.
		major := shapePixels(f, as, i)
		minor := shapePixels(f, bs, i)
		angle := 0.0
		if i < len(pas) {
			angle = pas[i] * math.Pi / 180
		}
		dc.Push()
		dc.RotateAbout(angle, px, py)
		dc.DrawEllipse(px, py, major, minor)
		dc.Pop()
		dc.Fill()
	}

	dc.SetRGB(0, 0, 0)
	f.drawAxes(dc, "RA (deg, increasing left)", "Dec (deg)")
	return dc.SavePNG(outPath)
}

// shapePixels converts a fitted axis length in arcsec to pixels, with a
// 3 px floor.
func shapePixels(f frame, axes []float64, i int) float64 {
	if i >= len(axes) || math.IsNaN(axes[i]) {
		return 3
	}
	deg := axes[i] / 3600
	px := deg / (f.xmax - f.xmin) * (f.px1 - f.px0)
	return math.Max(math.Abs(px), 3)
}

func optionalFloats(t *fitstab.Table, name string) []float64 {
	if !t.Has(name) {
		return nil
	}
	v, err := t.Floats(name)
	if err != nil {
		return nil
	}
	return v
}
