package meanimage

import (
	"fmt"
	"math"
	"os"

	"github.com/astrogo/fitsio"
	"golang.org/x/sync/errgroup"
)

// wcsCards are the header cards carried from the first input image onto the
// mean image so it keeps a usable coordinate frame and beam description.
var wcsCards = []string{
	"CRPIX1", "CRPIX2", "CRVAL1", "CRVAL2", "CDELT1", "CDELT2",
	"CTYPE1", "CTYPE2", "CUNIT1", "CUNIT2",
	"CD1_1", "CD1_2", "CD2_1", "CD2_2",
	"EQUINOX", "RADESYS", "BMAJ", "BMIN", "BPA", "BUNIT",
}

// loadedImage is one decoded input: its pixels as float64 and its axes.
type loadedImage struct {
	pixels []float64
	axes   []int
	cards  []fitsio.Card
}

// loadPixels reads the primary image HDU of one FITS file into float64
// pixels regardless of its on-disk bitpix.
func loadPixels(path string) (*loadedImage, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer r.Close()

	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("fits open %s: %w", path, err)
	}
	defer f.Close()

	img, ok := f.HDU(0).(fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%s: primary HDU is not an image", path)
	}
	hdr := img.Header()
	axes := hdr.Axes()
	n := 1
	for _, ax := range axes {
		if ax > 0 {
			n *= ax
		}
	}

	pixels := make([]float64, n)
	switch hdr.Bitpix() {
	case -64:
		if err := img.Read(&pixels); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	case -32:
		raw := make([]float32, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for i, v := range raw {
			pixels[i] = float64(v)
		}
	case 16:
		raw := make([]int16, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for i, v := range raw {
			pixels[i] = float64(v)
		}
	case 32:
		raw := make([]int32, n)
		if err := img.Read(&raw); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		for i, v := range raw {
			pixels[i] = float64(v)
		}
	default:
		return nil, fmt.Errorf("%s: unsupported bitpix %d", path, hdr.Bitpix())
	}

	var cards []fitsio.Card
	for _, name := range wcsCards {
		if c := hdr.Get(name); c != nil {
			cards = append(cards, *c)
		}
	}

	return &loadedImage{pixels: pixels, axes: axes, cards: cards}, nil
}

// buildMean averages the input images pixel-wise and writes the result as a
// 32-bit float FITS image carrying the first input's coordinate frame.
// Blank (NaN) pixels are excluded per-position: a pixel's mean is taken over
// the epochs where it was observed, and positions observed nowhere stay NaN.
func buildMean(paths []string, outPath string) error {
	loaded := make([]*loadedImage, len(paths))

	var g errgroup.Group
	for i, path := range paths {
		g.Go(func() error {
			img, err := loadPixels(path)
			if err != nil {
				return err
			}
			loaded[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	first := loaded[0]
	for i, img := range loaded[1:] {
		if len(img.pixels) != len(first.pixels) {
			return fmt.Errorf("%s: pixel grid differs from %s", paths[i+1], paths[0])
		}
	}

	sum := make([]float64, len(first.pixels))
	count := make([]int32, len(first.pixels))
	for _, img := range loaded {
		for i, v := range img.pixels {
			if math.IsNaN(v) {
				continue
			}
			sum[i] += v
			count[i]++
		}
	}

	mean := make([]float32, len(sum))
	for i := range sum {
		if count[i] == 0 {
			mean[i] = float32(math.NaN())
			continue
		}
		mean[i] = float32(sum[i] / float64(count[i]))
	}

	return writeFloatImage(outPath, first.axes, first.cards, mean)
}

// writeFloatImage writes pixels as the primary HDU of a new FITS file.
func writeFloatImage(path string, axes []int, cards []fitsio.Card, pixels []float32) error {
	w, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer w.Close()

	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("fits create %s: %w", path, err)
	}
	defer f.Close()

	img := fitsio.NewImage(-32, axes)
	defer img.Close()

	if len(cards) > 0 {
		if err := img.Header().Append(cards...); err != nil {
			return fmt.Errorf("header %s: %w", path, err)
		}
	}
	if err := img.Write(&pixels); err != nil {
		return fmt.Errorf("write pixels %s: %w", path, err)
	}
	if err := f.Write(img); err != nil {
		return fmt.Errorf("write hdu %s: %w", path, err)
	}
	return nil
}
