// Package imgdiff computes pixel-level differences between two raster
// images of the same page. It reports a mismatch count and ratio and
// renders a difference image with mismatched pixels highlighted.
//
// The comparison itself carries no pass threshold: two images of equal
// dimensions always produce an ok report, and deciding whether a given
// mismatch ratio is acceptable is left to the caller. The only hard
// failure is a dimension mismatch, which makes pixel comparison
// meaningless.
package imgdiff

import (
	"image"
	"image/color"
)

// ReasonSizeMismatch is the failure reason reported when the two images
// do not share the same width and height.
const ReasonSizeMismatch = "size_mismatch"

// DefaultTolerance is the per-channel tolerance fraction applied when
// Options.Tolerance is zero. Tuned so anti-aliasing noise on text edges
// does not count as a mismatch.
const DefaultTolerance = 0.1

// Dimensions describes an image size in a report.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Report is the outcome of a comparison. It marshals to the diff report
// artifact written next to the difference image.
type Report struct {
	OK               bool    `json:"ok"`
	Reason           string  `json:"reason,omitempty"`
	MismatchedPixels int     `json:"mismatchedPixels"`
	TotalPixels      int     `json:"totalPixels"`
	MismatchRatio    float64 `json:"mismatchRatio"`

	Expected *Dimensions `json:"expected,omitempty"`
	Actual   *Dimensions `json:"actual,omitempty"`
}

// Options configures a comparison.
type Options struct {
	// Tolerance is the per-channel tolerance as a fraction of the full
	// channel range. A pixel mismatches when any channel differs by more
	// than Tolerance*255. Zero means DefaultTolerance.
	Tolerance float64
}

// Compare diffs expected against actual and renders a difference image.
//
// When dimensions differ no pixel comparison is attempted: the report
// carries ReasonSizeMismatch plus both dimensions, and the returned
// difference image is nil. When dimensions match the report is always
// ok; the caller interprets the ratio.
func Compare(expected, actual image.Image, opts Options) (Report, image.Image) {
	eb := expected.Bounds()
	ab := actual.Bounds()

	if eb.Dx() != ab.Dx() || eb.Dy() != ab.Dy() {
		return Report{
			OK:     false,
			Reason: ReasonSizeMismatch,
			Expected: &Dimensions{Width: eb.Dx(), Height: eb.Dy()},
			Actual:   &Dimensions{Width: ab.Dx(), Height: ab.Dy()},
		}, nil
	}

	tol := opts.Tolerance
	if tol <= 0 {
		tol = DefaultTolerance
	}
	// Channel values from RGBA() are 16-bit.
	limit := uint32(tol * 0xffff)

	w, h := eb.Dx(), eb.Dy()
	diff := image.NewNRGBA(image.Rect(0, 0, w, h))

	mismatched := 0
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			ep := expected.At(eb.Min.X+x, eb.Min.Y+y)
			ap := actual.At(ab.Min.X+x, ab.Min.Y+y)

			if pixelMatches(ep, ap, limit) {
				// Faded grayscale of the actual image keeps page
				// structure visible behind the highlights.
				diff.Set(x, y, fade(ap))
				continue
			}
			mismatched++
			diff.Set(x, y, color.NRGBA{R: 0xff, A: 0xff})
		}
	}

	total := w * h
	ratio := 0.0
	if total > 0 {
		ratio = float64(mismatched) / float64(total)
	}

	return Report{
		OK:               true,
		MismatchedPixels: mismatched,
		TotalPixels:      total,
		MismatchRatio:    ratio,
	}, diff
}

func pixelMatches(a, b color.Color, limit uint32) bool {
	ar, ag, ab2, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return within(ar, br, limit) &&
		within(ag, bg, limit) &&
		within(ab2, bb, limit) &&
		within(aa, ba, limit)
}

func within(a, b, limit uint32) bool {
	if a > b {
		return a-b <= limit
	}
	return b-a <= limit
}

// fade maps a pixel to a washed-out grayscale value.
func fade(c color.Color) color.NRGBA {
	r, g, b, _ := c.RGBA()
	// Luma, then pushed toward white.
	y := (299*r + 587*g + 114*b) / 1000
	v := uint8(0xb0 + (y>>8)*0x4f/0xff)
	return color.NRGBA{R: v, G: v, B: v, A: 0xff}
}
