package imgdiff

import (
	"encoding/json"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func TestCompare_IdenticalImages(t *testing.T) {
	// WHAT: Two identical images yield zero mismatches and ratio zero.
	// WHY: The differ must not flag anti-aliasing-free identical captures.
	img := solid(10, 8, color.NRGBA{R: 40, G: 80, B: 120, A: 255})

	report, diff := Compare(img, img, Options{})
	if !report.OK {
		t.Fatalf("expected ok report, got %+v", report)
	}
	if report.MismatchedPixels != 0 {
		t.Fatalf("mismatched pixels: got %d, want 0", report.MismatchedPixels)
	}
	if report.MismatchRatio != 0 {
		t.Fatalf("mismatch ratio: got %v, want 0", report.MismatchRatio)
	}
	if report.TotalPixels != 80 {
		t.Fatalf("total pixels: got %d, want 80", report.TotalPixels)
	}
	if diff == nil {
		t.Fatal("expected a difference image for comparable inputs")
	}
}

func TestCompare_SizeMismatch(t *testing.T) {
	// WHAT: Images of different dimensions report size_mismatch and skip
	// pixel comparison entirely.
	// WHY: Pixel counts are meaningless across different viewports.
	a := solid(10, 10, color.NRGBA{A: 255})
	b := solid(10, 12, color.NRGBA{A: 255})

	report, diff := Compare(a, b, Options{})
	if report.OK {
		t.Fatal("expected failing report")
	}
	if report.Reason != ReasonSizeMismatch {
		t.Fatalf("reason: got %q, want %q", report.Reason, ReasonSizeMismatch)
	}
	if report.Expected == nil || report.Actual == nil {
		t.Fatal("expected both dimension blocks in report")
	}
	if report.Expected.Height != 10 || report.Actual.Height != 12 {
		t.Fatalf("dimensions: got expected=%+v actual=%+v", report.Expected, report.Actual)
	}
	if diff != nil {
		t.Fatal("no difference image should be rendered on size mismatch")
	}
}

func TestCompare_CountsChangedPixels(t *testing.T) {
	a := solid(4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	b := solid(4, 4, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
	// Flip three pixels to black: far outside any tolerance.
	b.SetNRGBA(0, 0, color.NRGBA{A: 255})
	b.SetNRGBA(1, 2, color.NRGBA{A: 255})
	b.SetNRGBA(3, 3, color.NRGBA{A: 255})

	report, diff := Compare(a, b, Options{})
	if report.MismatchedPixels != 3 {
		t.Fatalf("mismatched pixels: got %d, want 3", report.MismatchedPixels)
	}
	want := 3.0 / 16.0
	if report.MismatchRatio != want {
		t.Fatalf("mismatch ratio: got %v, want %v", report.MismatchRatio, want)
	}

	// Mismatched pixels are painted solid red in the difference image.
	nrgba := diff.(*image.NRGBA)
	if got := nrgba.NRGBAAt(0, 0); got.R != 0xff || got.G != 0 || got.B != 0 {
		t.Fatalf("diff pixel (0,0): got %+v, want red", got)
	}
}

func TestCompare_ToleranceAbsorbsSmallDeltas(t *testing.T) {
	// WHAT: Per-channel deltas under the tolerance do not count.
	// WHY: Screenshot anti-aliasing must not fail visual comparison.
	a := solid(5, 5, color.NRGBA{R: 100, G: 100, B: 100, A: 255})
	b := solid(5, 5, color.NRGBA{R: 110, G: 95, B: 108, A: 255})

	report, _ := Compare(a, b, Options{Tolerance: 0.1})
	if report.MismatchedPixels != 0 {
		t.Fatalf("mismatched pixels: got %d, want 0 within tolerance", report.MismatchedPixels)
	}

	strict, _ := Compare(a, b, Options{Tolerance: 0.001})
	if strict.MismatchedPixels != 25 {
		t.Fatalf("strict tolerance: got %d, want 25", strict.MismatchedPixels)
	}
}

func TestCompare_EmptyImages(t *testing.T) {
	// WHAT: Degenerate zero-pixel images produce ratio 0, not a division fault.
	a := image.NewNRGBA(image.Rect(0, 0, 0, 0))
	b := image.NewNRGBA(image.Rect(0, 0, 0, 0))

	report, _ := Compare(a, b, Options{})
	if !report.OK {
		t.Fatalf("expected ok, got %+v", report)
	}
	if report.MismatchRatio != 0 || report.TotalPixels != 0 {
		t.Fatalf("degenerate report: got %+v", report)
	}
}

func TestCompareFiles_WritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.png")
	bPath := filepath.Join(dir, "b.png")
	diffPath := filepath.Join(dir, "diff.png")
	reportPath := filepath.Join(dir, "diff.json")

	a := solid(6, 6, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	b := solid(6, 6, color.NRGBA{R: 200, G: 10, B: 10, A: 255})
	if err := writePNG(aPath, a); err != nil {
		t.Fatal(err)
	}
	if err := writePNG(bPath, b); err != nil {
		t.Fatal(err)
	}

	report, err := CompareFiles(aPath, bPath, diffPath, reportPath, Options{})
	if err != nil {
		t.Fatalf("compare files: %v", err)
	}
	if !report.OK || report.MismatchedPixels != 0 {
		t.Fatalf("unexpected report: %+v", report)
	}

	if _, err := os.Stat(diffPath); err != nil {
		t.Fatalf("diff image not written: %v", err)
	}
	data, err := os.ReadFile(reportPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if decoded.TotalPixels != 36 {
		t.Fatalf("round-tripped total pixels: got %d", decoded.TotalPixels)
	}
}

func TestCompareFiles_SizeMismatchStillWritesReport(t *testing.T) {
	// WHAT: On size mismatch the report artifact exists, the diff image does not.
	// WHY: Downstream tooling relies on the report path always existing.
	dir := t.TempDir()
	aPath := filepath.Join(dir, "a.png")
	bPath := filepath.Join(dir, "b.png")
	diffPath := filepath.Join(dir, "diff.png")
	reportPath := filepath.Join(dir, "diff.json")

	if err := writePNG(aPath, solid(4, 4, color.NRGBA{A: 255})); err != nil {
		t.Fatal(err)
	}
	if err := writePNG(bPath, solid(8, 4, color.NRGBA{A: 255})); err != nil {
		t.Fatal(err)
	}

	report, err := CompareFiles(aPath, bPath, diffPath, reportPath, Options{})
	if err != nil {
		t.Fatalf("compare files: %v", err)
	}
	if report.OK || report.Reason != ReasonSizeMismatch {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, err := os.Stat(reportPath); err != nil {
		t.Fatalf("report must exist on size mismatch: %v", err)
	}
	if _, err := os.Stat(diffPath); !os.IsNotExist(err) {
		t.Fatalf("diff image should not exist on size mismatch, stat err=%v", err)
	}
}
