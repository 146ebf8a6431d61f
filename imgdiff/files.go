package imgdiff

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
)

// CompareFiles loads two PNG files, compares them, and writes the report
// and (when comparable) the difference image to the given paths.
//
// The report file is written even on size mismatch so downstream tooling
// can rely on it always existing. The step is idempotent: re-running with
// the same inputs overwrites the same outputs.
func CompareFiles(expectedPath, actualPath, diffPath, reportPath string, opts Options) (Report, error) {
	expected, err := loadPNG(expectedPath)
	if err != nil {
		return Report{}, fmt.Errorf("imgdiff: load expected: %w", err)
	}
	actual, err := loadPNG(actualPath)
	if err != nil {
		return Report{}, fmt.Errorf("imgdiff: load actual: %w", err)
	}

	report, diff := Compare(expected, actual, opts)

	if diff != nil {
		if err := writePNG(diffPath, diff); err != nil {
			return report, fmt.Errorf("imgdiff: write diff image: %w", err)
		}
	}
	if err := WriteReport(reportPath, report); err != nil {
		return report, err
	}
	return report, nil
}

// WriteReport marshals a report to its JSON artifact path.
func WriteReport(path string, report Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("imgdiff: marshal report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("imgdiff: write report: %w", err)
	}
	return nil
}

func loadPNG(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
