// Package artifact derives filesystem-safe names for per-route artifacts
// and provides a root-scoped store for writing them.
package artifact

import "strings"

// RootKey is the reserved key for the empty route.
const RootKey = "root"

var keyReplacer = strings.NewReplacer("/", "_", "?", "_", "=", "_", "&", "_")

// Key derives the filesystem-safe artifact key for a route. Path and
// query delimiters collapse to underscores; the empty route maps to
// RootKey. Deterministic: the same route always yields the same key.
func Key(route string) string {
	if route == "" {
		return RootKey
	}
	return keyReplacer.Replace(route)
}

// Artifact filenames are a pure function of (key, kind). Re-running a
// route overwrites its own files and never collides with another route.

// ScreenshotFile names the full-page screenshot for a key.
func ScreenshotFile(key string) string { return "page_" + key + ".png" }

// SnapshotFile names the serialized HTML snapshot for a key.
func SnapshotFile(key string) string { return "page_" + key + ".html" }

// DiffImageFile names the visual difference image for a key.
func DiffImageFile(key string) string { return "diff_page_" + key + ".png" }

// DiffReportFile names the visual diff report for a key.
func DiffReportFile(key string) string { return "diff_page_" + key + ".json" }
