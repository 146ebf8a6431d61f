package verify

import "time"

// VisualStatus is the visual-diff outcome for one route.
type VisualStatus string

const (
	// VisualSkipped: no reference image for this route, or no design
	// dir configured. Skips are not failures.
	VisualSkipped VisualStatus = "skipped"

	// VisualOK: pixel comparison ran; the report carries the ratio.
	VisualOK VisualStatus = "ok"

	// VisualFail: size mismatch or the diff step itself could not run.
	VisualFail VisualStatus = "fail"
)

// RouteResult is the check result for one route.
type RouteResult struct {
	Route       string `json:"route"`
	ArtifactKey string `json:"artifact_key"`

	// AssertFailures counts the baseline main-region check, spec rule
	// violations, navigation failures, and capture failures.
	AssertFailures int `json:"assert_failures"`

	Visual        VisualStatus `json:"visual"`
	VisualSummary string       `json:"visual_summary,omitempty"`

	// ArtifactsWritten is true when the screenshot/HTML pair exists.
	ArtifactsWritten bool `json:"artifacts_written"`
}

// Passed reports whether this route is clean.
func (r RouteResult) Passed() bool {
	return r.AssertFailures == 0 && r.Visual != VisualFail
}

// Result aggregates a whole run.
type Result struct {
	RunID      string        `json:"run_id"`
	BaseURL    string        `json:"base_url"`
	OutDir     string        `json:"out_dir"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Routes     []RouteResult `json:"routes"`
}

// AssertFailures totals assertion failures across routes.
func (r *Result) AssertFailures() int {
	n := 0
	for _, rt := range r.Routes {
		n += rt.AssertFailures
	}
	return n
}

// VisualFailures counts routes whose visual diff explicitly failed.
func (r *Result) VisualFailures() int {
	n := 0
	for _, rt := range r.Routes {
		if rt.Visual == VisualFail {
			n++
		}
	}
	return n
}

// OK reports whether every route passed: zero assertion failures and no
// explicit visual failure. Skipped diffs do not count against the run.
func (r *Result) OK() bool {
	for _, rt := range r.Routes {
		if !rt.Passed() {
			return false
		}
	}
	return true
}
