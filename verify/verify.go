// Package verify implements the preview verification pipeline: it loads
// each route of a running web preview in a real browser, evaluates
// structural and content assertions, captures a full-page screenshot and
// HTML snapshot, and optionally computes a visual difference against a
// reference image.
//
// Routes are visited strictly sequentially in one browser page; a
// route's artifacts are fully written before the next navigation begins.
// Per-route failures are accumulated, never aborting: the run is a fold
// over routes, and only the final aggregate decides pass/fail.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/voilier/constat/idgen"
	"github.com/voilier/constat/imgdiff"
	"github.com/voilier/constat/runlog"
	"github.com/voilier/constat/verify/internal/artifact"
	"github.com/voilier/constat/verify/internal/assertion"
	"github.com/voilier/constat/verify/internal/report"
)

// MainSelector is the baseline assertion applied to every route
// regardless of any supplied spec: the page must have a main content
// region.
const MainSelector = "main"

// Session is the page a run drives. The browser implementation lives in
// internal/browser; tests substitute a snapshot-backed fake.
type Session interface {
	// Visit navigates to an absolute URL and waits for the document's
	// structural content to be parsed, bounded by the nav timeout.
	Visit(ctx context.Context, url string) error

	// Count returns how many elements match a CSS selector.
	Count(selector string) (int, error)

	// Text returns the text of the first element matching the selector;
	// found is false when nothing matches.
	Text(selector string) (string, bool, error)

	// HTML serialises the full current DOM.
	HTML(ctx context.Context) ([]byte, error)

	// Screenshot captures a full-page PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	Close() error
}

// Browser acquires the run's single Session. Start-up failure is fatal
// to the run; everything after is accumulated per route.
type Browser interface {
	Open(ctx context.Context) (Session, error)
	Close() error
}

// Runner drives one verification run.
type Runner struct {
	cfg     *Config
	browser Browser
	logger  *slog.Logger
	history *runlog.Store
	newID   idgen.Generator
}

// Option configures a Runner.
type Option func(*Runner)

// WithHistory records runs into a run-history store. Write failures are
// logged, never propagated: observability must not fail the run.
func WithHistory(s *runlog.Store) Option {
	return func(r *Runner) { r.history = s }
}

// WithRunID overrides run-ID generation (tests want stable IDs).
func WithRunID(gen idgen.Generator) Option {
	return func(r *Runner) { r.newID = gen }
}

// now is a seam so tests can pin run timestamps.
var now = time.Now

// NewRunner creates a Runner. The configuration is validated on Run,
// before any browser resource is acquired.
func NewRunner(cfg *Config, b Browser, logger *slog.Logger, opts ...Option) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	cfg.applyDefaults()
	r := &Runner{
		cfg:     cfg,
		browser: b,
		logger:  logger,
		newID:   idgen.RunID,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run executes the whole pipeline and returns the aggregated result.
// The error return covers configuration and resource-acquisition
// failures only; assertion and visual failures live in the Result.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if err := r.cfg.validate(); err != nil {
		return nil, err
	}
	base, err := url.Parse(r.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: base URL: %v", ErrConfig, err)
	}

	spec, err := assertion.Load(r.cfg.AssertsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	store, err := artifact.NewStore(r.cfg.OutDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	result := &Result{
		RunID:     r.newID(),
		BaseURL:   r.cfg.BaseURL,
		OutDir:    store.Root(),
		StartedAt: now(),
	}

	r.seedAsserts(store)

	session, err := r.browser.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: open browser session: %v", ErrConfig, err)
	}
	defer r.browser.Close()
	defer session.Close()

	routes := SplitRoutes(r.cfg.Routes)
	r.logger.Info("verify: starting run",
		"run_id", result.RunID, "base_url", r.cfg.BaseURL,
		"routes", len(routes), "spec_rules", spec.Rules())

	for _, route := range routes {
		result.Routes = append(result.Routes,
			r.visitRoute(ctx, session, store, base, route, spec))
	}

	result.FinishedAt = now()

	r.writeReport(store, result)
	r.recordHistory(ctx, result)

	r.logger.Info("verify: run finished",
		"run_id", result.RunID,
		"assert_failures", result.AssertFailures(),
		"visual_failures", result.VisualFailures(),
		"ok", result.OK())

	return result, nil
}

// visitRoute produces one route's check result and artifact set. Every
// failure inside is counted, logged with the route, and never aborts the
// remaining routes.
func (r *Runner) visitRoute(ctx context.Context, session Session, store *artifact.Store, base *url.URL, route string, spec *assertion.Spec) RouteResult {
	key := artifact.Key(route)
	log := r.logger.With("route", route)
	res := RouteResult{Route: route, ArtifactKey: key, Visual: VisualSkipped}

	target, err := base.Parse(route)
	if err != nil {
		res.AssertFailures++
		log.Error("verify: unresolvable route", "error", err)
		return res
	}

	if err := session.Visit(ctx, target.String()); err != nil {
		res.AssertFailures++
		log.Error("verify: navigation failed", "url", target.String(), "error", err)
		// No artifacts for a route that never loaded: the pair is tied
		// to navigation succeeding.
		return res
	}

	// Baseline check, independent of any spec.
	mainCount, err := session.Count(MainSelector)
	if err != nil {
		res.AssertFailures++
		log.Error("verify: baseline query failed", "selector", MainSelector, "error", err)
	} else if mainCount < 1 {
		res.AssertFailures++
		log.Warn("verify: main content region missing", "selector", MainSelector)
	}

	res.AssertFailures += assertion.Evaluate(session, spec, log)

	// Capture both artifacts in memory first so the pair is written
	// whole or not at all.
	shot, shotErr := session.Screenshot(ctx)
	dom, domErr := session.HTML(ctx)
	if shotErr != nil || domErr != nil {
		res.AssertFailures++
		log.Error("verify: capture failed", "screenshot_error", shotErr, "html_error", domErr)
		return res
	}

	shotPath, err := store.Write(artifact.ScreenshotFile(key), shot)
	if err != nil {
		res.AssertFailures++
		log.Error("verify: write screenshot", "error", err)
		return res
	}
	if _, err := store.Write(artifact.SnapshotFile(key), dom); err != nil {
		res.AssertFailures++
		log.Error("verify: write snapshot", "error", err)
		// Keep the pair whole: a screenshot without its snapshot is
		// removed rather than left as half an artifact set.
		if rmErr := os.Remove(shotPath); rmErr != nil {
			log.Warn("verify: remove orphan screenshot", "error", rmErr)
		}
		return res
	}
	res.ArtifactsWritten = true

	r.visualDiff(store, key, shotPath, &res, log)
	return res
}

// visualDiff compares the captured screenshot against a reference image
// when one exists. No reference is a skip, not a failure; a size
// mismatch or a differ error is an explicit visual failure.
func (r *Runner) visualDiff(store *artifact.Store, key, shotPath string, res *RouteResult, log *slog.Logger) {
	if r.cfg.DesignDir == "" {
		return
	}
	refPath := filepath.Join(r.cfg.DesignDir, artifact.ScreenshotFile(key))
	if _, err := os.Stat(refPath); err != nil {
		res.Visual = VisualSkipped
		res.VisualSummary = "no reference image"
		log.Info("verify: visual diff skipped", "reference", refPath)
		return
	}

	diffPath, err := store.Path(artifact.DiffImageFile(key))
	if err != nil {
		res.Visual = VisualFail
		res.VisualSummary = err.Error()
		return
	}
	reportPath, err := store.Path(artifact.DiffReportFile(key))
	if err != nil {
		res.Visual = VisualFail
		res.VisualSummary = err.Error()
		return
	}

	diff, err := imgdiff.CompareFiles(refPath, shotPath, diffPath, reportPath,
		imgdiff.Options{Tolerance: r.cfg.DiffTolerance})
	if err != nil {
		res.Visual = VisualFail
		res.VisualSummary = err.Error()
		log.Error("verify: visual diff step failed", "error", err)
		return
	}
	if !diff.OK {
		res.Visual = VisualFail
		res.VisualSummary = fmt.Sprintf("%s: reference %dx%d vs captured %dx%d",
			diff.Reason,
			diff.Expected.Width, diff.Expected.Height,
			diff.Actual.Width, diff.Actual.Height)
		log.Warn("verify: visual diff failed", "reason", diff.Reason,
			"summary", res.VisualSummary)
		return
	}

	res.Visual = VisualOK
	res.VisualSummary = fmt.Sprintf("mismatch ratio %.4f (%d/%d pixels)",
		diff.MismatchRatio, diff.MismatchedPixels, diff.TotalPixels)
	log.Info("verify: visual diff ok",
		"mismatch_ratio", diff.MismatchRatio,
		"mismatched_pixels", diff.MismatchedPixels)
}

// seedAsserts copies the resolved assertion document into the run
// directory for reproducibility.
func (r *Runner) seedAsserts(store *artifact.Store) {
	if r.cfg.AssertsPath == "" {
		return
	}
	data, err := os.ReadFile(r.cfg.AssertsPath)
	if err != nil {
		return
	}
	name := "asserts" + filepath.Ext(r.cfg.AssertsPath)
	if _, err := store.Write(name, data); err != nil {
		r.logger.Warn("verify: seed asserts copy failed", "error", err)
	}
}

func (r *Runner) writeReport(store *artifact.Store, result *Result) {
	data := report.Data{
		RunID:      result.RunID,
		BaseURL:    result.BaseURL,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		OK:         result.OK(),
	}
	for _, rt := range result.Routes {
		route := report.Route{
			Route:          rt.Route,
			ArtifactKey:    rt.ArtifactKey,
			AssertFailures: rt.AssertFailures,
			VisualStatus:   string(rt.Visual),
			VisualSummary:  rt.VisualSummary,
		}
		if rt.ArtifactsWritten {
			if p, err := store.Path(artifact.SnapshotFile(rt.ArtifactKey)); err == nil {
				route.HTML, _ = os.ReadFile(p)
			}
		}
		data.Routes = append(data.Routes, route)
	}
	if _, err := store.WriteText("report.md", report.Render(data)); err != nil {
		r.logger.Warn("verify: write report failed", "error", err)
	}
}

func (r *Runner) recordHistory(ctx context.Context, result *Result) {
	if r.history == nil {
		return
	}
	run := runlog.Run{
		RunID:          result.RunID,
		BaseURL:        result.BaseURL,
		Routes:         r.cfg.Routes,
		OutDir:         result.OutDir,
		StartedAt:      result.StartedAt,
		FinishedAt:     result.FinishedAt,
		AssertFailures: result.AssertFailures(),
		VisualFailures: result.VisualFailures(),
		OK:             result.OK(),
	}
	rows := make([]runlog.RouteRow, 0, len(result.Routes))
	for _, rt := range result.Routes {
		rows = append(rows, runlog.RouteRow{
			RunID:          result.RunID,
			Route:          rt.Route,
			ArtifactKey:    rt.ArtifactKey,
			AssertFailures: rt.AssertFailures,
			VisualStatus:   string(rt.Visual),
			VisualSummary:  rt.VisualSummary,
		})
	}
	if err := r.history.RecordRun(ctx, run, rows); err != nil {
		r.logger.Warn("verify: record run history failed", "error", err)
	}
}
