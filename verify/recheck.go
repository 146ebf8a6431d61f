package verify

import (
	"fmt"
	"log/slog"

	"github.com/voilier/constat/verify/internal/artifact"
	"github.com/voilier/constat/verify/internal/assertion"
	"github.com/voilier/constat/verify/internal/htmlq"
)

// Recheck re-evaluates an assertion spec against the HTML snapshots of a
// previous run, without opening a browser. Useful for cheap triage after
// editing the asserts document: the snapshots are the page state as
// captured, so structural and text rules can be re-run offline.
//
// Visual diffs are not re-run (they need the live screenshot step);
// every route reports a skipped visual outcome.
func Recheck(outDir, assertsPath, routes string, logger *slog.Logger) (*Result, error) {
	if logger == nil {
		logger = slog.Default()
	}

	spec, err := assertion.Load(assertsPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	store, err := artifact.NewStore(outDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}

	result := &Result{
		RunID:     "recheck",
		OutDir:    outDir,
		StartedAt: now(),
	}

	for _, route := range SplitRoutes(routes) {
		key := artifact.Key(route)
		log := logger.With("route", route)
		res := RouteResult{Route: route, ArtifactKey: key, Visual: VisualSkipped}

		name := artifact.SnapshotFile(key)
		snap, perr := store.Path(name)
		if perr != nil || !store.Exists(name) {
			res.AssertFailures++
			log.Error("recheck: snapshot missing", "snapshot", name)
			result.Routes = append(result.Routes, res)
			continue
		}
		doc, err := htmlq.ParseFile(snap)
		if err != nil {
			res.AssertFailures++
			log.Error("recheck: snapshot unreadable", "path", snap, "error", err)
			result.Routes = append(result.Routes, res)
			continue
		}
		res.ArtifactsWritten = true

		if count, err := doc.Count(MainSelector); err != nil || count < 1 {
			res.AssertFailures++
			log.Warn("recheck: main content region missing", "selector", MainSelector)
		}
		res.AssertFailures += assertion.Evaluate(doc, spec, log)

		result.Routes = append(result.Routes, res)
	}

	result.FinishedAt = now()
	logger.Info("recheck: finished",
		"routes", len(result.Routes),
		"assert_failures", result.AssertFailures(),
		"ok", result.OK())
	return result, nil
}
