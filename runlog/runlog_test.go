package runlog

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"
)

func memStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string) (Run, []RouteRow) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	run := Run{
		RunID:          id,
		BaseURL:        "http://127.0.0.1:9292",
		Routes:         "/,/products/x",
		OutDir:         "runs/" + id,
		StartedAt:      started,
		FinishedAt:     started.Add(40 * time.Second),
		AssertFailures: 1,
		VisualFailures: 0,
		OK:             false,
	}
	routes := []RouteRow{
		{RunID: id, Route: "/", ArtifactKey: "_", AssertFailures: 0, VisualStatus: "skipped"},
		{RunID: id, Route: "/products/x", ArtifactKey: "_products_x", AssertFailures: 1,
			VisualStatus: "ok", VisualSummary: "mismatch ratio 0.0021"},
	}
	return run, routes
}

func TestRecordAndGetRun(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	run, routes := sampleRun("20260301T120000Z_abc123")
	if err := s.RecordRun(ctx, run, routes); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, gotRoutes, err := s.GetRun(ctx, run.RunID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.BaseURL != run.BaseURL || got.OK != run.OK || got.AssertFailures != 1 {
		t.Fatalf("run mismatch: %+v", got)
	}
	if !got.StartedAt.Equal(run.StartedAt) {
		t.Fatalf("started at: got %v, want %v", got.StartedAt, run.StartedAt)
	}
	if len(gotRoutes) != 2 {
		t.Fatalf("routes: got %d", len(gotRoutes))
	}
	if gotRoutes[1].VisualSummary != "mismatch ratio 0.0021" {
		t.Fatalf("route row: %+v", gotRoutes[1])
	}
}

func TestRecordRun_Rerecord(t *testing.T) {
	// WHAT: Recording the same run ID twice replaces rows, not appends.
	// WHY: Re-verification after a resume overwrites the same run.
	s := memStore(t)
	ctx := context.Background()

	run, routes := sampleRun("r1")
	if err := s.RecordRun(ctx, run, routes); err != nil {
		t.Fatal(err)
	}
	run.OK = true
	run.AssertFailures = 0
	routes = routes[:1]
	if err := s.RecordRun(ctx, run, routes); err != nil {
		t.Fatal(err)
	}

	got, gotRoutes, err := s.GetRun(ctx, "r1")
	if err != nil {
		t.Fatal(err)
	}
	if !got.OK || len(gotRoutes) != 1 {
		t.Fatalf("rerecord: ok=%v routes=%d", got.OK, len(gotRoutes))
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	s := memStore(t)
	ctx := context.Background()

	for i, id := range []string{"old", "mid", "new"} {
		run, routes := sampleRun(id)
		run.StartedAt = run.StartedAt.Add(time.Duration(i) * time.Hour)
		if err := s.RecordRun(ctx, run, routes); err != nil {
			t.Fatal(err)
		}
	}

	runs, err := s.ListRuns(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 || runs[0].RunID != "new" || runs[1].RunID != "mid" {
		t.Fatalf("order: %+v", runs)
	}
}

func TestGetRun_Missing(t *testing.T) {
	s := memStore(t)
	_, _, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected ErrNoRows, got %v", err)
	}
}
