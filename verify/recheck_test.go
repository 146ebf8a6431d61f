package verify

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRecheck_AgainstSnapshots(t *testing.T) {
	out := t.TempDir()
	os.WriteFile(filepath.Join(out, "page__.html"),
		[]byte(`<html><body><main><h1>Widget</h1></main></body></html>`), 0o644)
	os.WriteFile(filepath.Join(out, "page__pricing.html"),
		[]byte(`<html><body><div>no main here</div></body></html>`), 0o644)

	asserts := filepath.Join(t.TempDir(), "asserts.yaml")
	os.WriteFile(asserts, []byte("textContains:\n  - selector: h1\n    contains: Widget\n"), 0o644)

	result, err := Recheck(out, asserts, "/,/pricing", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(result.Routes) != 2 {
		t.Fatalf("routes: %+v", result.Routes)
	}
	if result.Routes[0].AssertFailures != 0 {
		t.Fatalf("route /: %+v", result.Routes[0])
	}
	// /pricing fails baseline and the h1 rule (missing element = empty text).
	if result.Routes[1].AssertFailures != 2 {
		t.Fatalf("route /pricing: %+v", result.Routes[1])
	}
	for _, rt := range result.Routes {
		if rt.Visual != VisualSkipped {
			t.Fatalf("recheck never diffs: %+v", rt)
		}
	}
	if result.OK() {
		t.Fatal("run with failures must report not ok")
	}
}

func TestRecheck_MissingSnapshotCounts(t *testing.T) {
	result, err := Recheck(t.TempDir(), "", "/ghost", testLogger())
	if err != nil {
		t.Fatal(err)
	}
	rt := result.Routes[0]
	if rt.AssertFailures != 1 || rt.ArtifactsWritten {
		t.Fatalf("missing snapshot: %+v", rt)
	}
}

func TestRecheck_BadSpecIsConfigError(t *testing.T) {
	bad := filepath.Join(t.TempDir(), "asserts.yaml")
	os.WriteFile(bad, []byte("mustHave: {not: [a, list"), 0o644)
	if _, err := Recheck(t.TempDir(), bad, "/", testLogger()); err == nil {
		t.Fatal("malformed spec must be rejected")
	}
}
