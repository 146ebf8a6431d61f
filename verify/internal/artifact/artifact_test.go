package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestKey_Derivation(t *testing.T) {
	cases := []struct {
		route string
		want  string
	}{
		{"", "root"},
		{"/", "_"},
		{"/products/example-handle", "_products_example-handle"},
		{"/search?q=shirt&sort=price", "_search_q_shirt_sort_price"},
		{"collections/all", "collections_all"},
	}
	for _, c := range cases {
		if got := Key(c.route); got != c.want {
			t.Errorf("Key(%q): got %q, want %q", c.route, got, c.want)
		}
	}
}

func TestKey_Idempotent(t *testing.T) {
	// WHAT: Deriving twice always yields the same key.
	// WHY: Artifact names must be a pure function of the route.
	for _, route := range []string{"", "/", "/a/b?c=d"} {
		first := Key(route)
		if second := Key(route); second != first {
			t.Fatalf("Key(%q) unstable: %q then %q", route, first, second)
		}
		// Keys contain no delimiter characters, so re-deriving from a
		// key is a fixed point.
		if again := Key(first); again != first {
			t.Fatalf("Key(Key(%q)): got %q, want %q", route, again, first)
		}
	}
}

func TestKey_DistinctRoutesDistinctKeys(t *testing.T) {
	routes := []string{"/", "/products/x", "/products/y", "/search?q=x", ""}
	seen := make(map[string]string)
	for _, r := range routes {
		k := Key(r)
		if prev, ok := seen[k]; ok {
			t.Fatalf("collision: %q and %q both map to %q", prev, r, k)
		}
		seen[k] = r
	}
}

func TestFileNames(t *testing.T) {
	key := Key("/products/x")
	if got := ScreenshotFile(key); got != "page__products_x.png" {
		t.Errorf("screenshot: %q", got)
	}
	if got := SnapshotFile(key); got != "page__products_x.html" {
		t.Errorf("snapshot: %q", got)
	}
	if got := DiffImageFile(key); got != "diff_page__products_x.png" {
		t.Errorf("diff image: %q", got)
	}
	if got := DiffReportFile(key); got != "diff_page__products_x.json" {
		t.Errorf("diff report: %q", got)
	}
}

func TestStore_WriteCreatesParents(t *testing.T) {
	root := filepath.Join(t.TempDir(), "runs", "r1")
	s, err := NewStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	p, err := s.WriteText("verify/report.md", "ok")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(p)
	if err != nil || string(data) != "ok" {
		t.Fatalf("read back: %q err=%v", data, err)
	}
	if !s.Exists("verify/report.md") {
		t.Fatal("exists should see the written artifact")
	}
}

func TestStore_RejectsTraversal(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, rel := range []string{"../out.txt", "a/../../b", "../../etc/passwd"} {
		if _, err := s.Write(rel, []byte("x")); !errors.Is(err, ErrScope) {
			t.Errorf("Write(%q): got %v, want ErrScope", rel, err)
		}
	}
}

func TestStore_OverwritesDeterministically(t *testing.T) {
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.WriteText("page_root.html", "first"); err != nil {
		t.Fatal(err)
	}
	p, err := s.WriteText("page_root.html", "second")
	if err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(p)
	if string(data) != "second" {
		t.Fatalf("overwrite: got %q", data)
	}
}
