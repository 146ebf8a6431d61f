package htmlq

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const page = `<!DOCTYPE html>
<html><body>
<main>
  <h1>Gadget</h1>
  <div class="card">one</div>
  <div class="card">two</div>
</main>
</body></html>`

func TestCount(t *testing.T) {
	doc, err := Parse([]byte(page))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cases := []struct {
		selector string
		want     int
	}{
		{"main", 1},
		{".card", 2},
		{"main .card", 2},
		{".missing", 0},
	}
	for _, c := range cases {
		got, err := doc.Count(c.selector)
		if err != nil {
			t.Fatalf("Count(%q): %v", c.selector, err)
		}
		if got != c.want {
			t.Errorf("Count(%q): got %d, want %d", c.selector, got, c.want)
		}
	}
}

func TestText(t *testing.T) {
	doc, err := Parse([]byte(page))
	if err != nil {
		t.Fatal(err)
	}

	text, found, err := doc.Text("h1")
	if err != nil || !found {
		t.Fatalf("Text(h1): found=%v err=%v", found, err)
	}
	if strings.TrimSpace(text) != "Gadget" {
		t.Fatalf("Text(h1): got %q", text)
	}

	// First match only.
	text, found, _ = doc.Text(".card")
	if !found || strings.TrimSpace(text) != "one" {
		t.Fatalf("Text(.card): got %q found=%v", text, found)
	}

	_, found, err = doc.Text(".missing")
	if err != nil {
		t.Fatalf("missing selector should not error: %v", err)
	}
	if found {
		t.Fatal("missing selector reported as found")
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.html")
	if err := os.WriteFile(path, []byte(page), 0o644); err != nil {
		t.Fatal(err)
	}
	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("parse file: %v", err)
	}
	if n, _ := doc.Count("main"); n != 1 {
		t.Fatalf("count main: %d", n)
	}
}
