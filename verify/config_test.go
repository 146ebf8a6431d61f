package verify

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestSplitRoutes(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"", []string{"/"}},
		{" , ,", []string{"/"}},
		{"/", []string{"/"}},
		{"/, /products/x ,/about", []string{"/", "/products/x", "/about"}},
		{"/search?q=shirt&sort=price", []string{"/search?q=shirt&sort=price"}},
	}
	for _, c := range cases {
		if got := SplitRoutes(c.in); !reflect.DeepEqual(got, c.want) {
			t.Errorf("SplitRoutes(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"no scheme", "localhost:3000", true},
		{"ftp", "ftp://h/", true},
		{"http", "http://localhost:3000", false},
		{"https", "https://preview.example.com/", false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cfg := Config{BaseURL: c.baseURL}
			err := cfg.validate()
			if c.wantErr {
				if !errors.Is(err, ErrConfig) {
					t.Fatalf("want ErrConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "constat.yaml")
	os.WriteFile(path, []byte(`
base_url: http://localhost:3000
routes: "/,/pricing"
design_dir: designs
browser:
  stealth: true
  block_resources: [fonts, media]
`), 0o644)

	cfg, err := LoadConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.BaseURL != "http://localhost:3000" || cfg.DesignDir != "designs" {
		t.Fatalf("cfg: %+v", cfg)
	}
	if !cfg.Browser.Stealth || len(cfg.Browser.BlockResources) != 2 {
		t.Fatalf("browser cfg: %+v", cfg.Browser)
	}
	// Defaults applied on load.
	if cfg.Browser.NavTimeout != 60*time.Second {
		t.Fatalf("nav timeout default: %v", cfg.Browser.NavTimeout)
	}
	if cfg.OutDir != "verify_out" {
		t.Fatalf("out dir default: %q", cfg.OutDir)
	}
}

func TestLoadConfigFile_Missing(t *testing.T) {
	if _, err := LoadConfigFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for a missing config file")
	}
}
