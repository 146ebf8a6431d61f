package verify

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the verification run configuration. One-shot CLI invocations
// populate it from flags; long-lived setups load it from YAML.
type Config struct {
	// BaseURL of the running preview server. Required: absence is a
	// configuration error, rejected before any browser resource opens.
	BaseURL string `yaml:"base_url"`

	// Routes is the comma-separated route list. Blank entries are
	// dropped after trimming; an empty list defaults to the root route.
	Routes string `yaml:"routes"`

	// OutDir receives all run artifacts. Created if absent.
	OutDir string `yaml:"out_dir"`

	// AssertsPath points to an optional assertion-spec document (YAML
	// or JSON). A missing file means no spec-driven assertions.
	AssertsPath string `yaml:"asserts"`

	// DesignDir optionally holds reference images for visual diffs,
	// named like the screenshot artifacts (page_<key>.png).
	DesignDir string `yaml:"design_dir"`

	// DiffTolerance is the per-channel tolerance fraction for the
	// visual diff. Zero means the differ default.
	DiffTolerance float64 `yaml:"diff_tolerance"`

	Browser BrowserConfig `yaml:"browser"`
}

// BrowserConfig controls the Chrome session.
type BrowserConfig struct {
	// Remote is the WebSocket URL of an external Chrome. Empty =
	// launch a local headless one.
	Remote string `yaml:"remote"`

	// Stealth applies anti-detection page setup.
	Stealth bool `yaml:"stealth"`

	// NavTimeout bounds each route navigation. Default: 60s.
	NavTimeout time.Duration `yaml:"nav_timeout"`

	// BlockResources lists resource types to block while navigating
	// (fonts, media). Images are never blocked.
	BlockResources []string `yaml:"block_resources"`
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("verify: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("verify: parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.NavTimeout <= 0 {
		c.Browser.NavTimeout = 60 * time.Second
	}
	if c.OutDir == "" {
		c.OutDir = "verify_out"
	}
}

// validate rejects configurations that cannot produce a run. Wraps
// ErrConfig so the caller can map these to the configuration exit code.
func (c *Config) validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return fmt.Errorf("%w: base URL is required", ErrConfig)
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("%w: base URL: %v", ErrConfig, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: base URL must be http or https, got %q", ErrConfig, c.BaseURL)
	}
	return nil
}

// SplitRoutes parses a comma-separated route list: entries are trimmed,
// blanks dropped, and an empty result defaults to the single root route.
func SplitRoutes(s string) []string {
	var routes []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		routes = append(routes, part)
	}
	if len(routes) == 0 {
		routes = []string{"/"}
	}
	return routes
}
