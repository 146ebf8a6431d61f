// Package browser manages the Chrome session a verification run drives:
// launch or connect via Rod, open a single stealth page, navigate it
// route by route, and capture screenshots and DOM snapshots.
//
// One run owns exactly one browser and one page. Routes share cookies
// and page state by design, so navigation is strictly sequential; there
// is no tab pool and no recycling.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config configures the browser session.
type Config struct {
	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local headless Chrome via launcher.
	RemoteURL string

	// Stealth applies the stealth page setup. Preview servers rarely
	// need it, but storefronts behind bot detection do.
	Stealth bool

	// NavTimeout bounds a single route navigation, measured to the
	// DOMContentLoaded event. Default: 60s.
	NavTimeout time.Duration

	// BlockResources lists resource types to abort during navigation
	// (fonts, media). Blocking images would falsify screenshots, so
	// it is ignored for the "images" type.
	BlockResources []string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.NavTimeout <= 0 {
		c.NavTimeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Manager owns the Chrome process for one run.
type Manager struct {
	cfg     Config
	browser *rod.Browser
	lnch    *launcher.Launcher
}

// NewManager creates a browser Manager. Call Start to launch Chrome.
func NewManager(cfg Config) *Manager {
	cfg.defaults()
	return &Manager{cfg: cfg}
}

// Start launches Chrome (or connects to a remote instance). Failure here
// is a resource-acquisition error: the run cannot proceed.
func (m *Manager) Start(ctx context.Context) error {
	log := m.cfg.Logger

	var wsURL string
	if m.cfg.RemoteURL != "" {
		wsURL = m.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().Headless(true)
		l = l.Set("disable-blink-features", "AutomationControlled")

		u, err := l.Launch()
		if err != nil {
			return fmt.Errorf("browser: launch: %w", err)
		}
		wsURL = u
		m.lnch = l
		log.Info("browser: launched local chrome")
	}

	b := rod.New().ControlURL(wsURL).Context(ctx)
	if err := b.Connect(); err != nil {
		return fmt.Errorf("browser: connect: %w", err)
	}

	// Preview servers often run with self-signed certs.
	if err := b.IgnoreCertErrors(true); err != nil {
		log.Warn("browser: ignore cert errors failed", "error", err)
	}

	m.browser = b
	return nil
}

// Close shuts down the page and Chrome.
func (m *Manager) Close() error {
	if m.browser != nil {
		m.browser.Close()
		m.browser = nil
	}
	if m.lnch != nil {
		m.lnch.Cleanup()
		m.lnch = nil
	}
	return nil
}
