package browser

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// Session is the single page a run navigates. It implements the
// verify.Session contract: sequential visits, selector queries,
// screenshot and DOM capture.
type Session struct {
	mgr  *Manager
	page *rod.Page
}

// OpenSession creates the run's page. Call once per run, before the
// first Visit.
func (m *Manager) OpenSession(ctx context.Context) (*Session, error) {
	if m.browser == nil {
		return nil, fmt.Errorf("browser: not started")
	}

	var page *rod.Page
	var err error
	if m.cfg.Stealth {
		page, err = stealth.Page(m.browser)
	} else {
		page, err = m.browser.Page(proto.TargetCreateTarget{URL: ""})
	}
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}

	if len(m.cfg.BlockResources) > 0 {
		if err := applyResourceBlocking(page, m.cfg.BlockResources); err != nil {
			m.cfg.Logger.Warn("browser: resource blocking failed", "error", err)
		}
	}

	return &Session{mgr: m, page: page}, nil
}

// Visit navigates to an absolute URL and waits for DOMContentLoaded:
// structural content parsed, not full resource completion. The wait is
// bounded by the configured navigation timeout; exceeding it is a hard
// failure for this route only.
func (s *Session) Visit(ctx context.Context, url string) error {
	navCtx, cancel := context.WithTimeout(ctx, s.mgr.cfg.NavTimeout)
	defer cancel()

	page := s.page.Context(navCtx)
	wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	wait()
	if err := navCtx.Err(); err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// Count returns how many elements match a CSS selector on the current page.
func (s *Session) Count(selector string) (int, error) {
	res, err := s.page.Eval(`(sel) => document.querySelectorAll(sel).length`, selector)
	if err != nil {
		return 0, fmt.Errorf("browser: count %q: %w", selector, err)
	}
	return res.Value.Int(), nil
}

// Text returns the text content of the first element matching the
// selector, with found=false when no element matches.
func (s *Session) Text(selector string) (string, bool, error) {
	found, err := s.page.Eval(`(sel) => !!document.querySelector(sel)`, selector)
	if err != nil {
		return "", false, fmt.Errorf("browser: query %q: %w", selector, err)
	}
	if !found.Value.Bool() {
		return "", false, nil
	}
	res, err := s.page.Eval(`(sel) => document.querySelector(sel).textContent || ""`, selector)
	if err != nil {
		return "", false, fmt.Errorf("browser: text %q: %w", selector, err)
	}
	return res.Value.Str(), true, nil
}

// HTML serialises the complete current DOM as outer HTML.
func (s *Session) HTML(ctx context.Context) ([]byte, error) {
	res, err := s.page.Context(ctx).Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("browser: get DOM: %w", err)
	}
	return []byte(res.Value.Str()), nil
}

// Screenshot captures a full-page PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(true, nil)
	if err != nil {
		return nil, fmt.Errorf("browser: screenshot: %w", err)
	}
	return data, nil
}

// Close closes the page.
func (s *Session) Close() error {
	if s.page != nil {
		return s.page.Close()
	}
	return nil
}
