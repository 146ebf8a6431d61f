package verify

import (
	"context"
	"log/slog"

	"github.com/voilier/constat/verify/internal/browser"
)

// chromeBrowser adapts the Rod-backed browser manager to the Browser
// contract.
type chromeBrowser struct {
	mgr *browser.Manager
}

// NewChromeBrowser returns a Browser that launches (or connects to) a
// real Chrome per the configuration.
func NewChromeBrowser(cfg BrowserConfig, logger *slog.Logger) Browser {
	return &chromeBrowser{
		mgr: browser.NewManager(browser.Config{
			RemoteURL:      cfg.Remote,
			Stealth:        cfg.Stealth,
			NavTimeout:     cfg.NavTimeout,
			BlockResources: cfg.BlockResources,
			Logger:         logger,
		}),
	}
}

func (b *chromeBrowser) Open(ctx context.Context) (Session, error) {
	if err := b.mgr.Start(ctx); err != nil {
		return nil, err
	}
	return b.mgr.OpenSession(ctx)
}

func (b *chromeBrowser) Close() error {
	return b.mgr.Close()
}
