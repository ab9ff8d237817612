// Package browser owns the headless browser session used to render pages
// and extract structured data.
package browser

import (
	"context"
	"time"
)

// Config controls the browser session.
type Config struct {
	Headless           bool
	NavigationTimeout  time.Duration
	NetworkIdleTimeout time.Duration
	UserAgents         []string
	UserDataDir        string
}

// Page is a single browser tab. Pages are not safe for concurrent use; each
// crawl task owns one page for its lifetime.
type Page interface {
	// Navigate loads url and waits for the document to become interactive.
	Navigate(ctx context.Context, url string) error
	// WaitNetworkIdle waits until network activity quiets down or the
	// timeout passes. A timeout is tolerated, not returned as an error.
	WaitNetworkIdle(ctx context.Context, timeout time.Duration) error
	// ScriptTexts returns the text content of every JSON-LD script tag on
	// the page.
	ScriptTexts(ctx context.Context) ([]string, error)
	// Evaluate runs a JavaScript expression and decodes its result into out.
	Evaluate(ctx context.Context, expression string, out any) error
	// CurrentURL returns the page's location after redirects.
	CurrentURL(ctx context.Context) (string, error)
	// Screenshot captures the current viewport as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the tab.
	Close() error
}

// Session owns a browser process for the duration of one crawl run.
type Session interface {
	// NewPage opens a tab with a user agent drawn from the configured pool.
	NewPage(ctx context.Context) (Page, error)
	// Close tears the session down. Teardown errors are logged, never
	// propagated, so they cannot mask a crawl failure.
	Close()
}
