package browser

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/schemascout/schemascout/internal/logging"
)

// ChromeSession runs a single headless Chrome process via chromedp. It first
// tries a persistent profile directory and falls back to an ephemeral launch
// when that fails.
type ChromeSession struct {
	cfg  Config
	diag *Diagnostics

	allocator   context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	tempProfileDir string
	logger         *zap.Logger
}

// NewChromeSession prepares a session. Open must be called before NewPage.
func NewChromeSession(cfg Config, diag *Diagnostics, logger *zap.Logger) *ChromeSession {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.NetworkIdleTimeout <= 0 {
		cfg.NetworkIdleTimeout = 15 * time.Second
	}
	return &ChromeSession{
		cfg:    cfg,
		diag:   diag,
		logger: logging.OrNop(logger),
	}
}

func (s *ChromeSession) launchOptions(userDataDir string) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.cfg.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.NoSandbox,
	)
	if userDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(userDataDir))
	}
	return opts
}

// Open launches the browser. A failed persistent-profile launch is retried
// with an ephemeral profile before giving up.
func (s *ChromeSession) Open(ctx context.Context) error {
	dir := s.cfg.UserDataDir
	if dir == "" {
		tmp, err := os.MkdirTemp("", "schemascout_profile_")
		if err != nil {
			return fmt.Errorf("create profile directory: %w", err)
		}
		s.tempProfileDir = tmp
		dir = tmp
	}

	if err := s.launch(ctx, dir); err != nil {
		s.logger.Warn("persistent-profile launch failed, retrying with ephemeral profile", zap.Error(err))
		s.teardownContexts()
		if err := s.launch(ctx, ""); err != nil {
			s.removeTempProfile()
			return fmt.Errorf("launch browser: %w", err)
		}
	}
	return nil
}

func (s *ChromeSession) launch(ctx context.Context, userDataDir string) error {
	s.allocator, s.allocCancel = chromedp.NewExecAllocator(ctx, s.launchOptions(userDataDir)...)
	s.browserCtx, s.browserStop = chromedp.NewContext(s.allocator,
		chromedp.WithLogf(func(format string, args ...any) {
			s.logger.Debug(fmt.Sprintf(format, args...))
		}))

	// Force the browser process to start so launch failures surface here
	// rather than on the first page.
	startCtx, cancel := context.WithTimeout(s.browserCtx, s.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		return fmt.Errorf("start browser process: %w", err)
	}
	return nil
}

// NewPage opens a tab with a randomized user agent from the pool.
func (s *ChromeSession) NewPage(ctx context.Context) (Page, error) {
	if s.browserCtx == nil {
		return nil, fmt.Errorf("session is not open")
	}
	if err := s.browserCtx.Err(); err != nil {
		return nil, fmt.Errorf("session closed: %w", err)
	}

	pageCtx, pageCancel := chromedp.NewContext(s.browserCtx)
	p := &chromePage{
		ctx:     pageCtx,
		cancel:  pageCancel,
		session: s,
		logger:  s.logger,
	}
	p.listenNetwork()

	ua := s.pickUserAgent()
	setup := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			if err := network.Enable().Do(ctx); err != nil {
				return fmt.Errorf("enable network domain: %w", err)
			}
			if ua != "" {
				if err := emulation.SetUserAgentOverride(ua).Do(ctx); err != nil {
					return fmt.Errorf("set user-agent: %w", err)
				}
			}
			return nil
		}),
	}
	if err := chromedp.Run(pageCtx, setup...); err != nil {
		pageCancel()
		return nil, fmt.Errorf("prepare page: %w", err)
	}
	return p, nil
}

func (s *ChromeSession) pickUserAgent() string {
	if len(s.cfg.UserAgents) == 0 {
		return ""
	}
	return s.cfg.UserAgents[rand.Intn(len(s.cfg.UserAgents))]
}

// Close tears down the browser and then the allocator, in that order,
// swallowing and logging teardown errors so they never mask a crawl failure.
// The temporary profile directory is always removed.
func (s *ChromeSession) Close() {
	if s.browserCtx != nil {
		if err := chromedp.Cancel(s.browserCtx); err != nil {
			s.logger.Warn("error closing browser", zap.Error(err))
		}
	}
	s.teardownContexts()
	s.removeTempProfile()
}

func (s *ChromeSession) teardownContexts() {
	if s.browserStop != nil {
		s.browserStop()
		s.browserStop = nil
		s.browserCtx = nil
	}
	if s.allocCancel != nil {
		s.allocCancel()
		s.allocCancel = nil
		s.allocator = nil
	}
}

func (s *ChromeSession) removeTempProfile() {
	if s.tempProfileDir == "" {
		return
	}
	if err := os.RemoveAll(s.tempProfileDir); err != nil {
		s.logger.Warn("failed to remove profile directory",
			zap.String("dir", s.tempProfileDir),
			zap.Error(err))
	} else {
		s.logger.Debug("removed temporary profile directory", zap.String("dir", s.tempProfileDir))
	}
	s.tempProfileDir = ""
}

// chromePage is one Chrome tab. Network activity is tracked from creation so
// WaitNetworkIdle can observe the inflight request count.
type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	session *ChromeSession
	logger  *zap.Logger

	inflight   atomic.Int64
	lastActive atomic.Int64

	currentURL string
	captured   bool
	closed     bool
}

// capture takes a diagnostic screenshot, at most once over the page's
// lifetime. Later failures on the same page reuse the first artifact.
func (p *chromePage) capture(errorType string) {
	if p.captured || p.currentURL == "" {
		return
	}
	p.captured = true
	p.session.diag.CaptureError(p.ctx, p, p.currentURL, errorType)
}

func (p *chromePage) listenNetwork() {
	p.touch()
	chromedp.ListenTarget(p.ctx, func(ev any) {
		switch ev.(type) {
		case *network.EventRequestWillBeSent:
			p.inflight.Add(1)
			p.touch()
		case *network.EventLoadingFinished, *network.EventLoadingFailed:
			if p.inflight.Add(-1) < 0 {
				p.inflight.Store(0)
			}
			p.touch()
		}
	})
}

func (p *chromePage) touch() {
	p.lastActive.Store(time.Now().UnixNano())
}

// Navigate loads url, waiting for the body to be ready. Navigation errors
// trigger a diagnostic screenshot before being returned.
func (p *chromePage) Navigate(ctx context.Context, url string) error {
	p.currentURL = url
	navCtx, cancel := context.WithTimeout(p.ctx, p.session.cfg.NavigationTimeout)
	defer cancel()

	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		p.capture("navigation_error")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("navigate %s: %w", url, ctxErr)
		}
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

const idleQuietWindow = 500 * time.Millisecond

// WaitNetworkIdle polls until no request has been active for a quiet window,
// or until the timeout passes. Hitting the timeout is expected on chatty
// pages and is not an error.
func (p *chromePage) WaitNetworkIdle(ctx context.Context, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = p.session.cfg.NetworkIdleTimeout
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-p.ctx.Done():
			return p.ctx.Err()
		case <-ticker.C:
			if time.Now().After(deadline) {
				p.logger.Debug("network idle wait timed out, continuing",
					zap.String("url", p.currentURL),
					zap.Duration("timeout", timeout))
				return nil
			}
			quietFor := time.Since(time.Unix(0, p.lastActive.Load()))
			if p.inflight.Load() == 0 && quietFor >= idleQuietWindow {
				return nil
			}
		}
	}
}

// ScriptTexts extracts the contents of all JSON-LD script tags from the
// rendered DOM.
func (p *chromePage) ScriptTexts(ctx context.Context) ([]string, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, p.session.cfg.NavigationTimeout)
	defer cancel()

	var html string
	if err := chromedp.Run(runCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return nil, fmt.Errorf("read page html: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse page html: %w", err)
	}

	var texts []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			texts = append(texts, text)
		}
	})
	return texts, nil
}

// Evaluate runs a JavaScript expression in the page and decodes the result.
func (p *chromePage) Evaluate(ctx context.Context, expression string, out any) error {
	runCtx, cancel := context.WithTimeout(p.ctx, p.session.cfg.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(runCtx, chromedp.Evaluate(expression, out)); err != nil {
		return fmt.Errorf("evaluate script: %w", err)
	}
	return nil
}

// CurrentURL returns the page location after any redirects.
func (p *chromePage) CurrentURL(ctx context.Context) (string, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, 5*time.Second)
	defer cancel()
	var loc string
	if err := chromedp.Run(runCtx, chromedp.Location(&loc)); err != nil {
		if p.currentURL != "" {
			return p.currentURL, nil
		}
		return "", fmt.Errorf("read location: %w", err)
	}
	return loc, nil
}

// Screenshot captures the viewport as PNG bytes.
func (p *chromePage) Screenshot(ctx context.Context) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(p.ctx, 10*time.Second)
	defer cancel()
	var png []byte
	if err := chromedp.Run(runCtx, chromedp.CaptureScreenshot(&png)); err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return png, nil
}

// Close releases the tab, capturing a page_closed screenshot first unless an
// earlier failure on this page already produced one.
func (p *chromePage) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.capture("page_closed")
	p.cancel()
	return nil
}
