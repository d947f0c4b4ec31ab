package scraper

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
)

// SessionFactory creates one browser session per scrape call.
type SessionFactory interface {
	NewSession(ctx context.Context) (Session, error)
}

// Stats is a snapshot of browser usage.
type Stats struct {
	ActiveSessions int   `json:"active_sessions"`
	TotalSessions  int64 `json:"total_sessions"`
	UptimeSeconds  int64 `json:"uptime_seconds"`
}

// Browser owns the Chromium process. Sessions are independent tabs; a
// Browser is safe for concurrent use, a Session is not.
type Browser struct {
	browser   *rod.Browser
	cfg       config.BrowserConfig
	active    atomic.Int32
	total     atomic.Int64
	startTime time.Time
	logger    *slog.Logger
}

// NewBrowser launches Chromium with automation fingerprints removed.
func NewBrowser(cfg config.BrowserConfig, logger *slog.Logger) (*Browser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "browser")

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}
	if cfg.Proxy != "" {
		l = l.Proxy(cfg.Proxy)
	}

	// ── Stealth flags ────────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-notifications"))
	l.Set(flags.Flag("disable-popup-blocking"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-gpu"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("user-agent"), cfg.UserAgent)

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to launch browser",
			err,
		)
	}
	logger.Info("browser launched", "controlURL", controlURL, "headless", cfg.Headless)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeBrowserCrash,
			"failed to connect to browser",
			err,
		)
	}

	return &Browser{
		browser:   browser,
		cfg:       cfg,
		startTime: time.Now(),
		logger:    logger,
	}, nil
}

// NewSession opens a fresh tab bound to ctx. The caller must Close it.
//
// Setup order matters: stealth, user agent, headers and the hijack router
// only apply to navigations that happen after they are installed.
func (b *Browser) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, Classify(err, "session not started")
	}

	page, err := b.browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return nil, models.NewScrapeError(
			models.ErrCodeSessionLost,
			"failed to open browser tab",
			err,
		)
	}
	b.active.Add(1)
	b.total.Add(1)

	s := &rodSession{
		raw:        page,
		navTimeout: b.cfg.NavigationTimeout,
		logger:     b.logger,
		onClose:    func() { b.active.Add(-1) },
	}

	// ── 1. Stealth injection ──────────────────────────────────────────
	if _, evalErr := page.EvalOnNewDocument(stealth.JS); evalErr != nil {
		b.logger.Warn("stealth injection failed, proceeding without stealth", "error", evalErr)
	}

	// ── 2. Fixed identity ─────────────────────────────────────────────
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      b.cfg.UserAgent,
		AcceptLanguage: b.cfg.AcceptLanguage,
	}); err != nil {
		_ = s.Close()
		return nil, Classify(err, "failed to set user agent")
	}
	if b.cfg.AcceptLanguage != "" {
		b.setHeaders(page, map[string]string{"Accept-Language": b.cfg.AcceptLanguage})
	}

	// ── 3. Resource blocking ──────────────────────────────────────────
	s.router = setupHijack(page, b.cfg.BlockedResourceTypes, true)

	// ── 4. Context binding ────────────────────────────────────────────
	s.page = page.Context(ctx)
	s.ctx = ctx
	return s, nil
}

// Stats returns a snapshot of session counters.
func (b *Browser) Stats() Stats {
	return Stats{
		ActiveSessions: int(b.active.Load()),
		TotalSessions:  b.total.Load(),
		UptimeSeconds:  int64(time.Since(b.startTime).Seconds()),
	}
}

// Close kills the browser process.
// Call this on shutdown to prevent zombie Chrome processes.
func (b *Browser) Close() {
	b.logger.Info("closing browser", "active_sessions", b.active.Load())
	if err := b.browser.Close(); err != nil {
		b.logger.Warn("browser close failed", "error", err)
	}
}
