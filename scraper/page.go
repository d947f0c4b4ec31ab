package scraper

import (
	"context"
	"net/url"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// Fetch renders a single URL in a throwaway session, for the page
// inspector. Site scrapers drive sessions directly instead.
//
// Lifecycle:
//
//  1. Open session         – stealth, identity and blocking installed
//  2. DEFER: close         – tab released on every exit path
//  3. Referer              – looks like a click from a search result
//  4. Navigate + settle    – DOM stable for 300ms
//  5. Extract              – HTML, title, final URL, status code
func (b *Browser) Fetch(ctx context.Context, rawURL string) (*Snapshot, error) {
	// ── 1. Open session ───────────────────────────────────────────────
	sess, err := b.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	// ── 2. Guaranteed teardown ────────────────────────────────────────
	defer sess.Close()

	s := sess.(*rodSession)

	// ── 3. Referer ────────────────────────────────────────────────────
	if u, parseErr := url.Parse(rawURL); parseErr == nil {
		b.setHeaders(s.page, map[string]string{
			"Referer":         "https://www.google.com/search?q=" + url.QueryEscape(u.Hostname()),
			"Accept-Language": b.cfg.AcceptLanguage,
		})
	}

	// ── 4. Navigate + settle ──────────────────────────────────────────
	if err := s.Navigate(rawURL); err != nil {
		return nil, err
	}
	if err := s.WaitStable(300 * time.Millisecond); err != nil {
		return nil, err
	}

	// ── 5. Extract ────────────────────────────────────────────────────
	html, err := s.HTML()
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		HTML:     html,
		Title:    evalStringOrEmpty(s.page, `() => document.title`),
		FinalURL: evalStringOrEmpty(s.page, `() => window.location.href`),
	}
	if snap.FinalURL == "" {
		snap.FinalURL = rawURL
	}
	// Navigation timing carries the status without a Network listener,
	// which would conflict with the hijack router's Fetch domain.
	if res, err := s.page.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`); err == nil {
		snap.StatusCode = res.Value.Int()
	}
	return snap, nil
}

// evalStringOrEmpty evaluates a JS expression and returns the string result,
// swallowing any errors (useful for optional metadata extraction).
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// sendExtraHeaders is replaced in tests.
var sendExtraHeaders = func(page *rod.Page, headers proto.NetworkHeaders) error {
	return proto.NetworkSetExtraHTTPHeaders{Headers: headers}.Call(page)
}

// setHeaders adds headers to every request of page. A failure leaves the
// page usable with its default headers, so it is logged and not returned.
func (b *Browser) setHeaders(page *rod.Page, headers map[string]string) {
	if err := sendExtraHeaders(page, toHeadersMap(headers)); err != nil {
		b.logger.Warn("extra headers not set, proceeding with defaults", "error", err)
	}
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		if v == "" {
			continue
		}
		m[k] = gson.New(v)
	}
	return m
}
