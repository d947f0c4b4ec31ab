// Package scrapertest serves HTML fixtures through the scraper.Session
// interface, so site scrapers can be exercised without a browser.
package scrapertest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper"
)

// Browser is a fake scraper.SessionFactory over a fixed set of pages.
type Browser struct {
	mu sync.Mutex

	// Pages maps absolute URLs to HTML. Unknown URLs render an empty body.
	Pages map[string]string

	// NavigateErrors fails navigation to a URL with the given error.
	NavigateErrors map[string]error

	// OnClick maps a selector to the URL a click on it leads to, for
	// controls without an href (buttons, dialogs).
	OnClick map[string]string

	opened  int
	closed  int
	visits  []string
	openErr error
}

// NewBrowser returns a fake browser serving pages.
func NewBrowser(pages map[string]string) *Browser {
	return &Browser{
		Pages:          pages,
		NavigateErrors: map[string]error{},
		OnClick:        map[string]string{},
	}
}

// FailSessions makes NewSession fail with err.
func (b *Browser) FailSessions(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.openErr = err
}

// NewSession implements scraper.SessionFactory.
func (b *Browser) NewSession(ctx context.Context) (scraper.Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	if err := ctx.Err(); err != nil {
		return nil, scraper.Classify(err, "session not started")
	}
	b.opened++
	return &Session{browser: b, ctx: ctx}, nil
}

// Opened returns the number of sessions created.
func (b *Browser) Opened() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened
}

// Closed returns the number of sessions closed.
func (b *Browser) Closed() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Visits returns every URL navigated to, in order.
func (b *Browser) Visits() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.visits...)
}

// Session is a fake scraper.Session.
type Session struct {
	browser *Browser
	ctx     context.Context

	url    string
	html   string
	closed bool
}

var _ scraper.Session = (*Session)(nil)

func (s *Session) Navigate(rawURL string) error {
	if err := s.check(); err != nil {
		return err
	}
	b := s.browser
	b.mu.Lock()
	b.visits = append(b.visits, rawURL)
	navErr := b.NavigateErrors[rawURL]
	html, ok := b.Pages[rawURL]
	b.mu.Unlock()

	if navErr != nil {
		return navErr
	}
	if !ok {
		html = "<html><body></body></html>"
	}
	s.url = rawURL
	s.html = html
	return nil
}

func (s *Session) WaitFor(selector string, _ time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	doc, err := s.doc()
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return models.NewScrapeError(models.ErrCodeElementNotFound, fmt.Sprintf("%q not on %s", selector, s.url), nil)
	}
	return nil
}

func (s *Session) HTML() (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return s.html, nil
}

func (s *Session) CurrentURL() (string, error) {
	if err := s.check(); err != nil {
		return "", err
	}
	return s.url, nil
}

func (s *Session) Click(selector string) error {
	return s.ClickAt(selector, 0)
}

func (s *Session) ClickAt(selector string, index int) error {
	if err := s.check(); err != nil {
		return err
	}
	doc, err := s.doc()
	if err != nil {
		return err
	}
	sel := doc.Find(selector)
	if index < 0 || index >= sel.Length() {
		return models.NewScrapeError(models.ErrCodeElementNotFound, fmt.Sprintf("%q #%d not on %s", selector, index, s.url), nil)
	}
	return s.follow(selector, sel.Eq(index))
}

func (s *Session) ClickText(selector, text string, _ time.Duration) error {
	if err := s.check(); err != nil {
		return err
	}
	doc, err := s.doc()
	if err != nil {
		return err
	}
	match := doc.Find(selector).FilterFunction(func(_ int, el *goquery.Selection) bool {
		return strings.Contains(el.Text(), text)
	})
	if match.Length() == 0 {
		return models.NewScrapeError(models.ErrCodeElementNotFound, fmt.Sprintf("%q with text %q not on %s", selector, text, s.url), nil)
	}
	return s.follow(selector, match.First())
}

func (s *Session) Select(selector, value string) error {
	if err := s.check(); err != nil {
		return err
	}
	doc, err := s.doc()
	if err != nil {
		return err
	}
	if doc.Find(selector).Find(fmt.Sprintf("option[value=%q]", value)).Length() == 0 {
		return models.NewScrapeError(models.ErrCodeElementNotFound, fmt.Sprintf("option %q in %q not on %s", value, selector, s.url), nil)
	}
	return nil
}

func (s *Session) WaitStable(time.Duration) error {
	return s.check()
}

func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.browser.mu.Lock()
	s.browser.closed++
	s.browser.mu.Unlock()
	return nil
}

// follow emulates a click: OnClick targets first, then the element's own
// or closest ancestor href. Anything else is a no-op click.
func (s *Session) follow(selector string, el *goquery.Selection) error {
	s.browser.mu.Lock()
	target, ok := s.browser.OnClick[selector]
	s.browser.mu.Unlock()
	if ok {
		return s.Navigate(target)
	}

	href, ok := el.Attr("href")
	if !ok {
		href, ok = el.Closest("a[href]").Attr("href")
	}
	if !ok {
		return nil
	}
	base, err := url.Parse(s.url)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "bad current URL", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeNavigation, "bad href", err)
	}
	return s.Navigate(base.ResolveReference(ref).String())
}

func (s *Session) doc() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "fixture is not HTML", err)
	}
	return doc, nil
}

func (s *Session) check() error {
	if s.closed {
		return models.NewScrapeError(models.ErrCodeSessionLost, "session closed", nil)
	}
	if err := s.ctx.Err(); err != nil {
		return scraper.Classify(err, "scrape canceled")
	}
	return nil
}
