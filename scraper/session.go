package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"

	"github.com/use-agent/pricecrawl/models"
)

// Session is one browser tab owned by a single scrape call.
//
// Every method returns a *models.ScrapeError classified by Classify, so
// callers can tell a missing element (skip the candidate) from a dead
// browser (abort the call). Close is idempotent.
type Session interface {
	// Navigate loads url in the tab.
	Navigate(url string) error

	// WaitFor blocks until selector matches at least one element.
	// A CSS selector list ("a, b") waits for any of its members.
	WaitFor(selector string, timeout time.Duration) error

	// HTML returns the current document.
	HTML() (string, error)

	// CurrentURL returns location.href.
	CurrentURL() (string, error)

	// Click clicks the first element matching selector.
	Click(selector string) error

	// ClickAt clicks the index-th element matching selector, in document order.
	ClickAt(selector string, index int) error

	// ClickText clicks the first element matching selector whose text
	// contains text, waiting up to timeout for it to appear.
	ClickText(selector, text string, timeout time.Duration) error

	// Select picks the option with the given value in a <select>.
	Select(selector, value string) error

	// WaitStable waits for the DOM to stop changing for d.
	WaitStable(d time.Duration) error

	Close() error
}

// rodSession implements Session on a rod page.
type rodSession struct {
	ctx        context.Context
	raw        *rod.Page // unbound, used for teardown after ctx expiry
	page       *rod.Page // bound to ctx
	router     *rod.HijackRouter
	navTimeout time.Duration
	logger     *slog.Logger

	onClose   func()
	closeOnce sync.Once
}

func (s *rodSession) Navigate(url string) error {
	p := s.page
	if s.navTimeout > 0 {
		p = p.Timeout(s.navTimeout)
		defer p.CancelTimeout()
	}
	if err := p.Navigate(url); err != nil {
		return s.classify(err, fmt.Sprintf("navigation to %s failed", url))
	}
	// Best effort: a page that never fires load is still usable once the
	// caller's selector appears.
	if err := p.WaitLoad(); err != nil {
		if se := s.classify(err, "wait load"); models.IsSessionFatal(se) {
			return se
		}
		s.logger.Debug("load event not observed", "url", url, "error", err)
	}
	return nil
}

func (s *rodSession) WaitFor(selector string, timeout time.Duration) error {
	p := s.page.Timeout(timeout)
	defer p.CancelTimeout()

	if err := p.WaitElementsMoreThan(selector, 0); err != nil {
		if s.ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return models.NewScrapeError(
				models.ErrCodeElementNotFound,
				fmt.Sprintf("%q did not appear within %s", selector, timeout),
				err,
			)
		}
		return s.classify(err, fmt.Sprintf("waiting for %q", selector))
	}
	return nil
}

func (s *rodSession) HTML() (string, error) {
	html, err := s.page.HTML()
	if err != nil {
		return "", s.classify(err, "failed to extract page HTML")
	}
	return html, nil
}

func (s *rodSession) CurrentURL() (string, error) {
	res, err := s.page.Eval(`() => window.location.href`)
	if err != nil {
		return "", s.classify(err, "failed to read current URL")
	}
	return res.Value.Str(), nil
}

func (s *rodSession) Click(selector string) error {
	return s.withAction(func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		return clickElement(el)
	}, fmt.Sprintf("click %q", selector))
}

func (s *rodSession) ClickAt(selector string, index int) error {
	return s.withAction(func(p *rod.Page) error {
		els, err := p.Elements(selector)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(els) {
			return &rod.ElementNotFoundError{}
		}
		return clickElement(els[index])
	}, fmt.Sprintf("click %q #%d", selector, index))
}

func (s *rodSession) ClickText(selector, text string, timeout time.Duration) error {
	p := s.page.Timeout(timeout)
	defer p.CancelTimeout()

	el, err := p.ElementR(selector, jsRegexLiteral(text))
	if err != nil {
		if s.ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return models.NewScrapeError(
				models.ErrCodeElementNotFound,
				fmt.Sprintf("%q with text %q did not appear within %s", selector, text, timeout),
				err,
			)
		}
		return s.classify(err, fmt.Sprintf("find %q with text %q", selector, text))
	}
	if err := clickElement(el); err != nil {
		return s.classify(err, fmt.Sprintf("click %q with text %q", selector, text))
	}
	return nil
}

func (s *rodSession) Select(selector, value string) error {
	return s.withAction(func(p *rod.Page) error {
		el, err := p.Element(selector)
		if err != nil {
			return err
		}
		return el.Select([]string{fmt.Sprintf("option[value=%q]", value)}, true, rod.SelectorTypeCSSSector)
	}, fmt.Sprintf("select %q in %q", value, selector))
}

func (s *rodSession) WaitStable(d time.Duration) error {
	if d <= 0 {
		return nil
	}
	p := s.page.Timeout(d * 10)
	defer p.CancelTimeout()

	if err := p.WaitDOMStable(d, 0.1); err != nil {
		se := s.classify(err, "wait for stable DOM")
		if models.IsSessionFatal(se) || s.ctx.Err() != nil {
			return se
		}
		s.logger.Debug("DOM did not settle, proceeding with current DOM", "error", err)
	}
	return nil
}

// Close stops the hijack router and closes the tab. It uses the unbound
// page so teardown succeeds even after the scrape context has expired.
func (s *rodSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if closeErr := s.raw.Close(); closeErr != nil {
			err = Classify(closeErr, "failed to close tab")
			s.logger.Warn("session close failed", "error", closeErr)
		}
		if s.onClose != nil {
			s.onClose()
		}
	})
	return err
}

func (s *rodSession) withAction(fn func(p *rod.Page) error, msg string) error {
	p := s.page.Timeout(actionTimeout)
	defer p.CancelTimeout()

	if err := fn(p); err != nil {
		if s.ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return models.NewScrapeError(models.ErrCodeElementNotFound, msg+": element did not appear", err)
		}
		return s.classify(err, msg)
	}
	return nil
}

func (s *rodSession) classify(err error, msg string) *models.ScrapeError {
	if ctxErr := s.ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(ctxErr, err)
	}
	return Classify(err, msg)
}
