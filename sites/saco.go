package sites

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/extract"
	"github.com/use-agent/pricecrawl/models"
)

const (
	sacoCard        = "div.product-inner-container"
	sacoLink        = "div.product-inner-container p.product-name a"
	sacoTitle       = "h1.product-title"
	sacoPrice       = "span.discount-price"
	sacoDetails     = "ul.details-box li"
	sacoNext        = "a.next"
	sacoNoBrand     = "Brand not found"
	sacoCookieWait  = 5 * time.Second
	sacoListingWait = 20 * time.Second
)

// saco scrapes the paginated catalog. Product pages are reached by
// clicking listing entries, and the listing is reloaded after each one.
// Pagination stops when "next" is missing or leaves the URL unchanged.
type saco struct {
	base
}

func newSaco(cfg config.SiteConfig, deps Deps) *saco {
	return &saco{base{id: models.SiteSaco, cfg: cfg, deps: deps, gated: true}}
}

func (s *saco) Scrape(ctx context.Context, keyword string, mode models.Mode) ([]models.ProductRecord, error) {
	return s.run(ctx, keyword, mode, func(c *crawl) error {
		searchURL := s.cfg.BaseURL + "search/" + quote(keyword)
		if err := c.sess.Navigate(searchURL); err != nil {
			return c.giveUp(err, searchURL, "search page failed")
		}
		if err := c.sess.ClickText("button", "Accept", sacoCookieWait); err != nil {
			if c.fatal(err) {
				return err
			}
			c.logger.Debug("no cookie banner")
		}
		if err := c.sess.WaitFor(sacoCard, s.cfg.SearchTimeout); err != nil {
			return c.giveUp(err, searchURL, "no results")
		}

		for page := 1; ; page++ {
			listingURL, err := c.sess.CurrentURL()
			if err != nil {
				return c.giveUp(err, searchURL, "listing lost")
			}
			c.logger.Info("reading listing page", "page", page, "url", listingURL)

			if err := s.visitListing(c, listingURL, mode); err != nil {
				return err
			}
			if c.full() {
				return nil
			}
			if s.cfg.MaxPages > 0 && page >= s.cfg.MaxPages {
				c.logger.Info("pagination ended", "reason", "page cap reached", "pages", page)
				return nil
			}

			more, err := s.next(c, listingURL)
			if err != nil || !more {
				return err
			}
		}
	})
}

// visitListing opens every product of the listing at listingURL in turn.
func (s *saco) visitListing(c *crawl, listingURL string, mode models.Mode) error {
	doc, err := c.document()
	if err != nil {
		return c.giveUp(err, listingURL, "listing unreadable")
	}

	// Entries with a visible name, by index into sacoLink. url is where the
	// link points and names the candidate in logs.
	type entry struct {
		idx int
		url string
	}
	var entries []entry
	doc.Find(sacoLink).Each(func(i int, a *goquery.Selection) {
		if text(a) == "" {
			return
		}
		e := entry{idx: i, url: fmt.Sprintf("%s#entry-%d", listingURL, i)}
		if href, ok := a.Attr("href"); ok {
			if abs, err := resolve(listingURL, href); err == nil {
				e.url = abs
			}
		}
		entries = append(entries, e)
	})
	if len(entries) == 0 {
		c.logger.Info("listing has no products", "url", listingURL)
		return nil
	}

	for _, e := range entries {
		if c.full() {
			return nil
		}
		err := s.visitEntry(c, e.idx, mode)
		if err != nil {
			if err := c.skip(err, e.url); err != nil {
				return err
			}
		}
		// Back to the listing either way; the clicked page replaced it.
		if err := c.sess.Navigate(listingURL); err != nil {
			return c.giveUp(err, listingURL, "listing lost")
		}
		if err := c.sess.WaitFor(sacoCard, sacoListingWait); err != nil {
			return c.giveUp(err, listingURL, "listing lost")
		}
	}
	return nil
}

func (s *saco) visitEntry(c *crawl, idx int, mode models.Mode) error {
	if err := c.sess.ClickAt(sacoLink, idx); err != nil {
		return err
	}
	if err := c.sess.WaitFor(sacoTitle, s.cfg.DetailTimeout); err != nil {
		return err
	}
	pageURL, err := c.sess.CurrentURL()
	if err != nil {
		return err
	}
	if c.seen(pageURL) {
		c.logger.Info("candidate skipped", "url", pageURL, "reason", "already visited")
		return nil
	}
	doc, err := c.document()
	if err != nil {
		return err
	}
	cand := s.extract(doc, mode)
	cand.URL = pageURL
	c.offer(cand)
	return nil
}

// next follows the pagination control. It reports false when there is no
// further page.
func (s *saco) next(c *crawl, listingURL string) (bool, error) {
	if err := c.sess.Click(sacoNext); err != nil {
		if c.fatal(err) {
			return false, err
		}
		c.logger.Info("pagination ended", "reason", "no next control")
		return false, nil
	}
	if err := c.sess.WaitStable(s.cfg.Settle); err != nil {
		return false, c.giveUp(err, listingURL, "next page failed")
	}
	current, err := c.sess.CurrentURL()
	if err != nil {
		return false, c.giveUp(err, listingURL, "next page failed")
	}
	if current == listingURL {
		c.logger.Info("pagination ended", "reason", "url unchanged")
		return false, nil
	}
	if err := c.sess.WaitFor(sacoCard, sacoListingWait); err != nil {
		return false, c.giveUp(err, current, "next page empty")
	}
	return true, nil
}

func (s *saco) extract(doc *goquery.Document, mode models.Mode) candidate {
	title := text(doc.Find(sacoTitle).First())
	cand := candidate{Name: title, Brand: sacoNoBrand, Confidence: models.ConfidenceNone}

	if price, ok := extract.ParsePrice(joinedText(doc.Find(sacoPrice).First(), ".")); ok {
		cand.Price = price
	}
	doc.Find(sacoDetails).EachWithBreak(func(_ int, li *goquery.Selection) bool {
		label := li.Find("label").First()
		if !strings.Contains(label.Text(), "Brand:") {
			return true
		}
		if brand := text(label.NextAllFiltered("span").First()); brand != "" {
			cand.Brand = brand
			return false
		}
		return true
	})
	if title == "" {
		return cand
	}

	var (
		q  models.QuantityMeasurement
		ok bool
	)
	if mode == models.ModeUnits {
		if q, ok = extract.ParseDashCount(title); !ok {
			q, ok = extract.ParseCount(title)
		}
	} else {
		q, ok = extract.ParseVolume(title)
	}
	if ok {
		cand.Quantity = q
		cand.Confidence = models.ConfidenceFromTitle
	}
	return cand
}
