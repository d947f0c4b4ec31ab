package sites

import (
	"context"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/extract"
	"github.com/use-agent/pricecrawl/models"
)

const (
	gogreenCard      = "div.card.card-product"
	gogreenLink      = "a.css-thumbnail"
	gogreenTitle     = "h1.h5"
	gogreenPrice     = "span.js-product-price"
	gogreenLangOpen  = "a.js-language-shipping"
	gogreenLangPick  = "#floatingSelectLanguage"
	gogreenLangSave  = "button.js-button-save"
	gogreenEnglish   = "html[lang='en']"
	gogreenBrand     = "GoGreen"
	gogreenLangWait  = 10 * time.Second
	gogreenLangCheck = 15 * time.Second
)

var gogreenPriceRe = regexp.MustCompile(`([\d,]+\.\d{2})`)

// gogreen scrapes the localized catalog. The storefront defaults to Arabic
// and must be switched to English through its language dialog first.
type gogreen struct {
	base
}

func newGoGreen(cfg config.SiteConfig, deps Deps) *gogreen {
	return &gogreen{base{id: models.SiteGoGreen, cfg: cfg, deps: deps, gated: true}}
}

func (g *gogreen) Scrape(ctx context.Context, keyword string, mode models.Mode) ([]models.ProductRecord, error) {
	return g.run(ctx, keyword, mode, func(c *crawl) error {
		if err := g.english(c); err != nil {
			return c.giveUp(err, g.cfg.BaseURL, "language not switched")
		}

		doc, ok, err := c.search(g.cfg.BaseURL+"products?search="+quote(keyword), gogreenCard)
		if !ok {
			return err
		}

		for _, pageURL := range links(doc, gogreenCard+" "+gogreenLink, g.cfg.BaseURL, nil) {
			if c.full() {
				break
			}
			page, err := c.detail(pageURL, gogreenTitle)
			if err != nil {
				if err := c.skip(err, pageURL); err != nil {
					return err
				}
				continue
			}
			cand := g.extract(page, mode)
			cand.URL = pageURL
			c.offer(cand)
		}
		return nil
	})
}

// english switches the storefront language and verifies the switch.
func (g *gogreen) english(c *crawl) error {
	if err := c.sess.Navigate(g.cfg.BaseURL); err != nil {
		return err
	}
	doc, err := c.document()
	if err != nil {
		return err
	}
	if doc.Find(gogreenEnglish).Length() > 0 {
		return nil
	}

	c.logger.Info("switching storefront to English")
	steps := []func() error{
		func() error { return c.sess.Click(gogreenLangOpen) },
		func() error { return c.sess.WaitFor(gogreenLangPick, gogreenLangWait) },
		func() error { return c.sess.Select(gogreenLangPick, "en") },
		func() error { return c.sess.Click(gogreenLangSave) },
		func() error { return c.sess.WaitFor(gogreenEnglish, gogreenLangCheck) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

func (g *gogreen) extract(doc *goquery.Document, mode models.Mode) candidate {
	title := text(doc.Find(gogreenTitle).First())
	cand := candidate{Name: title, Brand: gogreenBrand, Confidence: models.ConfidenceNone}

	if m := gogreenPriceRe.FindStringSubmatch(doc.Find(gogreenPrice).First().Text()); m != nil {
		if price, ok := extract.ParsePrice(m[1]); ok {
			cand.Price = price
		}
	}
	if title == "" {
		return cand
	}

	parse := extract.ParseVolumeWithMultiplier
	if mode == models.ModeUnits {
		parse = extract.ParseCount
	}
	if q, ok := parse(title); ok {
		cand.Quantity = q
		cand.Confidence = models.ConfidenceFromTitle
	}
	return cand
}
