package sites

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/extract"
	"github.com/use-agent/pricecrawl/models"
)

const (
	mumzworldCard  = "div.ProductCard_productCard__kFgss"
	mumzworldLink  = "a.ProductCard_productName__Dz1Yx"
	mumzworldTitle = "h1.ProductDetails_productName__lcVK_"
	mumzworldPrice = "span.Price_integer__3ngZQ"
	mumzworldSpecs = "table tr"
)

// Labels of specification rows that carry a quantity, per mode.
var (
	mumzworldVolumeLabels = []string{"volume", "capacity", "size", "weight"}
	mumzworldCountLabels  = []string{"count", "pieces", "quantity", "pack"}
)

// mumzworld scrapes the baby-care catalog. Quantities come from the title,
// multiplied by any "pack of N" phrasing; the specification table is the
// fallback when the title has none.
type mumzworld struct {
	base
}

func newMumzworld(cfg config.SiteConfig, deps Deps) *mumzworld {
	return &mumzworld{base{id: models.SiteMumzworld, cfg: cfg, deps: deps, gated: true}}
}

func (m *mumzworld) Scrape(ctx context.Context, keyword string, mode models.Mode) ([]models.ProductRecord, error) {
	return m.run(ctx, keyword, mode, func(c *crawl) error {
		doc, ok, err := c.search(m.cfg.BaseURL+"search?q="+quote(keyword), mumzworldCard)
		if !ok {
			return err
		}

		for _, pageURL := range links(doc, mumzworldCard+" "+mumzworldLink, m.cfg.BaseURL, nil) {
			if c.full() {
				break
			}
			page, err := c.detail(pageURL, mumzworldTitle)
			if err != nil {
				if err := c.skip(err, pageURL); err != nil {
					return err
				}
				continue
			}
			cand := m.extract(page, mode)
			cand.URL = pageURL
			c.offer(cand)
		}
		return nil
	})
}

func (m *mumzworld) extract(doc *goquery.Document, mode models.Mode) candidate {
	title := text(doc.Find(mumzworldTitle).First())
	cand := candidate{Name: title, Confidence: models.ConfidenceNone}
	if title == "" {
		return cand
	}

	cand.Brand = brandPrefix(title)
	if price, ok := extract.ParsePrice(text(doc.Find(mumzworldPrice).First())); ok {
		cand.Price = price
	}

	parse := extract.ParseVolume
	labels := mumzworldVolumeLabels
	if mode == models.ModeUnits {
		parse = extract.ParseLooseCount
		labels = mumzworldCountLabels
	}

	if q, ok := parse(title); ok {
		if n, ok := extract.PackMultiplier(title); ok {
			q.Quantity *= float64(n)
			q.Normalized *= float64(n)
		}
		cand.Quantity = q
		cand.Confidence = models.ConfidenceFromTitle
		return cand
	}

	if q, ok := parse(specValue(doc, mumzworldSpecs, labels...)); ok {
		cand.Quantity = q
	}
	return cand
}

// brandPrefix reads the brand from "Brand - Product" titles, falling back
// to the first word.
func brandPrefix(title string) string {
	if before, _, ok := strings.Cut(title, " - "); ok {
		return strings.TrimSpace(before)
	}
	if fields := strings.Fields(title); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
