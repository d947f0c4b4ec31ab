package sites

import (
	"context"
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/extract"
	"github.com/use-agent/pricecrawl/models"
)

const (
	amazonResult       = "div[data-component-type='s-search-result']"
	amazonDetailMarker = "#productDetails_techSpec_section_1, #detailBullets_feature_div, .po-item_volume"
	amazonNoBrand      = "Company not found"
)

// amazon scrapes the generic marketplace. Volume-mode quantities are
// cross-validated across the title, the technical specification table and
// the item-volume attribute.
type amazon struct {
	base
}

func newAmazon(cfg config.SiteConfig, deps Deps) *amazon {
	return &amazon{base{id: models.SiteAmazon, cfg: cfg, deps: deps, gated: true}}
}

func (a *amazon) Scrape(ctx context.Context, keyword string, mode models.Mode) ([]models.ProductRecord, error) {
	return a.run(ctx, keyword, mode, func(c *crawl) error {
		searchURL := strings.TrimRight(a.cfg.BaseURL, "/") +
			"/s?k=" + strings.ReplaceAll(keyword, " ", "+") + "&language=en_AE"

		doc, ok, err := c.search(searchURL, amazonResult)
		if !ok {
			return err
		}

		// One link per result card; sponsored placements are skipped.
		var hrefs []string
		doc.Find(amazonResult).Each(func(_ int, card *goquery.Selection) {
			href, ok := card.Find("a.a-link-normal").First().Attr("href")
			if !ok || strings.Contains(href, "spons") {
				return
			}
			hrefs = append(hrefs, href)
		})

		candidates := 0
		for _, href := range hrefs {
			if c.full() {
				break
			}
			if a.cfg.MaxCandidates > 0 && candidates >= a.cfg.MaxCandidates {
				break
			}
			pageURL, err := resolve(a.cfg.BaseURL, href)
			if err != nil || c.seen(pageURL) {
				continue
			}
			candidates++

			page, err := c.detail(pageURL, amazonDetailMarker)
			if err != nil {
				if err := c.skip(err, pageURL); err != nil {
					return err
				}
				continue
			}
			cand := a.extract(ctx, page, keyword, mode)
			cand.URL = pageURL
			c.offer(cand)
		}
		return nil
	})
}

func (a *amazon) extract(ctx context.Context, doc *goquery.Document, keyword string, mode models.Mode) candidate {
	title := text(doc.Find("span#productTitle").First())
	cand := candidate{
		Name:       title,
		Brand:      amazonNoBrand,
		Confidence: models.ConfidenceNone,
	}
	if brand := text(doc.Find("tr.po-brand span.po-break-word").First()); brand != "" {
		cand.Brand = brand
	}
	if price, ok := extract.JoinPrice(
		text(doc.Find("span.a-price-whole").First()),
		text(doc.Find("span.a-price-fraction").First()),
	); ok {
		cand.Price = price
	}
	if title == "" {
		return cand
	}

	if mode == models.ModeUnits {
		kw := strings.ToLower(keyword)
		if strings.Contains(kw, "wipes") || strings.Contains(kw, "rags") {
			if n := a.deps.Gate.ExtractUnitCount(ctx, title); n > 0 {
				cand.Quantity = unitCount(title, n)
				cand.Confidence = models.ConfidenceAIDerived
			}
			return cand
		}
		if q, ok := extract.ParseCount(title); ok {
			cand.Quantity = q
			cand.Confidence = models.ConfidenceFromTitle
		}
		return cand
	}

	sources := []source{
		{name: "title", text: title},
		{name: "spec_table", text: specValue(doc, "table#productDetails_techSpec_section_1 tr", "volume", "weight")},
		{name: "item_volume", text: text(doc.Find("tr.po-item_volume span.po-break-word").First())},
	}
	if q, conf, by, ok := crossValidate(sources); ok {
		cand.Quantity = q
		cand.Confidence = conf
		cand.ConfirmedBy = by
	}
	return cand
}

// source is one page region a volume can be read from.
type source struct {
	name string
	text string
}

// volumeTolerance is the largest normalized difference at which two
// sources agree.
const volumeTolerance = 1.0

// crossValidate parses every source and returns the first pair, in source
// order, whose normalized values differ by less than volumeTolerance. The
// earlier source of the pair supplies the measurement. Without agreement
// the first source (the title) is used alone with FromTitle confidence.
func crossValidate(sources []source) (models.QuantityMeasurement, models.Confidence, string, bool) {
	type parsed struct {
		name string
		q    models.QuantityMeasurement
	}
	var found []parsed
	for _, s := range sources {
		if q, ok := extract.ParseVolume(s.text); ok {
			found = append(found, parsed{s.name, q})
		}
	}

	for i := range found {
		for j := i + 1; j < len(found); j++ {
			if math.Abs(found[i].q.Normalized-found[j].q.Normalized) < volumeTolerance {
				return found[i].q, models.ConfidenceConfirmed, found[i].name + "+" + found[j].name, true
			}
		}
	}

	if len(sources) > 0 && len(found) > 0 && found[0].name == sources[0].name {
		return found[0].q, models.ConfidenceFromTitle, "", true
	}
	return models.QuantityMeasurement{}, models.ConfidenceNone, "", false
}

// specValue returns the value cell of the first table row whose header
// contains one of labels, trying labels in order.
func specValue(doc *goquery.Document, rows string, labels ...string) string {
	for _, label := range labels {
		var value string
		doc.Find(rows).EachWithBreak(func(_ int, row *goquery.Selection) bool {
			header := strings.ToLower(text(row.Find("th").First()))
			if header == "" || !strings.Contains(header, label) {
				return true
			}
			value = text(row.Find("td").First())
			return false
		})
		if value != "" {
			return value
		}
	}
	return ""
}
