package sites

import (
	"context"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/extract"
	"github.com/use-agent/pricecrawl/models"
)

const (
	officeSupplyCard    = "div.ut2-gl__body"
	officeSupplyLink    = "a.product_icon_lnk"
	officeSupplyMarker  = "span.ty-price-num"
	officeSupplyTitle   = "h1 bdi"
	officeSupplyNoBrand = "Brand not found"

	officeSupplySearch = "?match=all&subcats=Y&pcode_from_q=Y&pshort=Y&pfull=Y&pname=Y" +
		"&pkeywords=Y&search_performed=Y&dispatch=products.search&q="
)

var digitsRe = regexp.MustCompile(`\d+`)

// officeSupply scrapes the B2B catalog, a CS-Cart storefront that renders
// prices as digit spans with the decimals in a <sup>.
type officeSupply struct {
	base
}

func newOfficeSupply(cfg config.SiteConfig, deps Deps) *officeSupply {
	return &officeSupply{base{id: models.SiteOfficeSupply, cfg: cfg, deps: deps, gated: true}}
}

func (o *officeSupply) Scrape(ctx context.Context, keyword string, mode models.Mode) ([]models.ProductRecord, error) {
	return o.run(ctx, keyword, mode, func(c *crawl) error {
		doc, ok, err := c.search(o.cfg.BaseURL+officeSupplySearch+quote(keyword), officeSupplyCard)
		if !ok {
			return err
		}

		for _, pageURL := range links(doc, officeSupplyCard+" "+officeSupplyLink, o.cfg.BaseURL, nil) {
			if c.full() {
				break
			}
			page, err := c.detail(pageURL, officeSupplyMarker)
			if err != nil {
				if err := c.skip(err, pageURL); err != nil {
					return err
				}
				continue
			}
			cand := o.extract(page, mode)
			cand.URL = pageURL
			c.offer(cand)
		}
		return nil
	})
}

func (o *officeSupply) extract(doc *goquery.Document, mode models.Mode) candidate {
	title := text(doc.Find(officeSupplyTitle).First())
	cand := candidate{Name: title, Brand: officeSupplyNoBrand, Confidence: models.ConfidenceNone}
	if price, ok := officeSupplyPrice(doc); ok {
		cand.Price = price
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

// officeSupplyPrice reassembles "<span class=ty-price-num>12<sup>50</sup>"
// into 12.50. The first digit-bearing span wins; the currency icon span
// carries none.
func officeSupplyPrice(doc *goquery.Document) (float64, bool) {
	container := doc.Find("span.ty-price bdi, .ty-price bdi").First()
	if container.Length() == 0 {
		container = doc.Find(officeSupplyTitle).First()
	}
	if container.Length() == 0 {
		return 0, false
	}

	spans := container.Find("span.ty-price-num")
	target := spans.FilterFunction(func(_ int, s *goquery.Selection) bool {
		return digitsRe.MatchString(s.Text())
	}).First()
	if target.Length() == 0 {
		target = spans.Last()
	}
	if target.Length() == 0 {
		return 0, false
	}

	all := strings.Join(digitsRe.FindAllString(target.Text(), -1), "")
	sup := target.Find("sup").First()
	dec := strings.Join(digitsRe.FindAllString(sup.Text(), -1), "")

	whole := all
	if sup.Length() > 0 && dec != "" && strings.HasSuffix(all, dec) {
		if w := strings.TrimSuffix(all, dec); w != "" {
			whole = w
		}
	}
	if whole == "" {
		return 0, false
	}
	if dec != "" {
		return extract.ParsePrice(whole + "." + dec)
	}
	return extract.ParsePrice(whole)
}
