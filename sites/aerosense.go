package sites

import (
	"context"
	"strconv"
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/extract"
	"github.com/use-agent/pricecrawl/models"
)

const (
	aeroSenseTitle     = "h1 div.field--name-title"
	aeroSenseVariation = "#edit-purchased-entity-0-attributes-attribute-volume .js-form-item"
	aeroSenseBrand     = "AeroSense"
)

// aeroSense reads a single product page addressed by keyword slug. Every
// package variation on the page becomes its own record, so records are not
// gated: the URL already pins the product.
type aeroSense struct {
	base
	eurToSAR float64
}

func newAeroSense(cfg config.SiteConfig, eurToSAR float64, deps Deps) *aeroSense {
	return &aeroSense{
		base:     base{id: models.SiteAeroSense, cfg: cfg, deps: deps},
		eurToSAR: eurToSAR,
	}
}

func (a *aeroSense) Scrape(ctx context.Context, keyword string, mode models.Mode) ([]models.ProductRecord, error) {
	return a.run(ctx, keyword, mode, func(c *crawl) error {
		productURL := a.cfg.BaseURL + strings.ReplaceAll(strings.ToLower(keyword), " ", "-")

		doc, err := c.detail(productURL, aeroSenseTitle)
		if err != nil {
			return c.giveUp(err, productURL, "product page not found")
		}

		name := text(doc.Find(aeroSenseTitle).First())
		variations := doc.Find(aeroSenseVariation)
		if variations.Length() == 0 {
			c.logger.Info("search ended", "url", productURL, "reason", "no variations")
			return nil
		}

		variations.EachWithBreak(func(_ int, v *goquery.Selection) bool {
			if c.full() {
				return false
			}
			cand, ok := a.variation(v, name, productURL, mode)
			if !ok {
				c.logger.Info("variation skipped", "url", productURL, "reason", "no package or price")
				return true
			}
			c.offer(cand)
			return true
		})
		return nil
	})
}

// variation builds the candidate of one package option. Its URL carries
// the package slug as fragment so each variation is a distinct page.
func (a *aeroSense) variation(v *goquery.Selection, name, productURL string, mode models.Mode) (candidate, bool) {
	pkg := text(v.Find(".package").First())
	priceTag := v.Find(".variationprice").First()
	if pkg == "" || priceTag.Length() == 0 {
		return candidate{}, false
	}

	raw := strings.NewReplacer("€", "", ",", "").Replace(text(priceTag))
	eur, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return candidate{}, false
	}

	cand := candidate{
		URL:        productURL + "#" + slug(pkg),
		Name:       name + " - " + pkg,
		Brand:      aeroSenseBrand,
		Price:      extract.Round2(eur * a.eurToSAR),
		Confidence: models.ConfidenceFromTitle,
	}
	if mode == models.ModeUnits {
		if n, ok := extract.ParsePackageUnits(pkg); ok {
			cand.Quantity = unitCount(pkg, n)
		}
	} else if ml, ok := extract.ParsePackageVolumeML(pkg); ok {
		cand.Quantity = models.QuantityMeasurement{RawText: pkg, Quantity: ml, Unit: models.UnitML, Normalized: ml}
	}
	return cand, true
}

// slug lowercases s and joins its alphanumeric runs with "-".
func slug(s string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}), "-")
}
