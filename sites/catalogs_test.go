package sites

import (
	"context"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper/scrapertest"
)

func TestMumzworld(t *testing.T) {
	search := "https://www.mumzworld.com/sa-en/search?q=baby%20wipes"
	card := func(href string) string {
		return `<div class="ProductCard_productCard__kFgss"><a class="ProductCard_productName__Dz1Yx" href="` + href + `">p</a></div>`
	}
	product := func(title, price, specs string) string {
		return page(`<h1 class="ProductDetails_productName__lcVK_">` + title + `</h1>
<span class="Price_integer__3ngZQ">` + price + `</span>` + specs)
	}

	b := scrapertest.NewBrowser(map[string]string{
		search: page(card("/sa-en/pampers-wipes") + card("/sa-en/johnsons-wipes") + card("/sa-en/huggies-box")),
		"https://www.mumzworld.com/sa-en/pampers-wipes": product("Pampers - Sensitive Baby Wipes 52s, Pack of 4", "1,234", ""),
		"https://www.mumzworld.com/sa-en/johnsons-wipes": product("Johnson's Gentle Baby Wipes", "18",
			`<table><tr><th>Brand</th><td>Johnson's</td></tr><tr><th>Count</th><td>80 Wipes</td></tr></table>`),
		"https://www.mumzworld.com/sa-en/huggies-box": product("Huggies Wipes Box", "30", ""),
	})
	s := newMumzworld(siteConfig(models.SiteMumzworld), testDeps(b, &fakeGate{}))

	records, err := s.Scrape(context.Background(), "baby wipes", models.ModeUnits)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Pampers", records[0].Brand)
	assert.Equal(t, 208.0, records[0].TotalQuantity, "52 wipes x pack of 4")
	assert.Equal(t, 1234.0, records[0].Price)
	assert.Equal(t, models.ConfidenceFromTitle, records[0].Confidence)

	assert.Equal(t, "Johnson's", records[1].Brand)
	assert.Equal(t, 80.0, records[1].TotalQuantity)
	assert.Equal(t, models.ConfidenceNone, records[1].Confidence, "quantity from the specification table")
}

func TestMumzworld_Volume(t *testing.T) {
	search := "https://www.mumzworld.com/sa-en/search?q=bottle%20cleanser"
	b := scrapertest.NewBrowser(map[string]string{
		search:                               page(`<div class="ProductCard_productCard__kFgss"><a class="ProductCard_productName__Dz1Yx" href="/sa-en/p1">p</a></div>`),
		"https://www.mumzworld.com/sa-en/p1": page(`<h1 class="ProductDetails_productName__lcVK_">Dr. Brown's Bottle Cleanser 500ml</h1>`),
	})
	s := newMumzworld(siteConfig(models.SiteMumzworld), testDeps(b, &fakeGate{}))

	records, err := s.Scrape(context.Background(), "bottle cleanser", models.ModeVolume)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 500.0, records[0].TotalQuantity)
	assert.Equal(t, models.UnitML, records[0].Unit)
	assert.Zero(t, records[0].Price)
}

func TestMumzworld_WordEndingInXIsNotAMultiplier(t *testing.T) {
	s := newMumzworld(siteConfig(models.SiteMumzworld), testDeps(scrapertest.NewBrowser(nil), &fakeGate{}))

	tests := []struct {
		title string
		want  float64
	}{
		{"Dettol - Max 500ml Floor Cleaner", 500},
		{"Johnson's - Baby Shampoo 200ml, Pack of 3", 600},
	}
	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(
				page(`<h1 class="ProductDetails_productName__lcVK_">` + tt.title + `</h1>`)))
			require.NoError(t, err)

			cand := s.extract(doc, models.ModeVolume)
			assert.Equal(t, models.ConfidenceFromTitle, cand.Confidence)
			assert.Equal(t, tt.want, cand.Quantity.Quantity)
			assert.Equal(t, models.UnitML, cand.Quantity.Unit)
		})
	}
}

const gogreenSearchURL = "https://gogreen.com.sa/products?search=glass%20cleaner"

func gogreenFixture(home string) *scrapertest.Browser {
	b := scrapertest.NewBrowser(map[string]string{
		"https://gogreen.com.sa/":         home,
		"https://gogreen.com.sa/?lang=en": page(`<p>Welcome</p>`),
		gogreenSearchURL: page(`<div class="card card-product"><a class="css-thumbnail" href="/products/g1">x</a></div>
<div class="card card-product"><a class="css-thumbnail" href="/products/g2">x</a></div>`),
		"https://gogreen.com.sa/products/g1": page(`<h1 class="h5">Eco Glass Cleaner 6 Pcs x 750 ml</h1><span class="js-product-price">SAR 1,045.50</span>`),
		"https://gogreen.com.sa/products/g2": page(`<h1 class="h5">Eco Glass Wiper</h1><span class="js-product-price">SAR 20.00</span>`),
	})
	b.OnClick[gogreenLangSave] = "https://gogreen.com.sa/?lang=en"
	return b
}

const gogreenArabicHome = `<html lang="ar"><body>
<a class="js-language-shipping">EN</a>
<select id="floatingSelectLanguage"><option value="ar">AR</option><option value="en">English</option></select>
<button class="js-button-save">Save</button>
</body></html>`

func TestGoGreen_SwitchesLanguage(t *testing.T) {
	b := gogreenFixture(gogreenArabicHome)
	s := newGoGreen(siteConfig(models.SiteGoGreen), testDeps(b, &fakeGate{}))

	records, err := s.Scrape(context.Background(), "glass cleaner", models.ModeVolume)
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "https://gogreen.com.sa/products/g1", rec.URL)
	assert.Equal(t, gogreenBrand, rec.Brand)
	assert.Equal(t, 1045.5, rec.Price)
	assert.Equal(t, 4500.0, rec.TotalQuantity)
	assert.Equal(t, models.UnitML, rec.Unit)

	assert.Equal(t, []string{
		"https://gogreen.com.sa/",
		"https://gogreen.com.sa/?lang=en",
		gogreenSearchURL,
		"https://gogreen.com.sa/products/g1",
		"https://gogreen.com.sa/products/g2",
	}, b.Visits())
}

func TestGoGreen_AlreadyEnglish(t *testing.T) {
	b := gogreenFixture(page(`<p>home</p>`))
	s := newGoGreen(siteConfig(models.SiteGoGreen), testDeps(b, &fakeGate{}))

	records, err := s.Scrape(context.Background(), "glass cleaner", models.ModeVolume)
	require.NoError(t, err)
	assert.Len(t, records, 1)
	assert.NotContains(t, b.Visits(), "https://gogreen.com.sa/?lang=en")
}

func TestGoGreen_LanguageSwitchFails(t *testing.T) {
	b := gogreenFixture(`<html lang="ar"><body><p>no dialog</p></body></html>`)
	s := newGoGreen(siteConfig(models.SiteGoGreen), testDeps(b, &fakeGate{}))

	records, err := s.Scrape(context.Background(), "glass cleaner", models.ModeVolume)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.NotContains(t, b.Visits(), gogreenSearchURL, "search never runs on a non-English storefront")
	assert.Equal(t, 1, b.Closed())
}

func TestOfficeSupply(t *testing.T) {
	search := "https://officesupply.sa/en/" + officeSupplySearch + "dish%20soap"
	b := scrapertest.NewBrowser(map[string]string{
		search: page(`<div class="ut2-gl__body"><a class="product_icon_lnk" href="https://officesupply.sa/en/fairy-1-5l/">x</a></div>
<div class="ut2-gl__body"><a class="product_icon_lnk" href="https://officesupply.sa/en/fairy-pack/">x</a></div>`),
		"https://officesupply.sa/en/fairy-1-5l/": page(`<h1><bdi>Fairy Dish Soap 1.5 L</bdi></h1>
<span class="ty-price"><bdi><span class="ty-price-num">SAR</span><span class="ty-price-num">27<sup>50</sup></span></bdi></span>`),
		"https://officesupply.sa/en/fairy-pack/": page(`<h1><bdi>Fairy Dish Soap 4 x 500 ml</bdi></h1>
<span class="ty-price"><bdi><span class="ty-price-num">58</span></bdi></span>`),
	})
	s := newOfficeSupply(siteConfig(models.SiteOfficeSupply), testDeps(b, &fakeGate{}))

	records, err := s.Scrape(context.Background(), "dish soap", models.ModeVolume)
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, 27.5, records[0].Price)
	assert.Equal(t, 1.5, records[0].TotalQuantity)
	assert.Equal(t, models.UnitL, records[0].Unit)
	assert.Equal(t, 1500.0, records[0].NormalizedQuantity)
	assert.Equal(t, officeSupplyNoBrand, records[0].Brand)

	assert.Equal(t, 58.0, records[1].Price)
	assert.Equal(t, 2000.0, records[1].TotalQuantity, "4 x 500 ml")
}

func TestOfficeSupplyPrice(t *testing.T) {
	tests := []struct {
		name string
		html string
		want float64
		ok   bool
	}{
		{"sup decimals", `<span class="ty-price"><bdi><span class="ty-price-num">SAR</span><span class="ty-price-num">1,299<sup>95</sup></span></bdi></span>`, 1299.95, true},
		{"whole only", `<span class="ty-price"><bdi><span class="ty-price-num">1,200</span></bdi></span>`, 1200, true},
		{"decimals equal whole", `<span class="ty-price"><bdi><span class="ty-price-num">5<sup>5</sup></span></bdi></span>`, 5.5, true},
		{"no digits", `<span class="ty-price"><bdi><span class="ty-price-num">SAR</span></bdi></span>`, 0, false},
		{"no price", `<p>call us</p>`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := goquery.NewDocumentFromReader(strings.NewReader(page(tt.html)))
			require.NoError(t, err)
			got, ok := officeSupplyPrice(doc)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 0.001)
		})
	}
}

const aeroSenseURL = "https://www.aero-sense.com/en/online-shop/cabin-and-exterior-cleaning/cabin-cleaner"

func aeroSenseFixture() *scrapertest.Browser {
	return scrapertest.NewBrowser(map[string]string{
		aeroSenseURL: page(`<h1><div class="field--name-title">Cabin Cleaner</div></h1>
<div id="edit-purchased-entity-0-attributes-attribute-volume">
  <div class="js-form-item"><span class="package">500 ml x 6</span><span class="variationprice">€45.00</span></div>
  <div class="js-form-item"><span class="package">5 L</span><span class="variationprice">€1,120.00</span></div>
  <div class="js-form-item"><span class="package">Sprayer (1 pcs)</span><span class="variationprice">€10.00</span></div>
  <div class="js-form-item"><span class="package">25 L</span></div>
</div>`),
	})
}

func TestAeroSense(t *testing.T) {
	g := &fakeGate{reject: []string{"Cabin"}}
	s := newAeroSense(siteConfig(models.SiteAeroSense), 4.39, testDeps(aeroSenseFixture(), g))

	records, err := s.Scrape(context.Background(), "Cabin Cleaner", models.ModeVolume)
	require.NoError(t, err)
	require.Len(t, records, 2, "the sprayer has no volume and the last variation no price")
	assert.Empty(t, g.calls(), "direct product pages are not gated")

	assert.Equal(t, aeroSenseURL+"#500-ml-x-6", records[0].URL)
	assert.Equal(t, "Cabin Cleaner - 500 ml x 6", records[0].Name)
	assert.Equal(t, aeroSenseBrand, records[0].Brand)
	assert.Equal(t, 3000.0, records[0].TotalQuantity)
	assert.Equal(t, models.UnitML, records[0].Unit)
	assert.InDelta(t, 197.55, records[0].Price, 0.001)

	assert.Equal(t, aeroSenseURL+"#5-l", records[1].URL)
	assert.Equal(t, 5000.0, records[1].TotalQuantity)
	assert.InDelta(t, 4916.8, records[1].Price, 0.001)
}

func TestAeroSense_Units(t *testing.T) {
	s := newAeroSense(siteConfig(models.SiteAeroSense), 4.39, testDeps(aeroSenseFixture(), &fakeGate{}))

	records, err := s.Scrape(context.Background(), "cabin cleaner", models.ModeUnits)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 1.0, records[0].TotalQuantity)
	assert.Equal(t, models.UnitUnits, records[0].Unit)
}

func TestAeroSense_NotFound(t *testing.T) {
	b := scrapertest.NewBrowser(map[string]string{})
	s := newAeroSense(siteConfig(models.SiteAeroSense), 4.39, testDeps(b, &fakeGate{}))

	records, err := s.Scrape(context.Background(), "unknown product", models.ModeVolume)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, b.Closed())
}
