package cleaner

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/use-agent/pricecrawl/models"
)

// ProductMetaOf reads Open Graph and product meta tags
// (og:title, og:type, product:brand, product:price:amount, ...).
func ProductMetaOf(rawHTML string) models.ProductMeta {
	var meta models.ProductMeta

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return meta
	}

	doc.Find("meta[property], meta[itemprop]").Each(func(_ int, s *goquery.Selection) {
		key, ok := s.Attr("property")
		if !ok {
			key, _ = s.Attr("itemprop")
		}
		content := strings.TrimSpace(s.AttrOr("content", ""))
		if content == "" {
			return
		}
		switch strings.ToLower(key) {
		case "og:title":
			meta.Title = content
		case "og:type":
			meta.Type = content
		case "product:brand", "og:brand", "brand":
			meta.Brand = content
		case "product:price:amount", "og:price:amount", "price":
			meta.Price = content
		case "product:price:currency", "og:price:currency", "pricecurrency":
			meta.Currency = content
		}
	})
	return meta
}

// SiteLinks returns the distinct http(s) links on the same host as
// sourceURL, in document order.
func SiteLinks(rawHTML, sourceURL string) []models.Link {
	links := []models.Link{}

	base, err := url.Parse(sourceURL)
	if err != nil {
		return links
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return links
	}

	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "" {
			return
		}
		resolved, err := base.Parse(href)
		if err != nil {
			return
		}
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			return
		}
		if !strings.EqualFold(resolved.Host, base.Host) {
			return
		}
		resolved.Fragment = ""
		abs := resolved.String()
		if _, ok := seen[abs]; ok {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, models.Link{
			Href: abs,
			Text: strings.Join(strings.Fields(s.Text()), " "),
		})
	})
	return links
}
