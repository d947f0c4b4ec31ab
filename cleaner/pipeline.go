// Package cleaner turns a fetched page into the view used to maintain
// site selectors: main content as Markdown, the elements a selector
// matches, product meta tags and the quantity the extraction rules read
// from the title.
package cleaner

import (
	"log/slog"
	"math"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"

	"github.com/use-agent/pricecrawl/extract"
	"github.com/use-agent/pricecrawl/models"
)

// Cleaner runs the inspect pipeline. The Markdown converter is created
// once and shared (goroutine-safe).
type Cleaner struct {
	md     *converter.Converter
	logger *slog.Logger
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner(logger *slog.Logger) *Cleaner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleaner{
		md:     newMarkdownConverter(),
		logger: logger.With("component", "cleaner"),
	}
}

// Inspect builds a partial InspectResponse (everything but timing, status
// and engine, which the API layer fills in).
//
// Flow:
//  1. Meta tags and links from the full page.
//  2. Readability extracts the main content; raw HTML on failure.
//  3. A matching selector replaces that content.
//  4. Markdown conversion.
//  5. Quantity read from the title with the scraper rules.
func (c *Cleaner) Inspect(rawHTML, sourceURL, selector string) (*models.InspectResponse, error) {
	// ── 1. Whole-page facts ─────────────────────────────────────────
	out := &models.InspectResponse{
		Success: true,
		Product: ProductMetaOf(rawHTML),
		Links:   SiteLinks(rawHTML, sourceURL),
	}
	originalTokens := EstimateTokens(rawHTML)

	// ── 2. Main content ─────────────────────────────────────────────
	article, ok := c.mainContent(rawHTML, sourceURL)
	out.Title = article.Title
	if out.Title == "" {
		out.Title = out.Product.Title
	}
	body := rawHTML
	if ok {
		body = article.Content
	}

	// ── 3. Selector ─────────────────────────────────────────────────
	// A matching selector replaces the readability content.
	if selector != "" {
		matched, n, err := ApplyCSSSelector(rawHTML, selector)
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeInvalidInput, "invalid css selector", err)
		}
		out.SelectorMatches = n
		if n > 0 {
			body = matched
		}
	}

	// ── 4. Markdown ─────────────────────────────────────────────────
	content, err := c.toMarkdown(body, sourceURL)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeConversion, "markdown conversion failed", err)
	}
	out.Content = content

	cleanedTokens := EstimateTokens(content)
	out.Tokens = models.TokenInfo{
		OriginalEstimate: originalTokens,
		CleanedEstimate:  cleanedTokens,
	}
	if originalTokens > 0 {
		pct := float64(originalTokens-cleanedTokens) / float64(originalTokens) * 100
		out.Tokens.SavingsPercent = math.Round(pct*100) / 100
	}

	// ── 5. Quantity ─────────────────────────────────────────────────
	if q, ok := TitleQuantity(out.Title); ok {
		out.Quantity = &q
	}
	return out, nil
}

// TitleQuantity applies the volume rules, then the count rules.
func TitleQuantity(title string) (models.QuantityMeasurement, bool) {
	if title == "" {
		return models.QuantityMeasurement{}, false
	}
	if q, ok := extract.ParseVolumeWithMultiplier(title); ok {
		return q, true
	}
	return extract.ParseCount(title)
}

// EstimateTokens approximates a token count as runes / 3, at least 1 for
// non-empty text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return max(n/3, 1)
}
