package sites

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper"
	"github.com/use-agent/pricecrawl/simhash"
)

// base carries what every site scraper shares.
type base struct {
	id    models.SiteID
	cfg   config.SiteConfig
	deps  Deps
	gated bool
}

func (b *base) Site() models.SiteID { return b.id }

// run acquires one session, hands it to body and releases it on every
// exit path. Errors from body that do not end the call are logged and
// dropped; session-fatal errors and cancellation are returned along with
// the records accumulated so far.
func (b *base) run(ctx context.Context, keyword string, mode models.Mode, body func(c *crawl) error) ([]models.ProductRecord, error) {
	logger := b.deps.Logger.With("site", b.id, "keyword", keyword, "mode", mode)
	logger.Info("scrape started")

	sess, err := b.deps.Sessions.NewSession(ctx)
	if err != nil {
		logger.Error("session not acquired", "error", err)
		return nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("session close failed", "error", cerr)
		}
	}()

	c := &crawl{
		ctx:     ctx,
		sess:    sess,
		keyword: keyword,
		mode:    mode,
		cfg:     b.cfg,
		logger:  logger,
		collector: &collector{
			ctx:     ctx,
			keyword: keyword,
			site:    b.id,
			gate:    b.deps.Gate,
			gated:   b.gated,
			limit:   b.cfg.MaxRecords,
			keepDup: b.cfg.KeepNearDuplicates,
			logger:  logger,
			visited: make(map[string]struct{}),
			titles:  make(map[string]*simhash.Set),
		},
	}

	err = body(c)
	records := c.records
	switch {
	case err == nil:
		logger.Info("scrape completed", "records", len(records))
		return records, nil
	case ctx.Err() != nil:
		logger.Warn("scrape canceled", "records", len(records), "error", err)
		return records, ctx.Err()
	case models.IsSessionFatal(err):
		logger.Error("scrape aborted", "records", len(records), "error", err)
		return records, err
	default:
		logger.Warn("scrape ended early", "records", len(records), "error", err)
		return records, nil
	}
}

// crawl is the state of one Scrape call.
type crawl struct {
	*collector

	ctx     context.Context
	sess    scraper.Session
	keyword string
	mode    models.Mode
	cfg     config.SiteConfig
	logger  *slog.Logger
}

// search opens a listing and waits for its container. ok is false when the
// listing never appeared, which is a valid "no results" outcome.
func (c *crawl) search(searchURL, container string) (doc *goquery.Document, ok bool, err error) {
	c.logger.Info("searching", "url", searchURL)
	if err := c.sess.Navigate(searchURL); err != nil {
		return nil, false, c.giveUp(err, searchURL, "search page failed")
	}
	if err := c.sess.WaitStable(c.cfg.Settle); err != nil {
		return nil, false, c.giveUp(err, searchURL, "search page failed")
	}
	if err := c.sess.WaitFor(container, c.cfg.SearchTimeout); err != nil {
		return nil, false, c.giveUp(err, searchURL, "no results")
	}
	doc, err = c.document()
	if err != nil {
		return nil, false, c.giveUp(err, searchURL, "search page unreadable")
	}
	return doc, true, nil
}

// detail opens a product page and waits for marker.
func (c *crawl) detail(pageURL, marker string) (*goquery.Document, error) {
	if err := c.sess.Navigate(pageURL); err != nil {
		return nil, err
	}
	if err := c.sess.WaitFor(marker, c.cfg.DetailTimeout); err != nil {
		return nil, err
	}
	return c.document()
}

func (c *crawl) document() (*goquery.Document, error) {
	raw, err := c.sess.HTML()
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(raw))
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeNavigation, "page is not HTML", err)
	}
	return doc, nil
}

// skip logs a candidate-level failure. It returns err when the failure
// must end the call (dead session or canceled context), nil otherwise.
func (c *crawl) skip(err error, pageURL string) error {
	if c.fatal(err) {
		return err
	}
	c.logger.Warn("candidate skipped", "url", pageURL, "reason", "page error", "code", models.CodeOf(err), "error", err)
	return nil
}

// giveUp is skip for listing-level failures: the call ends either way.
func (c *crawl) giveUp(err error, pageURL, reason string) error {
	if c.fatal(err) {
		return err
	}
	c.logger.Info("search ended", "url", pageURL, "reason", reason, "code", models.CodeOf(err))
	return nil
}

func (c *crawl) fatal(err error) bool {
	return c.ctx.Err() != nil || models.IsSessionFatal(err)
}

// candidate is a product page after extraction, before the gate.
type candidate struct {
	URL         string
	Name        string
	Brand       string
	Price       float64
	Quantity    models.QuantityMeasurement
	Confidence  models.Confidence
	ConfirmedBy string
}

// collector accepts candidates into records. It enforces, in order:
// one decision per URL, a title, a positive quantity, near-duplicate
// suppression (unless keepDup) and the relevance gate, then the record cap.
type collector struct {
	ctx     context.Context
	site    models.SiteID
	keyword string
	gate    Gate
	gated   bool
	limit   int
	keepDup bool
	logger  *slog.Logger

	records []models.ProductRecord
	visited map[string]struct{}

	// titles groups accepted title fingerprints by quantity and price.
	titles map[string]*simhash.Set
}

// full reports whether the record cap is reached.
func (c *collector) full() bool {
	return c.limit > 0 && len(c.records) >= c.limit
}

// seen reports whether a decision was already taken for pageURL.
func (c *collector) seen(pageURL string) bool {
	_, ok := c.visited[pageURL]
	return ok
}

// offer decides on cand and reports whether it became a record.
func (c *collector) offer(cand candidate) bool {
	log := c.logger.With("url", cand.URL, "product", cand.Name)

	if c.seen(cand.URL) {
		log.Info("candidate skipped", "reason", "already visited")
		return false
	}
	c.visited[cand.URL] = struct{}{}

	if c.full() {
		log.Info("candidate skipped", "reason", "record cap reached")
		return false
	}
	if cand.Name == "" {
		log.Info("candidate skipped", "reason", "no title")
		return false
	}
	if cand.Quantity.Quantity <= 0 {
		log.Info("candidate skipped", "reason", "no quantity")
		return false
	}

	group := fmt.Sprintf("%g|%g", cand.Quantity.Normalized, cand.Price)
	fp := simhash.Title(cand.Name)
	if set, ok := c.titles[group]; ok && !c.keepDup && set.Contains(fp) {
		log.Info("candidate skipped", "reason", "near-duplicate listing")
		return false
	}

	if c.gated && !c.gate.IsRelevant(c.ctx, cand.Name, c.keyword) {
		log.Info("candidate skipped", "reason", "not relevant")
		return false
	}

	c.records = append(c.records, models.ProductRecord{
		Name:               cand.Name,
		Brand:              cand.Brand,
		Price:              cand.Price,
		Unit:               cand.Quantity.Unit,
		TotalQuantity:      cand.Quantity.Quantity,
		NormalizedQuantity: cand.Quantity.Normalized,
		Source:             c.site,
		URL:                cand.URL,
		Confidence:         cand.Confidence,
		ConfirmedBy:        cand.ConfirmedBy,
	})
	if _, ok := c.titles[group]; !ok {
		c.titles[group] = simhash.NewSet(simhash.DefaultThreshold)
	}
	c.titles[group].Add(fp)

	log.Info("candidate accepted",
		"quantity", cand.Quantity.Quantity,
		"unit", cand.Quantity.Unit,
		"price", cand.Price,
		"confidence", cand.Confidence,
	)
	return true
}

// links returns the distinct absolute hrefs matched by selector, in
// document order. keep filters on the anchor and its href.
func links(doc *goquery.Document, selector, baseURL string, keep func(a *goquery.Selection, href string) bool) []string {
	var out []string
	seen := make(map[string]struct{})
	doc.Find(selector).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || strings.TrimSpace(href) == "" {
			return
		}
		if keep != nil && !keep(a, href) {
			return
		}
		abs, err := resolve(baseURL, href)
		if err != nil {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		out = append(out, abs)
	})
	return out
}

func resolve(baseURL, href string) (string, error) {
	b, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return b.ResolveReference(ref).String(), nil
}

// quote percent-encodes a keyword for a path segment or query value,
// spaces as %20.
func quote(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// text returns the selection's text with whitespace collapsed.
func text(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

// joinedText joins the trimmed text nodes under s with sep, so
// "<span>12<sup>50</sup></span>" reads as "12.50" with sep ".".
func joinedText(s *goquery.Selection, sep string) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := strings.TrimSpace(n.Data); t != "" {
				parts = append(parts, t)
			}
			return
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	for _, n := range s.Nodes {
		walk(n)
	}
	return strings.Join(parts, sep)
}

// unitCount builds a units measurement for n.
func unitCount(raw string, n int) models.QuantityMeasurement {
	return models.QuantityMeasurement{
		RawText:    raw,
		Quantity:   float64(n),
		Unit:       models.UnitUnits,
		Normalized: float64(n),
	}
}
