// Package sites holds one scraper per competitor site. All of them follow
// the same flow (search, enumerate, visit, extract, gate, accumulate) and
// differ only in URLs, selectors and quantity rules.
package sites

import (
	"context"
	"log/slog"
	"slices"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper"
)

// Scraper searches one site for a keyword.
//
// Scrape returns a nil error when the call completed. When the browser
// session died it returns the records accumulated so far together with a
// SESSION_LOST or BROWSER_CRASH error; a canceled ctx likewise returns the
// partial records with ctx.Err().
type Scraper interface {
	Site() models.SiteID
	Scrape(ctx context.Context, keyword string, mode models.Mode) ([]models.ProductRecord, error)
}

// Gate decides relevance and counts units. Implementations fail closed.
type Gate interface {
	IsRelevant(ctx context.Context, title, query string) bool
	ExtractUnitCount(ctx context.Context, title string) int
}

// Deps are the collaborators shared by every scraper of a run.
type Deps struct {
	Sessions scraper.SessionFactory
	Gate     Gate
	Logger   *slog.Logger
}

// Registry maps site IDs to their scrapers. It is built once per run.
type Registry struct {
	scrapers map[models.SiteID]Scraper
}

// NewRegistry builds a scraper for every known site from cfg.
func NewRegistry(cfg config.SitesConfig, deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	deps.Logger = deps.Logger.With("component", "sites")

	return NewRegistryOf(
		newAmazon(cfg.Site(models.SiteAmazon), deps),
		newMumzworld(cfg.Site(models.SiteMumzworld), deps),
		newGoGreen(cfg.Site(models.SiteGoGreen), deps),
		newSaco(cfg.Site(models.SiteSaco), deps),
		newOfficeSupply(cfg.Site(models.SiteOfficeSupply), deps),
		newAeroSense(cfg.Site(models.SiteAeroSense), cfg.EURToSAR, deps),
	)
}

// NewRegistryOf builds a registry from explicit scrapers.
func NewRegistryOf(scrapers ...Scraper) *Registry {
	r := &Registry{scrapers: make(map[models.SiteID]Scraper, len(scrapers))}
	for _, s := range scrapers {
		r.scrapers[s.Site()] = s
	}
	return r
}

// Get returns the scraper for id.
func (r *Registry) Get(id models.SiteID) (Scraper, bool) {
	s, ok := r.scrapers[id]
	return s, ok
}

// IDs returns the registered site IDs in sorted order.
func (r *Registry) IDs() []models.SiteID {
	ids := make([]models.SiteID, 0, len(r.scrapers))
	for id := range r.scrapers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
