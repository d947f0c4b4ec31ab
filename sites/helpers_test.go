package sites

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper/scrapertest"
)

// fakeGate accepts every title except those containing a rejected word.
type fakeGate struct {
	mu         sync.Mutex
	reject     []string
	units      map[string]int
	relevant   []string
	onRelevant func()
}

func (g *fakeGate) IsRelevant(_ context.Context, title, _ string) bool {
	g.mu.Lock()
	g.relevant = append(g.relevant, title)
	hook := g.onRelevant
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	for _, r := range g.reject {
		if strings.Contains(title, r) {
			return false
		}
	}
	return true
}

func (g *fakeGate) ExtractUnitCount(_ context.Context, title string) int {
	return g.units[title]
}

func (g *fakeGate) calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.relevant...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDeps(b *scrapertest.Browser, g *fakeGate) Deps {
	return Deps{Sessions: b, Gate: g, Logger: quietLogger()}
}

func siteConfig(id models.SiteID) config.SiteConfig {
	return config.DefaultSites().Site(id)
}

// page wraps body in a minimal English document.
func page(body string) string {
	return `<html lang="en"><head><title>t</title></head><body>` + body + `</body></html>`
}

func sessionLost() error {
	return models.NewScrapeError(models.ErrCodeSessionLost, "target closed", nil)
}

func stale() error {
	return models.NewScrapeError(models.ErrCodeStaleReference, "node is detached", nil)
}
