package engine

import (
	"context"

	"github.com/use-agent/pricecrawl/scraper"
)

// Renderer renders one URL in a throwaway browser session.
// *scraper.Browser implements it.
type Renderer interface {
	Fetch(ctx context.Context, rawURL string) (*scraper.Snapshot, error)
}

// BrowserEngine fetches through the shared browser, with the same stealth
// setup and resource blocking the site scrapers get.
type BrowserEngine struct {
	r Renderer
}

// NewBrowserEngine wraps r.
func NewBrowserEngine(r Renderer) *BrowserEngine {
	return &BrowserEngine{r: r}
}

func (e *BrowserEngine) Name() string { return "browser" }

func (e *BrowserEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}
	snap, err := e.r.Fetch(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	return &FetchResult{
		HTML:       snap.HTML,
		Title:      snap.Title,
		StatusCode: snap.StatusCode,
		FinalURL:   snap.FinalURL,
		EngineName: e.Name(),
	}, nil
}
