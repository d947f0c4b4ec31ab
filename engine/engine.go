// Package engine fetches single pages for the inspector: a plain HTTP
// client with a Chrome TLS fingerprint, the shared browser, and a racer
// that escalates from the first to the second.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/use-agent/pricecrawl/models"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("http", "browser").
	Name() string

	// Fetch retrieves the page content for the given request.
	Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error)
}

// FetchRequest contains everything an engine needs to fetch a page.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// FetchResult is the output of a successful engine fetch.
type FetchResult struct {
	HTML       string
	Title      string
	StatusCode int
	FinalURL   string
	EngineName string
}

// Set maps inspect fetch modes to engines.
type Set struct {
	HTTP    Engine
	Browser Engine
	Auto    Engine
}

// For returns the engine for mode; "" means browser.
func (s Set) For(mode string) (Engine, error) {
	var e Engine
	switch mode {
	case models.FetchBrowser, "":
		e = s.Browser
	case models.FetchHTTP:
		e = s.HTTP
	case models.FetchAuto:
		e = s.Auto
	default:
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("unknown fetch mode %q", mode), nil)
	}
	if e == nil {
		return nil, models.NewScrapeError(models.ErrCodeInvalidInput, fmt.Sprintf("fetch mode %q is not available", mode), nil)
	}
	return e, nil
}
