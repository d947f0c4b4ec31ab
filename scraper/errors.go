package scraper

import (
	"context"
	"errors"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"

	"github.com/use-agent/pricecrawl/models"
)

// sessionLostMarkers are substrings of driver errors raised once the tab,
// the browser process or the DevTools connection is gone.
var sessionLostMarkers = []string{
	"target closed",
	"session with given id not found",
	"no target with given id",
	"cdp connection closed",
	"use of closed network connection",
	"websocket: close",
	"broken pipe",
	"connection reset by peer",
	"unexpected eof",
}

// staleMarkers identify references into a DOM that has since changed.
var staleMarkers = []string{
	"cannot find context with specified id",
	"no node with given id",
	"could not find node with given id",
	"node is detached",
	"execution context was destroyed",
}

// Classify wraps a driver error into a typed ScrapeError:
//
//	context deadline / cancel           -> SCRAPE_TIMEOUT
//	element never matched               -> ELEMENT_NOT_FOUND
//	detached node, covered element      -> STALE_REFERENCE
//	dead tab, process or connection     -> SESSION_LOST
//	anything else                       -> NAVIGATION_FAILED
//
// Errors that already carry a code are returned unchanged.
func Classify(err error, msg string) *models.ScrapeError {
	if err == nil {
		return nil
	}
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return se
	}

	lower := strings.ToLower(err.Error())
	for _, m := range sessionLostMarkers {
		if strings.Contains(lower, m) {
			return models.NewScrapeError(models.ErrCodeSessionLost, msg, err)
		}
	}

	var (
		notFound *rod.ElementNotFoundError
		objGone  *rod.ObjectNotFoundError
		covered  *rod.CoveredError
		navErr   *rod.NavigationError
		cdpErr   *cdp.Error
	)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled):
		return models.NewScrapeError(models.ErrCodeTimeout, "scrape canceled", err)
	case errors.As(err, &notFound):
		return models.NewScrapeError(models.ErrCodeElementNotFound, msg, err)
	case errors.As(err, &objGone), errors.As(err, &covered):
		return models.NewScrapeError(models.ErrCodeStaleReference, msg, err)
	case errors.As(err, &navErr):
		return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
	case errors.As(err, &cdpErr):
		for _, m := range staleMarkers {
			if strings.Contains(strings.ToLower(cdpErr.Message), m) {
				return models.NewScrapeError(models.ErrCodeStaleReference, msg, err)
			}
		}
	}

	for _, m := range staleMarkers {
		if strings.Contains(lower, m) {
			return models.NewScrapeError(models.ErrCodeStaleReference, msg, err)
		}
	}
	return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
}
