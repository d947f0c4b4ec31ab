package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/sites"
)

// Scrape returns a handler for POST /api/v1/scrape.
//
// One site is searched for one keyword, synchronously. slots bounds how
// many of these calls hold a browser session at once; callers beyond
// that wait until a slot frees up or their request is canceled.
//
// A session lost mid-scrape is not an error here: the records accepted
// before it are returned with aborted=true, as a run would write them.
func Scrape(registry *sites.Registry, slots *semaphore.Weighted, logger *slog.Logger) gin.HandlerFunc {
	logger = logger.With("component", "api", "endpoint", "scrape")

	return func(c *gin.Context) {
		totalStart := time.Now()

		var req models.ScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		req.Site = models.SiteID(strings.ToLower(strings.TrimSpace(string(req.Site))))
		req.Keyword = strings.TrimSpace(req.Keyword)
		if req.Mode == "" {
			req.Mode = models.ModeVolume
		}
		if !req.Mode.Valid() {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("mode %q is not %q or %q", req.Mode, models.ModeVolume, models.ModeUnits), nil))
			return
		}
		if req.Keyword == "" {
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput, "keyword is empty", nil))
			return
		}

		s, ok := registry.Get(req.Site)
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound,
				fmt.Sprintf("no scraper for site %q", req.Site), nil))
			return
		}

		ctx := c.Request.Context()
		if err := slots.Acquire(ctx, 1); err != nil {
			respondError(c, models.NewScrapeError(models.ErrCodeTimeout, "gave up waiting for a free session", err))
			return
		}
		defer slots.Release(1)

		navStart := time.Now()
		records, err := s.Scrape(ctx, req.Keyword, req.Mode)
		navigationMs := time.Since(navStart).Milliseconds()

		aborted := models.IsSessionFatal(err)
		if err != nil && !aborted {
			logger.Warn("scrape failed", "site", req.Site, "keyword", req.Keyword, "error", err)
			respondError(c, err)
			return
		}
		if aborted {
			logger.Warn("scrape aborted, returning partial records",
				"site", req.Site, "keyword", req.Keyword, "records", len(records), "error", err)
		}
		if records == nil {
			records = []models.ProductRecord{}
		}

		c.JSON(http.StatusOK, models.ScrapeResponse{
			Success: true,
			Site:    req.Site,
			Keyword: req.Keyword,
			Mode:    req.Mode,
			Records: records,
			Aborted: aborted,
			Timing: models.TimingInfo{
				TotalMs:      time.Since(totalStart).Milliseconds(),
				NavigationMs: navigationMs,
			},
		})
	}
}
