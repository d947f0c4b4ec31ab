package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pricecrawl/cleaner"
	"github.com/use-agent/pricecrawl/engine"
	"github.com/use-agent/pricecrawl/models"
)

// Inspect returns a handler for POST /api/v1/inspect.
//
// Orchestration flow:
//  1. Parse & validate request, pick the engine for fetch_mode.
//  2. Engine.Fetch       → raw HTML + title      (records navigation_ms)
//  3. Cleaner.Inspect    → markdown, meta, links (records cleaning_ms)
//  4. Title fallback, timing, respond.
func Inspect(engines engine.Set, cl *cleaner.Cleaner, timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.InspectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		eng, err := engines.For(req.FetchMode)
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 2. Fetch ────────────────────────────────────────────────
		navStart := time.Now()
		page, err := eng.Fetch(c.Request.Context(), &engine.FetchRequest{URL: req.URL, Timeout: timeout})
		navigationMs := time.Since(navStart).Milliseconds()
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 3. Clean ────────────────────────────────────────────────
		cleanStart := time.Now()
		resp, err := cl.Inspect(page.HTML, page.FinalURL, req.CSSSelector)
		cleaningMs := time.Since(cleanStart).Milliseconds()
		if err != nil {
			respondError(c, err)
			return
		}

		// ── 4. Fill fetch fields + timing and respond ───────────────
		// Readability may find no title on thin pages; document.title is
		// the fallback.
		if resp.Title == "" && page.Title != "" {
			resp.Title = page.Title
			if q, ok := cleaner.TitleQuantity(resp.Title); ok {
				resp.Quantity = &q
			}
		}
		resp.StatusCode = page.StatusCode
		resp.FinalURL = page.FinalURL
		resp.EngineUsed = page.EngineName
		resp.Timing = models.TimingInfo{
			TotalMs:      time.Since(totalStart).Milliseconds(),
			NavigationMs: navigationMs,
			CleaningMs:   cleaningMs,
		}
		c.JSON(http.StatusOK, resp)
	}
}
