package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper"
)

// Version is reported by the health endpoint.
const Version = "0.3.0"

// SessionCounter reports browser usage. *scraper.Browser implements it.
type SessionCounter interface {
	Stats() scraper.Stats
}

// Health returns a handler for GET /api/v1/health.
//
// Status degrades when more than 80% of maxSessions are open.
func Health(sc SessionCounter, maxSessions int, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := sc.Stats()

		status := "healthy"
		if maxSessions > 0 && stats.ActiveSessions > int(float64(maxSessions)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status: status,
			Uptime: time.Since(startTime).Round(time.Second).String(),
			Sessions: models.SessionStats{
				Active: stats.ActiveSessions,
				Total:  stats.TotalSessions,
			},
			Version: Version,
		})
	}
}
