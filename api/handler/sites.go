package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/sites"
)

// Sites returns a handler for GET /api/v1/sites.
func Sites(registry *sites.Registry, cfg config.SitesConfig) gin.HandlerFunc {
	ids := registry.IDs()
	resp := models.SitesResponse{
		Sites:   make([]models.SiteInfo, 0, len(ids)),
		Targets: cfg.Targets,
	}
	for _, id := range ids {
		sc := cfg.Site(id)
		resp.Sites = append(resp.Sites, models.SiteInfo{
			ID:           id,
			BaseURL:      sc.BaseURL,
			MaxRecords:   sc.MaxRecords,
			OverrideOnly: cfg.IsOverrideOnly(id),
			Gated:        id != models.SiteAeroSense,
		})
	}
	if resp.Targets == nil {
		resp.Targets = map[string][]models.SiteID{}
	}

	return func(c *gin.Context) {
		c.JSON(http.StatusOK, resp)
	}
}
