// Package api wires the HTTP endpoints of the crawl service.
package api

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/semaphore"

	"github.com/use-agent/pricecrawl/api/handler"
	"github.com/use-agent/pricecrawl/api/middleware"
	"github.com/use-agent/pricecrawl/cleaner"
	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/engine"
	"github.com/use-agent/pricecrawl/sites"
)

// Deps are the collaborators behind the endpoints.
type Deps struct {
	Sessions handler.SessionCounter
	Registry *sites.Registry
	Runs     *handler.Runs
	Engines  engine.Set
	Cleaner  *cleaner.Cleaner
	Logger   *slog.Logger
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health sits outside auth for monitoring probes.
func NewRouter(deps Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	// Health is reachable without an API key.
	maxSessions := cfg.Server.MaxConcurrentScrapes + cfg.Dispatch.Workers
	v1.GET("/health", handler.Health(deps.Sessions, maxSessions, startTime))

	// Everything else needs a key and is rate limited.
	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.GET("/sites", handler.Sites(deps.Registry, cfg.Sites))

	slots := semaphore.NewWeighted(int64(max(cfg.Server.MaxConcurrentScrapes, 1)))
	protected.POST("/scrape", handler.Scrape(deps.Registry, slots, deps.Logger))

	protected.POST("/runs", deps.Runs.Post())
	protected.GET("/runs/:id", deps.Runs.Get())

	protected.POST("/inspect", handler.Inspect(deps.Engines, deps.Cleaner, cfg.Inspect.Timeout))

	return r
}
