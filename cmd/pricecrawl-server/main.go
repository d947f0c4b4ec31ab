package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/use-agent/pricecrawl/api"
	"github.com/use-agent/pricecrawl/api/handler"
	"github.com/use-agent/pricecrawl/cache"
	"github.com/use-agent/pricecrawl/cleaner"
	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/engine"
	"github.com/use-agent/pricecrawl/llm"
	"github.com/use-agent/pricecrawl/scraper"
	"github.com/use-agent/pricecrawl/sink"
	"github.com/use-agent/pricecrawl/sites"
	"github.com/use-agent/pricecrawl/webhook"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		os.Exit(2)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	slog.Info("pricecrawl server starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"max_concurrent_scrapes", cfg.Server.MaxConcurrentScrapes,
	)

	// ── 3. Launch browser ───────────────────────────────────────────
	browser, err := scraper.NewBrowser(cfg.Browser, slog.Default())
	if err != nil {
		slog.Error("failed to launch browser", "error", err)
		os.Exit(1)
	}
	defer browser.Close()

	// ── 4. Gate, scrapers, runs ─────────────────────────────────────
	store, closeStore := cache.Open(cfg.Cache, slog.Default())
	defer closeStore()

	registry := sites.NewRegistry(cfg.Sites, sites.Deps{
		Sessions: browser,
		Gate:     llm.NewGateFromConfig(cfg.LLM, store, slog.Default()),
		Logger:   slog.Default(),
	})

	var notifier *webhook.Notifier
	if cfg.Webhook.URL != "" {
		notifier = webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret, slog.Default())
	}

	runCtx, cancelRuns := context.WithCancel(context.Background())
	defer cancelRuns()
	openSinks := func(ctx context.Context, out config.OutputConfig) (sink.Sink, error) {
		return sink.Open(ctx, out, slog.Default())
	}
	runs := handler.NewRuns(runCtx, registry, cfg, openSinks, notifier, slog.Default())

	// ── 5. Inspect engines ──────────────────────────────────────────
	httpEngine := engine.NewHTTPEngine(cfg.Browser.UserAgent, cfg.Browser.AcceptLanguage, cfg.Inspect.Timeout)
	browserEngine := engine.NewBrowserEngine(browser)
	engines := engine.Set{
		HTTP:    httpEngine,
		Browser: browserEngine,
		Auto: engine.NewRacer(
			[]engine.Engine{httpEngine, browserEngine},
			cfg.Inspect.EscalationDelays,
			engine.NewHostMemory(24*time.Hour),
			slog.Default(),
		),
	}

	// ── 6. Setup router ─────────────────────────────────────────────
	router := api.NewRouter(api.Deps{
		Sessions: browser,
		Registry: registry,
		Runs:     runs,
		Engines:  engines,
		Cleaner:  cleaner.NewCleaner(slog.Default()),
		Logger:   slog.Default(),
	}, cfg, time.Now())

	// ── 7. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── 8. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// An active run writes the group it is on, then stops.
	cancelRuns()
	runs.Wait()

	// browser.Close() runs via defer and kills Chrome.
	slog.Info("pricecrawl server stopped")
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
