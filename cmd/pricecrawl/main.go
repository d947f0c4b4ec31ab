// Command pricecrawl runs the instruction file once against every routed
// competitor site and writes the rows to the configured sinks.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/use-agent/pricecrawl/cache"
	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/dispatch"
	"github.com/use-agent/pricecrawl/llm"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper"
	"github.com/use-agent/pricecrawl/sink"
	"github.com/use-agent/pricecrawl/sites"
	"github.com/use-agent/pricecrawl/webhook"
)

// Exit codes.
const (
	exitOK       = 0
	exitRunError = 1
	exitConfig   = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	analysisFile := flag.String("analysis_file", "", "instruction CSV (default $PRICECRAWL_INSTRUCTIONS_FILE or analysis-odoo.csv)")
	outputMode := flag.String("output_mode", "", `"overwrite" or "append" (default $PRICECRAWL_OUTPUT_MODE or overwrite)`)
	outputFile := flag.String("output_file", "", "output CSV (default $PRICECRAWL_OUTPUT_FILE or competitors_complete.csv)")
	flag.Parse()

	// ── 1. Load configuration ───────────────────────────────────────
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "reading .env: %v\n", err)
		return exitConfig
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading configuration: %v\n", err)
		return exitConfig
	}
	if *analysisFile != "" {
		cfg.Dispatch.InstructionsFile = *analysisFile
	}
	if *outputMode != "" {
		cfg.Output.Mode = *outputMode
	}
	if *outputFile != "" {
		cfg.Output.File = *outputFile
	}

	// ── 2. Initialise structured logging ────────────────────────────
	logger := initLogger(cfg.Log)

	// ── 3. Validate before anything expensive starts ────────────────
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return exitConfig
	}
	instructions, err := dispatch.LoadInstructions(cfg.Dispatch.InstructionsFile)
	if err != nil {
		logger.Error("loading instructions failed", "file", cfg.Dispatch.InstructionsFile, "error", err)
		return exitConfig
	}
	logger.Info("pricecrawl starting",
		"instructions", len(instructions),
		"file", cfg.Dispatch.InstructionsFile,
		"output", cfg.Output.File,
		"output_mode", cfg.Output.Mode,
		"workers", cfg.Dispatch.Workers,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 4. Outputs ──────────────────────────────────────────────────
	out, err := sink.Open(ctx, cfg.Output, logger)
	if err != nil {
		logger.Error("opening sinks failed", "error", err)
		return exitConfig
	}
	defer func() {
		if err := out.Close(); err != nil {
			logger.Warn("closing sinks failed", "error", err)
		}
	}()

	// ── 5. Browser, gate, scrapers ──────────────────────────────────
	browser, err := scraper.NewBrowser(cfg.Browser, logger)
	if err != nil {
		logger.Error("failed to launch browser", "error", err)
		return exitRunError
	}
	defer browser.Close()

	store, closeStore := cache.Open(cfg.Cache, logger)
	defer closeStore()

	registry := sites.NewRegistry(cfg.Sites, sites.Deps{
		Sessions: browser,
		Gate:     llm.NewGateFromConfig(cfg.LLM, store, logger),
		Logger:   logger,
	})

	// ── 6. Run ──────────────────────────────────────────────────────
	summary, err := dispatch.New(registry, cfg.Sites, out, cfg.Dispatch, logger).Run(ctx, instructions)

	if cfg.Webhook.URL != "" {
		n := webhook.New(cfg.Webhook.URL, cfg.Webhook.Secret, logger)
		if werr := n.Send(context.WithoutCancel(ctx), webhook.RunEvent(summary)); werr != nil {
			logger.Warn("run notification not delivered", "error", werr)
		}
	}

	if err != nil || summary.Status != models.RunCompleted {
		logger.Error("run did not complete", "run_id", summary.RunID, "status", summary.Status, "error", err)
		return exitRunError
	}
	return exitOK
}

// initLogger configures slog based on the LogConfig and returns the logger.
func initLogger(cfg config.LogConfig) *slog.Logger {
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

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
