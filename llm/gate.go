package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/use-agent/pricecrawl/cache"
	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
)

// GateConfig configures the relevance gate.
type GateConfig struct {
	APIKey         string
	BaseURL        string
	RelevanceModel string
	CountModel     string

	MaxAttempts       int           // total attempts per decision
	RateLimitCooldown time.Duration // sleep after HTTP 429
	NetworkBackoff    time.Duration // sleep after transport or 5xx failures
}

// Gate answers the two classifier questions the site scrapers ask:
// is this title what we searched for, and how many wipes does it hold.
//
// Every failure path fails closed: false for relevance, 0 for counts.
// All calls wait on one shared limiter, so a single Gate (or several
// Gates built on the same limiter) may be used from concurrent workers.
type Gate struct {
	client  *Client
	limiter *rate.Limiter
	cfg     GateConfig
	store   cache.Store
	logger  *slog.Logger

	// sleep is replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewGate creates a Gate. limiter and store may be nil (unlimited, no cache).
func NewGate(client *Client, limiter *rate.Limiter, cfg GateConfig, store cache.Store, logger *slog.Logger) *Gate {
	if client == nil {
		client = NewClient(nil)
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		client:  client,
		limiter: limiter,
		cfg:     cfg,
		store:   store,
		logger:  logger.With("component", "relevance_gate"),
		sleep:   sleepCtx,
	}
}

// IsRelevant reports whether title is a specific match for query.
func (g *Gate) IsRelevant(ctx context.Context, title, query string) bool {
	if g.cfg.APIKey == "" {
		g.logger.Warn("relevance check skipped: no API key", "title", title, "query", query)
		return false
	}

	key := cache.Key("relevance", g.cfg.RelevanceModel, query, title)
	if v, ok := g.cached(key); ok {
		decision := string(v) == "yes"
		g.logger.Debug("relevance cache hit", "title", title, "query", query, "relevant", decision)
		return decision
	}

	out, err := g.call(ctx, g.cfg.RelevanceModel, relevanceMessages(title, query), false)
	if err != nil {
		g.logger.Warn("relevance check failed closed", "title", title, "query", query, "error", err)
		return false
	}

	decision, ok := parseYesNo(out)
	if !ok {
		g.logger.Warn("relevance output unrecognized", "title", title, "query", query, "output", out)
		return false
	}
	g.logger.Info("relevance decision", "title", title, "query", query, "relevant", decision)

	if decision {
		g.remember(key, []byte("yes"))
	} else {
		g.remember(key, []byte("no"))
	}
	return decision
}

// ExtractUnitCount returns the total number of wipes a title describes,
// multiplying base counts by pack multipliers.
func (g *Gate) ExtractUnitCount(ctx context.Context, title string) int {
	if g.cfg.APIKey == "" {
		g.logger.Warn("unit count skipped: no API key", "title", title)
		return 0
	}

	key := cache.Key("units", g.cfg.CountModel, title)
	if v, ok := g.cached(key); ok {
		if n, err := strconv.Atoi(string(v)); err == nil {
			return n
		}
	}

	out, err := g.call(ctx, g.cfg.CountModel, unitCountMessages(title), true)
	if err != nil {
		g.logger.Warn("unit count failed closed", "title", title, "error", err)
		return 0
	}

	n, reasoning, ok := parseUnitCount(out)
	if !ok {
		g.logger.Warn("unit count output unparseable", "title", title, "output", out)
		return 0
	}
	g.logger.Info("unit count decision", "title", title, "total_units", n, "reasoning", reasoning)

	g.remember(key, []byte(strconv.Itoa(n)))
	return n
}

// call runs one classifier request with the retry policy:
// 429 sleeps RateLimitCooldown, transport/5xx sleeps NetworkBackoff,
// anything else stops immediately.
func (g *Gate) call(ctx context.Context, model string, msgs []Message, jsonMode bool) (string, error) {
	params := Params{APIKey: g.cfg.APIKey, BaseURL: g.cfg.BaseURL, Model: model}

	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}

		out, err := g.client.Complete(ctx, params, msgs, jsonMode)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		var wait time.Duration
		switch models.CodeOf(err) {
		case models.ErrCodeLLMRateLimited:
			wait = g.cfg.RateLimitCooldown
		case models.ErrCodeLLMUnavailable:
			wait = g.cfg.NetworkBackoff
		default:
			return "", err
		}

		if attempt == g.cfg.MaxAttempts {
			break
		}
		g.logger.Warn("classifier call failed, retrying",
			"model", model,
			"attempt", attempt,
			"max_attempts", g.cfg.MaxAttempts,
			"wait", wait,
			"error", err,
		)
		if err := g.sleep(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", lastErr
}

func (g *Gate) cached(key string) ([]byte, bool) {
	if g.store == nil {
		return nil, false
	}
	return g.store.Get(key)
}

func (g *Gate) remember(key string, v []byte) {
	if g.store != nil {
		g.store.Set(key, v)
	}
}

// parseYesNo reads a Yes/No answer. Surrounding quotes, markdown emphasis
// and trailing punctuation are ignored.
func parseYesNo(out string) (bool, bool) {
	s := strings.ToLower(strings.TrimSpace(out))
	s = strings.TrimLeft(s, "\"'*` ")
	switch {
	case strings.HasPrefix(s, "yes"):
		return true, true
	case strings.HasPrefix(s, "no"):
		return false, true
	default:
		return false, false
	}
}

type unitCountAnswer struct {
	Reasoning  string `json:"reasoning"`
	TotalUnits any    `json:"total_units"`
}

// parseUnitCount decodes the {"reasoning", "total_units"} answer, tolerating
// a markdown code fence around it and a numeric string for the count.
func parseUnitCount(out string) (int, string, bool) {
	s := strings.TrimSpace(out)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")

	var ans unitCountAnswer
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &ans); err != nil {
		return 0, "", false
	}

	var n int
	switch v := ans.TotalUnits.(type) {
	case float64:
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0, "", false
		}
		n = parsed
	default:
		return 0, "", false
	}
	if n < 0 {
		return 0, "", false
	}
	return n, ans.Reasoning, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// NewGateFromConfig builds a Gate with its own limiter sized from cfg.
// Build it once per process and share it between workers.
func NewGateFromConfig(cfg config.LLMConfig, store cache.Store, logger *slog.Logger) *Gate {
	client := NewClient(&http.Client{Timeout: cfg.Timeout})
	limiter := rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
	return NewGate(client, limiter, GateConfig{
		APIKey:            cfg.APIKey,
		BaseURL:           cfg.BaseURL,
		RelevanceModel:    cfg.RelevanceModel,
		CountModel:        cfg.CountModel,
		MaxAttempts:       cfg.MaxAttempts,
		RateLimitCooldown: cfg.RateLimitCooldown,
		NetworkBackoff:    cfg.NetworkBackoff,
	}, store, logger)
}
