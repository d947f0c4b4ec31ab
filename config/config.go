package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Browser   BrowserConfig
	LLM       LLMConfig
	Dispatch  DispatchConfig
	Output    OutputConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Webhook   WebhookConfig
	Inspect   InspectConfig
	Log       LogConfig
	Sites     SitesConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"

	// MaxConcurrentScrapes bounds synchronous scrape requests.
	MaxConcurrentScrapes int // default: 2
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// Proxy is the proxy URL for all browser traffic.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// UserAgent is sent by every session.
	// default: Chrome 128 on Windows 10
	UserAgent string

	// AcceptLanguage is sent as an extra header.
	AcceptLanguage string // default: "en-US,en;q=0.9"

	// NavigationTimeout bounds a single page.Navigate.
	NavigationTimeout time.Duration // default: 30s

	// BlockedResourceTypes lists CDP resource types that are never fetched.
	// default: ["Image", "Media", "Font"]
	BlockedResourceTypes []string
}

// LLMConfig controls the relevance classifier.
type LLMConfig struct {
	// APIKey for the OpenAI-compatible endpoint. Read from
	// PRICECRAWL_LLM_API_KEY, GEMINI_API_KEY, or the secrets file.
	APIKey string

	// BaseURL of the OpenAI-compatible API.
	// default: Gemini's OpenAI endpoint
	BaseURL string

	RelevanceModel string // default: "gemini-2.5-flash-lite"
	CountModel     string // default: "gemini-2.5-pro"

	// RequestsPerSecond and Burst size the process-wide token bucket.
	RequestsPerSecond float64 // default: 0.5
	Burst             int     // default: 1

	MaxAttempts       int           // default: 3
	RateLimitCooldown time.Duration // default: 60s
	NetworkBackoff    time.Duration // default: 10s

	// Timeout is the per-request HTTP deadline.
	Timeout time.Duration // default: 60s
}

// DispatchConfig controls a crawl run.
type DispatchConfig struct {
	// InstructionsFile is the instruction CSV read by the CLI.
	InstructionsFile string // default: "analysis-odoo.csv"

	// GroupCooldown is the pause between sub-industry groups.
	GroupCooldown time.Duration // default: 5s

	// Workers is the number of (site, keyword) jobs run concurrently.
	Workers int // default: 1

	// RunTimeout bounds a whole run; 0 means no limit.
	RunTimeout time.Duration

	// B2CSubIndustries are matched case-insensitively.
	// default: ["home", "automotive", "pets"]
	B2CSubIndustries []string

	// UnitKeywords switch a product type to units mode.
	// default: ["wipes", "rags", "microfiber", "brush"]
	UnitKeywords []string
}

// OutputConfig controls where records are written.
type OutputConfig struct {
	// File is the CSV output path; always written.
	File string // default: "competitors_complete.csv"

	// Mode is "overwrite" or "append" and applies to File.
	Mode string // default: "overwrite"

	// PostgresDSN enables the PostgreSQL sink when set.
	PostgresDSN string

	// SQLitePath enables the SQLite sink when set.
	SQLitePath string

	// RedisAddr enables the Redis stream sink when set.
	RedisAddr     string
	RedisPassword string
	RedisStream   string // default: "pricecrawl:records"
	RedisMaxLen   int64  // default: 100000
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key rate limiting on the HTTP API.
type RateLimitConfig struct {
	RequestsPerSecond float64 // default: 2
	Burst             int     // default: 5
}

// CacheConfig controls the relevance verdict cache.
type CacheConfig struct {
	// MaxEntries bounds the in-memory cache.
	MaxEntries int // default: 10000

	// TTL is how long a verdict is reused.
	TTL time.Duration // default: 24h

	// MemcacheAddrs switches to memcached when non-empty.
	MemcacheAddrs []string
}

// WebhookConfig controls run completion notifications.
type WebhookConfig struct {
	URL    string
	Secret string
}

// InspectConfig controls the page inspector.
type InspectConfig struct {
	// Timeout bounds one inspect fetch in any mode.
	Timeout time.Duration // default: 30s

	// EscalationDelays stagger the engines of the "auto" mode.
	// default: [0s, 2s]
	EscalationDelays []time.Duration
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// DefaultUserAgent is a current desktop Chrome.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/128.0.0.0 Safari/537.36"

// DefaultLLMBaseURL is Gemini's OpenAI-compatible endpoint.
const DefaultLLMBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// Load reads configuration from environment variables with sane defaults,
// then applies the optional site table and secrets files.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:                 envOr("PRICECRAWL_HOST", "0.0.0.0"),
			Port:                 envIntOr("PRICECRAWL_PORT", 8080),
			Mode:                 envOr("PRICECRAWL_MODE", "release"),
			MaxConcurrentScrapes: envIntOr("PRICECRAWL_MAX_CONCURRENT_SCRAPES", 2),
		},
		Browser: BrowserConfig{
			Headless:          envBoolOr("PRICECRAWL_HEADLESS", true),
			Proxy:             os.Getenv("PRICECRAWL_PROXY"),
			NoSandbox:         envBoolOr("PRICECRAWL_NO_SANDBOX", false),
			BrowserBin:        os.Getenv("PRICECRAWL_BROWSER_BIN"),
			UserAgent:         envOr("PRICECRAWL_USER_AGENT", DefaultUserAgent),
			AcceptLanguage:    envOr("PRICECRAWL_ACCEPT_LANGUAGE", "en-US,en;q=0.9"),
			NavigationTimeout: envDurationOr("PRICECRAWL_NAV_TIMEOUT", 30*time.Second),
			BlockedResourceTypes: envSliceOr("PRICECRAWL_BLOCKED_RESOURCES", []string{
				"Image", "Media", "Font",
			}),
		},
		LLM: LLMConfig{
			APIKey:            envOr("PRICECRAWL_LLM_API_KEY", os.Getenv("GEMINI_API_KEY")),
			BaseURL:           envOr("PRICECRAWL_LLM_BASE_URL", DefaultLLMBaseURL),
			RelevanceModel:    envOr("PRICECRAWL_LLM_RELEVANCE_MODEL", "gemini-2.5-flash-lite"),
			CountModel:        envOr("PRICECRAWL_LLM_COUNT_MODEL", "gemini-2.5-pro"),
			RequestsPerSecond: envFloatOr("PRICECRAWL_LLM_RPS", 0.5),
			Burst:             envIntOr("PRICECRAWL_LLM_BURST", 1),
			MaxAttempts:       envIntOr("PRICECRAWL_LLM_MAX_ATTEMPTS", 3),
			RateLimitCooldown: envDurationOr("PRICECRAWL_LLM_RATE_LIMIT_COOLDOWN", 60*time.Second),
			NetworkBackoff:    envDurationOr("PRICECRAWL_LLM_NETWORK_BACKOFF", 10*time.Second),
			Timeout:           envDurationOr("PRICECRAWL_LLM_TIMEOUT", 60*time.Second),
		},
		Dispatch: DispatchConfig{
			InstructionsFile: envOr("PRICECRAWL_INSTRUCTIONS_FILE", "analysis-odoo.csv"),
			GroupCooldown:    envDurationOr("PRICECRAWL_GROUP_COOLDOWN", 5*time.Second),
			Workers:          envIntOr("PRICECRAWL_WORKERS", 1),
			RunTimeout:       envDurationOr("PRICECRAWL_RUN_TIMEOUT", 0),
			B2CSubIndustries: envSliceOr("PRICECRAWL_B2C_SUBINDUSTRIES", []string{"home", "automotive", "pets"}),
			UnitKeywords:     envSliceOr("PRICECRAWL_UNIT_KEYWORDS", []string{"wipes", "rags", "microfiber", "brush"}),
		},
		Output: OutputConfig{
			File:          envOr("PRICECRAWL_OUTPUT_FILE", "competitors_complete.csv"),
			Mode:          envOr("PRICECRAWL_OUTPUT_MODE", "overwrite"),
			PostgresDSN:   os.Getenv("PRICECRAWL_POSTGRES_DSN"),
			SQLitePath:    os.Getenv("PRICECRAWL_SQLITE_PATH"),
			RedisAddr:     os.Getenv("PRICECRAWL_REDIS_ADDR"),
			RedisPassword: os.Getenv("PRICECRAWL_REDIS_PASSWORD"),
			RedisStream:   envOr("PRICECRAWL_REDIS_STREAM", "pricecrawl:records"),
			RedisMaxLen:   int64(envIntOr("PRICECRAWL_REDIS_MAXLEN", 100000)),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PRICECRAWL_AUTH_ENABLED", true),
			APIKeys: envSliceOr("PRICECRAWL_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PRICECRAWL_RATE_RPS", 2.0),
			Burst:             envIntOr("PRICECRAWL_RATE_BURST", 5),
		},
		Cache: CacheConfig{
			MaxEntries:    envIntOr("PRICECRAWL_CACHE_MAX_ENTRIES", 10000),
			TTL:           envDurationOr("PRICECRAWL_CACHE_TTL", 24*time.Hour),
			MemcacheAddrs: envSliceOr("PRICECRAWL_MEMCACHE_ADDR", nil),
		},
		Webhook: WebhookConfig{
			URL:    os.Getenv("PRICECRAWL_WEBHOOK_URL"),
			Secret: os.Getenv("PRICECRAWL_WEBHOOK_SECRET"),
		},
		Inspect: InspectConfig{
			Timeout:          envDurationOr("PRICECRAWL_INSPECT_TIMEOUT", 30*time.Second),
			EscalationDelays: envDurationSliceOr("PRICECRAWL_INSPECT_ESCALATION", []time.Duration{0, 2 * time.Second}),
		},
		Log: LogConfig{
			Level:  envOr("PRICECRAWL_LOG_LEVEL", "info"),
			Format: envOr("PRICECRAWL_LOG_FORMAT", "json"),
		},
		Sites: DefaultSites(),
	}

	if path := os.Getenv("PRICECRAWL_SITES_FILE"); path != "" {
		if err := cfg.Sites.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if path := os.Getenv("PRICECRAWL_SECRETS_FILE"); path != "" && cfg.LLM.APIKey == "" {
		secrets, err := LoadSecrets(path)
		if err != nil {
			return nil, err
		}
		cfg.LLM.APIKey = secrets.Get("PRICECRAWL_LLM_API_KEY", "GEMINI_API_KEY")
	}

	return cfg, nil
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

func envDurationSliceOr(key string, fallback []time.Duration) []time.Duration {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]time.Duration, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				if d, err := time.ParseDuration(trimmed); err == nil {
					result = append(result, d)
				}
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
