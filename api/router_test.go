package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecrawl/api/handler"
	"github.com/use-agent/pricecrawl/cleaner"
	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/engine"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper"
	"github.com/use-agent/pricecrawl/sink"
	"github.com/use-agent/pricecrawl/sites"
	"github.com/use-agent/pricecrawl/webhook"
)

const testKey = "test-key"

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

type stubSessions struct{ stats scraper.Stats }

func (s stubSessions) Stats() scraper.Stats { return s.stats }

// stubScraper returns one record per call; release, when set, must be
// closed before Scrape returns.
type stubScraper struct {
	id      models.SiteID
	err     error
	release chan struct{}
}

func (s *stubScraper) Site() models.SiteID { return s.id }

func (s *stubScraper) Scrape(ctx context.Context, keyword string, mode models.Mode) ([]models.ProductRecord, error) {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	rec := models.ProductRecord{
		Name:          keyword + " 500ml",
		Brand:         "Acme",
		Price:         9.5,
		Unit:          models.UnitML,
		TotalQuantity: 500,
		Source:        s.id,
		URL:           "https://" + string(s.id) + ".test/p/1",
		Confidence:    models.ConfidenceFromTitle,
	}
	return []models.ProductRecord{rec}, s.err
}

type memorySink struct {
	mu   sync.Mutex
	rows []models.OutputRow
}

func (m *memorySink) Write(_ context.Context, _ string, rows []models.OutputRow) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, rows...)
	return nil
}

func (m *memorySink) Close() error { return nil }

func (m *memorySink) Rows() []models.OutputRow {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OutputRow(nil), m.rows...)
}

type stubEngine struct{ html string }

func (e stubEngine) Name() string { return "http" }

func (e stubEngine) Fetch(_ context.Context, req *engine.FetchRequest) (*engine.FetchResult, error) {
	return &engine.FetchResult{
		HTML:       e.html,
		Title:      "fallback",
		StatusCode: http.StatusOK,
		FinalURL:   req.URL,
		EngineName: e.Name(),
	}, nil
}

type harness struct {
	router *gin.Engine
	amazon *stubScraper
	sink   *memorySink
	runs   *handler.Runs

	openMu sync.Mutex
	opened []config.OutputConfig
}

func testConfig() *config.Config {
	return &config.Config{
		Server:    config.ServerConfig{Mode: gin.TestMode, MaxConcurrentScrapes: 2},
		Auth:      config.AuthConfig{Enabled: true, APIKeys: []string{testKey}},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Dispatch:  config.DispatchConfig{Workers: 1},
		Output:    config.OutputConfig{File: "out.csv", Mode: config.OutputOverwrite},
		Inspect:   config.InspectConfig{Timeout: time.Second},
		Sites: config.SitesConfig{
			Targets:      map[string][]models.SiteID{"pets": {models.SiteAmazon}},
			OverrideOnly: []models.SiteID{models.SiteGoGreen},
			Sites: map[models.SiteID]config.SiteConfig{
				models.SiteAmazon: {BaseURL: "https://www.amazon.sa", MaxRecords: 40},
			},
		},
	}
}

func newHarness(t *testing.T, cfg *config.Config, notifier *webhook.Notifier) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	h := &harness{
		amazon: &stubScraper{id: models.SiteAmazon},
		sink:   &memorySink{},
	}
	registry := sites.NewRegistryOf(h.amazon, &stubScraper{id: models.SiteGoGreen})
	open := func(_ context.Context, out config.OutputConfig) (sink.Sink, error) {
		h.openMu.Lock()
		h.opened = append(h.opened, out)
		h.openMu.Unlock()
		return h.sink, nil
	}
	h.runs = handler.NewRuns(ctx, registry, cfg, open, notifier, quiet())
	t.Cleanup(func() {
		cancel()
		h.runs.Wait()
	})

	page := `<html><head><title>Dettol Surface Cleaner 500ml</title>
<meta property="og:title" content="Dettol Surface Cleaner 500ml">
<meta property="product:price:amount" content="19.95"></head>
<body><article><h1>Dettol Surface Cleaner 500ml</h1>
<p>Kills 99.9% of germs on kitchen and bathroom surfaces without bleach.</p>
<p>Use on worktops, sinks, tables and floors. Rinse food contact surfaces.</p></article>
<div class="price">SAR 19.95</div></body></html>`

	h.router = NewRouter(Deps{
		Sessions: stubSessions{stats: scraper.Stats{ActiveSessions: 1, TotalSessions: 7}},
		Registry: registry,
		Runs:     h.runs,
		Engines:  engine.Set{HTTP: stubEngine{html: page}},
		Cleaner:  cleaner.NewCleaner(quiet()),
		Logger:   quiet(),
	}, cfg, time.Now())
	return h
}

func (h *harness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", testKey)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth_NoAuth(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.HealthResponse](t, w)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 1, resp.Sessions.Active)
	assert.EqualValues(t, 7, resp.Sessions.Total)
}

func TestAuth(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	tests := []struct {
		name   string
		header map[string]string
		want   int
	}{
		{"missing", nil, http.StatusUnauthorized},
		{"wrong", map[string]string{"X-API-Key": "nope"}, http.StatusUnauthorized},
		{"x-api-key", map[string]string{"X-API-Key": testKey}, http.StatusOK},
		{"bearer", map[string]string{"Authorization": "Bearer " + testKey}, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/sites", nil)
			for k, v := range tt.header {
				req.Header.Set(k, v)
			}
			w := httptest.NewRecorder()
			h.router.ServeHTTP(w, req)
			assert.Equal(t, tt.want, w.Code)
			if tt.want == http.StatusUnauthorized {
				assert.Equal(t, models.ErrCodeUnauthorized, decode[models.ErrorResponse](t, w).Error.Code)
			}
		})
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.01, Burst: 2}
	h := newHarness(t, cfg, nil)

	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/sites", nil).Code)
	assert.Equal(t, http.StatusOK, h.do(t, http.MethodGet, "/api/v1/sites", nil).Code)

	w := h.do(t, http.MethodGet, "/api/v1/sites", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "100", w.Header().Get("Retry-After"))
	assert.Equal(t, models.ErrCodeRateLimited, decode[models.ErrorResponse](t, w).Error.Code)
}

func TestSites(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	w := h.do(t, http.MethodGet, "/api/v1/sites", nil)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.SitesResponse](t, w)
	require.Len(t, resp.Sites, 2)
	assert.Equal(t, models.SiteInfo{
		ID: models.SiteAmazon, BaseURL: "https://www.amazon.sa", MaxRecords: 40, Gated: true,
	}, resp.Sites[0])
	assert.Equal(t, models.SiteGoGreen, resp.Sites[1].ID)
	assert.True(t, resp.Sites[1].OverrideOnly)
	assert.Equal(t, []models.SiteID{models.SiteAmazon}, resp.Targets["pets"])
}

func TestScrape(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	w := h.do(t, http.MethodPost, "/api/v1/scrape", models.ScrapeRequest{Site: " Amazon ", Keyword: "glass cleaner"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.ScrapeResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, models.SiteAmazon, resp.Site)
	assert.Equal(t, models.ModeVolume, resp.Mode)
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "glass cleaner 500ml", resp.Records[0].Name)
	assert.False(t, resp.Aborted)
}

func TestScrape_Errors(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	tests := []struct {
		name string
		body any
		want int
		code string
	}{
		{"missing keyword", map[string]string{"site": "amazon"}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"blank keyword", models.ScrapeRequest{Site: "amazon", Keyword: "  "}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"bad mode", models.ScrapeRequest{Site: "amazon", Keyword: "soap", Mode: "weight"}, http.StatusBadRequest, models.ErrCodeInvalidInput},
		{"unknown site", models.ScrapeRequest{Site: "noon", Keyword: "soap"}, http.StatusNotFound, models.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/v1/scrape", tt.body)
			assert.Equal(t, tt.want, w.Code)
			assert.Equal(t, tt.code, decode[models.ErrorResponse](t, w).Error.Code)
		})
	}
}

func TestScrape_SessionLostReturnsPartial(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.amazon.err = models.NewScrapeError(models.ErrCodeSessionLost, "tab closed", nil)

	w := h.do(t, http.MethodPost, "/api/v1/scrape", models.ScrapeRequest{Site: "amazon", Keyword: "wipes", Mode: models.ModeUnits})
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode[models.ScrapeResponse](t, w)
	assert.True(t, resp.Aborted)
	assert.Len(t, resp.Records, 1)
}

func TestScrape_NavigationFailure(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.amazon.err = models.NewScrapeError(models.ErrCodeNavigation, "search page failed", nil)

	w := h.do(t, http.MethodPost, "/api/v1/scrape", models.ScrapeRequest{Site: "amazon", Keyword: "soap"})
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func waitForRun(t *testing.T, h *harness, id string) models.RunResponse {
	t.Helper()
	var resp models.RunResponse
	require.Eventually(t, func() bool {
		w := h.do(t, http.MethodGet, "/api/v1/runs/"+id, nil)
		if w.Code != http.StatusOK {
			return false
		}
		resp = decode[models.RunResponse](t, w)
		return resp.Status != models.RunRunning
	}, 5*time.Second, 10*time.Millisecond)
	return resp
}

func TestRuns_CompleteAndNotify(t *testing.T) {
	events := make(chan webhook.Event, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var ev webhook.Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			events <- ev
		}
	}))
	defer hook.Close()
	notifier := webhook.New(hook.URL, "", quiet())
	notifier.Delays = []time.Duration{0}

	h := newHarness(t, testConfig(), notifier)

	w := h.do(t, http.MethodPost, "/api/v1/runs", models.RunRequest{
		Instructions: []models.Instruction{{
			Industry:           "Cleaning",
			SubIndustry:        "Pets",
			TypeOfProduct:      "P3-Glass cleaner",
			GenericProductType: "Glass cleaner",
		}},
		OutputMode: config.OutputAppend,
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	accepted := decode[models.RunResponse](t, w)
	require.NotEmpty(t, accepted.RunID)
	assert.Equal(t, models.RunRunning, accepted.Status)

	done := waitForRun(t, h, accepted.RunID)
	assert.Equal(t, models.RunCompleted, done.Status)
	require.NotNil(t, done.Summary)
	assert.Equal(t, 1, done.Summary.Records)

	rows := h.sink.Rows()
	require.Len(t, rows, 1)
	assert.Equal(t, "B2C", rows[0].Channel)
	assert.Equal(t, "Cleaning", rows[0].Industry)

	h.openMu.Lock()
	assert.Equal(t, config.OutputAppend, h.opened[0].Mode)
	h.openMu.Unlock()

	select {
	case ev := <-events:
		assert.Equal(t, webhook.EventRunCompleted, ev.Type)
		assert.Equal(t, accepted.RunID, ev.RunID)
	case <-time.After(5 * time.Second):
		t.Fatal("webhook not delivered")
	}
}

func TestRuns_OneAtATime(t *testing.T) {
	h := newHarness(t, testConfig(), nil)
	h.amazon.release = make(chan struct{})

	body := models.RunRequest{Instructions: []models.Instruction{{SubIndustry: "pets", TypeOfProduct: "Soap"}}}

	first := h.do(t, http.MethodPost, "/api/v1/runs", body)
	require.Equal(t, http.StatusAccepted, first.Code)

	second := h.do(t, http.MethodPost, "/api/v1/runs", body)
	assert.Equal(t, http.StatusConflict, second.Code)
	assert.Equal(t, models.ErrCodeRunActive, decode[models.ErrorResponse](t, second).Error.Code)

	close(h.amazon.release)
	waitForRun(t, h, decode[models.RunResponse](t, first).RunID)

	third := h.do(t, http.MethodPost, "/api/v1/runs", body)
	assert.Equal(t, http.StatusAccepted, third.Code)
	waitForRun(t, h, decode[models.RunResponse](t, third).RunID)
}

func TestRuns_Validation(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	tests := []struct {
		name string
		body any
	}{
		{"no instructions", models.RunRequest{}},
		{"missing type", models.RunRequest{Instructions: []models.Instruction{{SubIndustry: "pets"}}}},
		{"bad output mode", models.RunRequest{
			Instructions: []models.Instruction{{SubIndustry: "pets", TypeOfProduct: "Soap"}},
			OutputMode:   "replace",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, "/api/v1/runs", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}

	w := h.do(t, http.MethodGet, "/api/v1/runs/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestInspect(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	w := h.do(t, http.MethodPost, "/api/v1/inspect", models.InspectRequest{
		URL:         "https://shop.test/p/1",
		CSSSelector: ".price",
		FetchMode:   models.FetchHTTP,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.InspectResponse](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, "http", resp.EngineUsed)
	assert.Equal(t, 1, resp.SelectorMatches)
	assert.True(t, strings.Contains(resp.Content, "SAR 19.95"), resp.Content)
	assert.Equal(t, "19.95", resp.Product.Price)
	require.NotNil(t, resp.Quantity)
	assert.Equal(t, models.UnitML, resp.Quantity.Unit)
	assert.Equal(t, 500.0, resp.Quantity.Quantity)
}

func TestInspect_UnavailableMode(t *testing.T) {
	h := newHarness(t, testConfig(), nil)

	w := h.do(t, http.MethodPost, "/api/v1/inspect", models.InspectRequest{URL: "https://shop.test/", FetchMode: models.FetchBrowser})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/inspect", models.InspectRequest{URL: "not a url"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
