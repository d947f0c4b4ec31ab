package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/scraper"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestHTTPEngine_Fetch(t *testing.T) {
	var gotUA, gotLang string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.UserAgent()
		gotLang = r.Header.Get("Accept-Language")
		switch r.URL.Path {
		case "/product":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = io.WriteString(w, "<html><head><title> Dettol Wipes 80 </title></head><body>x</body></html>")
		case "/blocked":
			w.Header().Set("Content-Type", "text/html")
			w.WriteHeader(http.StatusForbidden)
		default:
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, "{}")
		}
	}))
	defer srv.Close()

	e := NewHTTPEngine("test-agent", "en-US", 5*time.Second)

	res, err := e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/product"})
	require.NoError(t, err)
	assert.Equal(t, "Dettol Wipes 80", res.Title)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "http", res.EngineName)
	assert.Equal(t, "test-agent", gotUA)
	assert.Equal(t, "en-US", gotLang)

	_, err = e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/blocked"})
	require.Error(t, err)
	assert.Equal(t, models.ErrCodeNavigation, models.CodeOf(err))

	_, err = e.Fetch(context.Background(), &FetchRequest{URL: srv.URL + "/api"})
	require.Error(t, err)
}

// stubEngine succeeds or fails after an optional delay.
type stubEngine struct {
	name  string
	err   error
	wait  time.Duration
	calls atomic.Int32
}

func (s *stubEngine) Name() string { return s.name }

func (s *stubEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	s.calls.Add(1)
	if s.wait > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.wait):
		}
	}
	if s.err != nil {
		return nil, s.err
	}
	return &FetchResult{HTML: "<html></html>", FinalURL: req.URL, EngineName: s.name}, nil
}

func TestRacer_EscalatesAndRemembers(t *testing.T) {
	httpE := &stubEngine{name: "http", err: models.NewScrapeError(models.ErrCodeNavigation, "403", nil)}
	browserE := &stubEngine{name: "browser"}
	mem := NewHostMemory(time.Hour)
	r := NewRacer([]Engine{httpE, browserE}, []time.Duration{0, 10 * time.Millisecond}, mem, quiet())

	res, err := r.Fetch(context.Background(), &FetchRequest{URL: "https://www.saco.sa/en/p/1"})
	require.NoError(t, err)
	assert.Equal(t, "browser", res.EngineName)

	got, ok := mem.Get("www.saco.sa")
	require.True(t, ok)
	assert.Equal(t, "browser", got)

	_, err = r.Fetch(context.Background(), &FetchRequest{URL: "https://www.saco.sa/en/p/2"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, httpE.calls.Load(), "remembered host skips the race")
	assert.EqualValues(t, 2, browserE.calls.Load())
}

func TestRacer_AllFail(t *testing.T) {
	boom := errors.New("boom")
	r := NewRacer([]Engine{&stubEngine{name: "http", err: boom}, &stubEngine{name: "browser", err: boom}}, nil, NewHostMemory(time.Hour), quiet())
	_, err := r.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	require.ErrorIs(t, err, boom)
}

func TestRacer_FirstWinnerCancelsSlowEngine(t *testing.T) {
	fast := &stubEngine{name: "http"}
	slow := &stubEngine{name: "browser", wait: time.Minute}
	r := NewRacer([]Engine{fast, slow}, nil, NewHostMemory(time.Hour), quiet())

	start := time.Now()
	res, err := r.Fetch(context.Background(), &FetchRequest{URL: "https://example.com"})
	require.NoError(t, err)
	assert.Equal(t, "http", res.EngineName)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestHostMemory_Expires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m := NewHostMemory(time.Minute)
	m.now = func() time.Time { return now }

	m.Set("a.example", "http")
	got, ok := m.Get("a.example")
	require.True(t, ok)
	assert.Equal(t, "http", got)

	now = now.Add(2 * time.Minute)
	_, ok = m.Get("a.example")
	assert.False(t, ok)
	assert.Zero(t, m.Len())
}

type stubRenderer struct{ snap *scraper.Snapshot }

func (s stubRenderer) Fetch(context.Context, string) (*scraper.Snapshot, error) { return s.snap, nil }

func TestBrowserEngine(t *testing.T) {
	e := NewBrowserEngine(stubRenderer{snap: &scraper.Snapshot{HTML: "<p>x</p>", Title: "T", FinalURL: "https://x/", StatusCode: 200}})
	res, err := e.Fetch(context.Background(), &FetchRequest{URL: "https://x/", Timeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, &FetchResult{HTML: "<p>x</p>", Title: "T", StatusCode: 200, FinalURL: "https://x/", EngineName: "browser"}, res)
}

func TestSet_For(t *testing.T) {
	httpE, browserE := &stubEngine{name: "http"}, &stubEngine{name: "browser"}
	s := Set{HTTP: httpE, Browser: browserE}

	e, err := s.For("")
	require.NoError(t, err)
	assert.Equal(t, "browser", e.Name())

	e, err = s.For(models.FetchHTTP)
	require.NoError(t, err)
	assert.Equal(t, "http", e.Name())

	_, err = s.For(models.FetchAuto)
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err), "auto without a racer")

	_, err = s.For("carrier-pigeon")
	assert.Equal(t, models.ErrCodeInvalidInput, models.CodeOf(err))
}
