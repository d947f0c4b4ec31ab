package engine

import (
	"context"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/use-agent/pricecrawl/models"
)

// Racer starts engines with staged delays and returns the first success.
// It remembers the winner per host and tries it alone next time.
type Racer struct {
	engines []Engine
	delays  []time.Duration
	memory  *HostMemory
	logger  *slog.Logger
}

// NewRacer creates a Racer. engines[i] starts delays[i] after the race
// begins; missing delays are 0.
func NewRacer(engines []Engine, delays []time.Duration, memory *HostMemory, logger *slog.Logger) *Racer {
	if logger == nil {
		logger = slog.Default()
	}
	d := make([]time.Duration, len(engines))
	copy(d, delays)
	return &Racer{
		engines: engines,
		delays:  d,
		memory:  memory,
		logger:  logger.With("component", "engine"),
	}
}

func (r *Racer) Name() string { return "auto" }

// Fetch implements Engine.
func (r *Racer) Fetch(ctx context.Context, req *FetchRequest) (*FetchResult, error) {
	host := hostOf(req.URL)

	if remembered, ok := r.memory.Get(host); ok {
		for _, eng := range r.engines {
			if eng.Name() != remembered {
				continue
			}
			res, err := eng.Fetch(ctx, req)
			if err == nil {
				r.logger.Debug("host memory hit", "host", host, "engine", remembered)
				return res, nil
			}
			r.logger.Info("remembered engine failed, racing", "host", host, "engine", remembered, "error", err)
			r.memory.Delete(host)
			break
		}
	}
	return r.race(ctx, req, host)
}

func (r *Racer) race(ctx context.Context, req *FetchRequest, host string) (*FetchResult, error) {
	type outcome struct {
		res *FetchResult
		err error
	}

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan outcome, len(r.engines))
	var wg sync.WaitGroup
	for i, eng := range r.engines {
		wg.Add(1)
		go func(e Engine, delay time.Duration) {
			defer wg.Done()
			if delay > 0 {
				t := time.NewTimer(delay)
				defer t.Stop()
				select {
				case <-raceCtx.Done():
					return
				case <-t.C:
				}
			}
			if raceCtx.Err() != nil {
				return
			}
			res, err := e.Fetch(raceCtx, req)
			if err != nil {
				r.logger.Debug("engine failed", "engine", e.Name(), "url", req.URL, "error", err)
			}
			results <- outcome{res, err}
		}(eng, r.delays[i])
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var lastErr error
	for o := range results {
		if o.err != nil {
			lastErr = o.err
			continue
		}
		cancel()
		r.logger.Info("engine won race", "engine", o.res.EngineName, "url", req.URL)
		r.memory.Set(host, o.res.EngineName)
		return o.res, nil
	}
	if lastErr == nil {
		lastErr = ctx.Err()
	}
	if lastErr == nil {
		lastErr = models.NewScrapeError(models.ErrCodeNavigation, "no engine fetched "+req.URL, nil)
	}
	return nil, lastErr
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return u.Hostname()
}
