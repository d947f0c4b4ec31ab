package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/dispatch"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/sink"
	"github.com/use-agent/pricecrawl/sites"
	"github.com/use-agent/pricecrawl/webhook"
)

// SinkOpener opens the output sinks of one run.
type SinkOpener func(ctx context.Context, cfg config.OutputConfig) (sink.Sink, error)

const (
	runRetention = time.Hour
	runSweep     = 5 * time.Minute
)

// Runs starts crawl runs in the background and reports their outcome.
// One run executes at a time: runs share the output file and the browser.
type Runs struct {
	ctx      context.Context
	registry *sites.Registry
	cfg      *config.Config
	open     SinkOpener
	notifier *webhook.Notifier
	logger   *slog.Logger

	store  sync.Map // run ID → *runEntry
	active atomic.Bool
	wg     sync.WaitGroup
}

type runEntry struct {
	mu      sync.Mutex
	resp    models.RunResponse
	created time.Time
}

func (e *runEntry) snapshot() models.RunResponse {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.resp
}

func (e *runEntry) finish(summary *models.RunSummary) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.resp.Status = summary.Status
	e.resp.Summary = summary
}

// NewRuns creates the run manager. Runs are canceled when ctx ends;
// notifier may be nil. Finished runs are forgotten after an hour.
func NewRuns(ctx context.Context, registry *sites.Registry, cfg *config.Config, open SinkOpener, notifier *webhook.Notifier, logger *slog.Logger) *Runs {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runs{
		ctx:      ctx,
		registry: registry,
		cfg:      cfg,
		open:     open,
		notifier: notifier,
		logger:   logger.With("component", "runs"),
	}
	go r.expire()
	return r
}

func (r *Runs) expire() {
	ticker := time.NewTicker(runSweep)
	defer ticker.Stop()
	for {
		select {
		case <-r.ctx.Done():
			return
		case now := <-ticker.C:
			cutoff := now.Add(-runRetention)
			r.store.Range(func(key, value any) bool {
				e := value.(*runEntry)
				if e.created.Before(cutoff) && e.snapshot().Status != models.RunRunning {
					r.store.Delete(key)
				}
				return true
			})
		}
	}
}

// Wait blocks until the active run, if any, has returned.
func (r *Runs) Wait() {
	r.wg.Wait()
}

// Post returns a handler for POST /api/v1/runs.
func (r *Runs) Post() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}

		out := r.cfg.Output
		switch req.OutputMode {
		case "":
		case config.OutputOverwrite, config.OutputAppend:
			out.Mode = req.OutputMode
		default:
			respondError(c, models.NewScrapeError(models.ErrCodeInvalidInput,
				fmt.Sprintf("output mode %q is not %q or %q", req.OutputMode, config.OutputOverwrite, config.OutputAppend), nil))
			return
		}

		if !r.active.CompareAndSwap(false, true) {
			respondError(c, models.NewScrapeError(models.ErrCodeRunActive, "another run is in progress", nil))
			return
		}

		id := uuid.NewString()
		entry := &runEntry{
			resp:    models.RunResponse{RunID: id, Status: models.RunRunning},
			created: time.Now(),
		}
		r.store.Store(id, entry)

		r.wg.Add(1)
		go r.execute(entry, id, req.Instructions, out)

		c.JSON(http.StatusAccepted, entry.snapshot())
	}
}

// Get returns a handler for GET /api/v1/runs/:id.
func (r *Runs) Get() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		v, ok := r.store.Load(id)
		if !ok {
			respondError(c, models.NewScrapeError(models.ErrCodeNotFound, fmt.Sprintf("run %q not found", id), nil))
			return
		}
		c.JSON(http.StatusOK, v.(*runEntry).snapshot())
	}
}

func (r *Runs) execute(entry *runEntry, id string, instructions []models.Instruction, out config.OutputConfig) {
	defer r.wg.Done()

	summary := r.run(id, instructions, out)
	// The slot is free before the final status becomes visible.
	r.active.Store(false)
	entry.finish(summary)

	if r.notifier != nil {
		r.notifier.SendAsync(webhook.RunEvent(summary))
	}
}

func (r *Runs) run(id string, instructions []models.Instruction, out config.OutputConfig) *models.RunSummary {
	logger := r.logger.With("run_id", id)

	s, err := r.open(r.ctx, out)
	if err != nil {
		logger.Error("opening sinks failed", "error", err)
		now := time.Now()
		return &models.RunSummary{
			RunID:    id,
			Status:   models.RunFailed,
			Started:  now,
			Finished: now,
			Error:    err.Error(),
		}
	}
	defer func() {
		if err := s.Close(); err != nil {
			logger.Warn("closing sinks failed", "error", err)
		}
	}()

	d := dispatch.New(r.registry, r.cfg.Sites, s, r.cfg.Dispatch, r.logger)
	summary, err := d.RunWithID(r.ctx, id, instructions)
	if err != nil {
		logger.Warn("run ended early", "status", summary.Status, "error", err)
	}
	return summary
}
