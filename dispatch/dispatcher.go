package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
	"github.com/use-agent/pricecrawl/sites"
)

// Sink receives the rows of one sub-industry group.
type Sink interface {
	Write(ctx context.Context, runID string, rows []models.OutputRow) error
}

// Dispatcher runs instruction rows against the site scrapers, one
// sub-industry group at a time.
type Dispatcher struct {
	registry *sites.Registry
	sites    config.SitesConfig
	sink     Sink
	cfg      config.DispatchConfig
	logger   *slog.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Dispatcher. Scrapers come from registry, routing from
// sitesCfg, and every group's rows go to sink.
func New(registry *sites.Registry, sitesCfg config.SitesConfig, sink Sink, cfg config.DispatchConfig, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if len(cfg.B2CSubIndustries) == 0 {
		cfg.B2CSubIndustries = []string{"home", "automotive", "pets"}
	}
	return &Dispatcher{
		registry: registry,
		sites:    sitesCfg,
		sink:     sink,
		cfg:      cfg,
		logger:   logger.With("component", "dispatch"),
		now:      time.Now,
		sleep:    sleepCtx,
	}
}

// job is one scrape call of a group.
type job struct {
	site    models.SiteID
	keyword string
	mode    models.Mode
	in      models.Instruction
}

// jobResult is what one job produced.
type jobResult struct {
	done    bool
	records []models.ProductRecord
	aborted bool
}

// Run processes instructions under a fresh run ID.
func (d *Dispatcher) Run(ctx context.Context, instructions []models.Instruction) (*models.RunSummary, error) {
	return d.RunWithID(ctx, uuid.NewString(), instructions)
}

// RunWithID processes instructions grouped by sub-industry, in sorted
// group order. Each group is written to the sink before the next one
// starts. A canceled ctx stops the run between jobs; the rows already
// scraped for the current group are still written and the summary so far
// is returned with ctx.Err(). A group that cannot be written ends the run
// as failed with a SINK_FAILURE error.
func (d *Dispatcher) RunWithID(ctx context.Context, runID string, instructions []models.Instruction) (*models.RunSummary, error) {
	if d.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.RunTimeout)
		defer cancel()
	}

	logger := d.logger.With("run_id", runID)
	summary := &models.RunSummary{
		RunID:   runID,
		Status:  models.RunRunning,
		Started: d.now(),
	}
	finish := func(err error) (*models.RunSummary, error) {
		summary.Finished = d.now()
		switch {
		case err == nil:
			summary.Status = models.RunCompleted
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			summary.Status = models.RunCanceled
			summary.Error = err.Error()
		default:
			summary.Status = models.RunFailed
			summary.Error = err.Error()
		}
		logger.Info("run finished",
			"status", summary.Status,
			"groups", summary.Groups,
			"jobs", summary.Jobs,
			"records", summary.Records,
			"aborted", summary.Aborted,
			"failed", summary.Failed,
			"elapsed", summary.Finished.Sub(summary.Started),
		)
		return summary, err
	}

	groups := groupBySubIndustry(instructions)
	logger.Info("run started", "instructions", len(instructions), "groups", len(groups))

	for i, g := range groups {
		if err := ctx.Err(); err != nil {
			return finish(err)
		}
		err := d.runGroup(ctx, logger, summary, g)
		summary.Groups++
		if err != nil {
			return finish(err)
		}

		if i < len(groups)-1 && d.cfg.GroupCooldown > 0 {
			logger.Info("cooling down", "duration", d.cfg.GroupCooldown)
			if err := d.sleep(ctx, d.cfg.GroupCooldown); err != nil {
				return finish(err)
			}
		}
	}
	return finish(nil)
}

// group is the instructions of one sub-industry, in file order.
type group struct {
	subIndustry  string
	instructions []models.Instruction
}

func groupBySubIndustry(instructions []models.Instruction) []group {
	index := make(map[string]int)
	var groups []group
	for _, in := range instructions {
		key := strings.TrimSpace(in.SubIndustry)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, group{subIndustry: key})
		}
		groups[i].instructions = append(groups[i].instructions, in)
	}
	slices.SortStableFunc(groups, func(a, b group) int {
		return strings.Compare(a.subIndustry, b.subIndustry)
	})
	return groups
}

// runGroup scrapes one group and writes its rows. It returns a non-nil
// error when ctx ended or the rows could not be saved; either stops the run.
func (d *Dispatcher) runGroup(ctx context.Context, logger *slog.Logger, summary *models.RunSummary, g group) error {
	logger = logger.With("subindustry", g.subIndustry)
	jobs := d.plan(logger, g)
	logger.Info("group started", "instructions", len(g.instructions), "jobs", len(jobs))

	results := make([]jobResult, len(jobs))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(d.cfg.Workers)

	for i, j := range jobs {
		if egCtx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			s, _ := d.registry.Get(j.site)
			records, err := s.Scrape(egCtx, j.keyword, j.mode)
			results[i] = jobResult{done: true, records: records}
			if err == nil {
				return nil
			}
			if ctxErr := egCtx.Err(); ctxErr != nil {
				return ctxErr
			}
			results[i].aborted = true
			logger.Warn("scrape aborted",
				"site", j.site,
				"keyword", j.keyword,
				"records", len(records),
				"code", models.CodeOf(err),
				"error", err,
			)
			return nil
		})
	}
	runErr := eg.Wait()

	industry := g.subIndustry
	if first := g.instructions[0].Industry; first != "" {
		industry = first
	}
	channel := d.channel(g.subIndustry)
	date := d.now().Format(time.DateOnly)

	var rows []models.OutputRow
	for i, j := range jobs {
		res := results[i]
		if res.done {
			summary.Jobs++
		}
		if res.aborted {
			summary.Aborted++
		}
		for _, rec := range res.records {
			rows = append(rows, models.OutputRow{
				Date:               date,
				Industry:           industry,
				SubIndustry:        j.in.SubIndustry,
				TypeOfProduct:      j.in.TypeOfProduct,
				GenericProductType: j.in.GenericProductType,
				Product:            rec.Name,
				PriceSAR:           rec.Price,
				Company:            rec.Brand,
				Source:             rec.Source,
				URL:                rec.URL,
				UnitOfMeasurement:  rec.Unit,
				TotalQuantity:      rec.TotalQuantity,
				Channel:            channel,
			})
		}
	}

	if len(rows) == 0 {
		logger.Info("group finished, nothing to save")
		return runErr
	}

	// A canceled run still saves what its group already scraped.
	writeCtx := ctx
	if runErr != nil {
		writeCtx = context.WithoutCancel(ctx)
	}
	if err := d.sink.Write(writeCtx, summary.RunID, rows); err != nil {
		summary.Failed++
		logger.Error("group not saved", "rows", len(rows), "error", err)
		return models.NewScrapeError(models.ErrCodeSinkFailure,
			fmt.Sprintf("saving group %q", g.subIndustry), err)
	}
	summary.Records += len(rows)
	logger.Info("group saved", "rows", len(rows))
	return runErr
}

// plan expands a group into its jobs, in instruction then site order.
func (d *Dispatcher) plan(logger *slog.Logger, g group) []job {
	var jobs []job
	for _, in := range g.instructions {
		task := BuildTask(in, d.sites, d.cfg.UnitKeywords...)
		tlog := logger.With("type_of_product", in.TypeOfProduct)
		tlog.Info("task resolved", "keyword", task.Keyword, "mode", task.Mode, "overrides", len(task.SiteKeywordOverrides))

		for _, site := range d.sites.SitesFor(g.subIndustry) {
			if task.Excludes(site) {
				tlog.Info("site skipped", "site", site, "reason", "excluded for keyword")
				continue
			}
			_, hasOverride := task.SiteKeywordOverrides[site]
			if d.sites.IsOverrideOnly(site) && !hasOverride && len(task.GeneralModifiers) == 0 {
				tlog.Debug("site skipped", "site", site, "reason", "needs a site keyword")
				continue
			}
			if _, ok := d.registry.Get(site); !ok {
				tlog.Warn("site skipped", "site", site, "reason", "no scraper")
				continue
			}
			for _, kw := range task.KeywordsFor(site) {
				jobs = append(jobs, job{site: site, keyword: kw, mode: task.Mode, in: in})
			}
		}
	}
	return jobs
}

func (d *Dispatcher) channel(subIndustry string) string {
	for _, b2c := range d.cfg.B2CSubIndustries {
		if strings.EqualFold(strings.TrimSpace(b2c), strings.TrimSpace(subIndustry)) {
			return models.ChannelB2C
		}
	}
	return models.ChannelB2B
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
