package config

import (
	"errors"
	"fmt"
	"slices"

	"github.com/use-agent/pricecrawl/models"
)

// Output modes.
const (
	OutputOverwrite = "overwrite"
	OutputAppend    = "append"
)

// Validate checks the settings a run cannot start without. Every problem
// is reported, joined into one CONFIGURATION_ERROR.
func (c *Config) Validate() error {
	var errs []error

	if c.Output.Mode != OutputOverwrite && c.Output.Mode != OutputAppend {
		errs = append(errs, fmt.Errorf("output mode %q is not %q or %q", c.Output.Mode, OutputOverwrite, OutputAppend))
	}
	if c.Output.File == "" {
		errs = append(errs, errors.New("output file is empty"))
	}
	if c.Dispatch.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be at least 1, got %d", c.Dispatch.Workers))
	}
	if c.LLM.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("LLM max attempts must be at least 1, got %d", c.LLM.MaxAttempts))
	}
	if c.LLM.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("LLM requests per second must be positive, got %g", c.LLM.RequestsPerSecond))
	}

	gated := false
	for sub, sites := range c.Sites.Targets {
		for _, id := range sites {
			if !isRoutable(id) {
				errs = append(errs, fmt.Errorf("sub-industry %q routes to unknown site %q", sub, id))
				continue
			}
			if id != models.SiteAeroSense && id != models.SiteFine {
				gated = true
			}
		}
	}
	for id := range c.Sites.Sites {
		if !isRoutable(id) {
			errs = append(errs, fmt.Errorf("settings for unknown site %q", id))
		}
	}
	if gated && c.LLM.APIKey == "" {
		errs = append(errs, errors.New("no LLM API key: set PRICECRAWL_LLM_API_KEY, GEMINI_API_KEY or PRICECRAWL_SECRETS_FILE"))
	}

	if len(errs) == 0 {
		return nil
	}
	return models.NewScrapeError(models.ErrCodeConfig, "invalid configuration", errors.Join(errs...))
}

func isRoutable(id models.SiteID) bool {
	return id == models.SiteFine || slices.Contains(models.KnownSites, id)
}
