// Package dispatch turns instruction rows into scrape jobs, runs them
// group by group and hands the resulting rows to a sink.
package dispatch

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/use-agent/pricecrawl/config"
	"github.com/use-agent/pricecrawl/models"
)

// Instruction file headers.
const (
	colIndustry  = "industry"
	colSub       = "sub industry"
	colType      = "type of product"
	colGeneric   = "generic product type"
	colModifiers = "search modifiers"
)

// LoadInstructions reads the instruction CSV at path. Rows without a
// product type or sub-industry are dropped.
func LoadInstructions(path string) ([]models.Instruction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeConfig, "instruction file unreadable", err)
	}
	defer f.Close()

	out, err := ReadInstructions(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// ReadInstructions parses instruction CSV from r. Headers are matched
// case-insensitively; only "Type of product" and "Sub industry" are
// required.
func ReadInstructions(r io.Reader) ([]models.Instruction, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, models.NewScrapeError(models.ErrCodeConfig, "instruction file is empty", nil)
		}
		return nil, models.NewScrapeError(models.ErrCodeConfig, "instruction header unreadable", err)
	}

	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimPrefix(h, "\ufeff")
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{colType, colSub} {
		if _, ok := cols[required]; !ok {
			return nil, models.NewScrapeError(models.ErrCodeConfig, fmt.Sprintf("instruction file has no %q column", required), nil)
		}
	}

	cell := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []models.Instruction
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, models.NewScrapeError(models.ErrCodeConfig, "instruction row unreadable", err)
		}
		in := models.Instruction{
			Industry:           cell(rec, colIndustry),
			SubIndustry:        cell(rec, colSub),
			TypeOfProduct:      cell(rec, colType),
			GenericProductType: cell(rec, colGeneric),
			SearchModifiers:    cell(rec, colModifiers),
		}
		if in.TypeOfProduct == "" || in.SubIndustry == "" {
			continue
		}
		out = append(out, in)
	}
	return out, nil
}

// classificationCode matches a leading catalog code such as "P3-" or
// "HC12B -". Hyphens inside the product name are kept.
var classificationCode = regexp.MustCompile(`^\s*[A-Za-z]*\d+[A-Za-z0-9]*\s*-\s*`)

// BaseKeyword lowercases a product type and strips its classification
// code: "P3-Glass cleaner" becomes "glass cleaner".
func BaseKeyword(typeOfProduct string) string {
	kw := classificationCode.ReplaceAllString(typeOfProduct, "")
	return strings.ToLower(strings.TrimSpace(kw))
}

// DefaultUnitKeywords switch a product type to units mode.
var DefaultUnitKeywords = []string{"wipes", "rags", "microfiber", "brush"}

// BuildTask resolves one instruction into its search keyword, mode, site
// overrides and exclusions. unitKeywords default to DefaultUnitKeywords.
func BuildTask(in models.Instruction, sites config.SitesConfig, unitKeywords ...string) models.ScrapeTask {
	if len(unitKeywords) == 0 {
		unitKeywords = DefaultUnitKeywords
	}

	base := BaseKeyword(in.TypeOfProduct)
	task := models.ScrapeTask{
		Mode:                 models.ModeVolume,
		ExcludedSites:        map[models.SiteID]struct{}{},
		SiteKeywordOverrides: map[models.SiteID][]string{},
	}

	for _, mod := range strings.Split(in.SearchModifiers, ";") {
		mod = strings.TrimSpace(mod)
		if mod == "" {
			continue
		}
		if site, kw, ok := strings.Cut(mod, ":"); ok {
			id := models.SiteID(strings.ToLower(strings.TrimSpace(site)))
			if kw = strings.TrimSpace(kw); kw != "" {
				task.SiteKeywordOverrides[id] = append(task.SiteKeywordOverrides[id], kw)
			}
			continue
		}
		task.GeneralModifiers = append(task.GeneralModifiers, mod)
	}
	task.Keyword = strings.TrimSpace(base + " " + strings.Join(task.GeneralModifiers, " "))

	lower := strings.ToLower(in.TypeOfProduct)
	for _, k := range unitKeywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			task.Mode = models.ModeUnits
			break
		}
	}

	// Exclusion lists name base keywords, before modifiers.
	for site := range sites.Exclusions {
		if sites.Excluded(site, base) {
			task.ExcludedSites[site] = struct{}{}
		}
	}
	return task
}
