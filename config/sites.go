package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/use-agent/pricecrawl/models"
)

// SiteConfig holds the per-site crawl settings.
type SiteConfig struct {
	// BaseURL is the site root (or the product-category root for direct URLs).
	BaseURL string `yaml:"base_url"`

	// MaxCandidates caps the product links visited; 0 means every link found.
	MaxCandidates int `yaml:"max_candidates"`

	// MaxRecords caps the accepted records per scrape call.
	MaxRecords int `yaml:"max_records"`

	// MaxPages caps listing pages on paginated catalogs.
	MaxPages int `yaml:"max_pages"`

	// SearchTimeout bounds the wait for the listing container.
	SearchTimeout time.Duration `yaml:"search_timeout"`

	// DetailTimeout bounds the wait for a product page marker.
	DetailTimeout time.Duration `yaml:"detail_timeout"`

	// Settle is a pause after navigation for script-rendered listings.
	Settle time.Duration `yaml:"settle"`

	// KeepNearDuplicates turns off near-duplicate suppression, so every
	// accepted product URL becomes a record.
	KeepNearDuplicates bool `yaml:"keep_near_duplicates"`
}

// SitesConfig is the routing table of a run: which sites serve which
// sub-industry and which product types a site is known to mismatch.
type SitesConfig struct {
	// Targets maps a sub-industry (case-insensitive) to its sites.
	Targets map[string][]models.SiteID `yaml:"targets"`

	// Exclusions lists base keywords a site must not be searched for.
	Exclusions map[models.SiteID][]string `yaml:"exclusions"`

	// OverrideOnly sites are searched only when the instruction carries a
	// site override or a general modifier.
	OverrideOnly []models.SiteID `yaml:"override_only"`

	Sites map[models.SiteID]SiteConfig `yaml:"sites"`

	// EURToSAR converts euro catalog prices.
	EURToSAR float64 `yaml:"eur_to_sar"` // default: 4.39
}

// DefaultSites returns the compiled routing table.
func DefaultSites() SitesConfig {
	return SitesConfig{
		Targets: map[string][]models.SiteID{
			"Home":                  {models.SiteAmazon, models.SiteMumzworld, models.SiteSaco},
			"Automotive":            {models.SiteAmazon, models.SiteSaco},
			"Pets":                  {models.SiteAmazon},
			"Aviation":              {models.SiteAeroSense},
			"Airports":              {models.SiteFine},
			"Restaurants":           {models.SiteFine},
			"Facilities management": {models.SiteFine, models.SiteGoGreen, models.SiteOfficeSupply},
			"Faith":                 {models.SiteFine, models.SiteGoGreen, models.SiteOfficeSupply},
			"Gyms":                  {models.SiteFine, models.SiteGoGreen, models.SiteOfficeSupply},
			"Land Transportation":   {models.SiteFine, models.SiteGoGreen},
			"Spas and salons":       {models.SiteFine, models.SiteGoGreen, models.SiteOfficeSupply},
			"Hotels":                {models.SiteFine, models.SiteGoGreen, models.SiteOfficeSupply},
			"Healthcare":            {models.SiteFine, models.SiteSaco},
			"Industrial facilities": {models.SiteFine, models.SiteGoGreen, models.SiteOfficeSupply},
		},
		Exclusions: map[models.SiteID][]string{
			models.SiteMumzworld: {
				"oven and grill cleaner",
				"shower and tub cleaner",
				"mold and mildew remover",
				"general sanitizer for vegetable and salad washing",
				"tile and laminate cleaner",
				"wax and floor polish",
				"carpet shampoo",
				"spot remover for carpets",
				"leather cleaner",
			},
			models.SiteSaco: {
				"microfiber for vehicle cleaning",
				"long brush for seating cleaning",
				"general sanitizer for vegetable and salad washing",
				"fabric refresher",
				"car surface disinfectant wet rags",
				"car water spot remover",
				"car bug and poop remover",
				"waterless car wash product",
				"car surface disinfectant",
				"car gum remover",
				"car air freshener",
				"broad-spectrum disinfectant for surfaces, mattress and touchpoints",
				"body wash gel",
				"liquid dish soap",
				"makeup brush cleanser",
				"high performance waterless carpet cleaner",
				"surface disinfectant wet rags",
				"restroom deodorizer",
				"degreaser for food service areas",
				"sewage odor control spray",
				"non-slip floor cleaner for safety",
				"floor degreaser for kitchen areas",
				"grease trap odor treatment",
				"stainless steel polish and cleaner for fixtures and fittings",
				"escalator cleaner",
				"escalator tread brightener",
				"epoxy cleaner for heavy-traffic parking lot area",
				"hvac system cleaner",
				"hvac system deodorizer",
				"fabric refresher for linen, towels, curtains, mattresses and upholstery",
				"hard floor polish",
				"streak-free glass cleaner for large window areas",
			},
		},
		OverrideOnly: []models.SiteID{
			models.SiteFine, models.SiteGoGreen, models.SiteOfficeSupply, models.SiteAeroSense,
		},
		Sites: map[models.SiteID]SiteConfig{
			models.SiteAmazon: {
				BaseURL:       "https://www.amazon.sa",
				MaxCandidates: 40,
				MaxRecords:    40,
				SearchTimeout: 10 * time.Second,
				DetailTimeout: 10 * time.Second,
				Settle:        3 * time.Second,
			},
			models.SiteMumzworld: {
				BaseURL:       "https://www.mumzworld.com/sa-en/",
				MaxRecords:    7,
				SearchTimeout: 15 * time.Second,
				DetailTimeout: 15 * time.Second,
			},
			models.SiteGoGreen: {
				BaseURL:       "https://gogreen.com.sa/",
				MaxRecords:    6,
				SearchTimeout: 15 * time.Second,
				DetailTimeout: 15 * time.Second,
			},
			models.SiteSaco: {
				BaseURL:       "https://www.saco.sa/en/",
				MaxRecords:    9,
				MaxPages:      10,
				SearchTimeout: 20 * time.Second,
				DetailTimeout: 15 * time.Second,
				Settle:        2 * time.Second,
			},
			models.SiteOfficeSupply: {
				BaseURL:       "https://officesupply.sa/en/",
				MaxRecords:    8,
				SearchTimeout: 15 * time.Second,
				DetailTimeout: 15 * time.Second,
			},
			models.SiteAeroSense: {
				BaseURL:       "https://www.aero-sense.com/en/online-shop/cabin-and-exterior-cleaning/",
				DetailTimeout: 20 * time.Second,
			},
		},
		EURToSAR: 4.39,
	}
}

// LoadFile overlays a YAML site table on s. Top-level tables present in the
// file replace the compiled ones; per-site settings replace only the fields
// the file sets.
func (s *SitesConfig) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeConfig, "read sites file", err)
	}

	var file SitesConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return models.NewScrapeError(models.ErrCodeConfig, fmt.Sprintf("parse sites file %s", path), err)
	}

	if file.Targets != nil {
		s.Targets = file.Targets
	}
	if file.Exclusions != nil {
		s.Exclusions = file.Exclusions
	}
	if file.OverrideOnly != nil {
		s.OverrideOnly = file.OverrideOnly
	}
	if file.EURToSAR > 0 {
		s.EURToSAR = file.EURToSAR
	}
	if s.Sites == nil {
		s.Sites = make(map[models.SiteID]SiteConfig)
	}
	for id, over := range file.Sites {
		s.Sites[id] = mergeSite(s.Sites[id], over)
	}
	return nil
}

func mergeSite(base, over SiteConfig) SiteConfig {
	if over.BaseURL != "" {
		base.BaseURL = over.BaseURL
	}
	if over.MaxCandidates != 0 {
		base.MaxCandidates = over.MaxCandidates
	}
	if over.MaxRecords != 0 {
		base.MaxRecords = over.MaxRecords
	}
	if over.MaxPages != 0 {
		base.MaxPages = over.MaxPages
	}
	if over.SearchTimeout != 0 {
		base.SearchTimeout = over.SearchTimeout
	}
	if over.DetailTimeout != 0 {
		base.DetailTimeout = over.DetailTimeout
	}
	if over.Settle != 0 {
		base.Settle = over.Settle
	}
	if over.KeepNearDuplicates {
		base.KeepNearDuplicates = true
	}
	return base
}

// SitesFor returns the sites routed for a sub-industry.
func (s SitesConfig) SitesFor(subIndustry string) []models.SiteID {
	for k, v := range s.Targets {
		if strings.EqualFold(strings.TrimSpace(k), strings.TrimSpace(subIndustry)) {
			return append([]models.SiteID(nil), v...)
		}
	}
	return nil
}

// Excluded reports whether keyword is on site's exclusion list.
func (s SitesConfig) Excluded(site models.SiteID, keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	for _, e := range s.Exclusions[site] {
		if strings.ToLower(strings.TrimSpace(e)) == kw {
			return true
		}
	}
	return false
}

// IsOverrideOnly reports whether site needs an explicit keyword.
func (s SitesConfig) IsOverrideOnly(site models.SiteID) bool {
	for _, id := range s.OverrideOnly {
		if id == site {
			return true
		}
	}
	return false
}

// Site returns the settings for id.
func (s SitesConfig) Site(id models.SiteID) SiteConfig {
	return s.Sites[id]
}
