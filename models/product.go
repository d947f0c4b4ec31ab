package models

// SiteID identifies a competitor site.
type SiteID string

const (
	SiteAmazon       SiteID = "amazon"
	SiteMumzworld    SiteID = "mumzworld"
	SiteGoGreen      SiteID = "gogreen"
	SiteSaco         SiteID = "saco"
	SiteOfficeSupply SiteID = "officesupply"
	SiteAeroSense    SiteID = "aerosense"

	// SiteFine is routed by older target maps but has no scraper.
	SiteFine SiteID = "fine"
)

// KnownSites lists every site with a scraper implementation.
var KnownSites = []SiteID{
	SiteAmazon,
	SiteMumzworld,
	SiteGoGreen,
	SiteSaco,
	SiteOfficeSupply,
	SiteAeroSense,
}

// Mode selects which kind of quantity a scrape extracts.
type Mode string

const (
	ModeVolume Mode = "volume"
	ModeUnits  Mode = "units"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeVolume || m == ModeUnits
}

// Unit is the unit of a quantity.
type Unit string

const (
	UnitML    Unit = "ml"
	UnitL     Unit = "L"
	UnitG     Unit = "g"
	UnitKG    Unit = "kg"
	UnitFlOz  Unit = "fl oz"
	UnitUnits Unit = "units"
)

// Confidence records how a product's quantity was derived.
type Confidence string

const (
	ConfidenceNone      Confidence = "None"
	ConfidenceFromTitle Confidence = "FromTitle"
	ConfidenceConfirmed Confidence = "ConfirmedByTwoSources"
	ConfidenceAIDerived Confidence = "AIDerived"
)

// QuantityMeasurement is a parsed quantity. Normalized is expressed in the
// base unit (ml for liquids, g for weights, raw count for units).
type QuantityMeasurement struct {
	RawText    string  `json:"raw_text"`
	Quantity   float64 `json:"quantity"`
	Unit       Unit    `json:"unit"`
	Normalized float64 `json:"normalized"`
}

// ProductRecord is one accepted product from a competitor site.
type ProductRecord struct {
	Name          string     `json:"product"`
	Brand         string     `json:"company"`
	Price         float64    `json:"price_sar"`
	Unit          Unit       `json:"unit_of_measurement"`
	TotalQuantity float64    `json:"total_quantity"`
	Source        SiteID     `json:"source"`
	URL           string     `json:"url"`
	Confidence    Confidence `json:"confidence"`

	// NormalizedQuantity is TotalQuantity in the base unit (ml, g or units).
	NormalizedQuantity float64 `json:"normalized_quantity"`

	// ConfirmedBy names the agreeing sources, e.g. "title+spec_table".
	ConfirmedBy string `json:"confirmed_by,omitempty"`
}

// ScrapeTask is the resolved work for one instruction row.
type ScrapeTask struct {
	Keyword              string
	Mode                 Mode
	ExcludedSites        map[SiteID]struct{}
	SiteKeywordOverrides map[SiteID][]string

	// GeneralModifiers holds the free-text modifiers appended to Keyword.
	GeneralModifiers []string
}

// KeywordsFor returns the keywords to search on site: the site overrides
// when present, the task keyword otherwise.
func (t ScrapeTask) KeywordsFor(site SiteID) []string {
	if kws, ok := t.SiteKeywordOverrides[site]; ok && len(kws) > 0 {
		return kws
	}
	return []string{t.Keyword}
}

// Excludes reports whether site is excluded for this task.
func (t ScrapeTask) Excludes(site SiteID) bool {
	_, ok := t.ExcludedSites[site]
	return ok
}
