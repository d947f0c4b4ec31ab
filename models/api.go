package models

// ScrapeRequest is the body of POST /api/v1/scrape.
type ScrapeRequest struct {
	Site    SiteID `json:"site" binding:"required"`
	Keyword string `json:"keyword" binding:"required"`

	// Mode defaults to "volume".
	Mode Mode `json:"mode,omitempty"`
}

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	Success bool            `json:"success"`
	Site    SiteID          `json:"site"`
	Keyword string          `json:"keyword"`
	Mode    Mode            `json:"mode"`
	Records []ProductRecord `json:"records"`

	// Aborted is set when the browser session died mid-scrape; Records
	// then holds what was accepted before.
	Aborted bool `json:"aborted,omitempty"`

	Timing TimingInfo   `json:"timing"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// RunRequest is the body of POST /api/v1/runs.
type RunRequest struct {
	Instructions []Instruction `json:"instructions" binding:"required,min=1,dive"`

	// OutputMode overrides the configured CSV mode: "overwrite" or "append".
	OutputMode string `json:"output_mode,omitempty"`
}

// RunResponse is returned when a run is accepted and by GET /api/v1/runs/:id.
type RunResponse struct {
	RunID   string      `json:"run_id"`
	Status  RunStatus   `json:"status"`
	Summary *RunSummary `json:"summary,omitempty"`
}

// Fetch modes of the page inspector.
const (
	FetchHTTP    = "http"
	FetchBrowser = "browser"
	FetchAuto    = "auto"
)

// InspectRequest is the body of POST /api/v1/inspect.
type InspectRequest struct {
	URL string `json:"url" binding:"required,url"`

	// CSSSelector narrows the page before conversion and reports how many
	// elements it matched.
	CSSSelector string `json:"css_selector,omitempty"`

	// FetchMode is "http", "browser" or "auto"; default "browser".
	FetchMode string `json:"fetch_mode,omitempty"`
}

// InspectResponse describes a page the way the site scrapers would see it.
type InspectResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code"`
	FinalURL   string `json:"final_url"`
	EngineUsed string `json:"engine_used,omitempty"`

	Title   string `json:"title"`
	Content string `json:"content"`

	// SelectorMatches is the number of elements CSSSelector matched.
	SelectorMatches int `json:"selector_matches"`

	// Product holds the product meta tags found on the page.
	Product ProductMeta `json:"product"`

	// Quantity is what the extraction rules read from the page title.
	Quantity *QuantityMeasurement `json:"quantity,omitempty"`

	Links  []Link       `json:"links"`
	Tokens TokenInfo    `json:"tokens"`
	Timing TimingInfo   `json:"timing"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ProductMeta is read from Open Graph and product meta tags.
type ProductMeta struct {
	Title    string `json:"title,omitempty"`
	Brand    string `json:"brand,omitempty"`
	Price    string `json:"price,omitempty"`
	Currency string `json:"currency,omitempty"`
	Type     string `json:"type,omitempty"`
}

// Link is a same-site hyperlink found on an inspected page.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// TokenInfo estimates the size of the page before and after cleaning.
type TokenInfo struct {
	OriginalEstimate int     `json:"original_estimate"`
	CleanedEstimate  int     `json:"cleaned_estimate"`
	SavingsPercent   float64 `json:"savings_percent"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	TotalMs      int64 `json:"total_ms"`
	NavigationMs int64 `json:"navigation_ms,omitempty"`
	CleaningMs   int64 `json:"cleaning_ms,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status   string       `json:"status"` // "healthy" or "degraded"
	Uptime   string       `json:"uptime"`
	Sessions SessionStats `json:"sessions"`
	Version  string       `json:"version"`
}

// SessionStats reports browser session usage.
type SessionStats struct {
	Active int   `json:"active"`
	Total  int64 `json:"total"`
}

// SiteInfo describes one configured site.
type SiteInfo struct {
	ID           SiteID `json:"id"`
	BaseURL      string `json:"base_url"`
	MaxRecords   int    `json:"max_records"`
	OverrideOnly bool   `json:"override_only"`
	Gated        bool   `json:"gated"`
}

// SitesResponse is the response for GET /api/v1/sites.
type SitesResponse struct {
	Sites   []SiteInfo          `json:"sites"`
	Targets map[string][]SiteID `json:"targets"`
}

// ErrorResponse is returned by middleware and by endpoints that fail
// before producing their own response body.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}
