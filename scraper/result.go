package scraper

// Snapshot is a rendered page captured by Browser.Fetch.
type Snapshot struct {
	// HTML is the rendered document.
	HTML string

	Title      string
	FinalURL   string
	StatusCode int
}
