package models

import "time"

// RunStatus is the lifecycle state of a crawl run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunCanceled  RunStatus = "canceled"
	RunFailed    RunStatus = "failed"
)

// RunSummary reports what one dispatcher run did.
type RunSummary struct {
	RunID  string    `json:"run_id"`
	Status RunStatus `json:"status"`

	Groups  int `json:"groups"`  // sub-industry groups processed
	Jobs    int `json:"jobs"`    // (site, keyword) scrape calls made
	Records int `json:"records"` // rows written

	// Aborted counts scrape calls ended by a lost session; their partial
	// records are still written.
	Aborted int `json:"aborted"`

	// Failed counts groups whose rows could not be written.
	Failed int `json:"failed"`

	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished,omitzero"`
	Error    string    `json:"error,omitempty"`
}
