package models

import "time"

// Result is a finished crawl over one listing.
type Result struct {
	URL        string     `json:"url"`
	Strategy   string     `json:"strategy"`
	Products   []*Product `json:"products"`
	Pages      int        `json:"pages"`
	Duplicates int        `json:"duplicates"`
	Summary    Summary    `json:"summary"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`
}

func (r *Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
