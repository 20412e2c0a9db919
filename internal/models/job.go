package models

import "time"

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is one queued crawl.
type Job struct {
	ID            string     `json:"id"`
	URL           string     `json:"url"`
	Strategy      string     `json:"strategy"`
	MaxPages      int        `json:"max_pages"`
	Status        JobStatus  `json:"status"`
	PagesScraped  int        `json:"pages_scraped"`
	ProductsFound int        `json:"products_found"`
	Duplicates    int        `json:"duplicates"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	Error         string     `json:"error,omitempty"`
}

func (j *Job) Finished() bool {
	return j.Status == JobCompleted || j.Status == JobFailed
}

type JobStats struct {
	TotalJobs     int     `json:"total_jobs"`
	PendingJobs   int     `json:"pending_jobs"`
	RunningJobs   int     `json:"running_jobs"`
	CompletedJobs int     `json:"completed_jobs"`
	FailedJobs    int     `json:"failed_jobs"`
	TotalProducts int     `json:"total_products"`
	SuccessRate   float64 `json:"success_rate"`
}
