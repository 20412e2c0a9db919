package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/target-product-scraper/internal/database"
	"github.com/maltedev/target-product-scraper/internal/models"
)

type EventType string

const (
	// EventTypeScrapeJobCompleted is published when a job finishes, whether
	// it completed or failed.
	EventTypeScrapeJobCompleted EventType = "SCRAPE_JOB_COMPLETED"

	aggregateScrapeJob = "scrape_job"
	eventSource        = "target-scraper"
)

type JobCompletedPayload struct {
	EventID       string           `json:"event_id"`
	EventType     string           `json:"event_type"`
	Timestamp     time.Time        `json:"timestamp"`
	JobID         string           `json:"job_id"`
	URL           string           `json:"url"`
	Strategy      string           `json:"strategy"`
	Status        models.JobStatus `json:"status"`
	PagesScraped  int              `json:"pages_scraped"`
	ProductsFound int              `json:"products_found"`
	Duplicates    int              `json:"duplicates"`
	Summary       models.Summary   `json:"summary"`
	Error         string           `json:"error,omitempty"`
	Source        string           `json:"source"`
}

// Outbox stores events for the relay. database.OutboxRepository satisfies it.
type Outbox interface {
	Insert(ctx context.Context, event *database.OutboxEvent) error
}

// Publisher writes job events to the transactional outbox.
type Publisher struct {
	outbox Outbox
	stream string
	logger *slog.Logger
}

func NewPublisher(outbox Outbox, stream string, logger *slog.Logger) *Publisher {
	if stream == "" {
		stream = database.DefaultStream
	}
	return &Publisher{
		outbox: outbox,
		stream: stream,
		logger: logger.With("component", "event_publisher"),
	}
}

func NewJobCompletedPayload(job *models.Job, summary models.Summary) *JobCompletedPayload {
	return &JobCompletedPayload{
		EventID:       uuid.New().String(),
		EventType:     string(EventTypeScrapeJobCompleted),
		Timestamp:     time.Now(),
		JobID:         job.ID,
		URL:           job.URL,
		Strategy:      job.Strategy,
		Status:        job.Status,
		PagesScraped:  job.PagesScraped,
		ProductsFound: job.ProductsFound,
		Duplicates:    job.Duplicates,
		Summary:       summary,
		Error:         job.Error,
		Source:        eventSource,
	}
}

func (p *Publisher) PublishJobCompleted(ctx context.Context, job *models.Job, summary models.Summary) error {
	payload := NewJobCompletedPayload(job, summary)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	event := &database.OutboxEvent{
		AggregateType: aggregateScrapeJob,
		AggregateID:   job.ID,
		EventType:     payload.EventType,
		Payload:       data,
		TargetStream:  p.stream,
	}
	if err := p.outbox.Insert(ctx, event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"job_id", job.ID,
		"status", job.Status,
		"outbox_id", event.ID)
	return nil
}
