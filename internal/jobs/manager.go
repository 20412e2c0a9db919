package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/queue"
	"github.com/maltedev/target-product-scraper/internal/scraper"
)

// Crawler runs one crawl. scraper.Service satisfies it.
type Crawler interface {
	Crawl(ctx context.Context, startURL, strategy string, opts scraper.CrawlOptions) (*models.Result, error)
}

// Publisher announces finished jobs. It is optional.
type Publisher interface {
	PublishJobCompleted(ctx context.Context, job *models.Job, summary models.Summary) error
}

type Manager struct {
	store     Store
	crawler   Crawler
	queue     queue.Queue
	publisher Publisher
	logger    *slog.Logger
}

func NewManager(store Store, crawler Crawler, q queue.Queue, publisher Publisher, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:     store,
		crawler:   crawler,
		queue:     q,
		publisher: publisher,
		logger:    logger.With("component", "job_manager"),
	}
}

// CreateJob validates the request, stores a pending job and queues it.
func (m *Manager) CreateJob(ctx context.Context, rawURL, strategy string, maxPages int) (*models.Job, error) {
	u, err := scraper.ValidateURL(rawURL)
	if err != nil {
		return nil, err
	}
	if strategy == "" {
		strategy = scraper.StrategyCascade
	}
	if !slices.Contains(scraper.Names(), strategy) || strategy == scraper.StrategyManual {
		return nil, fmt.Errorf("%w: %q", scraper.ErrUnknownStrategy, strategy)
	}

	job := &models.Job{
		ID:        uuid.New().String(),
		URL:       u.String(),
		Strategy:  strategy,
		MaxPages:  scraper.ClampPages(maxPages),
		Status:    models.JobPending,
		CreatedAt: time.Now(),
	}

	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	if err := m.queue.Push(&queue.Task{JobID: job.ID, URL: job.URL, CreatedAt: job.CreatedAt}); err != nil {
		return nil, fmt.Errorf("failed to queue job: %w", err)
	}

	m.logger.Info("job created", "id", job.ID, "url", job.URL, "strategy", strategy, "max_pages", job.MaxPages)
	return job, nil
}

func (m *Manager) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return m.store.GetJob(ctx, jobID)
}

func (m *Manager) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	return m.store.ListJobs(ctx, limit)
}

func (m *Manager) GetJobProducts(ctx context.Context, jobID string) ([]*models.Product, error) {
	return m.store.GetJobProducts(ctx, jobID)
}

func (m *Manager) GetStats(ctx context.Context) (*models.JobStats, error) {
	return m.store.GetStats(ctx)
}

func (m *Manager) QueueSize() int {
	return m.queue.Size()
}
