package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/queue"
	"github.com/maltedev/target-product-scraper/internal/scraper"
)

// Run starts n workers and blocks until ctx is done or the queue is closed
// and drained.
func (m *Manager) Run(ctx context.Context, n int) {
	if n < 1 {
		n = 1
	}
	m.logger.Info("job workers started", "workers", n)

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			m.work(ctx, id)
		}(i + 1)
	}
	wg.Wait()

	m.logger.Info("job workers stopped")
}

func (m *Manager) work(ctx context.Context, worker int) {
	for {
		task, err := m.queue.Pop(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrQueueClosed) && ctx.Err() == nil {
				m.logger.Error("failed to pop task", "worker", worker, "error", err)
			}
			return
		}
		m.process(ctx, task.JobID)
	}
}

// process runs one job through pending -> running -> completed|failed.
func (m *Manager) process(ctx context.Context, jobID string) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		m.logger.Error("failed to load job", "id", jobID, "error", err)
		return
	}
	if job.Finished() {
		m.logger.Warn("skipping finished job", "id", jobID, "status", job.Status)
		return
	}

	started := time.Now()
	job.Status = models.JobRunning
	job.StartedAt = &started
	if err := m.store.UpdateJob(ctx, job); err != nil {
		m.logger.Error("failed to update job status", "id", jobID, "error", err)
		return
	}

	m.logger.Info("processing job", "id", jobID, "url", job.URL, "strategy", job.Strategy)

	result, err := m.crawler.Crawl(ctx, job.URL, job.Strategy, scraper.CrawlOptions{
		MaxPages: job.MaxPages,
		Progress: func(p scraper.Progress) {
			job.PagesScraped = p.Page
			job.ProductsFound = p.Total
			if err := m.store.UpdateJob(ctx, job); err != nil {
				m.logger.Warn("failed to update job progress", "id", jobID, "error", err)
			}
		},
	})
	if err == nil {
		err = m.store.SaveProducts(ctx, jobID, result.Products)
	}

	// The job's final state is written even when ctx was canceled mid crawl.
	finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	completed := time.Now()
	job.CompletedAt = &completed

	if err != nil {
		job.Status = models.JobFailed
		job.Error = err.Error()
		if updateErr := m.store.UpdateJob(finishCtx, job); updateErr != nil {
			m.logger.Error("failed to mark job as failed", "id", jobID, "error", updateErr)
		}
		m.logger.Error("job failed", "id", jobID, "error", err)
		m.publish(finishCtx, job, models.Summary{})
		return
	}

	job.Status = models.JobCompleted
	job.PagesScraped = result.Pages
	job.ProductsFound = len(result.Products)
	job.Duplicates = result.Duplicates
	if err := m.store.UpdateJob(finishCtx, job); err != nil {
		m.logger.Error("failed to mark job as completed", "id", jobID, "error", err)
	}

	m.logger.Info("job completed",
		"id", jobID,
		"pages", job.PagesScraped,
		"products", job.ProductsFound,
		"duration", completed.Sub(started))
	m.publish(finishCtx, job, result.Summary)
}

func (m *Manager) publish(ctx context.Context, job *models.Job, summary models.Summary) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.PublishJobCompleted(ctx, job, summary); err != nil {
		m.logger.Error("failed to publish job event", "id", job.ID, "error", err)
	}
}
