package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/target-product-scraper/internal/models"
)

// JobStore keeps scrape jobs and their products in Postgres.
type JobStore struct {
	db *DB
}

func NewJobStore(db *DB) *JobStore {
	return &JobStore{db: db}
}

const jobColumns = `
	id, url, strategy, max_pages, status,
	pages_scraped, products_found, duplicates,
	created_at, started_at, completed_at, COALESCE(error, '')`

func scanJob(row pgx.Row) (*models.Job, error) {
	job := &models.Job{}
	var status string
	err := row.Scan(
		&job.ID, &job.URL, &job.Strategy, &job.MaxPages, &status,
		&job.PagesScraped, &job.ProductsFound, &job.Duplicates,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.Error,
	)
	job.Status = models.JobStatus(status)
	return job, err
}

func (s *JobStore) CreateJob(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO scrape_jobs (id, url, strategy, max_pages, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.db.Exec(ctx, query,
		job.ID, job.URL, job.Strategy, job.MaxPages, string(job.Status), job.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert job: %w", err)
	}
	return nil
}

func (s *JobStore) UpdateJob(ctx context.Context, job *models.Job) error {
	query := `
		UPDATE scrape_jobs
		SET status = $1, pages_scraped = $2, products_found = $3, duplicates = $4,
		    started_at = $5, completed_at = $6, error = NULLIF($7, '')
		WHERE id = $8`

	tag, err := s.db.Exec(ctx, query,
		string(job.Status), job.PagesScraped, job.ProductsFound, job.Duplicates,
		job.StartedAt, job.CompletedAt, job.Error, job.ID)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", models.ErrJobNotFound, job.ID)
	}
	return nil
}

func (s *JobStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	job, err := scanJob(s.db.QueryRow(ctx, `SELECT `+jobColumns+` FROM scrape_jobs WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return job, nil
}

func (s *JobStore) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(ctx,
		`SELECT `+jobColumns+` FROM scrape_jobs ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

const upsertProduct = `
	INSERT INTO products (tcin, title, url, image, price, price_value, rating, review_count, source, last_seen_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (tcin) DO UPDATE SET
		title        = COALESCE(NULLIF(EXCLUDED.title, ''), products.title),
		url          = COALESCE(NULLIF(EXCLUDED.url, ''), products.url),
		image        = COALESCE(NULLIF(EXCLUDED.image, ''), products.image),
		price        = COALESCE(NULLIF(EXCLUDED.price, ''), products.price),
		price_value  = COALESCE(EXCLUDED.price_value, products.price_value),
		rating       = COALESCE(EXCLUDED.rating, products.rating),
		review_count = COALESCE(EXCLUDED.review_count, products.review_count),
		source       = EXCLUDED.source,
		last_seen_at = EXCLUDED.last_seen_at`

const insertJobProduct = `
	INSERT INTO job_products (job_id, tcin, page_number, position, is_sponsored)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (job_id, tcin) DO NOTHING`

// SaveProducts upserts products by TCIN and links them to the job in one
// transaction.
func (s *JobStore) SaveProducts(ctx context.Context, jobID string, products []*models.Product) error {
	if len(products) == 0 {
		return nil
	}

	now := time.Now()
	return s.db.Transaction(ctx, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for i, p := range products {
			if p == nil || p.TCIN == "" {
				continue
			}
			seen := p.ScrapedAt
			if seen.IsZero() {
				seen = now
			}
			batch.Queue(upsertProduct,
				p.TCIN, p.Title, p.URL, p.Image, p.Price, p.PriceValue, p.Rating, p.ReviewCount, p.Source, seen)
			batch.Queue(insertJobProduct, jobID, p.TCIN, p.Page, i, p.IsSponsored)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to save products: %w", err)
		}
		return nil
	})
}

func (s *JobStore) GetJobProducts(ctx context.Context, jobID string) ([]*models.Product, error) {
	if _, err := s.GetJob(ctx, jobID); err != nil {
		return nil, err
	}

	query := `
		SELECT p.tcin, p.title, p.url, p.image, p.price,
		       p.price_value::float8, p.rating::float8, p.review_count,
		       jp.is_sponsored, p.source, jp.page_number, p.last_seen_at
		FROM job_products jp
		JOIN products p ON jp.tcin = p.tcin
		WHERE jp.job_id = $1
		ORDER BY jp.position`

	rows, err := s.db.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to get job products: %w", err)
	}
	defer rows.Close()

	var products []*models.Product
	for rows.Next() {
		p := &models.Product{}
		err := rows.Scan(
			&p.TCIN, &p.Title, &p.URL, &p.Image, &p.Price,
			&p.PriceValue, &p.Rating, &p.ReviewCount,
			&p.IsSponsored, &p.Source, &p.Page, &p.ScrapedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *JobStore) GetStats(ctx context.Context) (*models.JobStats, error) {
	stats := &models.JobStats{}

	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = 'pending'),
			COUNT(*) FILTER (WHERE status = 'running'),
			COUNT(*) FILTER (WHERE status = 'completed'),
			COUNT(*) FILTER (WHERE status = 'failed')
		FROM scrape_jobs`

	err := s.db.QueryRow(ctx, query).Scan(
		&stats.TotalJobs, &stats.PendingJobs, &stats.RunningJobs,
		&stats.CompletedJobs, &stats.FailedJobs,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}

	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&stats.TotalProducts); err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(stats.TotalJobs) * 100
	}
	return stats, nil
}
