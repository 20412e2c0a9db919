package jobs

import (
	"context"

	"github.com/maltedev/target-product-scraper/internal/models"
)

// Store persists jobs and the products they found. GetJob returns
// models.ErrJobNotFound for unknown ids.
type Store interface {
	CreateJob(ctx context.Context, job *models.Job) error
	UpdateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id string) (*models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]*models.Job, error)
	SaveProducts(ctx context.Context, jobID string, products []*models.Product) error
	GetJobProducts(ctx context.Context, jobID string) ([]*models.Product, error)
	GetStats(ctx context.Context) (*models.JobStats, error)
}

const DefaultListLimit = 100
