package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/maltedev/target-product-scraper/internal/models"
)

// MemoryStore keeps jobs in process. It is used when no database is
// configured and in tests.
type MemoryStore struct {
	mu       sync.RWMutex
	jobs     map[string]*models.Job
	found    map[string][]*models.Product
	products map[string]*models.Product
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:     make(map[string]*models.Job),
		found:    make(map[string][]*models.Product),
		products: make(map[string]*models.Product),
	}
}

func (s *MemoryStore) CreateJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("job %s already exists", job.ID)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) UpdateJob(ctx context.Context, job *models.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("%w: %s", models.ErrJobNotFound, job.ID)
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (*models.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, exists := s.jobs[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, id)
	}
	cp := *job
	return &cp, nil
}

// ListJobs returns the newest jobs first.
func (s *MemoryStore) ListJobs(ctx context.Context, limit int) ([]*models.Job, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	s.mu.RLock()
	jobs := make([]*models.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	s.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

// SaveProducts records the job's products and upserts them into the
// catalogue by TCIN.
func (s *MemoryStore) SaveProducts(ctx context.Context, jobID string, products []*models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[jobID]; !exists {
		return fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
	}

	saved := make([]*models.Product, 0, len(products))
	for _, p := range products {
		if p == nil || p.TCIN == "" {
			continue
		}
		cp := *p
		saved = append(saved, &cp)

		if existing, ok := s.products[p.TCIN]; ok {
			updated := cp
			updated.Merge(existing)
			s.products[p.TCIN] = &updated
		} else {
			s.products[p.TCIN] = &cp
		}
	}
	s.found[jobID] = saved
	return nil
}

func (s *MemoryStore) GetJobProducts(ctx context.Context, jobID string) ([]*models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.jobs[jobID]; !exists {
		return nil, fmt.Errorf("%w: %s", models.ErrJobNotFound, jobID)
	}
	return append([]*models.Product(nil), s.found[jobID]...), nil
}

func (s *MemoryStore) GetStats(ctx context.Context) (*models.JobStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.JobStats{TotalJobs: len(s.jobs), TotalProducts: len(s.products)}
	for _, job := range s.jobs {
		switch job.Status {
		case models.JobPending:
			stats.PendingJobs++
		case models.JobRunning:
			stats.RunningJobs++
		case models.JobCompleted:
			stats.CompletedJobs++
		case models.JobFailed:
			stats.FailedJobs++
		}
	}
	if stats.TotalJobs > 0 {
		stats.SuccessRate = float64(stats.CompletedJobs) / float64(stats.TotalJobs) * 100
	}
	return stats, nil
}
