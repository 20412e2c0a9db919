package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/target-product-scraper/internal/jobs"
	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ jobs.Store = (*JobStore)(nil)

func TestJobStore_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewJobStore(setupTestDB(t))

	job := &models.Job{
		ID:        uuid.NewString(),
		URL:       "https://www.target.com/s?searchTerm=lego",
		Strategy:  "static",
		MaxPages:  3,
		Status:    models.JobPending,
		CreatedAt: time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.CreateJob(ctx, job))

	started := time.Now()
	job.Status = models.JobRunning
	job.StartedAt = &started
	require.NoError(t, store.UpdateJob(ctx, job))

	first := models.NewProduct("91111111")
	first.Title = "LEGO Classic"
	first.Rating = models.Float(4.5)
	first.ReviewCount = models.Int(10)
	first.Page = 1
	second := models.NewProduct("92222222")
	second.Title = "LEGO Duplo"
	second.IsSponsored = true
	second.Page = 2
	require.NoError(t, store.SaveProducts(ctx, job.ID, []*models.Product{first, second}))

	products, err := store.GetJobProducts(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "91111111", products[0].TCIN)
	require.NotNil(t, products[0].Rating)
	assert.Equal(t, 4.5, *products[0].Rating)
	assert.True(t, products[1].IsSponsored)
	assert.Nil(t, products[1].Rating)

	loaded, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobRunning, loaded.Status)
	assert.Empty(t, loaded.Error)

	_, err = store.GetJob(ctx, uuid.NewString())
	assert.ErrorIs(t, err, models.ErrJobNotFound)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, stats.TotalProducts, 2)
}
