package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_ListJobsNewestFirst(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	base := time.Now()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.CreateJob(ctx, &models.Job{
			ID:        id,
			Status:    models.JobPending,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}
	assert.Error(t, store.CreateJob(ctx, &models.Job{ID: "a"}))

	jobs, err := store.ListJobs(ctx, 2)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "c", jobs[0].ID)
	assert.Equal(t, "b", jobs[1].ID)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, &models.Job{ID: "a", Status: models.JobPending}))

	job, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	job.Status = models.JobRunning

	again, err := store.GetJob(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, again.Status)

	assert.ErrorIs(t, store.UpdateJob(ctx, &models.Job{ID: "missing"}), models.ErrJobNotFound)
}

func TestMemoryStore_SaveProductsUpsertsByTCIN(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, &models.Job{ID: "first"}))
	require.NoError(t, store.CreateJob(ctx, &models.Job{ID: "second"}))

	rated := product("11111111", "LEGO Classic")
	rated.Rating = models.Float(4.8)
	require.NoError(t, store.SaveProducts(ctx, "first", []*models.Product{rated, {Title: "no tcin"}}))

	renamed := product("11111111", "LEGO Classic Large")
	require.NoError(t, store.SaveProducts(ctx, "second", []*models.Product{renamed, product("22222222", "Duplo")}))

	first, err := store.GetJobProducts(ctx, "first")
	require.NoError(t, err)
	assert.Len(t, first, 1)

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalProducts)

	merged := store.products["11111111"]
	assert.Equal(t, "LEGO Classic Large", merged.Title)
	require.NotNil(t, merged.Rating)
	assert.Equal(t, 4.8, *merged.Rating)

	assert.ErrorIs(t, store.SaveProducts(ctx, "missing", nil), models.ErrJobNotFound)
}
