package database

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/maltedev/target-product-scraper/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxEvent_Validate(t *testing.T) {
	tests := []struct {
		name    string
		event   *OutboxEvent
		wantErr string
	}{
		{"valid", jobEvent("job-1"), ""},
		{"missing aggregate type", &OutboxEvent{AggregateID: "job-1", EventType: "X", Payload: json.RawMessage(`{}`)}, "aggregate type"},
		{"missing aggregate id", &OutboxEvent{AggregateType: "scrape_job", EventType: "X", Payload: json.RawMessage(`{}`)}, "aggregate id"},
		{"missing event type", &OutboxEvent{AggregateType: "scrape_job", AggregateID: "job-1", Payload: json.RawMessage(`{}`)}, "event type"},
		{"missing payload", &OutboxEvent{AggregateType: "scrape_job", AggregateID: "job-1", EventType: "X"}, "payload is required"},
		{"broken payload", &OutboxEvent{AggregateType: "scrape_job", AggregateID: "job-1", EventType: "X", Payload: json.RawMessage(`{`)}, "not valid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestOutboxEvent_Prepare(t *testing.T) {
	now := time.Now()
	event := &OutboxEvent{AggregateType: "scrape_job", AggregateID: "job-1", EventType: "X", Payload: json.RawMessage(`{}`)}
	event.prepare(now)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, OutboxStatusPending, event.Status)
	assert.Equal(t, DefaultStream, event.TargetStream)
	assert.Equal(t, now, event.CreatedAt)
	require.NotNil(t, event.NextRetryAt)
	assert.Equal(t, now, *event.NextRetryAt)
}

func TestNextRetryTime(t *testing.T) {
	now := time.Now()

	assert.Equal(t, now.Add(2*time.Second), nextRetryTime(now, 1))
	assert.Equal(t, now.Add(16*time.Second), nextRetryTime(now, 4))
	assert.Equal(t, now.Add(300*time.Second), nextRetryTime(now, 9))
	assert.Equal(t, now.Add(300*time.Second), nextRetryTime(now, 40))
}

func TestOutboxRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewOutboxRepository(db)

	event := jobEvent(uuid.NewString())
	event.ID = uuid.Nil
	require.NoError(t, repo.Insert(ctx, event))
	assert.NotEqual(t, uuid.Nil, event.ID)

	pending, err := repo.GetPending(ctx, 100)
	require.NoError(t, err)
	ids := make([]uuid.UUID, 0, len(pending))
	for _, e := range pending {
		ids = append(ids, e.ID)
	}
	assert.Contains(t, ids, event.ID)

	require.NoError(t, repo.MarkProcessed(ctx, event.ID))
	assert.Error(t, repo.MarkProcessed(ctx, uuid.New()))

	failing := jobEvent(uuid.NewString())
	failing.RetryCount = MaxRetryCount - 1
	require.NoError(t, repo.Insert(ctx, failing))
	require.NoError(t, repo.MarkFailed(ctx, failing.ID, assert.AnError))

	var status string
	var retryCount int
	err = db.QueryRow(ctx, `SELECT status, retry_count FROM outbox_event WHERE id = $1`, failing.ID).
		Scan(&status, &retryCount)
	require.NoError(t, err)
	assert.Equal(t, OutboxStatusDeadLetter, status)
	assert.Equal(t, MaxRetryCount, retryCount)

	_, dead, err := repo.Counts(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, dead, int64(1))
}

// setupTestDB connects to the database named by the DB_* environment and
// applies the schema. It skips unless INTEGRATION_TEST=true.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	cfg, err := config.Load()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	db, err := New(ctx, cfg.Database)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	require.NoError(t, db.Migrate(ctx))
	return db
}
