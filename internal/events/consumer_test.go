package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockStreamReader struct {
	mock.Mock
}

func (m *MockStreamReader) XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd {
	args := m.Called(ctx, stream, group, start)
	return redis.NewStatusResult(args.String(0), args.Error(1))
}

func (m *MockStreamReader) XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd {
	args := m.Called(ctx, a)
	streams, _ := args.Get(0).([]redis.XStream)
	return redis.NewXStreamSliceCmdResult(streams, args.Error(1))
}

func (m *MockStreamReader) XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd {
	args := m.Called(ctx, stream, group, ids)
	return redis.NewIntResult(int64(len(ids)), args.Error(0))
}

func jobMessage(t *testing.T, id string, payload *JobCompletedPayload) redis.XMessage {
	t.Helper()
	envelope, err := json.Marshal(map[string]interface{}{
		"id":      id,
		"type":    string(EventTypeScrapeJobCompleted),
		"payload": payload,
	})
	require.NoError(t, err)

	return redis.XMessage{
		ID: id,
		Values: map[string]interface{}{
			"event_type": string(EventTypeScrapeJobCompleted),
			"data":       string(envelope),
		},
	}
}

func TestDecodeJobCompleted(t *testing.T) {
	payload := NewJobCompletedPayload(completedJob(), models.Summary{Total: 48, Sponsored: 2})

	event, err := decodeJobCompleted(jobMessage(t, "1-0", payload))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, payload.JobID, event.JobID)
	assert.Equal(t, 48, event.ProductsFound)

	tests := []struct {
		name    string
		values  map[string]interface{}
		wantErr bool
	}{
		{"other event type", map[string]interface{}{"event_type": "SOMETHING_ELSE"}, false},
		{"missing data", map[string]interface{}{"event_type": string(EventTypeScrapeJobCompleted)}, true},
		{"bad json", map[string]interface{}{"event_type": string(EventTypeScrapeJobCompleted), "data": "{"}, true},
		{"missing payload", map[string]interface{}{"event_type": string(EventTypeScrapeJobCompleted), "data": `{"id":"x"}`}, true},
		{"missing job id", map[string]interface{}{"event_type": string(EventTypeScrapeJobCompleted), "data": `{"payload":{"status":"completed"}}`}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := decodeJobCompleted(redis.XMessage{ID: "2-0", Values: tt.values})
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Nil(t, event)
		})
	}
}

func readingID(id string) interface{} {
	return mock.MatchedBy(func(a *redis.XReadGroupArgs) bool {
		return len(a.Streams) == 2 && a.Streams[1] == id
	})
}

func emptyStream() []redis.XStream {
	return []redis.XStream{{Stream: "stream:test"}}
}

func TestConsumer_Run(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := NewJobCompletedPayload(completedJob(), models.Summary{Total: 48, Sponsored: 2})
	failing := *payload
	failing.JobID = "job-that-fails"

	r := new(MockStreamReader)
	r.On("XGroupCreateMkStream", mock.Anything, "stream:test", DefaultConsumerGroup, "0").
		Return("", errors.New("BUSYGROUP Consumer Group name already exists"))
	r.On("XReadGroup", mock.Anything, readingID("0")).Return(emptyStream(), nil).Once()
	r.On("XReadGroup", mock.Anything, readingID(">")).Return([]redis.XStream{{
		Stream: "stream:test",
		Messages: []redis.XMessage{
			jobMessage(t, "1-0", payload),
			jobMessage(t, "2-0", &failing),
			{ID: "3-0", Values: map[string]interface{}{"event_type": "OTHER"}},
		},
	}}, nil).Once()
	r.On("XReadGroup", mock.Anything, readingID(">")).Run(func(mock.Arguments) { cancel() }).
		Return(nil, context.Canceled).Once()
	r.On("XAck", mock.Anything, "stream:test", DefaultConsumerGroup, []string{"1-0"}).Return(nil).Once()
	r.On("XAck", mock.Anything, "stream:test", DefaultConsumerGroup, []string{"3-0"}).Return(nil).Once()

	var handled []string
	handler := func(ctx context.Context, event *JobCompletedPayload) error {
		handled = append(handled, event.JobID)
		if event.JobID == "job-that-fails" {
			return errors.New("boom")
		}
		return nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewConsumer(r, ConsumerConfig{Stream: "stream:test", RetryDelay: time.Hour}, handler, logger)

	err := c.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{payload.JobID, "job-that-fails"}, handled)
	r.AssertExpectations(t)
	r.AssertNotCalled(t, "XAck", mock.Anything, "stream:test", DefaultConsumerGroup, []string{"2-0"})
}

func TestConsumer_RedeliversFailedMessage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	payload := NewJobCompletedPayload(completedJob(), models.Summary{Total: 48})
	msg := jobMessage(t, "1-0", payload)

	r := new(MockStreamReader)
	r.On("XGroupCreateMkStream", mock.Anything, "stream:test", DefaultConsumerGroup, "0").Return("OK", nil)
	r.On("XReadGroup", mock.Anything, readingID("0")).Return(emptyStream(), nil).Once()
	r.On("XReadGroup", mock.Anything, readingID(">")).
		Return([]redis.XStream{{Stream: "stream:test", Messages: []redis.XMessage{msg}}}, nil).Once()
	r.On("XReadGroup", mock.Anything, readingID(">")).Return(nil, redis.Nil).Maybe()
	r.On("XReadGroup", mock.Anything, readingID("0")).
		Return([]redis.XStream{{Stream: "stream:test", Messages: []redis.XMessage{msg}}}, nil).Once()
	r.On("XReadGroup", mock.Anything, readingID("1-0")).Run(func(mock.Arguments) { cancel() }).
		Return(emptyStream(), nil).Once()
	r.On("XAck", mock.Anything, "stream:test", DefaultConsumerGroup, []string{"1-0"}).Return(nil).Once()

	attempts := 0
	handler := func(ctx context.Context, event *JobCompletedPayload) error {
		attempts++
		if attempts == 1 {
			return errors.New("database unavailable")
		}
		return nil
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := NewConsumer(r, ConsumerConfig{Stream: "stream:test", RetryDelay: 5 * time.Millisecond}, handler, logger)

	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("failed message was not read again")
	}

	assert.Equal(t, 2, attempts)
	r.AssertExpectations(t)
}

func TestConsumer_RunGroupCreateError(t *testing.T) {
	r := new(MockStreamReader)
	r.On("XGroupCreateMkStream", mock.Anything, "stream:test", DefaultConsumerGroup, "0").
		Return("", errors.New("connection refused"))

	c := NewConsumer(r, ConsumerConfig{Stream: "stream:test"}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := c.Run(context.Background())
	assert.ErrorContains(t, err, "consumer group")
}
