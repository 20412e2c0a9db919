package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultConsumerGroup = "target-scraper-consumers"

// StreamReader is the part of the Redis client a consumer needs.
type StreamReader interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

// JobCompletedHandler receives decoded job events. A returned error leaves
// the message pending so it is redelivered.
type JobCompletedHandler func(ctx context.Context, event *JobCompletedPayload) error

type ConsumerConfig struct {
	Stream string
	Group  string
	Name   string
	Block  time.Duration
	Count  int64
	// RetryDelay is how long a failed message waits before the consumer
	// reads its pending entries again.
	RetryDelay time.Duration
}

// Consumer reads job events from a Redis stream with a consumer group.
type Consumer struct {
	redis   StreamReader
	cfg     ConsumerConfig
	handler JobCompletedHandler
	logger  *slog.Logger
}

func NewConsumer(r StreamReader, cfg ConsumerConfig, handler JobCompletedHandler, logger *slog.Logger) *Consumer {
	if cfg.Group == "" {
		cfg.Group = DefaultConsumerGroup
	}
	if cfg.Name == "" {
		cfg.Name = "consumer-1"
	}
	if cfg.Block == 0 {
		cfg.Block = 5 * time.Second
	}
	if cfg.Count == 0 {
		cfg.Count = 10
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	return &Consumer{
		redis:   r,
		cfg:     cfg,
		handler: handler,
		logger:  logger.With("component", "event_consumer", "stream", cfg.Stream, "group", cfg.Group),
	}
}

// Run blocks until ctx is done. It first works through messages this
// consumer was given earlier but never acknowledged, then reads new ones.
// After a handler failure the pending entries are read again once
// RetryDelay has passed.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("consumer started")

	// cursor walks the pending entries list; empty means new messages.
	cursor := "0"
	var retryAt time.Time

	for {
		if cursor == "" && !retryAt.IsZero() && !time.Now().Before(retryAt) {
			cursor, retryAt = "0", time.Time{}
		}

		id := ">"
		if cursor != "" {
			id = cursor
		}

		streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    c.cfg.Group,
			Consumer: c.cfg.Name,
			Streams:  []string{c.cfg.Stream, id},
			Count:    c.cfg.Count,
			Block:    c.readBlock(retryAt),
		}).Result()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !errors.Is(err, redis.Nil) {
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		var messages []redis.XMessage
		for _, stream := range streams {
			messages = append(messages, stream.Messages...)
		}

		if cursor != "" {
			if len(messages) == 0 {
				cursor = ""
				continue
			}
			cursor = messages[len(messages)-1].ID
		}

		for _, msg := range messages {
			if !c.handle(ctx, msg) && retryAt.IsZero() {
				retryAt = time.Now().Add(c.cfg.RetryDelay)
			}
		}
	}
}

// readBlock keeps a blocking read from sleeping past a scheduled retry.
func (c *Consumer) readBlock(retryAt time.Time) time.Duration {
	if retryAt.IsZero() {
		return c.cfg.Block
	}
	wait := time.Until(retryAt)
	if wait <= 0 {
		return time.Millisecond
	}
	if wait < c.cfg.Block {
		return wait
	}
	return c.cfg.Block
}

// handle reports false when the message stays pending for another attempt.
func (c *Consumer) handle(ctx context.Context, msg redis.XMessage) bool {
	event, err := decodeJobCompleted(msg)
	if err != nil {
		c.logger.Error("dropping malformed message", "id", msg.ID, "error", err)
		c.ack(ctx, msg.ID)
		return true
	}
	if event == nil {
		c.ack(ctx, msg.ID)
		return true
	}

	if err := c.handler(ctx, event); err != nil {
		c.logger.Error("failed to handle event", "id", msg.ID, "job_id", event.JobID, "error", err)
		return false
	}
	c.ack(ctx, msg.ID)
	return true
}

func (c *Consumer) ack(ctx context.Context, id string) {
	if err := c.redis.XAck(ctx, c.cfg.Stream, c.cfg.Group, id).Err(); err != nil {
		c.logger.Error("failed to acknowledge message", "id", id, "error", err)
	}
}

// decodeJobCompleted returns nil without error for other event types.
func decodeJobCompleted(msg redis.XMessage) (*JobCompletedPayload, error) {
	eventType, _ := msg.Values["event_type"].(string)
	if eventType != string(EventTypeScrapeJobCompleted) {
		return nil, nil
	}

	data, ok := msg.Values["data"].(string)
	if !ok {
		return nil, errors.New("missing data field")
	}

	var envelope struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse envelope: %w", err)
	}
	if len(envelope.Payload) == 0 {
		return nil, errors.New("missing payload")
	}

	var event JobCompletedPayload
	if err := json.Unmarshal(envelope.Payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse payload: %w", err)
	}
	if event.JobID == "" {
		return nil, errors.New("missing job_id")
	}
	return &event, nil
}
