package commands

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRunInBackground_StopWaitsForExit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	started := make(chan struct{})
	var finished atomic.Bool

	stop := runInBackground(context.Background(), "relay", logger, func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		finished.Store(true)
		return ctx.Err()
	})

	<-started
	assert.False(t, finished.Load())

	stop()
	assert.True(t, finished.Load())
}

func TestRunInBackground_TaskEndsOnItsOwn(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stop := runInBackground(context.Background(), "relay", logger, func(ctx context.Context) error {
		return errors.New("redis gone")
	})

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop blocked after the task had already returned")
	}
}
