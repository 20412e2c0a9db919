package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/maltedev/target-product-scraper/internal/api"
	"github.com/maltedev/target-product-scraper/internal/config"
	"github.com/maltedev/target-product-scraper/internal/database"
	"github.com/maltedev/target-product-scraper/internal/events"
	"github.com/maltedev/target-product-scraper/internal/jobs"
	"github.com/maltedev/target-product-scraper/internal/queue"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the web UI and the JSON API with background scrape jobs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, c *config.Config) error {
	logger := slog.Default()

	svc, err := newService(c, c.Browser.Headless)
	if err != nil {
		return err
	}
	defer svc.Close()

	var (
		store       jobs.Store = jobs.NewMemoryStore()
		publisher   jobs.Publisher
		outboxStats api.OutboxStats
	)

	if c.Database.Enabled {
		db, err := database.New(ctx, c.Database)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Migrate(ctx); err != nil {
			return err
		}
		store = database.NewJobStore(db)
		logger.Info("using postgres job store", "host", c.Database.Host, "db", c.Database.DBName)

		if c.Redis.Enabled {
			outbox := database.NewOutboxRepository(db)
			publisher = events.NewPublisher(outbox, c.Redis.Stream, logger)
			outboxStats = outbox

			redisClient := redis.NewClient(&redis.Options{
				Addr:     c.Redis.Addr,
				Password: c.Redis.Password,
				DB:       c.Redis.DB,
			})
			defer redisClient.Close()

			if err := redisClient.Ping(ctx).Err(); err != nil {
				return fmt.Errorf("failed to connect to redis: %w", err)
			}

			relay := database.NewRelay(outbox, redisClient, logger, database.RelayConfig{StreamMaxLen: c.Redis.StreamMaxLen})
			// Stopped before the deferred redis and database closes run.
			defer runInBackground(ctx, "relay", logger, relay.Start)()
		}
	}

	ui, err := api.NewUI(svc.DefaultStrategy(), logger)
	if err != nil {
		return err
	}

	q := queue.NewInMemoryQueue()
	manager := jobs.NewManager(store, svc, q, publisher, logger)

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		manager.Run(ctx, c.Scraper.Workers)
	}()

	handlers := api.NewHandlers(svc, manager, outboxStats, logger)

	server := &http.Server{
		Addr:         c.Server.Addr(),
		Handler:      api.NewRouter(handlers, ui, c.Server),
		ReadTimeout:  c.Server.ReadTimeout,
		WriteTimeout: c.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server")
	case err := <-serverErr:
		if err != nil {
			q.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	q.Close()
	workers.Wait()
	logger.Info("server exited")
	return nil
}

// runInBackground starts fn in a goroutine. The returned stop function
// cancels fn's context and waits for it to return.
func runInBackground(ctx context.Context, name string, logger *slog.Logger, fn func(context.Context) error) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("background task stopped with error", "task", name, "error", err)
		}
	}()

	return func() {
		cancel()
		<-done
	}
}
