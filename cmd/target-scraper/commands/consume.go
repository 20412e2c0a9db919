package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/maltedev/target-product-scraper/internal/database"
	"github.com/maltedev/target-product-scraper/internal/events"
	"github.com/maltedev/target-product-scraper/internal/export"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

var consumeFlags struct {
	group     string
	name      string
	exportDir string
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Follows job events on the Redis stream and optionally exports finished jobs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := slog.Default()

		if consumeFlags.exportDir != "" && !cfg.Database.Enabled {
			return errors.New("--export-dir reads job products from the database, set DB_ENABLED=true")
		}

		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}

		var store *database.JobStore
		if consumeFlags.exportDir != "" {
			db, err := database.New(ctx, cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()
			store = database.NewJobStore(db)

			if err := os.MkdirAll(consumeFlags.exportDir, 0o755); err != nil {
				return fmt.Errorf("creating export dir: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		handler := func(ctx context.Context, e *events.JobCompletedPayload) error {
			fmt.Fprintf(out, "%s  job %s %s: %d products from %d pages (%s)\n",
				e.Timestamp.Format("15:04:05"), e.JobID, e.Status, e.ProductsFound, e.PagesScraped, e.URL)
			if e.Error != "" {
				fmt.Fprintf(out, "    error: %s\n", e.Error)
			}
			if store == nil || e.ProductsFound == 0 {
				return nil
			}

			products, err := store.GetJobProducts(ctx, e.JobID)
			if err != nil {
				return err
			}
			path := filepath.Join(consumeFlags.exportDir, e.JobID+".csv")
			if err := export.WriteFile(path, products); err != nil {
				return err
			}
			fmt.Fprintf(out, "    wrote %s\n", path)
			return nil
		}

		consumer := events.NewConsumer(rdb, events.ConsumerConfig{
			Stream: cfg.Redis.Stream,
			Group:  consumeFlags.group,
			Name:   consumeFlags.name,
		}, handler, logger)

		err := consumer.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	consumeCmd.Flags().StringVar(&consumeFlags.group, "group", events.DefaultConsumerGroup, "Consumer group name.")
	consumeCmd.Flags().StringVar(&consumeFlags.name, "name", "consumer-1", "Consumer name within the group.")
	consumeCmd.Flags().StringVar(&consumeFlags.exportDir, "export-dir", "", "Write a CSV per finished job into this directory.")
	rootCmd.AddCommand(consumeCmd)
}
