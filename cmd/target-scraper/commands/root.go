package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/maltedev/target-product-scraper/internal/config"
	"github.com/maltedev/target-product-scraper/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	cfg       *config.Config
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:           "target-scraper",
	Short:         "target-scraper collects product listings from Target.com into CSV and Excel files.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Logging.Level = logLevel
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Logging.Format = logFormat
		}
		if err := loaded.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		// Tables and summaries own stdout.
		slog.SetDefault(logger.NewWithWriter(cmd.ErrOrStderr(), loaded.Logging.Level, loaded.Logging.Format))
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error.")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log format: json or text.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
