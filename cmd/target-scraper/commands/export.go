package commands

import (
	"errors"

	"github.com/maltedev/target-product-scraper/internal/storage"
	"github.com/spf13/cobra"
)

var exportOuts []string

var exportCmd = &cobra.Command{
	Use:   "export <snapshot.json> --out <file>",
	Short: "Re-exports a saved scrape result to CSV or Excel.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(exportOuts) == 0 {
			return errors.New("at least one --out file is required")
		}

		result, err := storage.NewResultStore(args[0]).Load()
		if err != nil {
			return err
		}
		return writeOutputs(cmd.OutOrStdout(), result, exportOuts, "")
	},
}

func init() {
	exportCmd.Flags().StringSliceVarP(&exportOuts, "out", "o", nil, "Export file, .csv or .xlsx. May be repeated.")
	rootCmd.AddCommand(exportCmd)
}
