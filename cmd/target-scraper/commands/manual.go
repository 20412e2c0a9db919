package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var manualFlags struct {
	outs []string
	save string
}

var manualCmd = &cobra.Command{
	Use:   "manual <product-url-or-tcin>...",
	Short: "Builds rows from product links or TCINs when listings cannot be scraped.",
	Example: `  target-scraper manual https://www.target.com/p/lego-classic/-/A-11111111 22222222 --out picks.csv`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := newService(cfg, true)
		if err != nil {
			return err
		}
		defer svc.Close()

		result, invalid, err := svc.Manual(cmd.Context(), args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(invalid) > 0 {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped inputs without a TCIN: %s\n", strings.Join(invalid, ", "))
		}
		printResult(out, result)
		return writeOutputs(out, result, manualFlags.outs, manualFlags.save)
	},
}

func init() {
	manualCmd.Flags().StringSliceVarP(&manualFlags.outs, "out", "o", nil, "Export file, .csv or .xlsx. May be repeated.")
	manualCmd.Flags().StringVar(&manualFlags.save, "save", "", "Save a JSON snapshot of the result.")
	rootCmd.AddCommand(manualCmd)
}
