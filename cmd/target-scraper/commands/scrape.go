package commands

import (
	"fmt"

	"github.com/maltedev/target-product-scraper/internal/scraper"
	"github.com/spf13/cobra"
)

var scrapeFlags struct {
	strategy string
	pages    int
	outs     []string
	save     string
	headless bool
	noCache  bool
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <listing-url>",
	Short: "Scrapes a Target search or category listing and prints the products.",
	Example: `  target-scraper scrape "https://www.target.com/s?searchTerm=lego" --pages 3 --out lego.xlsx
  target-scraper scrape "https://www.target.com/c/toys/-/N-5xtb0" --strategy rendered --headless=false`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		headless := cfg.Browser.Headless
		if cmd.Flags().Changed("headless") {
			headless = scrapeFlags.headless
		}
		pages := cfg.Scraper.MaxPages
		if cmd.Flags().Changed("pages") {
			pages = scrapeFlags.pages
		}

		svc, err := newService(cfg, headless)
		if err != nil {
			return err
		}
		defer svc.Close()

		out := cmd.OutOrStdout()
		result, err := svc.Crawl(cmd.Context(), args[0], scrapeFlags.strategy, scraper.CrawlOptions{
			MaxPages:  pages,
			SkipCache: scrapeFlags.noCache,
			Progress: func(p scraper.Progress) {
				fmt.Fprintf(cmd.ErrOrStderr(), "page %d: %d products (%d total)\n", p.Page, p.Found, p.Total)
			},
		})
		if err != nil {
			return err
		}

		printResult(out, result)
		return writeOutputs(out, result, scrapeFlags.outs, scrapeFlags.save)
	},
}

func init() {
	f := scrapeCmd.Flags()
	f.StringVarP(&scrapeFlags.strategy, "strategy", "s", "", "Strategy: cascade, rendered, static, embedded or api. Defaults to SCRAPER_STRATEGY.")
	f.IntVarP(&scrapeFlags.pages, "pages", "p", scraper.DefaultMaxPages, "Maximum listing pages to crawl (1-20).")
	f.StringSliceVarP(&scrapeFlags.outs, "out", "o", nil, "Export file, .csv or .xlsx. May be repeated.")
	f.StringVar(&scrapeFlags.save, "save", "", "Save a JSON snapshot of the result for later export.")
	f.BoolVar(&scrapeFlags.headless, "headless", true, "Run the browser without a window.")
	f.BoolVar(&scrapeFlags.noCache, "no-cache", false, "Ignore cached results.")
	rootCmd.AddCommand(scrapeCmd)
}
