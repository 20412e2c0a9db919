package commands

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/maltedev/target-product-scraper/internal/export"
	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/storage"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func printProducts(w io.Writer, products []*models.Product) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "TCIN", "Title", "Price", "Rating", "Reviews", "Sponsored"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Title", WidthMax: 60},
		{Name: "Price", Align: text.AlignRight},
		{Name: "Rating", Align: text.AlignRight},
		{Name: "Reviews", Align: text.AlignRight},
	})

	for i, p := range products {
		sponsored := ""
		if p.IsSponsored {
			sponsored = "yes"
		}
		t.AppendRow(table.Row{i + 1, p.TCIN, p.Title, p.Price, optFloat(p.Rating), optInt(p.ReviewCount), sponsored})
	}
	t.Render()
}

func printSummary(w io.Writer, result *models.Result) {
	s := result.Summary

	avg := "-"
	if s.AverageRating != nil {
		avg = fmt.Sprintf("%.2f", *s.AverageRating)
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Strategy", result.Strategy},
		{"Pages scraped", result.Pages},
		{"Products", s.Total},
		{"Duplicates removed", result.Duplicates},
		{"With ratings", s.WithRatings},
		{"With reviews", s.WithReviews},
		{"Average rating", avg},
		{"With price", s.WithPrice},
		{"Sponsored", s.Sponsored},
		{"Duration", result.Duration().Round(time.Millisecond).String()},
	})
	t.Render()
}

func printResult(w io.Writer, result *models.Result) {
	if len(result.Products) == 0 {
		fmt.Fprintln(w, "No products found. Try another strategy, or the manual command with product links.")
		return
	}
	printProducts(w, result.Products)
	printSummary(w, result)
}

// writeOutputs exports the result to every path in outs, picking the format
// from the extension, and saves a snapshot when snapshot is set.
func writeOutputs(w io.Writer, result *models.Result, outs []string, snapshot string) error {
	for _, out := range outs {
		if err := export.WriteFile(out, result.Products); err != nil {
			return err
		}
		slog.Info("export written", "path", out, "products", len(result.Products))
		fmt.Fprintf(w, "Wrote %d products to %s\n", len(result.Products), out)
	}

	if snapshot != "" {
		if err := storage.NewResultStore(snapshot).Save(result); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}
		fmt.Fprintf(w, "Saved snapshot to %s\n", snapshot)
	}
	return nil
}

func optFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
