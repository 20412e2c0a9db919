package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/parser"
)

// ProductLookup resolves a TCIN to full product details.
type ProductLookup interface {
	LookupProduct(ctx context.Context, tcin string) (*models.Product, error)
}

// ManualStrategy turns user supplied product URLs or bare TCINs into rows.
// It is the fallback when listing pages cannot be scraped at all.
type ManualStrategy struct {
	lookup ProductLookup
	logger *slog.Logger
}

func NewManualStrategy(lookup ProductLookup) *ManualStrategy {
	return &ManualStrategy{
		lookup: lookup,
		logger: slog.Default().With("component", "manual_strategy"),
	}
}

func (s *ManualStrategy) Name() string { return StrategyManual }

// ScrapePage treats pageURL as a single product reference.
func (s *ManualStrategy) ScrapePage(ctx context.Context, pageURL string, number int) (*models.Page, error) {
	products, invalid := s.Products(ctx, []string{pageURL})
	if len(products) == 0 {
		return nil, fmt.Errorf("%w: no TCIN in %v", ErrNoProducts, invalid)
	}
	page := &models.Page{URL: pageURL, Number: number, Products: products}
	stamp(page, s.Name())
	return page, nil
}

// Products builds one row per input. Inputs may themselves hold several
// references separated by commas, whitespace or newlines. Inputs without a
// recognisable TCIN are returned as invalid.
func (s *ManualStrategy) Products(ctx context.Context, inputs []string) ([]*models.Product, []string) {
	var (
		products []*models.Product
		invalid  []string
	)

	for _, ref := range splitRefs(inputs) {
		tcin := tcinFromRef(ref)
		if tcin == "" {
			invalid = append(invalid, ref)
			continue
		}

		product := models.NewProduct(tcin)
		product.Source = StrategyManual
		product.Page = 1
		if strings.HasPrefix(ref, "http") {
			product.URL = ref
			product.Title = titleFromSlug(ref)
		} else {
			product.URL = ProductURL(tcin)
		}

		if s.lookup != nil && ctx.Err() == nil {
			details, err := s.lookup.LookupProduct(ctx, tcin)
			if err != nil {
				s.logger.Warn("product lookup failed", "tcin", tcin, "error", err)
			} else {
				enrichFrom(product, details)
			}
		}

		products = append(products, product)
	}

	return products, invalid
}

// Collect runs the manual fallback end to end and returns a deduplicated
// result.
func (s *ManualStrategy) Collect(ctx context.Context, inputs []string) (*models.Result, []string) {
	started := time.Now()
	products, invalid := s.Products(ctx, inputs)
	kept, duplicates := models.Dedupe(products)

	return &models.Result{
		URL:        strings.Join(inputs, ","),
		Strategy:   StrategyManual,
		Products:   kept,
		Pages:      1,
		Duplicates: duplicates,
		Summary:    models.Summarize(kept),
		StartedAt:  started,
		FinishedAt: time.Now(),
	}, invalid
}

// enrichFrom prefers looked-up values over slug-derived ones.
func enrichFrom(product, details *models.Product) {
	if details == nil || details.TCIN != product.TCIN {
		return
	}
	if details.Title != "" {
		product.Title = details.Title
	}
	product.Merge(details)
}

func splitRefs(inputs []string) []string {
	var refs []string
	for _, in := range inputs {
		for _, f := range strings.FieldsFunc(in, func(r rune) bool {
			return r == ',' || r == '\n' || r == '\r' || r == ' ' || r == '\t'
		}) {
			refs = append(refs, f)
		}
	}
	return refs
}

func tcinFromRef(ref string) string {
	if isAllDigits(ref) {
		return ref
	}
	return parser.ExtractTCIN(ref)
}

// titleFromSlug derives "Lego Classic Bricks" from /p/lego-classic-bricks/-/A-1.
func titleFromSlug(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "p" || parts[1] == "-" {
		return ""
	}
	words := strings.Split(parts[1], "-")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.TrimSpace(strings.Join(words, " "))
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
