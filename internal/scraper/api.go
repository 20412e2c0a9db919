package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/maltedev/target-product-scraper/internal/fetch"
	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/parser"
)

// APIOptions configures the internal search API. Parameter names are not a
// stable contract, so everything beyond the basics goes through ExtraParams.
type APIOptions struct {
	SearchEndpoint  string
	ProductEndpoint string
	Key             string
	StoreID         string
	PageSize        int
	ExtraParams     map[string]string
}

// APIStrategy pages through the JSON search endpoint the listing pages use
// themselves.
type APIStrategy struct {
	client *fetch.Client
	opts   APIOptions
	logger *slog.Logger
}

func NewAPIStrategy(client *fetch.Client, opts APIOptions) *APIStrategy {
	if opts.PageSize < 1 {
		opts.PageSize = 24
	}
	return &APIStrategy{
		client: client,
		opts:   opts,
		logger: slog.Default().With("component", "api_strategy"),
	}
}

func (s *APIStrategy) Name() string { return StrategyAPI }

func (s *APIStrategy) Configured() bool {
	return s.opts.Key != "" && s.opts.SearchEndpoint != ""
}

func (s *APIStrategy) baseQuery() map[string]string {
	q := make(map[string]string, len(s.opts.ExtraParams)+2)
	for k, v := range s.opts.ExtraParams {
		q[k] = v
	}
	q["key"] = s.opts.Key
	if s.opts.StoreID != "" {
		q["pricing_store_id"] = s.opts.StoreID
	}
	return q
}

func (s *APIStrategy) ScrapePage(ctx context.Context, pageURL string, number int) (*models.Page, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("api: %w: API_KEY is empty", ErrNotConfigured)
	}

	u, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	keyword, category := SearchParams(u)
	if keyword == "" && category == "" {
		return nil, fmt.Errorf("%w: no search term or category in %s", ErrInvalidURL, pageURL)
	}

	offset, ok := Offset(u)
	if !ok {
		offset = (number - 1) * s.opts.PageSize
	}

	q := s.baseQuery()
	q["count"] = strconv.Itoa(s.opts.PageSize)
	q["offset"] = strconv.Itoa(offset)
	q["default_purchasability_filter"] = "true"
	if keyword != "" {
		q["keyword"] = keyword
		q["page"] = "/s/" + keyword
	} else {
		q["category"] = category
		q["page"] = "/c/" + category
	}

	var doc any
	if err := s.client.GetJSON(ctx, s.opts.SearchEndpoint, q, &doc); err != nil {
		return nil, err
	}

	products := parser.ProductsFromJSON(doc, BaseURL)
	total, hasTotal := totalResults(doc)
	s.logger.Debug("api page fetched", "offset", offset, "products", len(products), "total", total)

	if len(products) == 0 {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrNoProducts)
	}

	page := &models.Page{
		URL:      pageURL,
		Number:   number,
		Products: products,
	}

	nextOffset := offset + s.opts.PageSize
	if (hasTotal && nextOffset < total) || (!hasTotal && len(products) >= s.opts.PageSize) {
		page.NextURL = WithOffset(u, nextOffset)
	}

	stamp(page, s.Name())
	return page, nil
}

// LookupProduct fetches a single product by TCIN.
func (s *APIStrategy) LookupProduct(ctx context.Context, tcin string) (*models.Product, error) {
	if !s.Configured() || s.opts.ProductEndpoint == "" {
		return nil, fmt.Errorf("api: %w", ErrNotConfigured)
	}

	q := s.baseQuery()
	q["tcin"] = tcin

	var doc any
	if err := s.client.GetJSON(ctx, s.opts.ProductEndpoint, q, &doc); err != nil {
		return nil, err
	}

	products := parser.ProductsFromJSON(doc, BaseURL)
	for _, p := range products {
		if p.TCIN == tcin {
			return p, nil
		}
	}
	return nil, fmt.Errorf("tcin %s: %w", tcin, ErrNoProducts)
}

var totalKeys = map[string]bool{
	"total_results": true,
	"totalResults":  true,
	"total_count":   true,
}

func totalResults(v any) (int, bool) {
	switch node := v.(type) {
	case map[string]any:
		for key, child := range node {
			if totalKeys[key] {
				if f, ok := child.(float64); ok {
					return int(f), true
				}
			}
		}
		for _, child := range node {
			if n, ok := totalResults(child); ok {
				return n, true
			}
		}
	case []any:
		for _, child := range node {
			if n, ok := totalResults(child); ok {
				return n, true
			}
		}
	}
	return 0, false
}
