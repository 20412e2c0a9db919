package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/target-product-scraper/internal/fetch"
	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/parser"
)

// EmbeddedStrategy reads the JSON state that listing pages embed in script
// tags instead of the visible markup.
type EmbeddedStrategy struct {
	client *fetch.Client
	parser *parser.ListingParser
	logger *slog.Logger
}

func NewEmbeddedStrategy(client *fetch.Client, p *parser.ListingParser) *EmbeddedStrategy {
	return &EmbeddedStrategy{
		client: client,
		parser: p,
		logger: slog.Default().With("component", "embedded_strategy"),
	}
}

func (s *EmbeddedStrategy) Name() string { return StrategyEmbedded }

func (s *EmbeddedStrategy) ScrapePage(ctx context.Context, pageURL string, number int) (*models.Page, error) {
	html, err := s.client.GetHTML(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	docs, err := parser.ExtractEmbeddedJSON(html)
	if err != nil {
		return nil, err
	}

	var products []*models.Product
	for _, doc := range docs {
		products = append(products, parser.ProductsFromJSON(doc, pageURL)...)
	}
	s.logger.Debug("mined embedded JSON", "url", pageURL, "documents", len(docs), "products", len(products))

	if len(products) == 0 {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrNoProducts)
	}

	page := &models.Page{
		URL:      pageURL,
		Number:   number,
		Products: products,
		NextURL:  s.parser.NextPageURL(html, pageURL),
	}
	stamp(page, s.Name())
	return page, nil
}
