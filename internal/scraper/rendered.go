package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/maltedev/target-product-scraper/internal/browser"
	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/parser"
)

// RenderedStrategy loads the listing in a real browser, scrolls until lazy
// loading settles and parses the resulting DOM.
type RenderedStrategy struct {
	renderer browser.Renderer
	parser   *parser.ListingParser
	opts     browser.RenderOptions
	debugDir string
	logger   *slog.Logger
}

func NewRenderedStrategy(r browser.Renderer, p *parser.ListingParser, opts browser.RenderOptions, debugDir string) *RenderedStrategy {
	sel := p.Selectors()
	opts.WaitSelectors = sel.Cards
	opts.NextSelectors = sel.NextPage
	opts.NeedsClick = p.HasNextControl

	return &RenderedStrategy{
		renderer: r,
		parser:   p,
		opts:     opts,
		debugDir: debugDir,
		logger:   slog.Default().With("component", "rendered_strategy"),
	}
}

func (s *RenderedStrategy) Name() string { return StrategyRendered }

func (s *RenderedStrategy) ScrapePage(ctx context.Context, pageURL string, number int) (*models.Page, error) {
	rendered, err := s.renderer.Render(ctx, pageURL, s.opts)
	if err != nil {
		return nil, fmt.Errorf("rendering %s: %w", pageURL, err)
	}

	products, err := s.parser.ParseListing(rendered.HTML, rendered.URL)
	if err != nil {
		return nil, err
	}

	if !rendered.Found || len(products) == 0 {
		if path, err := s.dumpDebug(rendered.HTML); err == nil {
			s.logger.Warn("no products on rendered page, saved page source", "url", pageURL, "file", path)
		}
		return nil, fmt.Errorf("%s: %w", pageURL, ErrNoProducts)
	}

	page := &models.Page{
		URL:      rendered.URL,
		Number:   number,
		Products: products,
		NextURL:  s.parser.NextPageURL(rendered.HTML, rendered.URL),
	}
	if page.NextURL == "" {
		page.NextURL = rendered.NextURL
	}
	stamp(page, s.Name())

	s.logger.Info("parsed rendered page", "page", number, "products", len(products), "has_next", page.NextURL != "")
	return page, nil
}

func (s *RenderedStrategy) dumpDebug(html string) (string, error) {
	f, err := os.CreateTemp(s.debugDir, "target-page-*.html")
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := f.WriteString(html); err != nil {
		return "", err
	}
	return f.Name(), nil
}
