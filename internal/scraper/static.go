package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/parser"
)

type StaticOptions struct {
	AllowedDomains []string
	UserAgents     []string
	AcceptLanguage string
	Timeout        time.Duration
}

func DefaultStaticOptions() StaticOptions {
	return StaticOptions{
		AllowedDomains: []string{"www.target.com", "target.com"},
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		AcceptLanguage: "en-US,en;q=0.9",
		Timeout:        30 * time.Second,
	}
}

// StaticStrategy fetches the server-rendered HTML with colly and parses it
// without a browser. When the DOM carries no cards it mines the embedded
// JSON state of the same response.
type StaticStrategy struct {
	parser *parser.ListingParser
	opts   StaticOptions
	next   atomic.Uint64
	logger *slog.Logger
}

func NewStaticStrategy(p *parser.ListingParser, opts StaticOptions) *StaticStrategy {
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultStaticOptions().UserAgents
	}
	return &StaticStrategy{
		parser: p,
		opts:   opts,
		logger: slog.Default().With("component", "static_strategy"),
	}
}

func (s *StaticStrategy) Name() string { return StrategyStatic }

func (s *StaticStrategy) collector(ctx context.Context) *colly.Collector {
	ua := s.opts.UserAgents[(s.next.Add(1)-1)%uint64(len(s.opts.UserAgents))]

	c := colly.NewCollector(
		colly.AllowedDomains(s.opts.AllowedDomains...),
		colly.UserAgent(ua),
		colly.StdlibContext(ctx),
		colly.AllowURLRevisit(),
	)
	if s.opts.Timeout > 0 {
		c.SetRequestTimeout(s.opts.Timeout)
	}
	c.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		r.Headers.Set("Accept-Language", s.opts.AcceptLanguage)
	})
	return c
}

func (s *StaticStrategy) fetch(ctx context.Context, pageURL string) (string, string, error) {
	c := s.collector(ctx)

	var (
		body     []byte
		finalURL = pageURL
		status   int
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
		finalURL = r.Request.URL.String()
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	err := c.Visit(pageURL)
	c.Wait()

	switch {
	case status == http.StatusForbidden:
		return "", "", fmt.Errorf("fetching %s: %w", pageURL, ErrBlocked)
	case status == http.StatusTooManyRequests:
		return "", "", fmt.Errorf("fetching %s: %w", pageURL, ErrRateLimited)
	case err != nil:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", "", ctxErr
		}
		return "", "", fmt.Errorf("fetching %s: %w", pageURL, err)
	case body == nil:
		return "", "", fmt.Errorf("fetching %s: %w", pageURL, errors.New("empty response"))
	}
	return string(body), finalURL, nil
}

func (s *StaticStrategy) ScrapePage(ctx context.Context, pageURL string, number int) (*models.Page, error) {
	html, finalURL, err := s.fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	products, err := s.parser.ParseListing(html, finalURL)
	if err != nil {
		return nil, err
	}

	if len(products) == 0 {
		docs, err := parser.ExtractEmbeddedJSON(html)
		if err == nil {
			for _, doc := range docs {
				products = append(products, parser.ProductsFromJSON(doc, finalURL)...)
			}
		}
		if len(products) > 0 {
			s.logger.Debug("listing DOM empty, used embedded JSON", "url", pageURL, "products", len(products))
		}
	}

	if len(products) == 0 {
		return nil, fmt.Errorf("%s: %w", pageURL, ErrNoProducts)
	}

	page := &models.Page{
		URL:      finalURL,
		Number:   number,
		Products: products,
		NextURL:  s.parser.NextPageURL(html, finalURL),
	}
	stamp(page, s.Name())
	return page, nil
}
