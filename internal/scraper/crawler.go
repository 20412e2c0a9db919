package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/ratelimit"
)

const (
	DefaultMaxPages = 5
	MinPages        = 1
	MaxPagesLimit   = 20
)

type Progress struct {
	Page  int    `json:"page"`
	Found int    `json:"found"`
	Total int    `json:"total"`
	URL   string `json:"url"`
}

type CrawlOptions struct {
	MaxPages int
	// SkipCache forces a fresh crawl.
	SkipCache bool
	Progress  func(Progress)
}

// ClampPages applies the default and the 1..20 bounds.
func ClampPages(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxPages
	case n > MaxPagesLimit:
		return MaxPagesLimit
	}
	return n
}

// Crawler walks a listing page by page with one strategy.
type Crawler struct {
	strategy Strategy
	limiter  ratelimit.Limiter
	cache    *ResultCache
	validate func(string) (*url.URL, error)
	logger   *slog.Logger
}

func NewCrawler(strategy Strategy, limiter ratelimit.Limiter, cache *ResultCache) *Crawler {
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	return &Crawler{
		strategy: strategy,
		limiter:  limiter,
		cache:    cache,
		validate: ValidateURL,
		logger:   slog.Default().With("component", "crawler"),
	}
}

// Crawl scrapes up to MaxPages listing pages starting at startURL. It stops
// early on an empty page or when pagination runs out or loops back.
// Products are deduplicated by TCIN, first occurrence wins.
func (c *Crawler) Crawl(ctx context.Context, startURL string, opts CrawlOptions) (*models.Result, error) {
	start, err := c.validate(startURL)
	if err != nil {
		return nil, err
	}
	maxPages := ClampPages(opts.MaxPages)

	if !opts.SkipCache {
		if cached, ok := c.cache.Get(start.String(), c.strategy.Name(), maxPages); ok {
			c.logger.Info("serving cached result", "url", start.String(), "products", len(cached.Products))
			return cached, nil
		}
	}

	result := &models.Result{
		URL:       start.String(),
		Strategy:  c.strategy.Name(),
		StartedAt: time.Now(),
	}

	var (
		all     []*models.Product
		current = start.String()
		visited = map[string]bool{NormalizeURL(current): true}
	)

	attrs := []any{"url", current, "strategy", c.strategy.Name(), "max_pages", maxPages}
	if cascade, ok := c.strategy.(*CascadeStrategy); ok {
		attrs = append(attrs, "order", cascade.Strategies())
	}
	c.logger.Info("starting crawl", attrs...)

	for number := 1; number <= maxPages; number++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if number > 1 {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		page, err := c.strategy.ScrapePage(ctx, current, number)
		c.feedback(err)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if number == 1 && (errors.Is(err, ErrBlocked) || errors.Is(err, ErrRateLimited) || !errors.Is(err, ErrNoProducts)) {
				return nil, fmt.Errorf("scraping page %d: %w", number, err)
			}
			c.logger.Warn("stopping crawl", "page", number, "error", err)
			break
		}

		if len(page.Products) == 0 {
			c.logger.Warn("no products found on page, stopping", "page", number)
			break
		}

		all = append(all, page.Products...)
		result.Pages = number

		c.logger.Info("page scraped", "page", number, "found", len(page.Products), "total", len(all))
		if opts.Progress != nil {
			opts.Progress(Progress{Page: number, Found: len(page.Products), Total: len(all), URL: current})
		}

		if page.NextURL == "" {
			c.logger.Info("no next page", "page", number)
			break
		}
		next := NormalizeURL(page.NextURL)
		if visited[next] {
			c.logger.Info("next page points back to a visited page", "page", number, "next", page.NextURL)
			break
		}
		visited[next] = true
		current = page.NextURL
	}

	result.Products, result.Duplicates = models.Dedupe(all)
	result.Summary = models.Summarize(result.Products)
	result.FinishedAt = time.Now()

	c.logger.Info("crawl finished",
		"pages", result.Pages,
		"products", len(result.Products),
		"duplicates", result.Duplicates,
		"duration", result.Duration())

	if len(result.Products) > 0 {
		c.cache.Add(start.String(), c.strategy.Name(), maxPages, result)
	}
	return result, nil
}

func (c *Crawler) feedback(err error) {
	fb, ok := c.limiter.(ratelimit.Feedback)
	if !ok {
		return
	}
	if errors.Is(err, ErrBlocked) || errors.Is(err, ErrRateLimited) {
		fb.RecordError()
		if p, ok := c.limiter.(interface {
			Delays() (time.Duration, time.Duration)
		}); ok {
			minDelay, maxDelay := p.Delays()
			c.logger.Warn("site pushed back", "error", err, "min_delay", minDelay, "max_delay", maxDelay)
		}
		return
	}
	if err == nil {
		fb.RecordSuccess()
	}
}
