package scraper

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/maltedev/target-product-scraper/internal/ratelimit"
)

// Service is the entry point used by the CLI, the HTTP API and the job
// workers. It builds the requested strategy per call and shares the rate
// limiter and result cache between crawls.
type Service struct {
	deps     Deps
	limiter  ratelimit.Limiter
	cache    *ResultCache
	fallback string
	logger   *slog.Logger
}

func NewService(deps Deps, limiter ratelimit.Limiter, cache *ResultCache, defaultStrategy string) *Service {
	if defaultStrategy == "" {
		defaultStrategy = StrategyCascade
	}
	return &Service{
		deps:     deps,
		limiter:  limiter,
		cache:    cache,
		fallback: defaultStrategy,
		logger:   slog.Default().With("component", "scraper_service"),
	}
}

func (s *Service) DefaultStrategy() string { return s.fallback }

// Crawl runs one crawl of startURL with the named strategy, or the default
// strategy when name is empty.
func (s *Service) Crawl(ctx context.Context, startURL, name string, opts CrawlOptions) (*models.Result, error) {
	if name == "" {
		name = s.fallback
	}
	strategy, err := NewStrategy(name, s.deps)
	if err != nil {
		return nil, err
	}
	return NewCrawler(strategy, s.limiter, s.cache).Crawl(ctx, startURL, opts)
}

// Manual runs the manual fallback over product URLs or TCINs. Inputs that
// hold no TCIN are returned alongside the result.
func (s *Service) Manual(ctx context.Context, inputs []string) (*models.Result, []string, error) {
	strategy, err := NewStrategy(StrategyManual, s.deps)
	if err != nil {
		return nil, nil, err
	}
	manual, ok := strategy.(*ManualStrategy)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, StrategyManual)
	}

	result, invalid := manual.Collect(ctx, inputs)
	s.logger.Info("manual collection finished", "products", len(result.Products), "invalid", len(invalid))
	return result, invalid, nil
}

// BrowserStarted reports whether a browser is currently running. It is
// false when no renderer is configured or it has not been needed yet.
func (s *Service) BrowserStarted() bool {
	r, ok := s.deps.Renderer.(interface{ Started() bool })
	return ok && r.Started()
}

func (s *Service) Close() error {
	if s.deps.Renderer != nil {
		return s.deps.Renderer.Close()
	}
	return nil
}
