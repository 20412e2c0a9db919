package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/maltedev/target-product-scraper/internal/models"
)

// CascadeStrategy tries its strategies in order and returns the first page
// that has products.
type CascadeStrategy struct {
	strategies []Strategy
	logger     *slog.Logger
}

func NewCascadeStrategy(strategies ...Strategy) *CascadeStrategy {
	return &CascadeStrategy{
		strategies: strategies,
		logger:     slog.Default().With("component", "cascade_strategy"),
	}
}

func (s *CascadeStrategy) Name() string { return StrategyCascade }

func (s *CascadeStrategy) Strategies() []string {
	names := make([]string, len(s.strategies))
	for i, st := range s.strategies {
		names[i] = st.Name()
	}
	return names
}

func (s *CascadeStrategy) ScrapePage(ctx context.Context, pageURL string, number int) (*models.Page, error) {
	var errs []error

	for _, st := range s.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := st.ScrapePage(ctx, pageURL, number)
		if err == nil && page != nil && len(page.Products) > 0 {
			stamp(page, st.Name())
			s.logger.Info("strategy answered", "strategy", st.Name(), "page", number, "products", len(page.Products))
			return page, nil
		}

		if err == nil {
			err = ErrNoProducts
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.logger.Debug("strategy gave no products", "strategy", st.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", st.Name(), err))
	}

	return nil, fmt.Errorf("%w: all strategies failed: %w", ErrNoProducts, errors.Join(errs...))
}
