package scraper

import (
	"context"
	"errors"

	"github.com/maltedev/target-product-scraper/internal/models"
)

var (
	ErrInvalidURL      = errors.New("invalid Target URL")
	ErrNoProducts      = errors.New("no products found")
	ErrUnknownStrategy = errors.New("unknown strategy")
	ErrNotConfigured   = errors.New("strategy not configured")
	ErrBlocked         = models.ErrBlocked
	ErrRateLimited     = models.ErrRateLimited
)

const (
	StrategyRendered = "rendered"
	StrategyStatic   = "static"
	StrategyEmbedded = "embedded"
	StrategyAPI      = "api"
	StrategyManual   = "manual"
	StrategyCascade  = "cascade"
)

// Strategy scrapes one listing page. number is 1-based.
type Strategy interface {
	Name() string
	ScrapePage(ctx context.Context, pageURL string, number int) (*models.Page, error)
}

func stamp(page *models.Page, source string) {
	for _, p := range page.Products {
		if p.Source == "" {
			p.Source = source
		}
		if p.Page == 0 {
			p.Page = page.Number
		}
	}
}
