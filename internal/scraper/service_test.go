package scraper

import (
	"context"
	"testing"

	"github.com/maltedev/target-product-scraper/internal/browser"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_Crawl_Errors(t *testing.T) {
	svc := NewService(Deps{Static: testStaticOptions()}, nil, nil, "")
	assert.Equal(t, StrategyCascade, svc.DefaultStrategy())

	_, err := svc.Crawl(context.Background(), startURL, "carrier-pigeon", CrawlOptions{})
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = svc.Crawl(context.Background(), "https://example.com/s?searchTerm=lego", StrategyStatic, CrawlOptions{})
	assert.ErrorIs(t, err, ErrInvalidURL)

	_, err = svc.Crawl(context.Background(), startURL, StrategyRendered, CrawlOptions{})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestService_Manual(t *testing.T) {
	svc := NewService(Deps{}, nil, nil, StrategyStatic)

	result, invalid, err := svc.Manual(context.Background(), []string{
		"https://www.target.com/p/lego-classic-bricks/-/A-11111111",
		"22222222, 11111111",
		"not-a-product",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"not-a-product"}, invalid)
	require.Len(t, result.Products, 2)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, StrategyManual, result.Strategy)
	assert.Equal(t, "11111111", result.Products[0].TCIN)
	assert.NoError(t, svc.Close())
}

func TestService_BrowserStarted(t *testing.T) {
	assert.False(t, NewService(Deps{}, nil, nil, "").BrowserStarted())

	fake := &fakeRenderer{rendered: &browser.Rendered{HTML: "<html></html>"}}
	lazy := browser.NewLazyRenderer(func() (browser.Renderer, error) { return fake, nil })
	svc := NewService(Deps{Renderer: lazy}, nil, nil, "")
	assert.False(t, svc.BrowserStarted())

	_, err := lazy.Render(context.Background(), startURL, browser.DefaultRenderOptions())
	require.NoError(t, err)
	assert.True(t, svc.BrowserStarted())
	assert.NoError(t, svc.Close())
}
