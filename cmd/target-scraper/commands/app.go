package commands

import (
	"fmt"

	"github.com/maltedev/target-product-scraper/internal/browser"
	"github.com/maltedev/target-product-scraper/internal/config"
	"github.com/maltedev/target-product-scraper/internal/fetch"
	"github.com/maltedev/target-product-scraper/internal/parser"
	"github.com/maltedev/target-product-scraper/internal/ratelimit"
	"github.com/maltedev/target-product-scraper/internal/scraper"
)

// newService assembles the strategies from configuration. The browser is
// only launched if a crawl actually reaches the rendered strategy.
func newService(c *config.Config, headless bool) (*scraper.Service, error) {
	userAgent := ""
	if len(c.Scraper.UserAgents) > 0 {
		userAgent = c.Scraper.UserAgents[0]
	}

	browserOpts := browser.DefaultOptions()
	browserOpts.Headless = headless
	browserOpts.Timeout = c.Browser.Timeout
	browserOpts.ViewportWidth = c.Browser.ViewportWidth
	browserOpts.ViewportHeight = c.Browser.ViewportHeight
	browserOpts.AcceptLanguage = c.Browser.AcceptLanguage
	browserOpts.TimezoneID = c.Browser.TimezoneID
	browserOpts.Locale = c.Browser.Locale
	if userAgent != "" {
		browserOpts.UserAgent = userAgent
	}

	renderer, err := browser.NewEngine(c.Browser.Engine, browserOpts)
	if err != nil {
		return nil, err
	}

	client, err := fetch.New(fetch.Options{
		Timeout:           c.HTTP.Timeout,
		RetryCount:        c.HTTP.RetryCount,
		RetryWait:         fetch.DefaultOptions().RetryWait,
		RequestsPerSecond: c.HTTP.RequestsPerS,
		Burst:             c.HTTP.Burst,
		UserAgents:        c.Scraper.UserAgents,
		AcceptLanguage:    c.Browser.AcceptLanguage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create http client: %w", err)
	}

	render := browser.DefaultRenderOptions()
	render.ScrollPause = c.Scraper.ScrollPause
	render.MaxScrollRounds = c.Scraper.MaxScrollRounds
	render.MaxRetries = c.Scraper.MaxRetries

	static := scraper.DefaultStaticOptions()
	static.Timeout = c.HTTP.Timeout
	static.AcceptLanguage = c.Browser.AcceptLanguage
	if len(c.Scraper.UserAgents) > 0 {
		static.UserAgents = c.Scraper.UserAgents
	}

	deps := scraper.Deps{
		Renderer: renderer,
		Fetch:    client,
		Parser:   parser.NewListingParserWith(parser.Selectors(c.Selectors)),
		Render:   render,
		Static:   static,
		API: scraper.APIOptions{
			SearchEndpoint:  c.API.SearchEndpoint,
			ProductEndpoint: c.API.ProductEndpoint,
			Key:             c.API.Key,
			StoreID:         c.API.StoreID,
			PageSize:        c.API.PageSize,
			ExtraParams:     c.API.ExtraParams,
		},
		DebugDir: c.Scraper.DebugDir,
	}

	limiter := ratelimit.NewAdaptiveLimiter(c.Scraper.RateLimitMin, c.Scraper.RateLimitMax)
	cache := scraper.NewResultCache(c.Cache.Size, c.Cache.TTL)

	return scraper.NewService(deps, limiter, cache, c.Scraper.Strategy), nil
}
