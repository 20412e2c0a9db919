package scraper

import (
	"strconv"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/maltedev/target-product-scraper/internal/models"
)

// ResultCache keeps recent crawl results so repeated requests for the same
// listing do not hit the site again.
type ResultCache struct {
	lru *expirable.LRU[string, *models.Result]
}

func NewResultCache(size int, ttl time.Duration) *ResultCache {
	return &ResultCache{lru: expirable.NewLRU[string, *models.Result](size, nil, ttl)}
}

func cacheKey(rawURL, strategy string, maxPages int) string {
	return NormalizeURL(rawURL) + "|" + strategy + "|" + strconv.Itoa(maxPages)
}

func (c *ResultCache) Get(rawURL, strategy string, maxPages int) (*models.Result, bool) {
	if c == nil {
		return nil, false
	}
	return c.lru.Get(cacheKey(rawURL, strategy, maxPages))
}

func (c *ResultCache) Add(rawURL, strategy string, maxPages int, result *models.Result) {
	if c == nil {
		return
	}
	c.lru.Add(cacheKey(rawURL, strategy, maxPages), result)
}

func (c *ResultCache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}
