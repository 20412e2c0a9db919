package parser

import (
	"github.com/maltedev/target-product-scraper/internal/models"
)

// Listing extracts product rows and the pagination link from a listing page.
type Listing interface {
	ParseListing(html string, baseURL string) ([]*models.Product, error)
	NextPageURL(html string, baseURL string) string
}

var _ Listing = (*ListingParser)(nil)
