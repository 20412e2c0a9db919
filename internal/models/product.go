package models

import (
	"time"
)

type Product struct {
	TCIN        string    `json:"tcin"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	Image       string    `json:"image,omitempty"`
	Price       string    `json:"price,omitempty"`
	PriceValue  *float64  `json:"price_value,omitempty"`
	Rating      *float64  `json:"rating,omitempty"`
	ReviewCount *int      `json:"review_count,omitempty"`
	IsSponsored bool      `json:"is_sponsored"`
	Source      string    `json:"source,omitempty"`
	Page        int       `json:"page,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// Page is the outcome of scraping a single listing page.
type Page struct {
	URL      string     `json:"url"`
	Number   int        `json:"number"`
	Products []*Product `json:"products"`
	NextURL  string     `json:"next_url,omitempty"`
}

type Summary struct {
	Total         int      `json:"total"`
	WithRatings   int      `json:"with_ratings"`
	WithReviews   int      `json:"with_reviews"`
	AverageRating *float64 `json:"average_rating,omitempty"`
	WithPrice     int      `json:"with_price"`
	Sponsored     int      `json:"sponsored"`
}

func NewProduct(tcin string) *Product {
	return &Product{
		TCIN:      tcin,
		ScrapedAt: time.Now(),
	}
}

func (p *Product) Validate() []string {
	var errors []string

	if p.TCIN == "" {
		errors = append(errors, "TCIN is required")
	}

	if p.Title == "" {
		errors = append(errors, "Title is required")
	}

	if p.Rating != nil && (*p.Rating < 0 || *p.Rating > 5) {
		errors = append(errors, "Rating must be between 0 and 5")
	}

	if p.ReviewCount != nil && *p.ReviewCount < 0 {
		errors = append(errors, "Review count cannot be negative")
	}

	return errors
}

// Merge fills empty fields of p from other. Both must describe the same TCIN.
func (p *Product) Merge(other *Product) {
	if other == nil || other.TCIN != p.TCIN {
		return
	}
	if p.Title == "" {
		p.Title = other.Title
	}
	if p.URL == "" {
		p.URL = other.URL
	}
	if p.Image == "" {
		p.Image = other.Image
	}
	if p.Price == "" {
		p.Price = other.Price
		p.PriceValue = other.PriceValue
	}
	if p.Rating == nil {
		p.Rating = other.Rating
	}
	if p.ReviewCount == nil {
		p.ReviewCount = other.ReviewCount
	}
	p.IsSponsored = p.IsSponsored || other.IsSponsored
}

// Dedupe drops rows without a TCIN and keeps the first occurrence of every
// TCIN in input order. It returns the kept rows and how many were removed.
func Dedupe(products []*Product) ([]*Product, int) {
	seen := make(map[string]struct{}, len(products))
	kept := make([]*Product, 0, len(products))

	for _, p := range products {
		if p == nil || p.TCIN == "" {
			continue
		}
		if _, ok := seen[p.TCIN]; ok {
			continue
		}
		seen[p.TCIN] = struct{}{}
		kept = append(kept, p)
	}

	return kept, len(products) - len(kept)
}

func Summarize(products []*Product) Summary {
	s := Summary{Total: len(products)}

	var ratingSum float64
	for _, p := range products {
		if p.Rating != nil {
			s.WithRatings++
			ratingSum += *p.Rating
		}
		if p.ReviewCount != nil {
			s.WithReviews++
		}
		if p.Price != "" {
			s.WithPrice++
		}
		if p.IsSponsored {
			s.Sponsored++
		}
	}

	if s.WithRatings > 0 {
		avg := ratingSum / float64(s.WithRatings)
		s.AverageRating = &avg
	}

	return s
}

func Float(v float64) *float64 { return &v }

func Int(v int) *int { return &v }
