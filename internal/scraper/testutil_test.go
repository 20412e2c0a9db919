package scraper

import (
	"context"
	"fmt"
	"strings"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/stretchr/testify/mock"
)

type MockStrategy struct {
	mock.Mock
	name string
}

func (m *MockStrategy) Name() string {
	if m.name == "" {
		return "mock"
	}
	return m.name
}

func (m *MockStrategy) ScrapePage(ctx context.Context, pageURL string, number int) (*models.Page, error) {
	args := m.Called(ctx, pageURL, number)
	page, _ := args.Get(0).(*models.Page)
	return page, args.Error(1)
}

// listingHTML renders a minimal listing page with one card per TCIN.
func listingHTML(next string, tcins ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, tcin := range tcins {
		fmt.Fprintf(&b, `<div data-test="@web/site-top-of-funnel/ProductCardWrapper">
			<a data-test="product-title" href="/p/item-%[1]s/-/A-%[1]s">Item %[1]s</a>
			<span data-test="current-price">$10.00</span>
		</div>`, tcin)
	}
	if next != "" {
		fmt.Fprintf(&b, `<a aria-label="next page" href="%s">next</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func page(number int, next string, tcins ...string) *models.Page {
	p := &models.Page{Number: number, NextURL: next}
	for _, tcin := range tcins {
		p.Products = append(p.Products, &models.Product{TCIN: tcin, Title: "Item " + tcin})
	}
	return p
}
