package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingFixture = `<html><body>
<div data-test="@web/site-top-of-funnel/ProductCardWrapper">
  <a href="/p/lego-classic-bricks/-/A-11111111" aria-label="image link">
    <img src="https://target.scene7.com/is/image/Target/GUEST_1" alt="LEGO product">
  </a>
  <a data-test="product-title" href="/p/lego-classic-bricks/-/A-11111111">LEGO   Classic Bricks</a>
  <span data-test="current-price"><span>$24.99</span></span>
  <div data-test="ratings"><span class="sr-only">4.8 out of 5 stars with 2,345 ratings</span></div>
  <span data-test="rating-count">2,345</span>
</div>
<div data-test="@web/site-top-of-funnel/ProductCardWrapper">
  <p>Sponsored</p>
  <a data-test="product-title" href="https://www.target.com/p/duplo-set/-/A-22222222?preselect=1">Duplo Set</a>
  <img src="https://example.com/tracking.gif">
  <img data-src="//target.scene7.com/is/image/Target/GUEST_2">
  <span data-test="current-price">$9.99 - $19.99</span>
  <button aria-label="4.2 out of 5 stars with 87 reviews">4.2</button>
</div>
<div data-test="@web/site-top-of-funnel/ProductCardWrapper" data-tcin="33333333">
  <h3><a href="/c/toys">Mystery Toy</a></h3>
</div>
<div data-test="@web/site-top-of-funnel/ProductCardWrapper">
  <span>Promo banner</span>
</div>
<a aria-label="next page" href="/s?searchTerm=lego&amp;Nao=24">next</a>
</body></html>`

func TestListingParser_ParseListing(t *testing.T) {
	p := NewListingParser()

	products, err := p.ParseListing(listingFixture, "https://www.target.com/s?searchTerm=lego")
	require.NoError(t, err)
	require.Len(t, products, 3)

	lego := products[0]
	assert.Equal(t, "11111111", lego.TCIN)
	assert.Equal(t, "LEGO Classic Bricks", lego.Title)
	assert.Equal(t, "https://www.target.com/p/lego-classic-bricks/-/A-11111111", lego.URL)
	assert.Equal(t, "https://target.scene7.com/is/image/Target/GUEST_1", lego.Image)
	assert.Equal(t, "$24.99", lego.Price)
	require.NotNil(t, lego.Rating)
	assert.InDelta(t, 4.8, *lego.Rating, 0.001)
	require.NotNil(t, lego.ReviewCount)
	assert.Equal(t, 2345, *lego.ReviewCount)
	assert.False(t, lego.IsSponsored)

	duplo := products[1]
	assert.Equal(t, "22222222", duplo.TCIN)
	assert.Equal(t, "Duplo Set", duplo.Title)
	assert.Equal(t, "https://target.scene7.com/is/image/Target/GUEST_2", duplo.Image)
	assert.Equal(t, "$9.99", duplo.Price)
	require.NotNil(t, duplo.Rating)
	assert.InDelta(t, 4.2, *duplo.Rating, 0.001)
	require.NotNil(t, duplo.ReviewCount)
	assert.Equal(t, 87, *duplo.ReviewCount)
	assert.True(t, duplo.IsSponsored)

	mystery := products[2]
	assert.Equal(t, "33333333", mystery.TCIN)
	assert.Equal(t, "Mystery Toy", mystery.Title)
	assert.Empty(t, mystery.Price)
	assert.Nil(t, mystery.Rating)
	assert.Nil(t, mystery.ReviewCount)
}

func TestListingParser_NoCards(t *testing.T) {
	products, err := NewListingParser().ParseListing(`<html><body><p>No results</p></body></html>`, "https://www.target.com/s?searchTerm=zzz")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestListingParser_FallbackCardSelector(t *testing.T) {
	html := `<div class="styles__ProductCardGrid"><div data-test="product-grid-item">
		<a href="/p/x/-/A-99999999">Fallback Product</a></div></div>`

	products, err := NewListingParser().ParseListing(html, "https://www.target.com/")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "99999999", products[0].TCIN)
	assert.Equal(t, "Fallback Product", products[0].Title)
}

func TestListingParser_NextPage(t *testing.T) {
	p := NewListingParser()

	tests := []struct {
		name      string
		html      string
		expected  string
		clickable bool
	}{
		{
			name:     "link",
			html:     listingFixture,
			expected: "https://www.target.com/s?searchTerm=lego&Nao=24",
		},
		{
			name: "disabled button",
			html: `<button data-test="next" disabled>Next</button>`,
		},
		{
			name: "aria disabled link",
			html: `<a data-test="next" aria-disabled="true" href="/s?page=9">Next</a>`,
		},
		{
			name:      "button without href",
			html:      `<button aria-label="Next page">Next</button>`,
			clickable: true,
		},
		{
			name: "missing",
			html: `<div>end of results</div>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, p.NextPageURL(tt.html, "https://www.target.com/s?searchTerm=lego"))
			assert.Equal(t, tt.clickable, p.HasNextControl(tt.html))
		})
	}
}

func TestListingParser_SelectorOverrides(t *testing.T) {
	html := `<html><body>
<article class="tile"><a class="name" href="/p/kite/-/A-44444444">Kite</a><em>$5.00</em></article>
</body></html>`

	products, err := NewListingParser().ParseListing(html, "https://www.target.com/")
	require.NoError(t, err)
	assert.Empty(t, products)

	p := NewListingParserWith(Selectors{
		Cards: []string{"article.tile"},
		Title: []string{"a.name"},
		Price: []string{"em"},
	})
	assert.Equal(t, DefaultSelectors().NextPage, p.Selectors().NextPage)

	products, err = p.ParseListing(html, "https://www.target.com/")
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "44444444", products[0].TCIN)
	assert.Equal(t, "Kite", products[0].Title)
	assert.Equal(t, "$5.00", products[0].Price)
}
