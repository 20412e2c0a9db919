package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/maltedev/target-product-scraper/internal/models"
)

// Selectors holds the CSS cascades used on listing pages. For every field the
// first selector that yields a usable value wins.
type Selectors struct {
	Cards       []string
	Sponsored   []string
	ProductLink []string
	Title       []string
	Image       []string
	Rating      []string
	Reviews     []string
	Price       []string
	NextPage    []string
	ImageHosts  []string
}

func DefaultSelectors() Selectors {
	return Selectors{
		Cards: []string{
			`[data-test="@web/site-top-of-funnel/ProductCardWrapper"]`,
			`div[data-test="product-card"]`,
			`li[data-test="list-entry-product-card"]`,
			`[data-test*="product-card"]`,
			`div[class*="ProductCard"]`,
			`section[class*="styles__StyledCol"]`,
			`div[data-test*="product"]`,
		},
		Sponsored: []string{
			`[data-test="sponsoredText"]`,
			`[data-test*="sponsored"]`,
			`[aria-label*="Sponsored"]`,
			`[class*="sponsored"]`,
		},
		ProductLink: []string{
			`a[href*="/p/"]`,
			`a[href*="/A-"]`,
		},
		Title: []string{
			`a[data-test="product-title"]`,
			`[data-test="product-title"] a`,
			`[data-test="product-title"]`,
			`a[href*="/p/"]`,
			`h3 a`,
			`h2 a`,
		},
		Image: []string{
			`img[data-test="product-image"]`,
			`img[alt*="product"]`,
			`img`,
		},
		Rating: []string{
			`[data-test="ratings"]`,
			`[aria-label*="out of 5"]`,
			`[aria-label*="star"]`,
			`.sr-only`,
		},
		Reviews: []string{
			`[data-test="rating-count"]`,
			`button[aria-label*="review"]`,
			`span[aria-label*="review"]`,
			`a[href*="reviews"]`,
		},
		Price: []string{
			`[data-test="current-price"]`,
			`[data-test="product-price"]`,
			`span[data-test="product-price-current"]`,
		},
		NextPage: []string{
			`a[data-test="next"]`,
			`button[data-test="next"]`,
			`a[aria-label="next page"]`,
			`a[aria-label="Next page"]`,
			`button[aria-label="next page"]`,
			`button[aria-label="Next page"]`,
		},
		ImageHosts: []string{"target.scene7.com", "target.com"},
	}
}

type ListingParser struct {
	sel Selectors
}

func NewListingParser() *ListingParser {
	return &ListingParser{sel: DefaultSelectors()}
}

// NewListingParserWith uses the defaults with every non-empty cascade in
// overrides replacing the built-in one.
func NewListingParserWith(overrides Selectors) *ListingParser {
	return &ListingParser{sel: DefaultSelectors().Override(overrides)}
}

func (s Selectors) Override(o Selectors) Selectors {
	pick := func(def, override []string) []string {
		if len(override) > 0 {
			return override
		}
		return def
	}
	return Selectors{
		Cards:       pick(s.Cards, o.Cards),
		Sponsored:   pick(s.Sponsored, o.Sponsored),
		ProductLink: pick(s.ProductLink, o.ProductLink),
		Title:       pick(s.Title, o.Title),
		Image:       pick(s.Image, o.Image),
		Rating:      pick(s.Rating, o.Rating),
		Reviews:     pick(s.Reviews, o.Reviews),
		Price:       pick(s.Price, o.Price),
		NextPage:    pick(s.NextPage, o.NextPage),
		ImageHosts:  pick(s.ImageHosts, o.ImageHosts),
	}
}

func (p *ListingParser) Selectors() Selectors {
	return p.sel
}

func (p *ListingParser) ParseListing(html string, baseURL string) ([]*models.Product, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return p.ParseDocument(doc, baseURL), nil
}

// ParseDocument extracts every card with a TCIN. Cards missing other fields
// are kept with those fields empty.
func (p *ListingParser) ParseDocument(doc *goquery.Document, baseURL string) []*models.Product {
	base, _ := url.Parse(baseURL)

	cards := firstMatch(doc.Selection, p.sel.Cards)
	if cards == nil {
		return nil
	}

	products := make([]*models.Product, 0, cards.Length())
	cards.Each(func(_ int, card *goquery.Selection) {
		if product := p.parseCard(card, base); product != nil {
			products = append(products, product)
		}
	})

	return products
}

func (p *ListingParser) parseCard(card *goquery.Selection, base *url.URL) *models.Product {
	link := p.productLink(card)
	tcin := ExtractTCIN(link)
	if tcin == "" {
		tcin = p.tcinFromAttributes(card)
	}
	if tcin == "" {
		return nil
	}

	product := models.NewProduct(tcin)
	product.URL = resolve(base, link)
	product.Title = p.extractTitle(card)
	product.Image = p.extractImage(card, base)
	product.Rating = p.extractRating(card)
	product.ReviewCount = p.extractReviews(card)
	product.Price, product.PriceValue = p.extractPrice(card)
	product.IsSponsored = p.isSponsored(card)

	return product
}

func (p *ListingParser) productLink(card *goquery.Selection) string {
	for _, sel := range p.sel.ProductLink {
		var href string
		card.Find(sel).EachWithBreak(func(_ int, a *goquery.Selection) bool {
			h, _ := a.Attr("href")
			if ExtractTCIN(h) != "" {
				href = h
				return false
			}
			return true
		})
		if href != "" {
			return href
		}
	}
	return ""
}

func (p *ListingParser) tcinFromAttributes(card *goquery.Selection) string {
	if v, ok := card.Attr("data-tcin"); ok && v != "" {
		return v
	}
	if v := card.Find("[data-tcin]").First().AttrOr("data-tcin", ""); v != "" {
		return v
	}
	if v, ok := card.Attr("data-test"); ok {
		return eightDigits.FindString(v)
	}
	return ""
}

func (p *ListingParser) extractTitle(card *goquery.Selection) string {
	for _, sel := range p.sel.Title {
		var title string
		card.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			title = cleanText(s.Text())
			if title == "" {
				title = cleanText(s.AttrOr("aria-label", s.AttrOr("title", "")))
			}
			return title == ""
		})
		if title != "" {
			return title
		}
	}
	return ""
}

func (p *ListingParser) extractImage(card *goquery.Selection, base *url.URL) string {
	for _, sel := range p.sel.Image {
		var src string
		card.Find(sel).EachWithBreak(func(_ int, img *goquery.Selection) bool {
			candidate := imageSource(img)
			if candidate == "" {
				return true
			}
			candidate = resolve(base, candidate)
			if p.acceptedImage(candidate) {
				src = candidate
				return false
			}
			return true
		})
		if src != "" {
			return src
		}
	}
	return ""
}

func imageSource(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src"} {
		if v := strings.TrimSpace(img.AttrOr(attr, "")); v != "" && !strings.HasPrefix(v, "data:") {
			return v
		}
	}
	if srcset := img.AttrOr("srcset", ""); srcset != "" {
		if fields := strings.Fields(strings.Split(srcset, ",")[0]); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

func (p *ListingParser) acceptedImage(src string) bool {
	for _, host := range p.sel.ImageHosts {
		if strings.Contains(src, host) {
			return true
		}
	}
	return false
}

func (p *ListingParser) extractRating(card *goquery.Selection) *float64 {
	for _, sel := range p.sel.Rating {
		var rating *float64
		card.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if label, ok := s.Attr("aria-label"); ok {
				rating = ParseRating(label)
			}
			if rating == nil {
				rating = ParseRating(s.Text())
			}
			return rating == nil
		})
		if rating != nil {
			return rating
		}
	}
	return nil
}

func (p *ListingParser) extractReviews(card *goquery.Selection) *int {
	for _, sel := range p.sel.Reviews {
		var count *int
		card.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			label := s.AttrOr("aria-label", "")
			if m := reviewLabelPattern.FindStringSubmatch(label); len(m) > 1 {
				count = ParseReviewCount(m[1])
			}
			if text := cleanText(s.Text()); count == nil && text != "" {
				count = parseReviewLabel(text)
			}
			if count == nil {
				count = parseReviewLabel(label)
			}
			return count == nil
		})
		if count != nil {
			return count
		}
	}
	return nil
}

func (p *ListingParser) extractPrice(card *goquery.Selection) (string, *float64) {
	for _, sel := range p.sel.Price {
		if display, value := ParsePrice(card.Find(sel).First().Text()); display != "" {
			return display, value
		}
	}
	return "", nil
}

func (p *ListingParser) isSponsored(card *goquery.Selection) bool {
	for _, sel := range p.sel.Sponsored {
		if card.Find(sel).Length() > 0 {
			return true
		}
	}
	// Only the short label nodes are checked; titles like "Sponsored Ad Bundle"
	// inside the product link must not flag the card.
	sponsored := false
	card.Find("span, p, div").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if s.Children().Length() > 0 {
			return true
		}
		text := cleanText(s.Text())
		if len(text) <= 20 && IsSponsoredText(text) {
			sponsored = true
			return false
		}
		return true
	})
	return sponsored
}

// NextPageURL returns the absolute next-page link, or "" when the control is
// missing, disabled or has no href (button pagination).
func (p *ListingParser) NextPageURL(html string, baseURL string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	href, _ := p.nextControl(doc)
	if href == "" {
		return ""
	}
	base, _ := url.Parse(baseURL)
	return resolve(base, href)
}

// HasNextControl reports an enabled next-page control without a usable href,
// which has to be clicked in a browser.
func (p *ListingParser) HasNextControl(html string) bool {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false
	}
	href, enabled := p.nextControl(doc)
	return href == "" && enabled
}

func (p *ListingParser) nextControl(doc *goquery.Document) (string, bool) {
	for _, sel := range p.sel.NextPage {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		if _, disabled := s.Attr("disabled"); disabled || s.AttrOr("aria-disabled", "") == "true" {
			return "", false
		}
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if href == "#" || strings.HasPrefix(href, "javascript:") {
			href = ""
		}
		return href, true
	}
	return "", false
}

func firstMatch(root *goquery.Selection, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		if found := root.Find(sel); found.Length() > 0 {
			return found
		}
	}
	return nil
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	if base == nil {
		return u.String()
	}
	return base.ResolveReference(u).String()
}
