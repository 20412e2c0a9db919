package parser

import (
	"encoding/json"
	"html"
	"net/url"
	"strconv"
	"strings"

	"github.com/maltedev/target-product-scraper/internal/models"
)

const maxLookupDepth = 4

// ProductsFromJSON walks a decoded JSON tree and returns every product-like
// object it finds. Fields are located by key name, so the walk survives
// response shape changes as long as the field names stay recognisable.
func ProductsFromJSON(doc any, baseURL string) []*models.Product {
	base, _ := url.Parse(baseURL)
	var products []*models.Product
	walkJSON(doc, func(m map[string]any) bool {
		if !looksLikeProduct(m) {
			return false
		}
		if p := productFromMap(m, base); p != nil {
			products = append(products, p)
			return true
		}
		return false
	})
	return products
}

// walkJSON calls visit for every object. Children of objects that visit
// claims are not descended into.
func walkJSON(v any, visit func(map[string]any) bool) {
	switch node := v.(type) {
	case map[string]any:
		if visit(node) {
			return
		}
		for _, child := range node {
			walkJSON(child, visit)
		}
	case []any:
		for _, child := range node {
			walkJSON(child, visit)
		}
	}
}

func looksLikeProduct(m map[string]any) bool {
	if tcin := scalarString(m["tcin"]); tcin != "" && isDigits(tcin) {
		return true
	}

	if t, _ := m["@type"].(string); strings.EqualFold(t, "Product") {
		return true
	}

	hasName := scalarString(m["title"]) != "" || scalarString(m["name"]) != ""
	hasPrice := lookup(m, 2, "price", "offers", "formatted_current_price", "current_retail") != nil
	link := lookupString(m, 1, "url", "buy_url", "product_url")
	return hasName && hasPrice && ExtractTCIN(link) != ""
}

func productFromMap(m map[string]any, base *url.URL) *models.Product {
	link := lookupString(m, maxLookupDepth, "buy_url", "product_url", "url")

	tcin := scalarString(m["tcin"])
	if tcin == "" {
		tcin = ExtractTCIN(link)
	}
	if tcin == "" {
		tcin = lookupString(m, 1, "sku", "productID")
		if !isDigits(tcin) {
			tcin = ""
		}
	}
	if tcin == "" {
		return nil
	}

	product := models.NewProduct(tcin)
	product.URL = resolve(base, link)
	if product.URL == "" && base != nil {
		product.URL = resolve(base, "/p/-/A-"+tcin)
	}

	if title := lookupString(m, maxLookupDepth, "title", "name"); title != "" {
		product.Title = cleanText(html.UnescapeString(title))
	}

	product.Image = jsonImage(m, base)
	product.Price, product.PriceValue = jsonPrice(m)
	product.Rating, product.ReviewCount = jsonRatings(m)
	product.IsSponsored = jsonSponsored(m)

	return product
}

func jsonImage(m map[string]any, base *url.URL) string {
	if s := lookupString(m, maxLookupDepth, "primary_image_url", "image_url"); s != "" {
		return resolve(base, s)
	}
	switch v := lookup(m, maxLookupDepth, "image", "images").(type) {
	case string:
		return resolve(base, v)
	case []any:
		if len(v) > 0 {
			if s, ok := v[0].(string); ok {
				return resolve(base, s)
			}
		}
	case map[string]any:
		if s := lookupString(v, 1, "url", "contentUrl"); s != "" {
			return resolve(base, s)
		}
	}
	return ""
}

func jsonPrice(m map[string]any) (string, *float64) {
	if display, value := ParsePrice(lookupString(m, maxLookupDepth, "formatted_current_price")); display != "" {
		return display, value
	}

	for _, key := range []string{"current_retail", "current_retail_min", "price", "lowPrice", "reg_retail"} {
		if v, ok := lookupFloat(m, maxLookupDepth, key); ok && v > 0 {
			return FormatPrice(v), &v
		}
		if s := lookupString(m, maxLookupDepth, key); s != "" {
			if display, value := ParsePrice(s); display != "" {
				return display, value
			}
			if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil && v > 0 {
				return FormatPrice(v), &v
			}
		}
	}
	return "", nil
}

func jsonRatings(m map[string]any) (*float64, *int) {
	scope := m
	for _, key := range []string{"ratings_and_reviews", "aggregateRating"} {
		if sub, ok := lookup(m, maxLookupDepth, key).(map[string]any); ok {
			scope = sub
			break
		}
	}

	var rating *float64
	if v, ok := lookupFloat(scope, maxLookupDepth, "average", "ratingValue", "average_rating", "rating"); ok && v >= 0 && v <= 5 {
		rating = &v
	}

	var count *int
	if v, ok := lookupFloat(scope, maxLookupDepth, "count", "reviewCount", "ratingCount", "review_count", "total_review_count"); ok && v >= 0 {
		n := int(v)
		count = &n
	}

	return rating, count
}

func jsonSponsored(m map[string]any) bool {
	for _, key := range []string{"is_sponsored_sku", "is_sponsored", "sponsored", "isSponsored"} {
		if b, ok := lookup(m, 2, key).(bool); ok && b {
			return true
		}
	}
	return false
}

// lookup searches m breadth-first, down to depth levels of nesting, for the
// first of keys (in priority order per level) holding a non-nil value.
func lookup(m map[string]any, depth int, keys ...string) any {
	return find(m, depth, func(v any) bool { return v != nil }, keys)
}

func lookupString(m map[string]any, depth int, keys ...string) string {
	v, _ := find(m, depth, func(v any) bool {
		s, ok := v.(string)
		return ok && strings.TrimSpace(s) != ""
	}, keys).(string)
	return v
}

func lookupFloat(m map[string]any, depth int, keys ...string) (float64, bool) {
	return toFloat(find(m, depth, func(v any) bool {
		_, ok := toFloat(v)
		return ok
	}, keys))
}

func find(m map[string]any, depth int, accept func(any) bool, keys []string) any {
	level := []map[string]any{m}
	for d := 0; d <= depth && len(level) > 0; d++ {
		for _, key := range keys {
			for _, node := range level {
				if v, ok := node[key]; ok && accept(v) {
					return v
				}
			}
		}
		var next []map[string]any
		for _, node := range level {
			for _, child := range node {
				switch c := child.(type) {
				case map[string]any:
					next = append(next, c)
				case []any:
					for _, item := range c {
						if cm, ok := item.(map[string]any); ok {
							next = append(next, cm)
						}
					}
				}
			}
		}
		level = next
	}
	return nil
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case json.Number:
		return string(s)
	}
	return ""
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
