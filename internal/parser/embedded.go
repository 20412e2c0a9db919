package parser

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var windowAssignment = regexp.MustCompile(`window\.__[A-Za-z0-9_]+__\s*=\s*`)

// ExtractEmbeddedJSON decodes the JSON state that listing pages ship inside
// script tags: the Next.js data blob, ld+json blocks and window.__X__
// assignments (plain literals or JSON.parse("...") strings).
func ExtractEmbeddedJSON(html string) ([]any, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var docs []any

	doc.Find(`script#__NEXT_DATA__`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if json.Unmarshal([]byte(s.Text()), &v) == nil {
			docs = append(docs, v)
		}
	})

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var v any
		if json.Unmarshal([]byte(strings.TrimSpace(s.Text())), &v) == nil {
			docs = append(docs, v)
		}
	})

	doc.Find(`script`).Each(func(_ int, s *goquery.Selection) {
		if s.AttrOr("id", "") == "__NEXT_DATA__" || s.AttrOr("type", "") == "application/ld+json" {
			return
		}
		docs = append(docs, windowAssignments(s.Text())...)
	})

	return docs, nil
}

func windowAssignments(script string) []any {
	var out []any
	for _, loc := range windowAssignment.FindAllStringIndex(script, -1) {
		rest := strings.TrimSpace(script[loc[1]:])

		if strings.HasPrefix(rest, "JSON.parse(") {
			var encoded string
			if err := decodeFirst(strings.TrimPrefix(rest, "JSON.parse("), &encoded); err != nil {
				continue
			}
			var v any
			if json.Unmarshal([]byte(encoded), &v) == nil {
				out = append(out, v)
			}
			continue
		}

		if strings.HasPrefix(rest, "{") || strings.HasPrefix(rest, "[") {
			var v any
			if decodeFirst(rest, &v) == nil {
				out = append(out, v)
			}
		}
	}
	return out
}

// decodeFirst decodes the leading JSON value and ignores whatever follows it.
func decodeFirst(s string, v any) error {
	return json.NewDecoder(strings.NewReader(s)).Decode(v)
}
