package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	tcinPatterns = []*regexp.Regexp{
		regexp.MustCompile(`/A-(\d+)`),
		regexp.MustCompile(`(?i)tcin[=:](\d+)`),
		regexp.MustCompile(`/(\d{8})(?:[/?#]|$)`),
	}

	ratingPattern      = regexp.MustCompile(`(?i)(\d+\.?\d*)\s*out of 5`)
	integerPattern     = regexp.MustCompile(`\d+`)
	reviewLabelPattern = regexp.MustCompile(`(?i)(\d[\d,]*)\s+(?:reviews?|ratings?)`)
	pricePattern       = regexp.MustCompile(`\$\s?(\d+(?:\.\d+)?)`)
	sponsoredPattern   = regexp.MustCompile(`(?i)\b(?:sponsored|ad)\b`)
	eightDigits        = regexp.MustCompile(`\d{8}`)
)

// ExtractTCIN returns the retailer product id embedded in a product URL, or
// "" when none of the known shapes match.
func ExtractTCIN(url string) string {
	for _, pattern := range tcinPatterns {
		if m := pattern.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// ParseRating reads "4.5 out of 5" style text.
func ParseRating(text string) *float64 {
	m := ratingPattern.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil
	}
	v, err := strconv.ParseFloat(strings.TrimSuffix(m[1], "."), 64)
	if err != nil || v < 0 || v > 5 {
		return nil
	}
	return &v
}

// ParseReviewCount returns the first integer in text, ignoring thousands
// separators.
func ParseReviewCount(text string) *int {
	m := integerPattern.FindString(strings.ReplaceAll(text, ",", ""))
	if m == "" {
		return nil
	}
	v, err := strconv.Atoi(m)
	if err != nil {
		return nil
	}
	return &v
}

// parseReviewLabel prefers "1,234 reviews" in labels that also carry the rating.
func parseReviewLabel(label string) *int {
	if m := reviewLabelPattern.FindStringSubmatch(label); len(m) > 1 {
		return ParseReviewCount(m[1])
	}
	if ParseRating(label) != nil {
		return nil
	}
	return ParseReviewCount(label)
}

// ParsePrice finds the first dollar amount. For ranges the low end wins since
// it comes first.
func ParsePrice(text string) (string, *float64) {
	m := pricePattern.FindStringSubmatch(strings.ReplaceAll(text, ",", ""))
	if len(m) < 2 {
		return "", nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return "", nil
	}
	return "$" + m[1], &v
}

// FormatPrice renders a numeric price the way ParsePrice displays it.
func FormatPrice(v float64) string {
	return "$" + strconv.FormatFloat(v, 'f', 2, 64)
}

func IsSponsoredText(text string) bool {
	return sponsoredPattern.MatchString(text)
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
