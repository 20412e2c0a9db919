package scraper

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/purell"
)

const BaseURL = "https://www.target.com"

var allowedHosts = map[string]bool{
	"target.com":     true,
	"www.target.com": true,
}

var categoryPath = regexp.MustCompile(`/N-([0-9a-zA-Z]+)`)

// ValidateURL accepts only https listing URLs on the retailer's domain.
func ValidateURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Scheme != "https" || !allowedHosts[strings.ToLower(u.Hostname())] {
		return nil, fmt.Errorf("%w: %q must start with %s", ErrInvalidURL, raw, BaseURL)
	}
	return u, nil
}

// NormalizeURL canonicalises a URL for loop detection and cache keys.
func NormalizeURL(raw string) string {
	normalized, err := purell.NormalizeURLString(raw,
		purell.FlagsSafe|purell.FlagsUsuallySafeNonGreedy|purell.FlagRemoveDirectoryIndex|purell.FlagRemoveFragment|purell.FlagSortQuery)
	if err != nil {
		return raw
	}
	return normalized
}

// SearchParams pulls the keyword or category id out of a listing URL.
func SearchParams(u *url.URL) (keyword, category string) {
	q := u.Query()
	keyword = strings.TrimSpace(q.Get("searchTerm"))
	category = strings.TrimSpace(q.Get("category"))
	if category == "" {
		if m := categoryPath.FindStringSubmatch(u.Path); len(m) > 1 {
			category = m[1]
		}
	}
	return keyword, category
}

// Offset reads the result offset ("Nao") of a listing URL.
func Offset(u *url.URL) (int, bool) {
	v := u.Query().Get("Nao")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func WithOffset(u *url.URL, offset int) string {
	next := *u
	q := next.Query()
	q.Set("Nao", strconv.Itoa(offset))
	next.RawQuery = q.Encode()
	return next.String()
}

// ProductURL builds a canonical product page URL for a TCIN.
func ProductURL(tcin string) string {
	return BaseURL + "/p/-/A-" + tcin
}
