package scraper

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url   string
		valid bool
	}{
		{"https://www.target.com/s?searchTerm=lego", true},
		{"https://target.com/c/toys/-/N-5xtb0", true},
		{"  https://www.target.com/b/lego/-/N-56h5s  ", true},
		{"http://www.target.com/s?searchTerm=lego", false},
		{"https://www.amazon.com/s?k=lego", false},
		{"https://target.com.evil.example/s", false},
		{"not a url", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			u, err := ValidateURL(tt.url)
			if tt.valid {
				require.NoError(t, err)
				assert.NotNil(t, u)
				return
			}
			assert.True(t, errors.Is(err, ErrInvalidURL))
		})
	}
}

func TestNormalizeURL(t *testing.T) {
	a := NormalizeURL("https://WWW.TARGET.COM/s?searchTerm=lego&Nao=24#top")
	b := NormalizeURL("https://www.target.com/s?Nao=24&searchTerm=lego")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, NormalizeURL("https://www.target.com/s?Nao=48&searchTerm=lego"))
}

func TestSearchParams(t *testing.T) {
	tests := []struct {
		raw      string
		keyword  string
		category string
	}{
		{"https://www.target.com/s?searchTerm=lego+star+wars", "lego star wars", ""},
		{"https://www.target.com/c/toys/-/N-5xtb0", "", "5xtb0"},
		{"https://www.target.com/b/lego/-/N-56h5s?Nao=24", "", "56h5s"},
		{"https://www.target.com/s?category=abc&searchTerm=x", "x", "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			keyword, category := SearchParams(u)
			assert.Equal(t, tt.keyword, keyword)
			assert.Equal(t, tt.category, category)
		})
	}
}

func TestOffset(t *testing.T) {
	u, _ := url.Parse("https://www.target.com/s?searchTerm=lego")
	_, ok := Offset(u)
	assert.False(t, ok)

	next, err := url.Parse(WithOffset(u, 48))
	require.NoError(t, err)
	offset, ok := Offset(next)
	assert.True(t, ok)
	assert.Equal(t, 48, offset)
	assert.Equal(t, "lego", next.Query().Get("searchTerm"))
}

func TestProductURL(t *testing.T) {
	assert.Equal(t, "https://www.target.com/p/-/A-12345678", ProductURL("12345678"))
}
