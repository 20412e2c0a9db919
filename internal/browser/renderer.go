package browser

import (
	"context"
	"strings"
	"time"
)

// Renderer loads a page in a real browser and hands back the final DOM.
type Renderer interface {
	Render(ctx context.Context, url string, opts RenderOptions) (*Rendered, error)
	Close() error
}

type RenderOptions struct {
	// WaitSelectors are tried together; rendering continues once any matches.
	WaitSelectors   []string
	WaitTimeout     time.Duration
	ScrollPause     time.Duration
	MaxScrollRounds int
	MaxRetries      int

	// NextSelectors are clicked when NeedsClick reports a next-page control
	// that has no href.
	NextSelectors []string
	NeedsClick    func(html string) bool
}

type Rendered struct {
	HTML    string
	URL     string
	Title   string
	Found   bool
	NextURL string
}

func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		WaitTimeout:     15 * time.Second,
		ScrollPause:     2 * time.Second,
		MaxScrollRounds: 15,
		MaxRetries:      3,
	}
}

var blockedTitleMarkers = []string{
	"access denied",
	"pardon our interruption",
	"request unsuccessful",
	"attention required",
	"just a moment",
}

var blockedBodyMarkers = []string{
	"please verify you are a human",
	"are you a robot",
	"unusual traffic from your computer",
	"px-captcha",
}

// IsBlockedPage recognises bot-protection interstitials by title and body
// markers.
func IsBlockedPage(title, html string) bool {
	t := strings.ToLower(title)
	for _, marker := range blockedTitleMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}
	body := strings.ToLower(html)
	for _, marker := range blockedBodyMarkers {
		if strings.Contains(body, marker) {
			return true
		}
	}
	return false
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
