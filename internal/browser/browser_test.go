package browser

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.True(t, opts.Headless)
	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, 1920, opts.ViewportWidth)
	assert.Equal(t, 1080, opts.ViewportHeight)
	assert.Equal(t, "en-US", opts.Locale)
}

func TestLaunchArgs(t *testing.T) {
	opts := DefaultOptions()
	opts.ViewportWidth = 1280
	opts.ViewportHeight = 720

	args := opts.launchArgs()

	assert.Contains(t, args, "--no-sandbox")
	assert.Contains(t, args, "--disable-dev-shm-usage")
	assert.Contains(t, args, "--disable-gpu")
	assert.Contains(t, args, "--window-size=1280,720")
	assert.Contains(t, args, "--user-agent="+opts.UserAgent)
}

func TestIsBlockedPage(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		html     string
		expected bool
	}{
		{"access denied title", "Access Denied", "<html></html>", true},
		{"interstitial title", "Pardon Our Interruption", "", true},
		{"captcha body", "Target", `<div id="px-captcha"></div>`, true},
		{"robot question", "", "<p>Are you a robot?</p>", true},
		{"normal listing", "Lego : Target", `<div data-test="product-card"></div>`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsBlockedPage(tt.title, tt.html))
		})
	}
}

func TestToInt(t *testing.T) {
	assert.Equal(t, 42, toInt(42))
	assert.Equal(t, 42, toInt(int64(42)))
	assert.Equal(t, 42, toInt(float64(42.9)))
	assert.Equal(t, 0, toInt("42"))
}

func TestSleepCtx(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sleepCtx(ctx, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))

	assert.NoError(t, sleepCtx(context.Background(), time.Millisecond))
}

func TestBrowserRender_Integration(t *testing.T) {
	if os.Getenv("INTEGRATION_TEST") != "true" {
		t.Skip("Skipping integration test. Set INTEGRATION_TEST=true to run")
	}

	b, err := New(DefaultOptions())
	require.NoError(t, err)
	defer b.Close()

	opts := DefaultRenderOptions()
	opts.WaitSelectors = []string{`[data-test*="product-card"]`}
	opts.MaxScrollRounds = 2

	rendered, err := b.Render(context.Background(), "https://www.target.com/s?searchTerm=lego", opts)
	if errors.Is(err, models.ErrBlocked) {
		t.Skip("blocked by bot protection")
	}
	require.NoError(t, err)
	assert.NotEmpty(t, rendered.HTML)
}
