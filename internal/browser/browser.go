package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maltedev/target-product-scraper/internal/models"
	"github.com/playwright-community/playwright-go"
)

type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	opts    *Options
	logger  *slog.Logger
}

type Options struct {
	Headless       bool
	Timeout        time.Duration
	UserAgent      string
	ViewportWidth  int
	ViewportHeight int
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
	ExtraHeaders   map[string]string
}

func DefaultOptions() *Options {
	return &Options{
		Headless:       true,
		Timeout:        30 * time.Second,
		UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		ViewportWidth:  1920,
		ViewportHeight: 1080,
		AcceptLanguage: "en-US,en;q=0.9",
		TimezoneID:     "America/Chicago",
		Locale:         "en-US",
		ExtraHeaders: map[string]string{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
			"DNT":             "1",
		},
	}
}

// launchArgs are the Chromium flags used by both engines.
func (o *Options) launchArgs() []string {
	return []string{
		"--disable-blink-features=AutomationControlled",
		"--disable-dev-shm-usage",
		"--no-sandbox",
		"--disable-setuid-sandbox",
		"--disable-gpu",
		"--disable-extensions",
		"--disable-infobars",
		fmt.Sprintf("--window-size=%d,%d", o.ViewportWidth, o.ViewportHeight),
		"--user-agent=" + o.UserAgent,
	}
}

func New(opts *Options) (*Browser, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright: %w", err)
	}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
		Args:     opts.launchArgs(),
	}

	if opts.ProxyServer != "" {
		launchOpts.Proxy = &playwright.Proxy{
			Server: opts.ProxyServer,
		}
	}

	browser, err := pw.Chromium.Launch(launchOpts)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	headers := map[string]string{}
	for k, v := range opts.ExtraHeaders {
		headers[k] = v
	}
	if opts.AcceptLanguage != "" {
		headers["Accept-Language"] = opts.AcceptLanguage
	}

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent:         playwright.String(opts.UserAgent),
		AcceptDownloads:   playwright.Bool(false),
		JavaScriptEnabled: playwright.Bool(true),
		Locale:            playwright.String(opts.Locale),
		TimezoneId:        playwright.String(opts.TimezoneID),
		Viewport: &playwright.Size{
			Width:  opts.ViewportWidth,
			Height: opts.ViewportHeight,
		},
		ExtraHttpHeaders: headers,
	})
	if err != nil {
		browser.Close()
		pw.Stop()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		context: bctx,
		opts:    opts,
		logger:  slog.Default().With("component", "browser"),
	}, nil
}

func (b *Browser) NewPage() (playwright.Page, error) {
	page, err := b.context.NewPage()
	if err != nil {
		return nil, fmt.Errorf("failed to create new page: %w", err)
	}

	page.SetDefaultTimeout(float64(b.opts.Timeout.Milliseconds()))

	return page, nil
}

func (b *Browser) Close() error {
	var errs []error

	if b.context != nil {
		if err := b.context.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close context: %w", err))
		}
	}

	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
		}
	}

	if b.pw != nil {
		if err := b.pw.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
		}
	}

	return errors.Join(errs...)
}

// NavigateWithRetry loads url with linear backoff. A bot-protection page ends
// the retries immediately with models.ErrBlocked.
func (b *Browser) NavigateWithRetry(page playwright.Page, url string, maxRetries int) error {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			b.logger.Info("retrying navigation", "attempt", i+1, "url", url)
			time.Sleep(time.Duration(i+1) * time.Second)
		}

		_, err := page.Goto(url, playwright.PageGotoOptions{
			WaitUntil: playwright.WaitUntilStateDomcontentloaded,
			Timeout:   playwright.Float(float64(b.opts.Timeout.Milliseconds())),
		})
		if err == nil {
			return b.CheckBotProtection(page)
		}

		lastErr = err
		b.logger.Error("navigation failed", "error", err, "attempt", i+1)
	}

	return fmt.Errorf("failed after %d retries: %w", maxRetries, lastErr)
}

func (b *Browser) CheckBotProtection(page playwright.Page) error {
	title, err := page.Title()
	if err != nil {
		return fmt.Errorf("failed to get page title: %w", err)
	}

	content, err := page.Content()
	if err != nil {
		return fmt.Errorf("failed to get page content: %w", err)
	}

	if IsBlockedPage(title, content) {
		b.logger.Warn("bot protection page detected", "title", title, "url", page.URL())
		return fmt.Errorf("%s: %w", page.URL(), models.ErrBlocked)
	}

	return nil
}

// WaitForAny waits until one of selectors is attached and returns it.
func (b *Browser) WaitForAny(page playwright.Page, selectors []string, timeout time.Duration) (string, error) {
	if len(selectors) == 0 {
		return "", nil
	}

	err := page.Locator(strings.Join(selectors, ", ")).First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
	if err != nil {
		return "", fmt.Errorf("none of %d selectors appeared: %w", len(selectors), err)
	}

	for _, sel := range selectors {
		if count, err := page.Locator(sel).Count(); err == nil && count > 0 {
			return sel, nil
		}
	}
	return selectors[0], nil
}

// ScrollToBottom scrolls until the document height stops growing so lazy
// loaded cards are present. It returns the number of rounds scrolled.
func (b *Browser) ScrollToBottom(ctx context.Context, page playwright.Page, pause time.Duration, maxRounds int) (int, error) {
	height, err := page.Evaluate(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("failed to read page height: %w", err)
	}
	last := toInt(height)

	rounds := 0
	for rounds < maxRounds {
		if _, err := page.Evaluate(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return rounds, fmt.Errorf("failed to scroll: %w", err)
		}
		rounds++

		if err := sleepCtx(ctx, pause); err != nil {
			return rounds, err
		}

		height, err := page.Evaluate(`() => document.body.scrollHeight`)
		if err != nil {
			return rounds, fmt.Errorf("failed to read page height: %w", err)
		}
		current := toInt(height)
		if current == last {
			break
		}
		last = current
	}

	b.logger.Debug("scrolled page", "rounds", rounds, "height", last)
	return rounds, nil
}

func (b *Browser) HumanizeInteraction(page playwright.Page) error {
	for i := 0; i < 3; i++ {
		x := float64(100 + i*200)
		y := float64(100 + i*150)
		if err := page.Mouse().Move(x, y); err != nil {
			return fmt.Errorf("failed to move mouse: %w", err)
		}
		time.Sleep(time.Millisecond * time.Duration(200+i*100))
	}

	if _, err := page.Evaluate(`() => window.scrollBy(0, Math.random() * 300)`); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	return nil
}

// ClickNext clicks the first enabled next-page control and returns the new
// URL, or "" when there is nothing to click or the URL did not change.
func (b *Browser) ClickNext(page playwright.Page, selectors []string) (string, error) {
	before := page.URL()

	for _, sel := range selectors {
		button := page.Locator(sel).First()

		count, err := button.Count()
		if err != nil || count == 0 {
			continue
		}

		if disabled, err := button.IsDisabled(); err == nil && disabled {
			return "", nil
		}

		b.logger.Debug("clicking next page control", "selector", sel)
		if err := button.Click(); err != nil {
			b.logger.Warn("failed to click next page control", "selector", sel, "error", err)
			continue
		}

		if err := page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
			State: playwright.LoadStateDomcontentloaded,
		}); err != nil {
			return "", fmt.Errorf("waiting after next click: %w", err)
		}
		time.Sleep(2 * time.Second)

		if after := page.URL(); after != before {
			return after, nil
		}
		return "", nil
	}

	return "", nil
}

// Render implements Renderer on a fresh page of the shared context.
func (b *Browser) Render(ctx context.Context, url string, opts RenderOptions) (*Rendered, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page, err := b.NewPage()
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err := b.NavigateWithRetry(page, url, opts.MaxRetries); err != nil {
		return nil, err
	}

	if err := b.HumanizeInteraction(page); err != nil {
		b.logger.Debug("humanize interaction failed", "error", err)
	}

	result := &Rendered{}
	if _, err := b.WaitForAny(page, opts.WaitSelectors, opts.WaitTimeout); err != nil {
		b.logger.Warn("no product cards appeared", "url", url, "error", err)
	} else {
		result.Found = true
	}

	if result.Found {
		if _, err := b.ScrollToBottom(ctx, page, opts.ScrollPause, opts.MaxScrollRounds); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			b.logger.Warn("scrolling failed", "error", err)
		}
	}

	if result.HTML, err = page.Content(); err != nil {
		return nil, fmt.Errorf("failed to get page content: %w", err)
	}
	result.URL = page.URL()
	result.Title, _ = page.Title()

	if result.Found && opts.NeedsClick != nil && opts.NeedsClick(result.HTML) {
		next, err := b.ClickNext(page, opts.NextSelectors)
		if err != nil {
			b.logger.Warn("next page click failed", "error", err)
		}
		result.NextURL = next
	}

	return result, nil
}
