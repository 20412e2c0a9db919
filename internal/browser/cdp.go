package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/maltedev/target-product-scraper/internal/models"
)

// CDPRenderer renders pages through chromedp. It needs only a local Chrome
// install, no playwright driver download.
type CDPRenderer struct {
	allocCtx      context.Context
	cancelAlloc   context.CancelFunc
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	opts          *Options
	logger        *slog.Logger
}

var _ Renderer = (*CDPRenderer)(nil)
var _ Renderer = (*Browser)(nil)

func NewCDPRenderer(opts *Options) (*CDPRenderer, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(opts.UserAgent),
		chromedp.WindowSize(opts.ViewportWidth, opts.ViewportHeight),
	)
	if opts.ProxyServer != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.ProxyServer))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	return &CDPRenderer{
		allocCtx:      allocCtx,
		cancelAlloc:   cancelAlloc,
		browserCtx:    browserCtx,
		cancelBrowser: cancelBrowser,
		opts:          opts,
		logger:        slog.Default().With("component", "cdp_renderer"),
	}, nil
}

func (r *CDPRenderer) Render(ctx context.Context, url string, opts RenderOptions) (*Rendered, error) {
	tabCtx, cancelTab := chromedp.NewContext(r.browserCtx)
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, r.opts.Timeout+opts.WaitTimeout+
		opts.ScrollPause*time.Duration(opts.MaxScrollRounds+2))
	defer cancelTimeout()

	// Tab contexts descend from the browser, not the caller, so cancellation
	// is forwarded by hand.
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	var title string
	if err := chromedp.Run(tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Title(&title),
	); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to navigate to %s: %w", url, err)
	}

	result := &Rendered{Title: title}

	if len(opts.WaitSelectors) > 0 {
		waitCtx, cancelWait := context.WithTimeout(tabCtx, opts.WaitTimeout)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(strings.Join(opts.WaitSelectors, ", "), chromedp.ByQuery))
		cancelWait()
		if err != nil {
			r.logger.Warn("no product cards appeared", "url", url, "error", err)
		} else {
			result.Found = true
		}
	}

	if result.Found {
		if err := r.scrollToBottom(tabCtx, opts); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Warn("scrolling failed", "error", err)
		}
	}

	if err := chromedp.Run(tabCtx,
		chromedp.OuterHTML("html", &result.HTML, chromedp.ByQuery),
		chromedp.Location(&result.URL),
	); err != nil {
		return nil, fmt.Errorf("failed to read rendered page: %w", err)
	}

	if IsBlockedPage(result.Title, result.HTML) {
		return nil, fmt.Errorf("%s: %w", result.URL, models.ErrBlocked)
	}

	if result.Found && opts.NeedsClick != nil && opts.NeedsClick(result.HTML) {
		result.NextURL = r.clickNext(tabCtx, opts, result.URL)
	}

	return result, nil
}

func (r *CDPRenderer) scrollToBottom(ctx context.Context, opts RenderOptions) error {
	var last int
	if err := chromedp.Run(ctx, chromedp.Evaluate(`document.body.scrollHeight`, &last)); err != nil {
		return err
	}

	for round := 0; round < opts.MaxScrollRounds; round++ {
		var current int
		err := chromedp.Run(ctx,
			chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight)`, nil),
			chromedp.Sleep(opts.ScrollPause),
			chromedp.Evaluate(`document.body.scrollHeight`, &current),
		)
		if err != nil {
			return err
		}
		if current == last {
			return nil
		}
		last = current
	}
	return nil
}

func (r *CDPRenderer) clickNext(ctx context.Context, opts RenderOptions, before string) string {
	for _, sel := range opts.NextSelectors {
		var clickable bool
		js := `(() => { const el = document.querySelector(` + strconv.Quote(sel) + `); return !!el && !el.disabled; })()`
		if err := chromedp.Run(ctx, chromedp.Evaluate(js, &clickable)); err != nil || !clickable {
			continue
		}

		var after string
		err := chromedp.Run(ctx,
			chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible),
			chromedp.Sleep(opts.ScrollPause),
			chromedp.Location(&after),
		)
		if err != nil {
			r.logger.Warn("failed to click next page control", "selector", sel, "error", err)
			continue
		}
		if after != before {
			return after
		}
		return ""
	}
	return ""
}

func (r *CDPRenderer) Close() error {
	r.cancelBrowser()
	r.cancelAlloc()
	return nil
}
