package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"sync/atomic"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"github.com/maltedev/target-product-scraper/internal/models"
	"golang.org/x/time/rate"
)

type Options struct {
	Timeout           time.Duration
	RetryCount        int
	RetryWait         time.Duration
	RequestsPerSecond float64
	Burst             int
	UserAgents        []string
	AcceptLanguage    string
}

func DefaultOptions() Options {
	return Options{
		Timeout:           30 * time.Second,
		RetryCount:        2,
		RetryWait:         time.Second,
		RequestsPerSecond: 1,
		Burst:             2,
		UserAgents: []string{
			"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		},
		AcceptLanguage: "en-US,en;q=0.9",
	}
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusForbidden:
		return models.ErrBlocked
	case http.StatusTooManyRequests:
		return models.ErrRateLimited
	}
	return nil
}

// Client is the shared static HTTP client: one cookie jar, one rate limiter
// and a rotating user agent.
type Client struct {
	http       *resty.Client
	userAgents []string
	next       atomic.Uint64
	logger     *slog.Logger
}

func New(opts Options) (*Client, error) {
	if len(opts.UserAgents) == 0 {
		opts.UserAgents = DefaultOptions().UserAgents
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Burst < 1 {
		opts.Burst = 1
	}

	httpClient := resty.New()
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	httpClient.SetCookieJar(jar)
	httpClient.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(httpClient.GetClient().Transport)

	httpClient.SetTimeout(opts.Timeout)
	httpClient.SetHeaders(map[string]string{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,application/json;q=0.8,*/*;q=0.7",
		"Accept-Language": opts.AcceptLanguage,
		"Cache-Control":   "no-cache",
	})

	httpClient.SetRetryCount(opts.RetryCount)
	httpClient.SetRetryWaitTime(opts.RetryWait)
	httpClient.SetRetryMaxWaitTime(opts.RetryWait * 4)
	httpClient.AddRetryCondition(func(res *resty.Response, err error) bool {
		if err != nil || res == nil {
			return true
		}
		return res.StatusCode() == http.StatusTooManyRequests || res.StatusCode() >= http.StatusInternalServerError
	})

	c := &Client{
		http:       httpClient,
		userAgents: opts.UserAgents,
		logger:     slog.Default().With("component", "fetch"),
	}

	rateLimiter := rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst)
	httpClient.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		if req.Header.Get("User-Agent") == "" {
			req.SetHeader("User-Agent", c.nextUserAgent())
		}
		return rateLimiter.Wait(req.Context())
	})

	return c, nil
}

func (c *Client) nextUserAgent() string {
	i := c.next.Add(1) - 1
	return c.userAgents[i%uint64(len(c.userAgents))]
}

func (c *Client) get(ctx context.Context, url string, query map[string]string, accept string) (*resty.Response, error) {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if accept != "" {
		req.SetHeader("Accept", accept)
	}

	res, err := req.Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	c.logger.Debug("fetched", "url", res.Request.URL, "status", res.StatusCode(), "bytes", len(res.Body()), "duration", res.Time())

	if res.IsError() || res.StatusCode() >= 300 {
		return nil, &StatusError{URL: url, StatusCode: res.StatusCode()}
	}
	return res, nil
}

func (c *Client) GetHTML(ctx context.Context, url string) (string, error) {
	res, err := c.get(ctx, url, nil, "")
	if err != nil {
		return "", err
	}
	return string(res.Body()), nil
}

func (c *Client) GetJSON(ctx context.Context, url string, query map[string]string, out any) error {
	res, err := c.get(ctx, url, query, "application/json")
	if err != nil {
		return err
	}
	if err := json.Unmarshal(res.Body(), out); err != nil {
		return fmt.Errorf("decoding JSON from %s: %w", url, err)
	}
	return nil
}
