// Package fetcher provides a rate-limited, retrying HTTP client shared by
// the crawler and the external API clients.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/outreach-mate/outreach-cli/internal/resilience"
)

// Options configures the HTTP client.
type Options struct {
	UserAgent string
	Timeout   time.Duration
	// MaxRetries is the number of attempts per request, including the first.
	MaxRetries int
	// RequestsPerSecond is the steady-state per-host budget.
	RequestsPerSecond float64
	Burst             int
	// MaxBodyBytes caps how much of a response body Get will read.
	MaxBodyBytes int64
}

// DefaultOptions returns the crawl-friendly defaults: one request per
// second per host, three attempts, 2 MiB body cap.
func DefaultOptions() Options {
	return Options{
		UserAgent:         "Mozilla/5.0 (compatible; OutreachMate/1.0)",
		Timeout:           30 * time.Second,
		MaxRetries:        3,
		RequestsPerSecond: 1,
		Burst:             2,
		MaxBodyBytes:      2 << 20,
	}
}

// AdaptiveLimiter wraps a rate.Limiter with adaptive rate adjustment.
// On success it increases the rate by 20% (up to 2x initial).
// On 429 it halves the rate (down to initial/4 minimum).
type AdaptiveLimiter struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	initialRate rate.Limit
	maxRate     rate.Limit
	minRate     rate.Limit
	currentRate rate.Limit
}

// NewAdaptiveLimiter creates an adaptive rate limiter that auto-tunes.
func NewAdaptiveLimiter(initialRate rate.Limit, burst int) *AdaptiveLimiter {
	return &AdaptiveLimiter{
		limiter:     rate.NewLimiter(initialRate, burst),
		initialRate: initialRate,
		maxRate:     initialRate * 2,
		minRate:     initialRate / 4,
		currentRate: initialRate,
	}
}

// Wait blocks until the limiter allows an event.
func (a *AdaptiveLimiter) Wait(ctx context.Context) error {
	return a.limiter.Wait(ctx)
}

// OnSuccess increases the rate by 20%, up to 2x initial.
func (a *AdaptiveLimiter) OnSuccess() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 1.2
	if newRate > a.maxRate {
		newRate = a.maxRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
}

// OnRateLimit halves the rate on 429 responses.
func (a *AdaptiveLimiter) OnRateLimit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	newRate := a.currentRate * 0.5
	if newRate < a.minRate {
		newRate = a.minRate
	}
	a.currentRate = newRate
	a.limiter.SetLimit(newRate)
	zap.L().Warn("adaptive rate limit: reducing rate after 429",
		zap.Float64("new_rate", float64(newRate)),
	)
}

// Limit returns the current rate limit.
func (a *AdaptiveLimiter) Limit() rate.Limit {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.currentRate
}

// Page is a fetched HTML document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        string
}

// IsHTML reports whether the page content type is HTML.
func (p *Page) IsHTML() bool {
	return strings.Contains(p.ContentType, "text/html") ||
		strings.Contains(p.ContentType, "application/xhtml")
}

// RateLimitedClient is an HTTP client with per-host adaptive rate
// limiting and retry on transient failures. Safe for concurrent use.
type RateLimitedClient struct {
	client *http.Client
	opts   Options

	mu       sync.Mutex
	limiters map[string]*AdaptiveLimiter
}

// NewRateLimitedClient creates a client with the given options. Zero
// values fall back to DefaultOptions.
func NewRateLimitedClient(opts Options) *RateLimitedClient {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.Timeout == 0 {
		opts.Timeout = def.Timeout
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = def.MaxRetries
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = def.RequestsPerSecond
	}
	if opts.Burst <= 0 {
		opts.Burst = def.Burst
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = def.MaxBodyBytes
	}

	transport := &http.Transport{
		MaxIdleConnsPerHost: 10,
		MaxConnsPerHost:     20,
		IdleConnTimeout:     90 * time.Second,
	}
	return &RateLimitedClient{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		opts:     opts,
		limiters: make(map[string]*AdaptiveLimiter),
	}
}

// limiterFor returns the limiter for the given host, creating one lazily.
// Every host gets its own token bucket so one slow site never throttles
// another.
func (c *RateLimitedClient) limiterFor(host string) *AdaptiveLimiter {
	c.mu.Lock()
	defer c.mu.Unlock()
	lim, ok := c.limiters[host]
	if !ok {
		lim = NewAdaptiveLimiter(rate.Limit(c.opts.RequestsPerSecond), c.opts.Burst)
		c.limiters[host] = lim
	}
	return lim
}

// Do executes the request with rate limiting and retries. Transient
// failures (network errors, 408/429/5xx) are retried with exponential
// backoff and jitter; everything else returns immediately.
func (c *RateLimitedClient) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	lim := c.limiterFor(req.URL.Host)

	cfg := resilience.DefaultRetryConfig()
	cfg.MaxAttempts = c.opts.MaxRetries
	cfg.OnRetry = resilience.RetryLogger("http", req.URL.Host)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*http.Response, error) {
		if err := lim.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "rate limiter wait")
		}

		cloned := req.Clone(ctx)
		if cloned.Header.Get("User-Agent") == "" {
			cloned.Header.Set("User-Agent", c.opts.UserAgent)
		}

		resp, err := c.client.Do(cloned)
		if err != nil {
			return nil, eris.Wrap(err, "execute request")
		}

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusTooManyRequests {
				lim.OnRateLimit()
			}
			return nil, resilience.NewTransientError(
				eris.Errorf("http %d from %s", resp.StatusCode, req.URL.String()),
				resp.StatusCode,
			)
		}

		lim.OnSuccess()
		return resp, nil
	})
}

// Get fetches a single page and reads its body up to MaxBodyBytes.
// Non-2xx terminal statuses return a PermanentError carrying the status.
func (c *RateLimitedClient) Get(ctx context.Context, rawURL string) (*Page, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return nil, resilience.NewPermanentError(eris.Wrapf(err, "invalid url %q", rawURL), 0)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.NewPermanentError(
			eris.Errorf("http %d from %s", resp.StatusCode, rawURL),
			resp.StatusCode,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "read body")
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        string(body),
	}, nil
}
