package jupiter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/dexpilot/internal/domain"
)

const (
	defaultBase = "https://api.jup.ag"

	// Free tier allows 60 req/min; stay at ~80% of it.
	priceRatePerSec = 0.8
	quoteRatePerSec = 0.8

	defaultTimeout = 5 * time.Second
	maxRetries     = 2
	baseRetryWait  = 250 * time.Millisecond
)

// Client talks to the Jupiter price and quote APIs with rate limiting and
// retries. It implements ports.PriceSource and ports.QuoteProvider.
type Client struct {
	http         *http.Client
	base         string
	apiKey       string
	priceLimiter *rate.Limiter
	quoteLimiter *rate.Limiter
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sends the key in the x-api-key header.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithTimeout bounds every HTTP request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit overrides the per-endpoint request rate.
func WithRateLimit(perSec float64, burst int) Option {
	return func(c *Client) {
		c.priceLimiter = rate.NewLimiter(rate.Limit(perSec), burst)
		c.quoteLimiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
}

// NewClient creates a Client. An empty base uses the production URL.
func NewClient(base string, opts ...Option) *Client {
	if base == "" {
		base = defaultBase
	}
	c := &Client{
		http:         &http.Client{Timeout: defaultTimeout},
		base:         base,
		priceLimiter: rate.NewLimiter(priceRatePerSec, 3),
		quoteLimiter: rate.NewLimiter(quoteRatePerSec, 3),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get does a GET with rate limiting and retries and decodes JSON into out.
func (c *Client) get(ctx context.Context, limiter *rate.Limiter, url string, out any) error {
	return c.doWithRetry(ctx, limiter, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			req.Header.Set("x-api-key", c.apiKey)
		}
		return c.http.Do(req)
	}, out)
}

// doWithRetry runs fn with exponential backoff. Every failure is wrapped in
// domain.ErrUpstreamUnavailable.
func (c *Client) doWithRetry(ctx context.Context, limiter *rate.Limiter, fn func() (*http.Response, error), out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %v: %w", err, domain.ErrUpstreamUnavailable)
		}

		resp, err := fn()
		if err != nil {
			if attempt == maxRetries || ctx.Err() != nil {
				return fmt.Errorf("request failed after %d attempts: %v: %w", attempt+1, err, domain.ErrUpstreamUnavailable)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("jupiter: rate limited", "attempt", attempt+1)
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d attempts: %w", resp.StatusCode, attempt+1, domain.ErrUpstreamUnavailable)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s: %w", resp.StatusCode, string(body), domain.ErrUpstreamUnavailable)
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %v: %w", err, domain.ErrUpstreamUnavailable)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries: %w", maxRetries, domain.ErrUpstreamUnavailable)
}

// sleep waits with exponential backoff, honoring the context.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
