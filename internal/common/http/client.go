// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// RetryPolicy bounds the retry loop. MaxRetries counts retries, not attempts.
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   30 * time.Second,
}

// RetryHook observes each retry before the client waits.
type RetryHook func(attempt int, statusCode int, wait time.Duration)

type Client struct {
	httpClient *http.Client
	policy     RetryPolicy
	limiter    *rate.Limiter
	onRetry    RetryHook
}

type Option func(*Client)

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) { c.policy = p }
}

// WithRateLimit paces outgoing attempts, retries included.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

func WithRetryHook(h RetryHook) Option {
	return func(c *Client) { c.onRetry = h }
}

// WithTransport swaps the underlying round tripper.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.httpClient.Transport = rt }
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		policy: DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext sends req, retrying transport failures and retryable statuses
// with exponential backoff. Retry-After on the response takes precedence over
// the computed delay; both are capped at MaxDelay. When retries run out the
// last response is returned as is and the caller maps its status.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	canReplay := req.Body == nil || req.Body == http.NoBody || req.GetBody != nil

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}

		resp, err := c.httpClient.Do(req)
		last := attempt >= c.policy.MaxRetries || !canReplay

		if err != nil {
			if last || ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil, err
			}
			if werr := c.wait(ctx, attempt, 0, c.backoff(attempt)); werr != nil {
				return nil, werr
			}
			continue
		}

		if !IsRetryableStatus(resp.StatusCode) || last {
			return resp, nil
		}

		wait := c.backoff(attempt)
		if ra, ok := RetryAfter(resp); ok {
			wait = c.capped(ra)
		}
		drain(resp)

		if werr := c.wait(ctx, attempt, resp.StatusCode, wait); werr != nil {
			return nil, werr
		}
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.policy.BaseDelay
	for i := 0; i < attempt && d < c.policy.MaxDelay; i++ {
		d *= 2
	}
	return c.capped(d)
}

func (c *Client) capped(d time.Duration) time.Duration {
	if c.policy.MaxDelay > 0 && d > c.policy.MaxDelay {
		return c.policy.MaxDelay
	}
	return d
}

func (c *Client) wait(ctx context.Context, attempt, status int, d time.Duration) error {
	if c.onRetry != nil {
		c.onRetry(attempt+1, status, d)
	}
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

// IsRetryableStatus reports whether a response status is worth retrying.
func IsRetryableStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return true
	}
	return code >= 500 && code <= 599
}

// RetryAfter parses the Retry-After header as delay-seconds or an HTTP date.
func RetryAfter(resp *http.Response) (time.Duration, bool) {
	if resp == nil {
		return 0, false
	}
	ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if ra == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(ra); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if when, err := http.ParseTime(ra); err == nil {
		d := time.Until(when)
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
