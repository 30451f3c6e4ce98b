// internal/common/http/client.go
package http

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// RetryPolicy controls DoWithRetry. Backoff doubles after every attempt.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
}

type Client struct {
	httpClient *http.Client
	retry      RetryPolicy
}

func NewClient(timeout time.Duration) *Client {
	return NewClientWithRetry(timeout, RetryPolicy{})
}

func NewClientWithRetry(timeout time.Duration, retry RetryPolicy) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retry: retry,
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}

// DoWithContext sends req under ctx and propagates the active trace context.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	return c.httpClient.Do(req)
}

// DoWithRetry rebuilds and sends the request until it succeeds, returns a
// non-retryable status, or the retry budget is spent. newReq is called per
// attempt so request bodies can be replayed.
func (c *Client) DoWithRetry(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error
	backoff := c.retry.Backoff

	for attempt := 0; attempt <= c.retry.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}

		resp, err := c.DoWithContext(ctx, req)
		if err != nil {
			lastErr = err
			if !IsRetryableError(err) {
				return nil, err
			}
			continue
		}

		if !IsRetryableStatus(resp.StatusCode) || attempt == c.retry.MaxRetries {
			return resp, nil
		}
		resp.Body.Close()
		lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.retry.MaxRetries+1, lastErr)
}

// IsRetryableStatus reports 5xx and 429 responses as transient.
func IsRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// IsRetryableError reports transport errors worth another attempt.
func IsRetryableError(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
