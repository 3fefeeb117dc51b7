package catalog

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

const (
	defaultMaxRetries = 3
	defaultBackoffMs  = 500
)

// get issues a GET for endpoint, retrying transport errors, 429 and 5xx.
// Each attempt builds a fresh request. A backoff that would outlast the
// caller's deadline is not slept: the call fails with
// context.DeadlineExceeded right away so the resolver can move on.
func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("catalog adapter: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("catalog adapter: request canceled: %w", ctx.Err())
		}
		if err == nil && !retryableStatus(resp.StatusCode) {
			return resp, nil
		}

		wait := c.baseBackoff << (attempt - 1)
		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			if ra := parseRetryAfter(resp.Header.Get("Retry-After")); ra > 0 {
				wait = ra
			}
			_ = resp.Body.Close()
		}
		if attempt == c.maxRetries {
			break
		}

		c.logger.Warn().Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", c.maxRetries).
			Dur("backoff", wait).
			Str("url", req.URL.Redacted()).
			Msg("catalog request failed, retrying")

		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < wait {
			return nil, fmt.Errorf("catalog adapter: no time left to retry after %v: %w", lastErr, context.DeadlineExceeded)
		}
		if err := sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("catalog adapter: request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// parseRetryAfter reads a Retry-After header in seconds or HTTP-date form.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if when, err := http.ParseTime(v); err == nil {
		return max(time.Until(when), 0)
	}
	return 0
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("catalog adapter: request canceled: %w", ctx.Err())
	case <-t.C:
		return nil
	}
}
