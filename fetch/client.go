package fetch

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/dnldd/marketdata/ratelimit"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

// client wraps the http plumbing shared by all provider adapters: per
// provider request timeouts, rate limit budget consumption and bounded
// retries with exponential backoff on transient failures.
type client struct {
	httpc      http.Client
	limiter    *ratelimit.Limiter
	provider   string
	maxRetries int
	logger     *zerolog.Logger

	sleep func(time.Duration)
}

func newClient(provider string, timeout time.Duration, limiter *ratelimit.Limiter, maxRetries int, logger *zerolog.Logger) *client {
	return &client{
		httpc:      http.Client{Timeout: timeout},
		limiter:    limiter,
		provider:   provider,
		maxRetries: maxRetries,
		logger:     logger,
		sleep:      time.Sleep,
	}
}

// formURL creates full urls including parameters for the api.
func (c *client) formURL(base string, path string, params string) string {
	var buf strings.Builder
	buf.WriteString(base)
	buf.WriteString(path)
	if params != "" {
		buf.WriteString("?")
		buf.WriteString(params)
	}

	return buf.String()
}

// retryable asserts whether the provided status code indicates a transient
// failure worth retrying.
func retryable(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

// getJSON performs a rate limited GET against the provided url and returns
// the response body. Network errors, timeouts and transient status codes are
// retried up to the configured maximum with exponential backoff.
func (c *client) getJSON(ctx context.Context, url string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Second * time.Duration(1<<(attempt-1))
			if c.logger != nil {
				c.logger.Debug().Msgf("%s request failed, retrying in %s: %v",
					c.provider, delay, lastErr)
			}
			c.sleep(delay)
		}

		c.limiter.Wait(c.provider)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("creating %s request: %w", c.provider, err)
		}

		resp, err := c.httpc.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("fetching %s data: %w", c.provider, ctx.Err())
			}

			lastErr = err
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("reading response body: %w", err)
			continue
		}

		if resp.StatusCode != http.StatusOK {
			statusErr := fmt.Errorf("%s responded with status %d", c.provider, resp.StatusCode)
			if !retryable(resp.StatusCode) {
				return nil, statusErr
			}

			lastErr = statusErr
			continue
		}

		return body, nil
	}

	return nil, fmt.Errorf("fetching %s data: %w", c.provider, lastErr)
}

// numField extracts a numeric field from the provided json result. Missing
// or non-numeric fields resolve to NaN so downstream validation can account
// for them as missing cells.
func numField(result gjson.Result, path string) float64 {
	field := result.Get(path)
	if !field.Exists() || field.Type == gjson.Null {
		return math.NaN()
	}

	if field.Type == gjson.String && field.String() == "" {
		return math.NaN()
	}

	return field.Float()
}

// numAt extracts a numeric element from the provided positional json array,
// resolving missing elements to NaN.
func numAt(row []gjson.Result, idx int) float64 {
	if idx >= len(row) {
		return math.NaN()
	}
	if row[idx].Type == gjson.Null {
		return math.NaN()
	}

	return row[idx].Float()
}
