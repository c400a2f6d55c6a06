package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Adapter is the uniform capability contract for one external data source.
// Execute dispatches a semantic operation ("tvl", "token_price", ...) to the
// concrete API calls behind it. Domain failures (bad symbol, missing
// credentials, no data) come back in-band as a payload with an "error" key;
// a returned Go error means the source itself could not be reached, which
// the orchestrator treats as grounds for fallback.
type Adapter interface {
	Name() string
	Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error)
}

// RateLimitError marks a provider 429. It is the only error class the retry
// layer re-attempts; everything else is permanent for a given call.
type RateLimitError struct {
	Source string
}

func (e *RateLimitError) Error() string {
	return e.Source + " rate limit exceeded"
}

func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// Errorf builds an in-band error payload.
func Errorf(format string, args ...any) map[string]any {
	return map[string]any{"error": fmt.Sprintf(format, args...)}
}

// HasError reports whether a payload carries an in-band error. Callers must
// check this even on cache hits, since error payloads may be cached to avoid
// hammering a misbehaving source.
func HasError(data map[string]any) bool {
	if data == nil {
		return true
	}
	_, ok := data["error"]
	return ok
}

type retryPolicy struct {
	maxTries        uint
	initialInterval time.Duration
	maxInterval     time.Duration
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{maxTries: 5, initialInterval: 4 * time.Second, maxInterval: 60 * time.Second}
}

// do runs fn, re-attempting with exponential backoff only while it reports a
// rate limit. Any other error is permanent and returns immediately.
func (rp retryPolicy) do(ctx context.Context, fn func() (map[string]any, error)) (map[string]any, error) {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = rp.initialInterval
	expo.MaxInterval = rp.maxInterval

	return backoff.Retry(ctx, func() (map[string]any, error) {
		data, err := fn()
		if err != nil && !IsRateLimit(err) {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(rp.maxTries))
}

// fetchBody performs a GET and returns the response body. A 429 comes back
// as *RateLimitError so the retry layer can tell it apart from ordinary
// failures.
func fetchBody(ctx context.Context, client *http.Client, source, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for k, vals := range header {
		for _, v := range vals {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Source: source}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s API error %d: %s", source, resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
