package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chainquery/internal/cache"

	"go.opentelemetry.io/otel/trace"
)

const duneBaseURL = "https://api.dune.com/api/v1"

// DuneAdapter runs SQL analytics queries through the Dune API. Executions
// follow a submit, poll, fetch workflow: the poll loop is capped in both
// attempts and wall time so a stuck execution reports an in-band timeout
// instead of blocking the pipeline.
type DuneAdapter struct {
	client       *http.Client
	baseURL      string
	apiKey       string
	tracer       trace.Tracer
	cache        cache.Store
	retry        retryPolicy
	maxPolls     int
	pollInterval time.Duration
}

func NewDuneAdapter(tracer trace.Tracer, store cache.Store, apiKey string) *DuneAdapter {
	return &DuneAdapter{
		client:       &http.Client{Timeout: 30 * time.Second},
		baseURL:      duneBaseURL,
		apiKey:       apiKey,
		tracer:       tracer,
		cache:        store,
		retry:        defaultRetryPolicy(),
		maxPolls:     30,
		pollInterval: 2 * time.Second,
	}
}

func (p *DuneAdapter) Name() string { return "dune" }

func (p *DuneAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "dune.execute")
	defer span.End()

	if p.apiKey == "" {
		// Short-circuit before any network call.
		return Errorf("dune API key not configured"), nil
	}

	switch operation {
	case "historical_analytics", "complex_analytics", "whale_tracking", "analytics":
		queryID := asInt(params["query_id"])
		if queryID == 0 {
			return Errorf("dune query requires 'query_id' parameter"), nil
		}
		queryParams, _ := params["query_params"].(map[string]any)
		if useLatest, _ := params["use_latest"].(bool); useLatest {
			return p.latestResult(ctx, queryID)
		}
		return p.executeQuery(ctx, queryID, queryParams)
	default:
		return Errorf("unsupported operation for dune: %s", operation), nil
	}
}

// executeQuery triggers an execution and polls until it completes or the
// poll budget runs out. Results are historical by nature, so they land in
// the cold tier.
func (p *DuneAdapter) executeQuery(ctx context.Context, queryID int, queryParams map[string]any) (map[string]any, error) {
	key := cache.Key(p.Name(), "execute_query", map[string]any{"query_id": queryID, "query_params": queryParams})
	if cached, ok := p.cache.Get(ctx, key, cache.TierCold); ok {
		return cached, nil
	}

	execution, err := p.retry.do(ctx, func() (map[string]any, error) {
		return p.doRequest(ctx, http.MethodPost, fmt.Sprintf("%s/query/%d/execute", p.baseURL, queryID), queryParams)
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("dune: %v", err), nil
	}

	executionID := asString(execution["execution_id"])
	if executionID == "" {
		return Errorf("dune execution response missing execution_id"), nil
	}

	for attempt := 0; attempt < p.maxPolls; attempt++ {
		select {
		case <-ctx.Done():
			return Errorf("dune query execution timeout"), nil
		case <-time.After(p.pollInterval):
		}

		status, err := p.retry.do(ctx, func() (map[string]any, error) {
			return p.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/execution/%s/status", p.baseURL, executionID), nil)
		})
		if err != nil {
			if IsRateLimit(err) {
				return nil, err
			}
			return Errorf("dune: %v", err), nil
		}

		switch asString(status["state"]) {
		case "QUERY_STATE_COMPLETED":
			results, err := p.retry.do(ctx, func() (map[string]any, error) {
				return p.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/execution/%s/results", p.baseURL, executionID), nil)
			})
			if err != nil {
				if IsRateLimit(err) {
					return nil, err
				}
				return Errorf("dune: %v", err), nil
			}
			p.cache.Set(ctx, key, results, cache.TierCold)
			return results, nil
		case "QUERY_STATE_FAILED":
			return Errorf("dune query execution failed"), nil
		}
	}

	return Errorf("dune query execution timeout"), nil
}

// latestResult fetches the most recent stored execution without triggering
// a new one.
func (p *DuneAdapter) latestResult(ctx context.Context, queryID int) (map[string]any, error) {
	key := cache.Key(p.Name(), "latest_result", map[string]any{"query_id": queryID})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		return p.doRequest(ctx, http.MethodGet, fmt.Sprintf("%s/query/%d/results", p.baseURL, queryID), nil)
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("dune: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}

func (p *DuneAdapter) doRequest(ctx context.Context, method, url string, payload map[string]any) (map[string]any, error) {
	var body io.Reader
	if method == http.MethodPost {
		blob, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Dune-API-Key", p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, &RateLimitError{Source: p.Name()}
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("dune API error %d: %s", resp.StatusCode, string(raw))
	}

	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode dune response: %w", err)
	}
	return out, nil
}
