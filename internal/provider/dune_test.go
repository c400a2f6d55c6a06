package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"chainquery/internal/cache"
)

func newTestDune(transport roundTripFunc) *DuneAdapter {
	adapter := NewDuneAdapter(testTracer(), cache.NewMemoryStore(), "test-key")
	adapter.baseURL = "http://example"
	adapter.retry = fastRetry(3)
	adapter.pollInterval = time.Millisecond
	adapter.client = &http.Client{Transport: transport}
	return adapter
}

func TestDuneMissingAPIKey(t *testing.T) {
	t.Parallel()

	adapter := NewDuneAdapter(testTracer(), cache.NewMemoryStore(), "")
	data, err := adapter.Execute(context.Background(), "whale_tracking", map[string]any{"query_id": 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !HasError(data) {
		t.Fatalf("expected in-band error without credentials, got %v", data)
	}
}

func TestDuneMissingQueryID(t *testing.T) {
	t.Parallel()

	adapter := newTestDune(func(req *http.Request) (*http.Response, error) {
		t.Fatal("no network call expected")
		return nil, nil
	})
	data, err := adapter.Execute(context.Background(), "historical_analytics", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !HasError(data) {
		t.Fatalf("expected in-band error for missing query_id, got %v", data)
	}
}

func TestDuneExecutePollFetch(t *testing.T) {
	t.Parallel()

	statusCalls := 0
	adapter := newTestDune(func(req *http.Request) (*http.Response, error) {
		if req.Header.Get("X-Dune-API-Key") != "test-key" {
			t.Fatalf("missing API key header")
		}
		switch {
		case req.Method == http.MethodPost && strings.HasSuffix(req.URL.Path, "/query/42/execute"):
			return jsonResponse(http.StatusOK, `{"execution_id":"exec-1"}`), nil
		case strings.HasSuffix(req.URL.Path, "/execution/exec-1/status"):
			statusCalls++
			if statusCalls < 3 {
				return jsonResponse(http.StatusOK, `{"state":"QUERY_STATE_EXECUTING"}`), nil
			}
			return jsonResponse(http.StatusOK, `{"state":"QUERY_STATE_COMPLETED"}`), nil
		case strings.HasSuffix(req.URL.Path, "/execution/exec-1/results"):
			return jsonResponse(http.StatusOK, `{"result":{"rows":[{"whale":"0xabc"}]}}`), nil
		default:
			t.Fatalf("unexpected request: %s %s", req.Method, req.URL.Path)
			return nil, nil
		}
	})

	data, err := adapter.Execute(context.Background(), "whale_tracking", map[string]any{"query_id": 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if HasError(data) {
		t.Fatalf("unexpected error payload: %v", data)
	}
	if statusCalls != 3 {
		t.Fatalf("expected 3 status polls, got %d", statusCalls)
	}
	if _, ok := data["result"]; !ok {
		t.Fatalf("results payload missing: %v", data)
	}
}

func TestDunePollRateLimitRetried(t *testing.T) {
	t.Parallel()

	statusCalls := 0
	adapter := newTestDune(func(req *http.Request) (*http.Response, error) {
		switch {
		case req.Method == http.MethodPost:
			return jsonResponse(http.StatusOK, `{"execution_id":"exec-4"}`), nil
		case strings.HasSuffix(req.URL.Path, "/execution/exec-4/status"):
			statusCalls++
			// Throttled twice mid-poll; the backoff policy should absorb
			// both before the completed state comes back.
			if statusCalls < 3 {
				return jsonResponse(http.StatusTooManyRequests, `{}`), nil
			}
			return jsonResponse(http.StatusOK, `{"state":"QUERY_STATE_COMPLETED"}`), nil
		default:
			return jsonResponse(http.StatusOK, `{"result":{"rows":[]}}`), nil
		}
	})

	data, err := adapter.Execute(context.Background(), "historical_analytics", map[string]any{"query_id": 11})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if HasError(data) {
		t.Fatalf("unexpected error payload: %v", data)
	}
	if statusCalls != 3 {
		t.Fatalf("expected 3 status calls, got %d", statusCalls)
	}
}

func TestDuneResultsRateLimitRetried(t *testing.T) {
	t.Parallel()

	resultCalls := 0
	adapter := newTestDune(func(req *http.Request) (*http.Response, error) {
		switch {
		case req.Method == http.MethodPost:
			return jsonResponse(http.StatusOK, `{"execution_id":"exec-5"}`), nil
		case strings.HasSuffix(req.URL.Path, "/execution/exec-5/status"):
			return jsonResponse(http.StatusOK, `{"state":"QUERY_STATE_COMPLETED"}`), nil
		default:
			resultCalls++
			if resultCalls == 1 {
				return jsonResponse(http.StatusTooManyRequests, `{}`), nil
			}
			return jsonResponse(http.StatusOK, `{"result":{"rows":[{"tx":"0xdef"}]}}`), nil
		}
	})

	data, err := adapter.Execute(context.Background(), "whale_tracking", map[string]any{"query_id": 13})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if HasError(data) {
		t.Fatalf("unexpected error payload: %v", data)
	}
	if resultCalls != 2 {
		t.Fatalf("expected a retried results fetch, got %d calls", resultCalls)
	}
}

func TestDuneFailedExecution(t *testing.T) {
	t.Parallel()

	adapter := newTestDune(func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodPost {
			return jsonResponse(http.StatusOK, `{"execution_id":"exec-2"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"state":"QUERY_STATE_FAILED"}`), nil
	})

	data, err := adapter.Execute(context.Background(), "complex_analytics", map[string]any{"query_id": 7})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !HasError(data) {
		t.Fatalf("expected in-band failure, got %v", data)
	}
}

func TestDunePollTimeout(t *testing.T) {
	t.Parallel()

	adapter := newTestDune(func(req *http.Request) (*http.Response, error) {
		if req.Method == http.MethodPost {
			return jsonResponse(http.StatusOK, `{"execution_id":"exec-3"}`), nil
		}
		return jsonResponse(http.StatusOK, `{"state":"QUERY_STATE_PENDING"}`), nil
	})
	adapter.maxPolls = 3

	data, err := adapter.Execute(context.Background(), "historical_analytics", map[string]any{"query_id": 9})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg, _ := data["error"].(string)
	if !strings.Contains(msg, "timeout") {
		t.Fatalf("expected timeout payload, got %v", data)
	}
}

func TestDuneLatestResult(t *testing.T) {
	t.Parallel()

	adapter := newTestDune(func(req *http.Request) (*http.Response, error) {
		if !strings.HasSuffix(req.URL.Path, "/query/42/results") {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"result":{"rows":[]}}`), nil
	})

	data, err := adapter.Execute(context.Background(), "analytics", map[string]any{"query_id": 42, "use_latest": true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if HasError(data) {
		t.Fatalf("unexpected error payload: %v", data)
	}
}
