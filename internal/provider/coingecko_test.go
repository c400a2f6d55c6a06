package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"chainquery/internal/cache"
)

func TestCoinGeckoSimplePrice(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer(), cache.NewMemoryStore())
	adapter.baseURL = "http://example"
	adapter.limiter = NewRateLimiter(10, time.Millisecond)

	calls := 0
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			calls++
			if !strings.Contains(req.URL.Path, "/simple/price") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if ids := req.URL.Query().Get("ids"); !strings.Contains(ids, "bitcoin") {
				t.Fatalf("unexpected ids: %s", ids)
			}
			return jsonResponse(http.StatusOK, `{"bitcoin":{"usd":65000,"usd_market_cap":1.2e12}}`), nil
		}),
	}

	data, err := adapter.Execute(context.Background(), "token_price", map[string]any{
		"token_ids": []any{"ethereum", "bitcoin"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := data["bitcoin"]; !ok {
		t.Fatalf("unexpected payload: %v", data)
	}

	// Same tokens in a different order must hit the same cache entry.
	if _, err := adapter.Execute(context.Background(), "token_price", map[string]any{
		"token_ids": []any{"bitcoin", "ethereum"},
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
}

func TestCoinGeckoTokenData(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer(), cache.NewMemoryStore())
	adapter.baseURL = "http://example"
	adapter.limiter = NewRateLimiter(10, time.Millisecond)
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if !strings.Contains(req.URL.Path, "/coins/solana") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			return jsonResponse(http.StatusOK, `{"id":"solana","market_data":{"current_price":{"usd":150}}}`), nil
		}),
	}

	data, err := adapter.Execute(context.Background(), "token_metrics", map[string]any{"token_id": "solana"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["id"] != "solana" {
		t.Fatalf("unexpected payload: %v", data)
	}
}

func TestCoinGeckoDefaultsToBitcoin(t *testing.T) {
	t.Parallel()

	adapter := NewCoinGeckoAdapter(testTracer(), cache.NewMemoryStore())
	adapter.baseURL = "http://example"
	adapter.limiter = NewRateLimiter(10, time.Millisecond)
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			if ids := req.URL.Query().Get("ids"); ids != "bitcoin" {
				t.Fatalf("expected default bitcoin, got %s", ids)
			}
			return jsonResponse(http.StatusOK, `{"bitcoin":{"usd":1}}`), nil
		}),
	}

	if _, err := adapter.Execute(context.Background(), "market_data", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
