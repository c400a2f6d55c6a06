package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"chainquery/internal/cache"
)

func TestStripTrendsPrefix(t *testing.T) {
	body := []byte(")]}'\n{\"widgets\":[]}")
	if got := string(stripTrendsPrefix(body)); got != `{"widgets":[]}` {
		t.Fatalf("prefix not stripped: %q", got)
	}
	clean := []byte(`{"a":1}`)
	if got := string(stripTrendsPrefix(clean)); got != `{"a":1}` {
		t.Fatalf("clean body mangled: %q", got)
	}
}

func TestAnalyzeTrendsDirections(t *testing.T) {
	rising := []trendsPoint{
		{Value: []float64{10}}, {Value: []float64{10}}, {Value: []float64{10}},
		{Value: []float64{40}}, {Value: []float64{50}}, {Value: []float64{60}},
	}
	analysis := analyzeTrends(rising, []string{"Bitcoin"})
	btc, ok := analysis["Bitcoin"].(map[string]any)
	if !ok {
		t.Fatalf("missing keyword analysis: %v", analysis)
	}
	if btc["direction"] != "strong_increase" {
		t.Fatalf("expected strong_increase, got %v", btc["direction"])
	}
	if btc["current_interest"] != 60.0 || btc["peak_interest"] != 60.0 {
		t.Fatalf("unexpected interest values: %v", btc)
	}

	flat := []trendsPoint{{Value: []float64{50}}, {Value: []float64{50}}, {Value: []float64{50}}}
	analysis = analyzeTrends(flat, []string{"Bitcoin"})
	btc = analysis["Bitcoin"].(map[string]any)
	if btc["direction"] != "neutral" {
		t.Fatalf("expected neutral, got %v", btc["direction"])
	}

	falling := []trendsPoint{
		{Value: []float64{90}}, {Value: []float64{80}}, {Value: []float64{70}},
		{Value: []float64{10}}, {Value: []float64{5}}, {Value: []float64{5}},
	}
	analysis = analyzeTrends(falling, []string{"Bitcoin"})
	btc = analysis["Bitcoin"].(map[string]any)
	if btc["direction"] != "strong_decrease" {
		t.Fatalf("expected strong_decrease, got %v", btc["direction"])
	}
}

func TestGoogleTrendsSearchInterest(t *testing.T) {
	t.Parallel()

	adapter := NewGoogleTrendsAdapter(testTracer(), cache.NewMemoryStore())
	adapter.baseURL = "http://example"
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			switch {
			case strings.Contains(req.URL.Path, "/explore"):
				return jsonResponse(http.StatusOK, `)]}'
{"widgets":[{"id":"TIMESERIES","token":"tok-1","request":{"time":"now 7-d"}},{"id":"RELATED_QUERIES","token":"tok-2"}]}`), nil
			case strings.Contains(req.URL.Path, "/widgetdata/multiline"):
				if req.URL.Query().Get("token") != "tok-1" {
					t.Fatalf("wrong widget token: %s", req.URL.Query().Get("token"))
				}
				return jsonResponse(http.StatusOK, `)]}'
{"default":{"timelineData":[{"time":"1","value":[10,20]},{"time":"2","value":[30,40]}]}}`), nil
			default:
				t.Fatalf("unexpected path: %s", req.URL.Path)
				return nil, nil
			}
		}),
	}

	data, err := adapter.Execute(context.Background(), "google_trends", map[string]any{
		"keywords": []any{"Bitcoin", "Ethereum"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if HasError(data) {
		t.Fatalf("unexpected error payload: %v", data)
	}
	analysis, ok := data["trend_analysis"].(map[string]any)
	if !ok {
		t.Fatalf("missing analysis: %v", data)
	}
	if _, ok := analysis["Bitcoin"]; !ok {
		t.Fatalf("per-keyword analysis missing: %v", analysis)
	}
	if _, ok := analysis["Ethereum"]; !ok {
		t.Fatalf("per-keyword analysis missing: %v", analysis)
	}
}

func TestGoogleTrendsNoTimeseriesWidget(t *testing.T) {
	t.Parallel()

	adapter := NewGoogleTrendsAdapter(testTracer(), cache.NewMemoryStore())
	adapter.baseURL = "http://example"
	adapter.retry = fastRetry(2)
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `)]}'
{"widgets":[]}`), nil
		}),
	}

	data, err := adapter.Execute(context.Background(), "search_interest", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !HasError(data) {
		t.Fatalf("expected in-band error, got %v", data)
	}
}
