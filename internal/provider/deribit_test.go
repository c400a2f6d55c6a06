package provider

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"chainquery/internal/cache"
)

func TestSummarizeOptions(t *testing.T) {
	instruments := []deribitInstrument{
		{InstrumentName: "BTC-27MAR26-60000-P", Volume: 120, OpenInterest: 500, MarkIV: 55},
		{InstrumentName: "BTC-27MAR26-60000-C", Volume: 80, OpenInterest: 400, MarkIV: 65},
		{InstrumentName: "BTC-27MAR26-70000-C", Volume: 20, OpenInterest: 100},
	}

	summary := summarizeOptions("BTC", instruments)
	if summary["put_call_ratio"] != 1.2 {
		t.Fatalf("unexpected put/call ratio: %v", summary["put_call_ratio"])
	}
	if summary["put_call_oi_ratio"] != 1.0 {
		t.Fatalf("unexpected OI ratio: %v", summary["put_call_oi_ratio"])
	}
	if summary["avg_implied_vol"] != 60.0 {
		t.Fatalf("unexpected IV: %v", summary["avg_implied_vol"])
	}
	// ratio 1.2 sits on the neutral/bearish boundary, not above it
	if summary["market_sentiment"] != "neutral" {
		t.Fatalf("unexpected sentiment: %v", summary["market_sentiment"])
	}
	if summary["instrument_count"] != 3 {
		t.Fatalf("unexpected count: %v", summary["instrument_count"])
	}
}

func TestSummarizeOptionsSentimentBands(t *testing.T) {
	bearish := summarizeOptions("BTC", []deribitInstrument{
		{InstrumentName: "BTC-1JAN27-50000-P", Volume: 130},
		{InstrumentName: "BTC-1JAN27-50000-C", Volume: 100},
	})
	if bearish["market_sentiment"] != "bearish" {
		t.Fatalf("expected bearish, got %v", bearish["market_sentiment"])
	}

	bullish := summarizeOptions("ETH", []deribitInstrument{
		{InstrumentName: "ETH-1JAN27-4000-P", Volume: 10},
		{InstrumentName: "ETH-1JAN27-4000-C", Volume: 100},
	})
	if bullish["market_sentiment"] != "bullish" {
		t.Fatalf("expected bullish, got %v", bullish["market_sentiment"])
	}

	empty := summarizeOptions("BTC", nil)
	if empty["put_call_ratio"] != 0.0 || empty["instrument_count"] != 0 {
		t.Fatalf("unexpected empty summary: %v", empty)
	}
}

func TestDeribitOptionsData(t *testing.T) {
	t.Parallel()

	adapter := NewDeribitAdapter(testTracer(), cache.NewMemoryStore())
	adapter.baseURL = "http://example"

	calls := 0
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			calls++
			if !strings.Contains(req.URL.Path, "/public/get_book_summary_by_currency") {
				t.Fatalf("unexpected path: %s", req.URL.Path)
			}
			if req.URL.Query().Get("currency") != "ETH" {
				t.Fatalf("unexpected currency: %s", req.URL.Query().Get("currency"))
			}
			return jsonResponse(http.StatusOK, `{"result":[
				{"instrument_name":"ETH-26DEC26-4000-P","volume":50,"open_interest":200,"mark_iv":70},
				{"instrument_name":"ETH-26DEC26-4000-C","volume":100,"open_interest":300,"mark_iv":68}
			]}`), nil
		}),
	}

	data, err := adapter.Execute(context.Background(), "options_data", map[string]any{"currency": "eth"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data["currency"] != "ETH" || data["market_sentiment"] != "bullish" {
		t.Fatalf("unexpected payload: %v", data)
	}

	// Hot cache serves the second call.
	if _, err := adapter.Execute(context.Background(), "options_metrics", map[string]any{"currency": "ETH"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", calls)
	}
}
