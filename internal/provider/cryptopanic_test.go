package provider

import (
	"context"
	"net/http"
	"testing"

	"chainquery/internal/cache"
)

func TestSummarizeVotes(t *testing.T) {
	posts := []any{
		map[string]any{"votes": map[string]any{"positive": 10.0, "negative": 2.0}},
		map[string]any{"votes": map[string]any{"positive": 5.0, "negative": 8.0}},
		map[string]any{"votes": map[string]any{"positive": 3.0, "negative": 3.0}},
		map[string]any{"votes": map[string]any{"positive": 7.0, "negative": 1.0}},
	}

	summary := summarizeVotes(posts)
	dist := summary["distribution"].(map[string]int)
	if dist["positive"] != 2 || dist["negative"] != 1 || dist["neutral"] != 1 {
		t.Fatalf("unexpected distribution: %v", dist)
	}
	// (2 - 1) / 4 * 100
	if summary["sentiment_score"] != 25.0 {
		t.Fatalf("unexpected score: %v", summary["sentiment_score"])
	}
	if summary["total_posts"] != 4 {
		t.Fatalf("unexpected total: %v", summary["total_posts"])
	}
}

func TestSummarizeVotesEmpty(t *testing.T) {
	summary := summarizeVotes(nil)
	if summary["sentiment_score"] != 0.0 || summary["total_posts"] != 0 {
		t.Fatalf("unexpected empty summary: %v", summary)
	}
}

func TestCryptoPanicNewsSentiment(t *testing.T) {
	t.Parallel()

	adapter := NewCryptoPanicAdapter(testTracer(), cache.NewMemoryStore(), "token-1")
	adapter.baseURL = "http://example"
	adapter.client = &http.Client{
		Transport: roundTripFunc(func(req *http.Request) (*http.Response, error) {
			q := req.URL.Query()
			if q.Get("currencies") != "BTC,ETH" {
				t.Fatalf("unexpected currencies: %s", q.Get("currencies"))
			}
			if q.Get("auth_token") != "token-1" {
				t.Fatalf("auth token not forwarded")
			}
			return jsonResponse(http.StatusOK,
				`{"results":[{"title":"up","votes":{"positive":4,"negative":0}},{"title":"down","votes":{"positive":0,"negative":3}}]}`), nil
		}),
	}

	data, err := adapter.Execute(context.Background(), "news_sentiment", nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	summary, ok := data["sentiment_summary"].(map[string]any)
	if !ok {
		t.Fatalf("sentiment summary missing: %v", data)
	}
	if summary["sentiment_score"] != 0.0 {
		t.Fatalf("unexpected score: %v", summary["sentiment_score"])
	}
}
