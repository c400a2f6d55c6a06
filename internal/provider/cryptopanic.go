package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"chainquery/internal/cache"

	"go.opentelemetry.io/otel/trace"
)

const cryptopanicBaseURL = "https://cryptopanic.com/api/v1"

// CryptoPanicAdapter aggregates crypto news and derives a sentiment summary
// from community votes. Works without a token; one raises the rate limits.
type CryptoPanicAdapter struct {
	client   *http.Client
	baseURL  string
	apiToken string
	tracer   trace.Tracer
	cache    cache.Store
	retry    retryPolicy
}

func NewCryptoPanicAdapter(tracer trace.Tracer, store cache.Store, apiToken string) *CryptoPanicAdapter {
	return &CryptoPanicAdapter{
		client:   &http.Client{Timeout: 20 * time.Second},
		baseURL:  cryptopanicBaseURL,
		apiToken: apiToken,
		tracer:   tracer,
		cache:    store,
		retry:    defaultRetryPolicy(),
	}
}

func (p *CryptoPanicAdapter) Name() string { return "cryptopanic" }

func (p *CryptoPanicAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "cryptopanic.execute")
	defer span.End()

	switch operation {
	case "news_sentiment", "news":
		currencies := asStringSlice(params["currencies"])
		if len(currencies) == 0 {
			currencies = []string{"BTC", "ETH"}
		}
		kind := asString(params["kind"])
		if kind == "" {
			kind = "news"
		}
		return p.newsSentiment(ctx, currencies, kind)
	default:
		return Errorf("unsupported operation for cryptopanic: %s", operation), nil
	}
}

func (p *CryptoPanicAdapter) newsSentiment(ctx context.Context, currencies []string, kind string) (map[string]any, error) {
	key := cache.Key(p.Name(), "news_sentiment", map[string]any{"currencies": currencies, "kind": kind})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		query := url.Values{
			"kind":       {kind},
			"public":     {"true"},
			"currencies": {strings.Join(currencies, ",")},
		}
		if p.apiToken != "" {
			query.Set("auth_token", p.apiToken)
		}
		body, err := fetchBody(ctx, p.client, p.Name(), p.baseURL+"/posts/?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("parse cryptopanic response: %w", err)
		}
		return out, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("cryptopanic: %v", err), nil
	}

	posts, _ := data["results"].([]any)
	data["sentiment_summary"] = summarizeVotes(posts)

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}

// summarizeVotes classifies each post by its community vote balance and
// rolls the counts up into an overall score in [-100, 100].
func summarizeVotes(posts []any) map[string]any {
	counts := map[string]int{"positive": 0, "negative": 0, "neutral": 0}
	total := len(posts)
	if total == 0 {
		return map[string]any{
			"sentiment_score": 0.0,
			"distribution":    counts,
			"total_posts":     0,
		}
	}

	for _, raw := range posts {
		post, _ := raw.(map[string]any)
		votes, _ := post["votes"].(map[string]any)
		positive := asFloat(votes["positive"])
		negative := asFloat(votes["negative"])
		switch {
		case positive > negative:
			counts["positive"]++
		case negative > positive:
			counts["negative"]++
		default:
			counts["neutral"]++
		}
	}

	score := float64(counts["positive"]-counts["negative"]) / float64(total) * 100
	return map[string]any{
		"sentiment_score": round2(score),
		"distribution":    counts,
		"total_posts":     total,
		"positive_pct":    round2(float64(counts["positive"]) / float64(total) * 100),
		"negative_pct":    round2(float64(counts["negative"]) / float64(total) * 100),
		"neutral_pct":     round2(float64(counts["neutral"]) / float64(total) * 100),
	}
}
