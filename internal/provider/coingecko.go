package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"chainquery/internal/cache"

	"go.opentelemetry.io/otel/trace"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoAdapter fetches token prices and market data from the CoinGecko
// free API, with built-in rate limiting (8 requests per minute, one token
// every 7.5 seconds) to stay inside the free tier.
type CoinGeckoAdapter struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	cache   cache.Store
	limiter *RateLimiter
	retry   retryPolicy
}

func NewCoinGeckoAdapter(tracer trace.Tracer, store cache.Store) *CoinGeckoAdapter {
	return &CoinGeckoAdapter{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: coingeckoBaseURL,
		tracer:  tracer,
		cache:   store,
		limiter: NewRateLimiter(8, 7500*time.Millisecond),
		retry:   defaultRetryPolicy(),
	}
}

func (p *CoinGeckoAdapter) Name() string { return "coingecko" }

func (p *CoinGeckoAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "coingecko.execute")
	defer span.End()

	switch operation {
	case "token_price", "simple_price", "market_data":
		tokenIDs := asStringSlice(params["token_ids"])
		if len(tokenIDs) == 0 {
			tokenIDs = []string{"bitcoin"}
		}
		vsCurrencies := asStringSlice(params["vs_currencies"])
		if len(vsCurrencies) == 0 {
			vsCurrencies = []string{"usd"}
		}
		return p.simplePrice(ctx, tokenIDs, vsCurrencies)
	case "token_metrics", "token_data":
		tokenID := asString(params["token_id"])
		if tokenID == "" {
			tokenID = "bitcoin"
		}
		return p.tokenData(ctx, tokenID)
	default:
		return Errorf("unsupported operation for coingecko: %s", operation), nil
	}
}

// simplePrice returns current prices for a set of tokens in one call.
// Real-time data, so it lands in the hot tier.
func (p *CoinGeckoAdapter) simplePrice(ctx context.Context, tokenIDs, vsCurrencies []string) (map[string]any, error) {
	sorted := append([]string(nil), tokenIDs...)
	sort.Strings(sorted)
	key := cache.Key(p.Name(), "simple_price", map[string]any{"token_ids": sorted, "vs_currencies": vsCurrencies})
	if cached, ok := p.cache.Get(ctx, key, cache.TierHot); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		endpoint := fmt.Sprintf(
			"%s/simple/price?ids=%s&vs_currencies=%s&include_24hr_vol=true&include_24hr_change=true&include_market_cap=true",
			p.baseURL, url.QueryEscape(strings.Join(tokenIDs, ",")), url.QueryEscape(strings.Join(vsCurrencies, ",")))
		body, err := fetchBody(ctx, p.client, p.Name(), endpoint, nil)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("parse prices: %w", err)
		}
		return out, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("coingecko: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierHot)
	return data, nil
}

// tokenData returns the full market payload for a single token: price,
// market cap, volume, and community metrics.
func (p *CoinGeckoAdapter) tokenData(ctx context.Context, tokenID string) (map[string]any, error) {
	key := cache.Key(p.Name(), "token_data", map[string]any{"token_id": tokenID})
	if cached, ok := p.cache.Get(ctx, key, cache.TierHot); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
		endpoint := fmt.Sprintf(
			"%s/coins/%s?localization=false&tickers=false&community_data=true&developer_data=false",
			p.baseURL, url.PathEscape(tokenID))
		body, err := fetchBody(ctx, p.client, p.Name(), endpoint, nil)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("parse token data for %s: %w", tokenID, err)
		}
		return out, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("coingecko: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierHot)
	return data, nil
}
