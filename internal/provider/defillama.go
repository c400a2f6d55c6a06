package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"chainquery/internal/cache"

	"go.opentelemetry.io/otel/trace"
)

const defillamaBaseURL = "https://api.llama.fi"

// DeFiLlamaAdapter fetches TVL, protocol, chain, and stablecoin metrics from
// the DeFiLlama free API. No API key required.
type DeFiLlamaAdapter struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	cache   cache.Store
	retry   retryPolicy
}

func NewDeFiLlamaAdapter(tracer trace.Tracer, store cache.Store) *DeFiLlamaAdapter {
	return &DeFiLlamaAdapter{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: defillamaBaseURL,
		tracer:  tracer,
		cache:   store,
		retry:   defaultRetryPolicy(),
	}
}

func (p *DeFiLlamaAdapter) Name() string { return "defillama" }

func (p *DeFiLlamaAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "defillama.execute")
	defer span.End()

	switch operation {
	case "tvl", "protocol_metrics":
		protocol := asString(params["protocol"])
		if protocol == "" {
			protocol = "aave"
		}
		return p.protocolTVL(ctx, protocol)
	case "chain_metrics", "chain_tvl":
		chain := asString(params["chain"])
		if chain == "" {
			chain = "Ethereum"
		}
		return p.chainTVL(ctx, chain)
	case "stablecoin_data":
		return p.stablecoinCharts(ctx, asString(params["stablecoin"]))
	default:
		return Errorf("unsupported operation for defillama: %s", operation), nil
	}
}

func (p *DeFiLlamaAdapter) protocolTVL(ctx context.Context, protocol string) (map[string]any, error) {
	key := cache.Key(p.Name(), "protocol_tvl", map[string]any{"protocol": protocol})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		body, err := fetchBody(ctx, p.client, p.Name(), p.baseURL+"/protocol/"+url.PathEscape(protocol), nil)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("parse protocol %s: %w", protocol, err)
		}
		return out, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("defillama: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}

func (p *DeFiLlamaAdapter) chainTVL(ctx context.Context, chain string) (map[string]any, error) {
	key := cache.Key(p.Name(), "chain_tvl", map[string]any{"chain": chain})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		body, err := fetchBody(ctx, p.client, p.Name(), p.baseURL+"/v2/historicalChainTvl/"+url.PathEscape(chain), nil)
		if err != nil {
			return nil, err
		}
		// The endpoint returns a bare array of {date, tvl} points.
		var history []any
		if err := json.Unmarshal(body, &history); err != nil {
			return nil, fmt.Errorf("parse chain tvl for %s: %w", chain, err)
		}
		return map[string]any{"chain": chain, "tvl_history": history}, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("defillama: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}

func (p *DeFiLlamaAdapter) stablecoinCharts(ctx context.Context, stablecoin string) (map[string]any, error) {
	scope := stablecoin
	if scope == "" {
		scope = "all"
	}
	key := cache.Key(p.Name(), "stablecoin_charts", map[string]any{"stablecoin": scope})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		endpoint := p.baseURL + "/stablecoincharts/all"
		if stablecoin != "" {
			endpoint += "?stablecoin=" + url.QueryEscape(stablecoin)
		}
		body, err := fetchBody(ctx, p.client, p.Name(), endpoint, nil)
		if err != nil {
			return nil, err
		}
		var charts []any
		if err := json.Unmarshal(body, &charts); err != nil {
			return nil, fmt.Errorf("parse stablecoin charts: %w", err)
		}
		return map[string]any{"stablecoin": scope, "charts": charts}, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("defillama: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}
