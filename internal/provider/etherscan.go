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

// explorerBaseURLs maps chain names to their Etherscan-family API roots.
var explorerBaseURLs = map[string]string{
	"ethereum":  "https://api.etherscan.io/api",
	"bsc":       "https://api.bscscan.com/api",
	"polygon":   "https://api.polygonscan.com/api",
	"arbitrum":  "https://api.arbiscan.io/api",
	"optimism":  "https://api-optimistic.etherscan.io/api",
	"avalanche": "https://api.snowtrace.io/api",
}

// EtherscanAdapter queries Etherscan-family explorers for balances and
// transaction history across EVM chains. API keys are optional per chain;
// without one the explorer throttles harder but still answers.
type EtherscanAdapter struct {
	client   *http.Client
	baseURLs map[string]string
	apiKeys  map[string]string
	tracer   trace.Tracer
	cache    cache.Store
	retry    retryPolicy
}

func NewEtherscanAdapter(tracer trace.Tracer, store cache.Store, apiKeys map[string]string) *EtherscanAdapter {
	if apiKeys == nil {
		apiKeys = map[string]string{}
	}
	urls := make(map[string]string, len(explorerBaseURLs))
	for chain, base := range explorerBaseURLs {
		urls[chain] = base
	}
	return &EtherscanAdapter{
		client:   &http.Client{Timeout: 30 * time.Second},
		baseURLs: urls,
		apiKeys:  apiKeys,
		tracer:   tracer,
		cache:    store,
		retry:    defaultRetryPolicy(),
	}
}

func (p *EtherscanAdapter) Name() string { return "etherscan" }

func (p *EtherscanAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "etherscan.execute")
	defer span.End()

	chain := asString(params["chain"])
	if chain == "" {
		chain = "ethereum"
	}

	switch operation {
	case "token_balance":
		contract := asString(params["contract_address"])
		address := asString(params["address"])
		if contract == "" || address == "" {
			return Errorf("token_balance requires contract_address and address"), nil
		}
		return p.tokenBalance(ctx, chain, contract, address)
	case "transaction_history":
		address := asString(params["address"])
		if address == "" {
			return Errorf("transaction_history requires address"), nil
		}
		limit := asInt(params["limit"])
		if limit <= 0 {
			limit = 100
		}
		return p.transactions(ctx, chain, address, limit)
	case "contract_data":
		address := asString(params["address"])
		if address == "" {
			return Errorf("contract_data requires address"), nil
		}
		return p.contractSource(ctx, chain, address)
	default:
		return Errorf("unsupported operation for etherscan: %s", operation), nil
	}
}

func (p *EtherscanAdapter) tokenBalance(ctx context.Context, chain, contract, address string) (map[string]any, error) {
	key := cache.Key(p.Name(), "token_balance", map[string]any{"chain": chain, "contract": contract, "address": address})
	if cached, ok := p.cache.Get(ctx, key, cache.TierHot); ok {
		return cached, nil
	}

	query := url.Values{
		"module":          {"account"},
		"action":          {"tokenbalance"},
		"contractaddress": {contract},
		"address":         {address},
		"tag":             {"latest"},
	}
	data, err := p.call(ctx, chain, query)
	if err != nil || HasError(data) {
		return data, err
	}

	p.cache.Set(ctx, key, data, cache.TierHot)
	return data, nil
}

func (p *EtherscanAdapter) transactions(ctx context.Context, chain, address string, limit int) (map[string]any, error) {
	key := cache.Key(p.Name(), "transactions", map[string]any{"chain": chain, "address": address, "limit": limit})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	query := url.Values{
		"module":     {"account"},
		"action":     {"txlist"},
		"address":    {address},
		"startblock": {"0"},
		"endblock":   {"99999999"},
		"page":       {"1"},
		"offset":     {fmt.Sprintf("%d", limit)},
		"sort":       {"desc"},
	}
	data, err := p.call(ctx, chain, query)
	if err != nil || HasError(data) {
		return data, err
	}

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}

func (p *EtherscanAdapter) contractSource(ctx context.Context, chain, address string) (map[string]any, error) {
	key := cache.Key(p.Name(), "contract_source", map[string]any{"chain": chain, "address": address})
	if cached, ok := p.cache.Get(ctx, key, cache.TierCold); ok {
		return cached, nil
	}

	query := url.Values{
		"module":  {"contract"},
		"action":  {"getsourcecode"},
		"address": {address},
	}
	data, err := p.call(ctx, chain, query)
	if err != nil || HasError(data) {
		return data, err
	}

	p.cache.Set(ctx, key, data, cache.TierCold)
	return data, nil
}

func (p *EtherscanAdapter) call(ctx context.Context, chain string, query url.Values) (map[string]any, error) {
	base, ok := p.baseURLs[chain]
	if !ok {
		return Errorf("unsupported chain: %s", chain), nil
	}
	if apiKey := p.apiKeys[chain]; apiKey != "" {
		query.Set("apikey", apiKey)
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		body, err := fetchBody(ctx, p.client, p.Name(), base+"?"+query.Encode(), nil)
		if err != nil {
			return nil, err
		}
		var out map[string]any
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("parse %s explorer response: %w", chain, err)
		}
		return out, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("etherscan: %v", err), nil
	}
	return data, nil
}
