package cache

import "testing"

func TestKeyIgnoresParameterOrder(t *testing.T) {
	t.Parallel()

	a := Key("coingecko", "token_price", map[string]any{
		"token_ids":     []string{"bitcoin", "ethereum"},
		"vs_currencies": []string{"usd"},
	})
	b := Key("coingecko", "token_price", map[string]any{
		"vs_currencies": []string{"usd"},
		"token_ids":     []string{"bitcoin", "ethereum"},
	})
	if a != b {
		t.Fatalf("equal parameter maps should produce equal keys: %s != %s", a, b)
	}
}

func TestKeyNestedMapsAreCanonical(t *testing.T) {
	t.Parallel()

	a := Key("dune", "complex_analytics", map[string]any{
		"query_id":     12345,
		"query_params": map[string]any{"token": "USDC", "threshold": 1000},
	})
	b := Key("dune", "complex_analytics", map[string]any{
		"query_params": map[string]any{"threshold": 1000, "token": "USDC"},
		"query_id":     12345,
	})
	if a != b {
		t.Fatalf("nested parameter order should not change the key")
	}
}

func TestKeyScopesByNamespaceAndOperation(t *testing.T) {
	t.Parallel()

	params := map[string]any{"protocol": "aave"}
	if Key("defillama", "tvl", params) == Key("dune", "tvl", params) {
		t.Fatalf("keys must be scoped by provider namespace")
	}
	if Key("defillama", "tvl", params) == Key("defillama", "protocol_metrics", params) {
		t.Fatalf("keys must be scoped by operation")
	}
}

func TestKeyDistinctParameters(t *testing.T) {
	t.Parallel()

	if Key("defillama", "tvl", map[string]any{"protocol": "aave"}) ==
		Key("defillama", "tvl", map[string]any{"protocol": "uniswap"}) {
		t.Fatalf("different parameters must not collide")
	}
}
