package orchestrator

import "strings"

// Source names match the adapters' Name() values.
const (
	SourceDeFiLlama    = "defillama"
	SourceDune         = "dune"
	SourceCoinGecko    = "coingecko"
	SourceEtherscan    = "etherscan"
	SourceCryptoPanic  = "cryptopanic"
	SourceReddit       = "reddit"
	SourceGoogleTrends = "google_trends"
	SourceGitHub       = "github"
	SourceDeribit      = "deribit"
)

// AllSources lists every known source in priority order for catch-all
// fallback walks.
func AllSources() []string {
	return []string{
		SourceDeFiLlama,
		SourceDune,
		SourceCoinGecko,
		SourceEtherscan,
		SourceCryptoPanic,
		SourceReddit,
		SourceGoogleTrends,
		SourceGitHub,
		SourceDeribit,
	}
}

// RouteTable maps query types to their primary source and category fallback
// chains.
type RouteTable struct {
	Primary   map[string]string
	Fallbacks map[string][]string
}

func DefaultRoutes() RouteTable {
	return RouteTable{
		Primary: map[string]string{
			"tvl":              SourceDeFiLlama,
			"protocol_metrics": SourceDeFiLlama,
			"chain_metrics":    SourceDeFiLlama,

			"token_price":   SourceCoinGecko,
			"token_metrics": SourceCoinGecko,
			"market_data":   SourceCoinGecko,

			"historical_analytics": SourceDune,
			"complex_analytics":    SourceDune,
			"whale_tracking":       SourceDune,

			"transaction_history": SourceEtherscan,
			"token_balance":       SourceEtherscan,
			"contract_data":       SourceEtherscan,

			"news_sentiment":   SourceCryptoPanic,
			"reddit_sentiment": SourceReddit,
			"social_sentiment": SourceReddit,

			"google_trends":   SourceGoogleTrends,
			"search_interest": SourceGoogleTrends,

			"github_activity":      SourceGitHub,
			"development_activity": SourceGitHub,

			"options_data":    SourceDeribit,
			"options_metrics": SourceDeribit,
		},
		Fallbacks: map[string][]string{
			"tvl":         {SourceDeFiLlama, SourceDune},
			"token_price": {SourceCoinGecko, SourceDeFiLlama},
			"analytics":   {SourceDune, SourceDeFiLlama},
			"balance":     {SourceEtherscan},
		},
	}
}

// PrimarySource returns the preferred source for a query type.
func (rt RouteTable) PrimarySource(queryType string) (string, bool) {
	source, ok := rt.Primary[queryType]
	return source, ok
}

// FallbackChain picks a fallback category by query type keyword; unknown
// types walk every source.
func (rt RouteTable) FallbackChain(queryType string) []string {
	switch {
	case strings.Contains(queryType, "tvl"):
		return rt.Fallbacks["tvl"]
	case strings.Contains(queryType, "price"):
		return rt.Fallbacks["token_price"]
	case strings.Contains(queryType, "analytics"):
		return rt.Fallbacks["analytics"]
	case strings.Contains(queryType, "balance"):
		return rt.Fallbacks["balance"]
	default:
		return AllSources()
	}
}

// RelevantSources selects the sources worth fanning out to for a
// medium-complexity query.
func RelevantSources(queryType string) []string {
	switch {
	case strings.Contains(queryType, "tvl"), strings.Contains(queryType, "protocol"):
		return []string{SourceDeFiLlama, SourceDune}
	case strings.Contains(queryType, "price"), strings.Contains(queryType, "market"):
		return []string{SourceCoinGecko, SourceDeFiLlama}
	case strings.Contains(queryType, "transaction"), strings.Contains(queryType, "balance"):
		return []string{SourceEtherscan}
	default:
		return []string{SourceDeFiLlama, SourceCoinGecko}
	}
}
