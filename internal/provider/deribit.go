package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chainquery/internal/cache"

	"go.opentelemetry.io/otel/trace"
)

const deribitBaseURL = "https://www.deribit.com/api/v2"

// DeribitAdapter reads the public options book summary and derives
// put/call positioning from it. No credentials are needed for the
// public endpoints it uses.
type DeribitAdapter struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	cache   cache.Store
	retry   retryPolicy
}

func NewDeribitAdapter(tracer trace.Tracer, store cache.Store) *DeribitAdapter {
	return &DeribitAdapter{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: deribitBaseURL,
		tracer:  tracer,
		cache:   store,
		retry:   defaultRetryPolicy(),
	}
}

func (p *DeribitAdapter) Name() string { return "deribit" }

func (p *DeribitAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "deribit.execute")
	defer span.End()

	switch operation {
	case "options_data", "options_metrics":
		currency := strings.ToUpper(asString(params["currency"]))
		if currency == "" {
			currency = "BTC"
		}
		return p.optionsSummary(ctx, currency)
	default:
		return Errorf("unsupported operation for deribit: %s", operation), nil
	}
}

type deribitInstrument struct {
	InstrumentName string  `json:"instrument_name"`
	Volume         float64 `json:"volume"`
	OpenInterest   float64 `json:"open_interest"`
	MarkIV         float64 `json:"mark_iv"`
}

func (p *DeribitAdapter) optionsSummary(ctx context.Context, currency string) (map[string]any, error) {
	key := cache.Key(p.Name(), "options_summary", map[string]any{"currency": currency})
	if cached, ok := p.cache.Get(ctx, key, cache.TierHot); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		endpoint := fmt.Sprintf("%s/public/get_book_summary_by_currency?currency=%s&kind=option", p.baseURL, currency)
		body, err := fetchBody(ctx, p.client, p.Name(), endpoint, nil)
		if err != nil {
			return nil, err
		}

		var payload struct {
			Result []deribitInstrument `json:"result"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode deribit response: %w", err)
		}
		return summarizeOptions(currency, payload.Result), nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("deribit options data: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierHot)
	return data, nil
}

// summarizeOptions aggregates the per-instrument book into market-level
// positioning. Instruments are puts or calls by the trailing letter of
// their name (BTC-27MAR26-60000-P).
func summarizeOptions(currency string, instruments []deribitInstrument) map[string]any {
	var putVolume, callVolume, putOI, callOI, ivSum float64
	var ivCount int

	for _, inst := range instruments {
		switch {
		case strings.HasSuffix(inst.InstrumentName, "-P"):
			putVolume += inst.Volume
			putOI += inst.OpenInterest
		case strings.HasSuffix(inst.InstrumentName, "-C"):
			callVolume += inst.Volume
			callOI += inst.OpenInterest
		}
		if inst.MarkIV > 0 {
			ivSum += inst.MarkIV
			ivCount++
		}
	}

	pcVolume := ratioOrZero(putVolume, callVolume)
	pcOI := ratioOrZero(putOI, callOI)

	var avgIV float64
	if ivCount > 0 {
		avgIV = ivSum / float64(ivCount)
	}

	// High put/call volume reads as hedging or downside bets.
	var sentiment string
	switch {
	case pcVolume > 1.2:
		sentiment = "bearish"
	case pcVolume > 0.8:
		sentiment = "neutral"
	default:
		sentiment = "bullish"
	}

	return map[string]any{
		"currency":          currency,
		"instrument_count":  len(instruments),
		"put_call_ratio":    round3(pcVolume),
		"put_call_oi_ratio": round3(pcOI),
		"total_put_volume":  round2(putVolume),
		"total_call_volume": round2(callVolume),
		"avg_implied_vol":   round2(avgIV),
		"market_sentiment":  sentiment,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	}
}

func ratioOrZero(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
