package orchestrator

import (
	"context"
	"fmt"
	"time"

	"chainquery/internal/cache"
	"chainquery/internal/provider"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const defaultComplexTimeout = 60 * time.Second

// Orchestrator routes queries across the registered source adapters. It
// classifies each request by complexity, dispatches to the primary source,
// a concurrent fan-out, or the analytical chain, and walks the fallback
// chain when the chosen path fails. It never returns a Go error for data
// unavailability; exhaustion produces a terminal response with source
// "none" and confidence 0.
type Orchestrator struct {
	tracer         trace.Tracer
	routes         RouteTable
	adapters       map[string]provider.Adapter
	stats          *Tracker
	flight         singleflight.Group
	complexTimeout time.Duration
}

func New(tracer trace.Tracer, routes RouteTable, adapters ...provider.Adapter) *Orchestrator {
	registry := make(map[string]provider.Adapter, len(adapters))
	for _, adapter := range adapters {
		registry[adapter.Name()] = adapter
	}
	return &Orchestrator{
		tracer:         tracer,
		routes:         routes,
		adapters:       registry,
		stats:          NewTracker(),
		complexTimeout: defaultComplexTimeout,
	}
}

// SetComplexTimeout overrides the per-attempt budget for the analytical
// routing path.
func (o *Orchestrator) SetComplexTimeout(d time.Duration) {
	if d > 0 {
		o.complexTimeout = d
	}
}

// ExecuteQuery classifies the request and dispatches it down one of the
// three routing paths.
func (o *Orchestrator) ExecuteQuery(ctx context.Context, req QueryRequest) QueryResponse {
	ctx, span := o.tracer.Start(ctx, "orchestrator.execute-query", trace.WithAttributes(
		attribute.String("query.id", req.ID),
		attribute.String("query.type", req.QueryType),
	))
	defer span.End()

	complexity := AssessComplexity(req)
	span.SetAttributes(attribute.Float64("query.complexity", complexity))

	switch {
	case complexity > complexThreshold:
		return o.routeComplex(ctx, req)
	case complexity > mediumThreshold:
		return o.routeMultiSource(ctx, req)
	default:
		return o.routeSimple(ctx, req)
	}
}

// routeSimple sends the request to its primary source and falls back on
// any failure, transport-level or in-band.
func (o *Orchestrator) routeSimple(ctx context.Context, req QueryRequest) QueryResponse {
	primary, ok := o.routes.PrimarySource(req.QueryType)
	if !ok {
		return newResponse(
			map[string]any{"error": fmt.Sprintf("unsupported query type: %s", req.QueryType)},
			"none", 0.0, false)
	}

	data, err := o.executeOnSource(ctx, primary, req)
	if err != nil || provider.HasError(data) {
		return o.executeFallback(ctx, req, []string{primary})
	}
	return newResponse(data, primary, 1.0, false)
}

// routeMultiSource fans out to every relevant source concurrently. The
// winner is the first source, in priority order, that produced a clean
// payload; confidence reflects how many of the attempted sources agreed to
// answer at all.
func (o *Orchestrator) routeMultiSource(ctx context.Context, req QueryRequest) QueryResponse {
	sources := RelevantSources(req.QueryType)
	results := make([]map[string]any, len(sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range sources {
		g.Go(func() error {
			data, err := o.executeOnSource(gctx, source, req)
			if err == nil && !provider.HasError(data) {
				results[i] = data
			}
			// Individual source failures never cancel the siblings.
			return nil
		})
	}
	_ = g.Wait()

	winner := -1
	successes := 0
	for i := range results {
		if results[i] != nil {
			successes++
			if winner < 0 {
				winner = i
			}
		}
	}
	if successes == 0 {
		return o.executeFallback(ctx, req, sources)
	}

	confidence := float64(successes) / float64(len(sources))
	return newResponse(results[winner], sources[winner], confidence, winner != 0)
}

// routeComplex tries the analytical sources in order, each under its own
// timeout budget, and takes the first clean payload.
func (o *Orchestrator) routeComplex(ctx context.Context, req QueryRequest) QueryResponse {
	order := []string{SourceDune, SourceDeFiLlama}

	for _, source := range order {
		attemptCtx, cancel := context.WithTimeout(ctx, o.complexTimeout)
		data, err := o.executeOnSource(attemptCtx, source, req)
		cancel()

		if err != nil || provider.HasError(data) {
			continue
		}
		return newResponse(data, source, 1.0, source != order[0])
	}

	return newResponse(map[string]any{
		"error":             "all sources failed for complex query",
		"attempted_sources": order,
	}, "none", 0.0, true)
}

// executeFallback walks the fallback chain for the request's query
// category, skipping sources that already failed. A hit comes back with
// lowered confidence.
func (o *Orchestrator) executeFallback(ctx context.Context, req QueryRequest, tried []string) QueryResponse {
	ctx, span := o.tracer.Start(ctx, "orchestrator.execute-fallback")
	defer span.End()

	seen := make(map[string]bool, len(tried))
	for _, source := range tried {
		seen[source] = true
	}

	for _, source := range o.routes.FallbackChain(req.QueryType) {
		if seen[source] {
			continue
		}
		seen[source] = true
		tried = append(tried, source)

		data, err := o.executeOnSource(ctx, source, req)
		if err != nil || provider.HasError(data) {
			continue
		}
		return newResponse(data, source, 0.7, true)
	}

	return newResponse(map[string]any{
		"error":             "all data sources failed",
		"attempted_sources": tried,
	}, "none", 0.0, true)
}

// executeOnSource runs one adapter call, deduplicating identical in-flight
// requests and recording stats exactly once per real call.
func (o *Orchestrator) executeOnSource(ctx context.Context, source string, req QueryRequest) (map[string]any, error) {
	adapter, ok := o.adapters[source]
	if !ok {
		return nil, fmt.Errorf("no adapter registered for source %s", source)
	}

	params := o.requestParams(req)
	flightKey := cache.Key(source, req.QueryType, params)

	result, err, _ := o.flight.Do(flightKey, func() (any, error) {
		start := time.Now()
		data, err := adapter.Execute(ctx, req.QueryType, params)
		o.stats.Record(source, err == nil && !provider.HasError(data), time.Since(start))
		return data, err
	})
	if err != nil {
		return nil, err
	}
	data, _ := result.(map[string]any)
	return data, nil
}

// requestParams copies the request parameters and stamps the first chain
// onto them so chain-scoped adapters see it without inspecting the request.
func (o *Orchestrator) requestParams(req QueryRequest) map[string]any {
	params := make(map[string]any, len(req.Parameters)+1)
	for k, v := range req.Parameters {
		params[k] = v
	}
	if _, ok := params["chain"]; !ok && len(req.Chains) > 0 {
		params["chain"] = req.Chains[0]
	}
	return params
}

// SourceStatistics reports per-source performance counters for every
// registered adapter.
func (o *Orchestrator) SourceStatistics() map[string]SourceStats {
	sources := make([]string, 0, len(o.adapters))
	for name := range o.adapters {
		sources = append(sources, name)
	}
	return o.stats.Snapshot(sources)
}

// ProtocolTVL fetches TVL for a DeFi protocol slug ("aave", "uniswap").
func (o *Orchestrator) ProtocolTVL(ctx context.Context, protocol string) QueryResponse {
	return o.ExecuteQuery(ctx, NewQueryRequest("tvl", map[string]any{"protocol": protocol}))
}

// TokenPrices fetches current prices for a set of token IDs.
func (o *Orchestrator) TokenPrices(ctx context.Context, tokenIDs []string) QueryResponse {
	req := NewQueryRequest("token_price", map[string]any{"token_ids": tokenIDs})
	req.RealTime = true
	return o.ExecuteQuery(ctx, req)
}

// WhaleActivity runs a whale-tracking analytics query with a minimum
// transaction threshold.
func (o *Orchestrator) WhaleActivity(ctx context.Context, queryID int, threshold float64) QueryResponse {
	return o.ExecuteQuery(ctx, NewQueryRequest("whale_tracking", map[string]any{
		"query_id":     queryID,
		"query_params": map[string]any{"threshold": threshold},
	}))
}
