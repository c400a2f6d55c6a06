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

const trendsBaseURL = "https://trends.google.com/trends/api"

// GoogleTrendsAdapter reads search-interest series from the public Trends
// widget endpoints. The flow is two requests: explore issues a widget token,
// multiline returns the timeline for that token. Both responses carry the
// `)]}'` anti-hijacking prefix that must be stripped before decoding.
type GoogleTrendsAdapter struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	cache   cache.Store
	retry   retryPolicy
}

func NewGoogleTrendsAdapter(tracer trace.Tracer, store cache.Store) *GoogleTrendsAdapter {
	return &GoogleTrendsAdapter{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: trendsBaseURL,
		tracer:  tracer,
		cache:   store,
		retry:   defaultRetryPolicy(),
	}
}

func (p *GoogleTrendsAdapter) Name() string { return "google_trends" }

func (p *GoogleTrendsAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "google-trends.execute")
	defer span.End()

	switch operation {
	case "google_trends", "search_interest":
		keywords := asStringSlice(params["keywords"])
		if len(keywords) == 0 {
			keywords = []string{"Bitcoin", "Ethereum"}
		}
		if len(keywords) > 5 {
			keywords = keywords[:5]
		}
		timeframe := asString(params["timeframe"])
		if timeframe == "" {
			timeframe = "now 7-d"
		}
		return p.searchInterest(ctx, keywords, timeframe)
	default:
		return Errorf("unsupported operation for google_trends: %s", operation), nil
	}
}

func (p *GoogleTrendsAdapter) searchInterest(ctx context.Context, keywords []string, timeframe string) (map[string]any, error) {
	key := cache.Key(p.Name(), "search_interest", map[string]any{"keywords": keywords, "timeframe": timeframe})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		widget, err := p.exploreTimeseriesWidget(ctx, keywords, timeframe)
		if err != nil {
			return nil, err
		}
		points, err := p.fetchTimeline(ctx, widget)
		if err != nil {
			return nil, err
		}

		tail := points
		if len(tail) > 10 {
			tail = tail[len(tail)-10:]
		}
		return map[string]any{
			"keywords":       keywords,
			"timeframe":      timeframe,
			"trends_data":    tail,
			"trend_analysis": analyzeTrends(points, keywords),
			"timestamp":      time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("google trends: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}

type trendsWidget struct {
	ID      string          `json:"id"`
	Token   string          `json:"token"`
	Request json.RawMessage `json:"request"`
}

type trendsPoint struct {
	Time          string    `json:"time"`
	FormattedTime string    `json:"formattedTime"`
	Value         []float64 `json:"value"`
}

func (p *GoogleTrendsAdapter) exploreTimeseriesWidget(ctx context.Context, keywords []string, timeframe string) (*trendsWidget, error) {
	items := make([]map[string]any, 0, len(keywords))
	for _, keyword := range keywords {
		items = append(items, map[string]any{"keyword": keyword, "geo": "", "time": timeframe})
	}
	reqBlob, err := json.Marshal(map[string]any{
		"comparisonItem": items,
		"category":       0,
		"property":       "",
	})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/explore?hl=en-US&tz=0&req=%s", p.baseURL, url.QueryEscape(string(reqBlob)))
	body, err := fetchBody(ctx, p.client, p.Name(), endpoint, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Widgets []trendsWidget `json:"widgets"`
	}
	if err := json.Unmarshal(stripTrendsPrefix(body), &payload); err != nil {
		return nil, fmt.Errorf("decode trends explore response: %w", err)
	}
	for i := range payload.Widgets {
		if payload.Widgets[i].ID == "TIMESERIES" {
			return &payload.Widgets[i], nil
		}
	}
	return nil, fmt.Errorf("trends explore response has no timeseries widget")
}

func (p *GoogleTrendsAdapter) fetchTimeline(ctx context.Context, widget *trendsWidget) ([]trendsPoint, error) {
	endpoint := fmt.Sprintf("%s/widgetdata/multiline?hl=en-US&tz=0&req=%s&token=%s",
		p.baseURL, url.QueryEscape(string(widget.Request)), url.QueryEscape(widget.Token))
	body, err := fetchBody(ctx, p.client, p.Name(), endpoint, nil)
	if err != nil {
		return nil, err
	}

	var payload struct {
		Default struct {
			TimelineData []trendsPoint `json:"timelineData"`
		} `json:"default"`
	}
	if err := json.Unmarshal(stripTrendsPrefix(body), &payload); err != nil {
		return nil, fmt.Errorf("decode trends timeline response: %w", err)
	}
	return payload.Default.TimelineData, nil
}

// stripTrendsPrefix drops everything before the first JSON byte.
func stripTrendsPrefix(body []byte) []byte {
	if i := strings.IndexAny(string(body), "{["); i > 0 {
		return body[i:]
	}
	return body
}

// analyzeTrends compares each keyword's recent interest with its overall
// average and buckets the momentum into a direction label.
func analyzeTrends(points []trendsPoint, keywords []string) map[string]any {
	analysis := make(map[string]any, len(keywords))
	if len(points) == 0 {
		return analysis
	}

	for i, keyword := range keywords {
		values := make([]float64, 0, len(points))
		for _, point := range points {
			if i < len(point.Value) {
				values = append(values, point.Value[i])
			}
		}
		if len(values) == 0 {
			continue
		}

		var sum, peak float64
		min := values[0]
		for _, v := range values {
			sum += v
			if v > peak {
				peak = v
			}
			if v < min {
				min = v
			}
		}
		overallAvg := sum / float64(len(values))

		recent := values
		if len(recent) > 3 {
			recent = recent[len(recent)-3:]
		}
		var recentSum float64
		for _, v := range recent {
			recentSum += v
		}
		recentAvg := recentSum / float64(len(recent))

		momentum := (recentAvg - overallAvg) / (overallAvg + 1) * 100

		var direction string
		switch {
		case momentum > 20:
			direction = "strong_increase"
		case momentum > 5:
			direction = "moderate_increase"
		case momentum < -20:
			direction = "strong_decrease"
		case momentum < -5:
			direction = "moderate_decrease"
		default:
			direction = "neutral"
		}

		analysis[keyword] = map[string]any{
			"current_interest": values[len(values)-1],
			"avg_interest":     round2(overallAvg),
			"momentum_pct":     round2(momentum),
			"direction":        direction,
			"peak_interest":    peak,
			"min_interest":     min,
		}
	}
	return analysis
}
