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

const (
	redditBaseURL   = "https://www.reddit.com"
	defaultRedditUA = "chainquery/1.0 (market data aggregation)"
)

// RedditAdapter reads crypto subreddits through the public JSON API (no
// credentials required) and derives engagement-based sentiment from upvote
// ratios and comment volume.
type RedditAdapter struct {
	client    *http.Client
	baseURL   string
	userAgent string
	tracer    trace.Tracer
	cache     cache.Store
	retry     retryPolicy
}

func NewRedditAdapter(tracer trace.Tracer, store cache.Store) *RedditAdapter {
	return &RedditAdapter{
		client:    &http.Client{Timeout: 20 * time.Second},
		baseURL:   redditBaseURL,
		userAgent: defaultRedditUA,
		tracer:    tracer,
		cache:     store,
		retry:     defaultRetryPolicy(),
	}
}

func (p *RedditAdapter) Name() string { return "reddit" }

func (p *RedditAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.execute")
	defer span.End()

	switch operation {
	case "reddit_sentiment", "social_sentiment":
		subreddit := asString(params["subreddit"])
		if subreddit == "" {
			subreddit = "cryptocurrency"
		}
		limit := asInt(params["limit"])
		if limit <= 0 {
			limit = 100
		}
		if limit > 100 {
			limit = 100
		}
		return p.subredditSentiment(ctx, subreddit, limit)
	default:
		return Errorf("unsupported operation for reddit: %s", operation), nil
	}
}

func (p *RedditAdapter) subredditSentiment(ctx context.Context, subreddit string, limit int) (map[string]any, error) {
	key := cache.Key(p.Name(), "subreddit_sentiment", map[string]any{"subreddit": subreddit, "limit": limit})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		endpoint := fmt.Sprintf("%s/r/%s/hot.json?limit=%d",
			strings.TrimRight(p.baseURL, "/"), url.PathEscape(subreddit), limit)
		header := http.Header{"User-Agent": {p.userAgent}}
		body, err := fetchBody(ctx, p.client, p.Name(), endpoint, header)
		if err != nil {
			return nil, err
		}

		var payload struct {
			Data struct {
				Children []struct {
					Data struct {
						Title       string  `json:"title"`
						Score       float64 `json:"score"`
						NumComments float64 `json:"num_comments"`
						UpvoteRatio float64 `json:"upvote_ratio"`
						CreatedUTC  float64 `json:"created_utc"`
					} `json:"data"`
				} `json:"children"`
			} `json:"data"`
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			return nil, fmt.Errorf("decode reddit response: %w", err)
		}

		posts := make([]map[string]any, 0, len(payload.Data.Children))
		for _, row := range payload.Data.Children {
			post := row.Data
			posts = append(posts, map[string]any{
				"title":        post.Title,
				"score":        post.Score,
				"num_comments": post.NumComments,
				"upvote_ratio": post.UpvoteRatio,
				"created_utc":  time.Unix(int64(post.CreatedUTC), 0).UTC().Format(time.RFC3339),
			})
		}

		top := posts
		if len(top) > 10 {
			top = top[:10]
		}
		return map[string]any{
			"subreddit":          subreddit,
			"posts_analyzed":     len(posts),
			"sentiment_analysis": redditSentiment(posts),
			"top_posts":          top,
			"timestamp":          time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("reddit: %v", err), nil
	}

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}

// redditSentiment maps the average upvote ratio (0.5..1.0) onto a 0..100
// sentiment score and folds comment volume into an engagement score.
func redditSentiment(posts []map[string]any) map[string]any {
	if len(posts) == 0 {
		return map[string]any{"sentiment_score": 0.0, "engagement_score": 0.0}
	}

	var totalScore, totalComments, totalRatio float64
	for _, post := range posts {
		totalScore += asFloat(post["score"])
		totalComments += asFloat(post["num_comments"])
		totalRatio += asFloat(post["upvote_ratio"])
	}
	avgRatio := totalRatio / float64(len(posts))

	return map[string]any{
		"sentiment_score":  round2((avgRatio - 0.5) * 200),
		"engagement_score": round2((totalScore + totalComments*2) / float64(len(posts))),
		"avg_upvote_ratio": round3(avgRatio),
		"total_upvotes":    totalScore,
		"total_comments":   totalComments,
		"posts_count":      len(posts),
	}
}
