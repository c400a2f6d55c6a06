package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"chainquery/internal/cache"

	"go.opentelemetry.io/otel/trace"
)

const githubBaseURL = "https://api.github.com"

// GitHubAdapter measures development activity for a project repository.
// A token is optional; unauthenticated requests work with a lower quota.
type GitHubAdapter struct {
	client  *http.Client
	baseURL string
	tracer  trace.Tracer
	cache   cache.Store
	retry   retryPolicy
	token   string
}

func NewGitHubAdapter(tracer trace.Tracer, store cache.Store, token string) *GitHubAdapter {
	return &GitHubAdapter{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: githubBaseURL,
		tracer:  tracer,
		cache:   store,
		retry:   defaultRetryPolicy(),
		token:   token,
	}
}

func (p *GitHubAdapter) Name() string { return "github" }

func (p *GitHubAdapter) Execute(ctx context.Context, operation string, params map[string]any) (map[string]any, error) {
	ctx, span := p.tracer.Start(ctx, "github.execute")
	defer span.End()

	switch operation {
	case "github_activity", "development_activity":
		owner := asString(params["owner"])
		repo := asString(params["repo"])
		if owner == "" || repo == "" {
			return Errorf("github activity requires owner and repo parameters"), nil
		}
		return p.repoActivity(ctx, owner, repo)
	default:
		return Errorf("unsupported operation for github: %s", operation), nil
	}
}

func (p *GitHubAdapter) repoActivity(ctx context.Context, owner, repo string) (map[string]any, error) {
	key := cache.Key(p.Name(), "repo_activity", map[string]any{"owner": owner, "repo": repo})
	if cached, ok := p.cache.Get(ctx, key, cache.TierWarm); ok {
		return cached, nil
	}

	data, err := p.retry.do(ctx, func() (map[string]any, error) {
		info, err := p.fetchRepo(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return Errorf("github repository not found: %s/%s", owner, repo), nil
		}

		// Commit stats are computed asynchronously by GitHub and may come
		// back empty on the first request. Treat that as zero activity
		// rather than failing the whole lookup.
		weeks, err := p.fetchCommitActivity(ctx, owner, repo)
		if err != nil {
			return nil, err
		}

		return map[string]any{
			"repository":  fmt.Sprintf("%s/%s", owner, repo),
			"stars":       info.Stars,
			"forks":       info.Forks,
			"open_issues": info.OpenIssues,
			"language":    info.Language,
			"updated_at":  info.UpdatedAt,
			"activity":    analyzeCommitActivity(weeks),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		}, nil
	})
	if err != nil {
		if IsRateLimit(err) {
			return nil, err
		}
		return Errorf("github activity: %v", err), nil
	}
	if HasError(data) {
		return data, nil
	}

	p.cache.Set(ctx, key, data, cache.TierWarm)
	return data, nil
}

type githubRepo struct {
	Stars      int    `json:"stargazers_count"`
	Forks      int    `json:"forks_count"`
	OpenIssues int    `json:"open_issues_count"`
	Language   string `json:"language"`
	UpdatedAt  string `json:"updated_at"`
}

type commitWeek struct {
	Week  int64 `json:"week"`
	Total int   `json:"total"`
}

// fetchRepo returns (nil, nil) when the repository does not exist.
func (p *GitHubAdapter) fetchRepo(ctx context.Context, owner, repo string) (*githubRepo, error) {
	body, status, err := p.call(ctx, fmt.Sprintf("%s/repos/%s/%s", p.baseURL, owner, repo))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, nil
	}
	var info githubRepo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("decode github repo response: %w", err)
	}
	return &info, nil
}

func (p *GitHubAdapter) fetchCommitActivity(ctx context.Context, owner, repo string) ([]commitWeek, error) {
	body, status, err := p.call(ctx, fmt.Sprintf("%s/repos/%s/%s/stats/commit_activity", p.baseURL, owner, repo))
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound || status == http.StatusAccepted {
		return nil, nil
	}
	var weeks []commitWeek
	if err := json.Unmarshal(body, &weeks); err != nil {
		return nil, fmt.Errorf("decode github commit activity: %w", err)
	}
	return weeks, nil
}

func (p *GitHubAdapter) call(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusAccepted:
	case http.StatusTooManyRequests, http.StatusForbidden:
		return nil, resp.StatusCode, &RateLimitError{Source: p.Name()}
	default:
		return nil, resp.StatusCode, fmt.Errorf("github returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

// analyzeCommitActivity classifies the last year of weekly commit counts.
func analyzeCommitActivity(weeks []commitWeek) map[string]any {
	if len(weeks) == 0 {
		return map[string]any{
			"commits_last_4_weeks": 0,
			"commits_last_year":    0,
			"weekly_average":       0.0,
			"activity_score":       0.0,
			"trend":                "no_data",
		}
	}

	var total int
	for _, w := range weeks {
		total += w.Total
	}

	recent := weeks
	if len(recent) > 4 {
		recent = recent[len(recent)-4:]
	}
	var recentTotal int
	for _, w := range recent {
		recentTotal += w.Total
	}

	weeklyAvg := float64(total) / float64(len(weeks))
	recentAvg := float64(recentTotal) / float64(len(recent))

	var trend string
	switch {
	case recentAvg > weeklyAvg*1.5:
		trend = "accelerating"
	case recentAvg > weeklyAvg*1.1:
		trend = "growing"
	case recentAvg < weeklyAvg*0.5:
		trend = "declining"
	case recentAvg < weeklyAvg*0.9:
		trend = "slowing"
	default:
		trend = "stable"
	}

	score := (float64(recentTotal) / 4) * 10
	if score > 100 {
		score = 100
	}

	return map[string]any{
		"commits_last_4_weeks": recentTotal,
		"commits_last_year":    total,
		"weekly_average":       round2(weeklyAvg),
		"activity_score":       round2(score),
		"trend":                trend,
	}
}
