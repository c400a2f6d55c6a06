package orchestrator

import (
	"sync"
	"time"
)

// SourceStats is the externally visible per-source performance summary.
type SourceStats struct {
	SuccessRate  float64 `json:"success_rate"`
	TotalQueries int     `json:"total_queries"`
	AvgLatencyMS float64 `json:"avg_latency_ms"`
}

type sourceCount struct {
	success    int
	failure    int
	avgLatency time.Duration
}

// Tracker accumulates per-source success/failure counts and an incremental
// mean latency. Recording never influences routing decisions or responses.
type Tracker struct {
	mu     sync.Mutex
	counts map[string]*sourceCount
}

func NewTracker() *Tracker {
	return &Tracker{counts: make(map[string]*sourceCount)}
}

func (t *Tracker) Record(source string, success bool, latency time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	count, ok := t.counts[source]
	if !ok {
		count = &sourceCount{}
		t.counts[source] = count
	}
	if success {
		count.success++
	} else {
		count.failure++
	}

	total := count.success + count.failure
	count.avgLatency = (count.avgLatency*time.Duration(total-1) + latency) / time.Duration(total)
}

// Snapshot reports stats for every listed source, including sources that
// have not been queried yet.
func (t *Tracker) Snapshot(sources []string) map[string]SourceStats {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[string]SourceStats, len(sources))
	for _, source := range sources {
		count, ok := t.counts[source]
		if !ok {
			out[source] = SourceStats{}
			continue
		}
		total := count.success + count.failure
		out[source] = SourceStats{
			SuccessRate:  float64(count.success) / float64(total),
			TotalQueries: total,
			AvgLatencyMS: float64(count.avgLatency) / float64(time.Millisecond),
		}
	}
	return out
}
