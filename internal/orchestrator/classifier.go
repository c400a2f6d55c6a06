package orchestrator

import "strings"

// Complexity bands: at or below mediumThreshold a query goes straight to
// its primary source, above complexThreshold it takes the analytical path.
const (
	mediumThreshold  = 0.5
	complexThreshold = 0.8
)

// AssessComplexity scores a request in [0, 1] from simple additive
// heuristics. Each chain beyond the first adds 0.1, a real-time requirement
// adds 0.2, analytical query types and historical lookups add 0.3 each.
func AssessComplexity(req QueryRequest) float64 {
	var score float64

	if extra := len(req.Chains) - 1; extra > 0 {
		score += float64(extra) * 0.1
	}
	if req.RealTime {
		score += 0.2
	}
	if strings.Contains(req.QueryType, "analytics") {
		score += 0.3
	}
	if truthy(req.Parameters["historical"]) {
		score += 0.3
	}

	if score > 1.0 {
		score = 1.0
	}
	return score
}

func truthy(v any) bool {
	switch val := v.(type) {
	case bool:
		return val
	case string:
		return val != "" && val != "false" && val != "0"
	case float64:
		return val != 0
	case int:
		return val != 0
	case nil:
		return false
	default:
		return true
	}
}
