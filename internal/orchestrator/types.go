package orchestrator

import (
	"time"

	"github.com/google/uuid"
)

// QueryRequest describes one data query. QueryType names the semantic
// operation ("tvl", "token_price", ...), Parameters carries the
// operation-specific inputs, and Chains scopes the query to one or more
// networks.
type QueryRequest struct {
	ID         string
	QueryType  string
	Parameters map[string]any
	Chains     []string
	Priority   string
	RealTime   bool
	CreatedAt  time.Time
}

// NewQueryRequest fills in the defaults: a fresh request ID, the ethereum
// chain, and normal priority.
func NewQueryRequest(queryType string, parameters map[string]any) QueryRequest {
	if parameters == nil {
		parameters = map[string]any{}
	}
	return QueryRequest{
		ID:         uuid.NewString(),
		QueryType:  queryType,
		Parameters: parameters,
		Chains:     []string{"ethereum"},
		Priority:   "normal",
		CreatedAt:  time.Now().UTC(),
	}
}

// QueryResponse is the uniform result envelope. Source is the adapter that
// produced Data, or "none" when every source failed; ConfidenceScore is 0
// exactly in that terminal case.
type QueryResponse struct {
	Data            map[string]any `json:"data"`
	Source          string         `json:"source"`
	ConfidenceScore float64        `json:"confidence_score"`
	FallbackUsed    bool           `json:"fallback_used"`
	Timestamp       time.Time      `json:"timestamp"`
}

func newResponse(data map[string]any, source string, confidence float64, fallback bool) QueryResponse {
	return QueryResponse{
		Data:            data,
		Source:          source,
		ConfidenceScore: confidence,
		FallbackUsed:    fallback,
		Timestamp:       time.Now().UTC(),
	}
}
