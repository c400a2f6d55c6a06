package handler

import (
	"net/http"

	"chainquery/internal/orchestrator"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

type queryPayload struct {
	QueryType  string         `json:"query_type" binding:"required"`
	Parameters map[string]any `json:"parameters"`
	Chains     []string       `json:"chains"`
	Priority   string         `json:"priority"`
	RealTime   bool           `json:"real_time"`
}

// ExecuteQuery godoc
// @Summary      Execute a data query across the registered sources
// @Description  Classifies the query, routes it to the best source with fallback, and returns the envelope with source and confidence. Source failures come back inside the envelope with HTTP 200; only a malformed request is a client error.
// @Tags         query
// @Accept       json
// @Produce      json
// @Param        request  body  queryPayload  true  "Query request"
// @Success      200  {object}  orchestrator.QueryResponse
// @Failure      400  {object}  map[string]string
// @Router       /api/query [post]
func (h *Handler) ExecuteQuery(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.execute-query")
	defer span.End()

	var payload queryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	span.SetAttributes(attribute.String("query.type", payload.QueryType))

	req := orchestrator.NewQueryRequest(payload.QueryType, payload.Parameters)
	if len(payload.Chains) > 0 {
		req.Chains = payload.Chains
	}
	if payload.Priority != "" {
		req.Priority = payload.Priority
	}
	req.RealTime = payload.RealTime

	c.JSON(http.StatusOK, h.orch.ExecuteQuery(ctx, req))
}
