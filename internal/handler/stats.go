package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// SourceStats godoc
// @Summary      Per-source query statistics
// @Description  Returns success rate, total queries, and average latency for every registered source
// @Tags         sources
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/sources/stats [get]
func (h *Handler) SourceStats(c *gin.Context) {
	_, span := h.tracer.Start(c.Request.Context(), "handler.source-stats")
	defer span.End()

	c.JSON(http.StatusOK, gin.H{"sources": h.orch.SourceStatistics()})
}
