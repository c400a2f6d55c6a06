package handler

import (
	"chainquery/internal/orchestrator"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"
)

type Handler struct {
	tracer trace.Tracer
	orch   *orchestrator.Orchestrator
}

func New(tracer trace.Tracer, orch *orchestrator.Orchestrator) *Handler {
	return &Handler{
		tracer: tracer,
		orch:   orch,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)
	r.POST("/api/query", h.ExecuteQuery)
	r.GET("/api/sources/stats", h.SourceStats)
}
