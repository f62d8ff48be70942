package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
)

// MetricsHandler serves the Prometheus scrape endpoint.
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler constructs MetricsHandler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Scrape godoc
// @Summary Prometheus metrics in exposition format
// @Tags Metrics
// @Produce plain
// @Success 200 {string} string "metrics"
// @Router /metrics [get]
func (h *MetricsHandler) Scrape(c *gin.Context) {
	gin.WrapH(h.metrics.Handler())(c)
}
