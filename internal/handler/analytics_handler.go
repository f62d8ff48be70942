package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// AnalyticsHandler exposes per-course analytics.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs AnalyticsHandler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Course godoc
// @Summary Enrollment analytics for a course
// @Tags Analytics
// @Produce json
// @Param id path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/analytics [get]
func (h *AnalyticsHandler) Course(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	analytics, cacheHit, err := h.analytics.CourseAnalytics(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, analytics, nil, middleware.ExtractMeta(c))
}
