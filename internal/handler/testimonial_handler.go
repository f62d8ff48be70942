package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// TestimonialHandler exposes site testimonial endpoints.
type TestimonialHandler struct {
	testimonials *service.TestimonialService
}

// NewTestimonialHandler constructs TestimonialHandler.
func NewTestimonialHandler(testimonials *service.TestimonialService) *TestimonialHandler {
	return &TestimonialHandler{testimonials: testimonials}
}

// ListApproved godoc
// @Summary List approved testimonials
// @Tags Testimonials
// @Produce json
// @Param limit query int false "Max items"
// @Success 200 {object} response.Envelope
// @Router /testimonials [get]
func (h *TestimonialHandler) ListApproved(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	testimonials, err := h.testimonials.ListApproved(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, testimonials, nil)
}

// ListPending godoc
// @Summary List testimonials awaiting moderation
// @Tags Testimonials
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /testimonials/pending [get]
func (h *TestimonialHandler) ListPending(c *gin.Context) {
	testimonials, err := h.testimonials.ListPending(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, testimonials, nil)
}

// Create godoc
// @Summary Submit a testimonial
// @Tags Testimonials
// @Accept json
// @Produce json
// @Param payload body service.CreateTestimonialRequest true "Testimonial payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /testimonials [post]
func (h *TestimonialHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateTestimonialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	testimonial, err := h.testimonials.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, testimonial)
}

// Approve godoc
// @Summary Approve a pending testimonial
// @Tags Testimonials
// @Produce json
// @Param id path string true "Testimonial ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /testimonials/{id}/approve [put]
func (h *TestimonialHandler) Approve(c *gin.Context) {
	testimonial, err := h.testimonials.Approve(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, testimonial, nil)
}

// Delete godoc
// @Summary Delete a testimonial
// @Tags Testimonials
// @Produce json
// @Param id path string true "Testimonial ID"
// @Security BearerAuth
// @Success 204
// @Router /testimonials/{id} [delete]
func (h *TestimonialHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.testimonials.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
