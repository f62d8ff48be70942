package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// DiscussionHandler exposes forum endpoints.
type DiscussionHandler struct {
	discussions *service.DiscussionService
}

// NewDiscussionHandler constructs DiscussionHandler.
func NewDiscussionHandler(discussions *service.DiscussionService) *DiscussionHandler {
	return &DiscussionHandler{discussions: discussions}
}

// List godoc
// @Summary List course discussions
// @Tags Discussions
// @Produce json
// @Param id path string true "Course ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/discussions [get]
func (h *DiscussionHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	discussions, pagination, err := h.discussions.ListByCourse(c.Request.Context(), c.Param("id"), claims, page, size)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discussions, pagination)
}

// Get godoc
// @Summary Get a discussion with its comment tree
// @Tags Discussions
// @Produce json
// @Param id path string true "Discussion ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /discussions/{id} [get]
func (h *DiscussionHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	discussion, comments, err := h.discussions.Get(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"discussion": discussion, "comments": comments}, nil)
}

// Create godoc
// @Summary Open a discussion thread
// @Tags Discussions
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CreateDiscussionRequest true "Discussion payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/discussions [post]
func (h *DiscussionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discussion, err := h.discussions.Create(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, discussion)
}

// Update godoc
// @Summary Edit a discussion thread
// @Tags Discussions
// @Accept json
// @Produce json
// @Param id path string true "Discussion ID"
// @Param payload body service.UpdateDiscussionRequest true "Discussion payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /discussions/{id} [put]
func (h *DiscussionHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateDiscussionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	discussion, err := h.discussions.Update(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discussion, nil)
}

// AddComment godoc
// @Summary Reply to a discussion
// @Tags Discussions
// @Accept json
// @Produce json
// @Param id path string true "Discussion ID"
// @Param payload body service.CreateCommentRequest true "Comment payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /discussions/{id}/comments [post]
func (h *DiscussionHandler) AddComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	comment, err := h.discussions.AddComment(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// UpdateComment godoc
// @Summary Edit a comment
// @Tags Discussions
// @Accept json
// @Produce json
// @Param id path string true "Discussion ID"
// @Param commentId path string true "Comment ID"
// @Param payload body service.UpdateCommentRequest true "Comment payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /discussions/{id}/comments/{commentId} [put]
func (h *DiscussionHandler) UpdateComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	comment, err := h.discussions.UpdateComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, comment, nil)
}

// MarkSolution godoc
// @Summary Mark a comment as the accepted answer
// @Tags Discussions
// @Produce json
// @Param id path string true "Discussion ID"
// @Param commentId path string true "Comment ID"
// @Security BearerAuth
// @Success 204
// @Router /discussions/{id}/comments/{commentId}/solution [put]
func (h *DiscussionHandler) MarkSolution(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.discussions.MarkSolution(c.Request.Context(), c.Param("id"), c.Param("commentId"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteComment godoc
// @Summary Delete a comment
// @Tags Discussions
// @Produce json
// @Param id path string true "Discussion ID"
// @Param commentId path string true "Comment ID"
// @Security BearerAuth
// @Success 204
// @Router /discussions/{id}/comments/{commentId} [delete]
func (h *DiscussionHandler) DeleteComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.discussions.DeleteComment(c.Request.Context(), c.Param("id"), c.Param("commentId"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Delete godoc
// @Summary Delete a discussion
// @Tags Discussions
// @Produce json
// @Param id path string true "Discussion ID"
// @Security BearerAuth
// @Success 204
// @Router /discussions/{id} [delete]
func (h *DiscussionHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.discussions.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
