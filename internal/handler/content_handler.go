package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// ContentHandler exposes course material and lesson endpoints.
type ContentHandler struct {
	contents *service.ContentService
}

// NewContentHandler constructs ContentHandler.
func NewContentHandler(contents *service.ContentService) *ContentHandler {
	return &ContentHandler{contents: contents}
}

// List godoc
// @Summary List course contents
// @Tags Contents
// @Produce json
// @Param id path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/contents [get]
func (h *ContentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	contents, err := h.contents.ListByCourse(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, contents, nil)
}

// Create godoc
// @Summary Upload course content
// @Tags Contents
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Course ID"
// @Param title formData string true "Content title"
// @Param content_type formData string true "VIDEO, PDF, TEXT or ASSIGNMENT"
// @Param text_content formData string false "Inline text content"
// @Param position formData int false "Ordering position"
// @Param file formData file false "Content file"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/contents [post]
func (h *ContentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := service.CreateContentRequest{
		Title:       c.PostForm("title"),
		ContentType: c.PostForm("content_type"),
		TextContent: c.PostForm("text_content"),
	}
	if position, err := strconv.Atoi(c.DefaultPostForm("position", "0")); err == nil {
		req.Position = position
	}

	var (
		filename string
		size     int64
	)
	fileHeader, err := c.FormFile("file")
	if err == nil && fileHeader != nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, appErrors.Wrap(openErr, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
			return
		}
		defer file.Close()
		filename = fileHeader.Filename
		size = fileHeader.Size

		content, createErr := h.contents.Create(c.Request.Context(), c.Param("id"), claims, req, filename, file, size)
		if createErr != nil {
			response.Error(c, createErr)
			return
		}
		response.Created(c, content)
		return
	}

	content, err := h.contents.Create(c.Request.Context(), c.Param("id"), claims, req, "", nil, 0)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, content)
}

// Update godoc
// @Summary Update content metadata
// @Tags Contents
// @Accept json
// @Produce json
// @Param id path string true "Content ID"
// @Param payload body service.UpdateContentRequest true "Content payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /contents/{id} [put]
func (h *ContentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	content, err := h.contents.Update(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, content, nil)
}

// Delete godoc
// @Summary Delete course content
// @Tags Contents
// @Produce json
// @Param id path string true "Content ID"
// @Security BearerAuth
// @Success 204
// @Router /contents/{id} [delete]
func (h *ContentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.contents.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SignedURL godoc
// @Summary Request a signed download token for content
// @Tags Contents
// @Produce json
// @Param id path string true "Content ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /contents/{id}/download [get]
func (h *ContentHandler) SignedURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	download, err := h.contents.SignedURL(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, download, nil)
}

// Download godoc
// @Summary Stream a file by signed token
// @Tags Contents
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200
// @Router /downloads [get]
func (h *ContentHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token required"))
		return
	}
	file, name, err := h.contents.OpenDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()
	c.Header("Content-Disposition", "attachment; filename=\""+name+"\"")
	c.DataFromReader(http.StatusOK, -1, "application/octet-stream", file, nil)
}

// ListLessons godoc
// @Summary List course lessons
// @Tags Lessons
// @Produce json
// @Param id path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/lessons [get]
func (h *ContentHandler) ListLessons(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	lessons, err := h.contents.ListLessons(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, lessons, nil)
}

// CreateLesson godoc
// @Summary Create a lesson
// @Tags Lessons
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CreateLessonRequest true "Lesson payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/lessons [post]
func (h *ContentHandler) CreateLesson(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	lesson, err := h.contents.CreateLesson(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, lesson)
}

// CompleteLesson godoc
// @Summary Mark a lesson as completed
// @Tags Lessons
// @Produce json
// @Param id path string true "Lesson ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /lessons/{id}/complete [post]
func (h *ContentHandler) CompleteLesson(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	enrollment, err := h.contents.CompleteLesson(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, enrollment, nil)
}
