package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// AssignmentHandler exposes coursework endpoints.
type AssignmentHandler struct {
	assignments *service.AssignmentService
}

// NewAssignmentHandler constructs AssignmentHandler.
func NewAssignmentHandler(assignments *service.AssignmentService) *AssignmentHandler {
	return &AssignmentHandler{assignments: assignments}
}

// List godoc
// @Summary List course assignments
// @Tags Assignments
// @Produce json
// @Param id path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/assignments [get]
func (h *AssignmentHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	assignments, err := h.assignments.ListByCourse(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// Create godoc
// @Summary Create an assignment
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CreateAssignmentRequest true "Assignment payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/assignments [post]
func (h *AssignmentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateAssignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	assignment, err := h.assignments.Create(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, assignment)
}

// Submit godoc
// @Summary Submit an assignment answer
// @Tags Assignments
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Assignment ID"
// @Param submission_text formData string false "Text answer"
// @Param file formData file false "Answer file"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /assignments/{id}/submissions [post]
func (h *AssignmentHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	req := service.SubmitAssignmentRequest{SubmissionText: c.PostForm("submission_text")}

	fileHeader, err := c.FormFile("file")
	if err == nil && fileHeader != nil {
		file, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, appErrors.Wrap(openErr, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
			return
		}
		defer file.Close()
		submission, submitErr := h.assignments.Submit(c.Request.Context(), c.Param("id"), claims.UserID, req, fileHeader.Filename, file)
		if submitErr != nil {
			response.Error(c, submitErr)
			return
		}
		response.Created(c, submission)
		return
	}

	submission, err := h.assignments.Submit(c.Request.Context(), c.Param("id"), claims.UserID, req, "", nil)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, submission)
}

// ListSubmissions godoc
// @Summary List an assignment's submissions
// @Tags Assignments
// @Produce json
// @Param id path string true "Assignment ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /assignments/{id}/submissions [get]
func (h *AssignmentHandler) ListSubmissions(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	submissions, err := h.assignments.ListSubmissions(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submissions, nil)
}

// Grade godoc
// @Summary Grade a submission
// @Tags Assignments
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param payload body service.GradeSubmissionRequest true "Grade payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /submissions/{id}/grade [put]
func (h *AssignmentHandler) Grade(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.GradeSubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	submission, err := h.assignments.Grade(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, submission, nil)
}
