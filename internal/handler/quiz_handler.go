package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

type quizService interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error)
	Get(ctx context.Context, id string) (*models.QuizDetail, error)
	Create(ctx context.Context, courseID string, actor *models.JWTClaims, req service.CreateQuizRequest) (*models.Quiz, error)
	Update(ctx context.Context, quizID string, actor *models.JWTClaims, req service.UpdateQuizRequest) (*models.Quiz, error)
	AddQuestion(ctx context.Context, quizID string, actor *models.JWTClaims, req service.CreateQuestionRequest) (*models.Question, error)
	UpdateQuestion(ctx context.Context, questionID string, actor *models.JWTClaims, req service.UpdateQuestionRequest) (*models.Question, error)
	DeleteQuestion(ctx context.Context, questionID string, actor *models.JWTClaims) error
	AddAnswer(ctx context.Context, questionID string, actor *models.JWTClaims, req service.CreateAnswerRequest) (*models.Answer, error)
	DeleteAnswer(ctx context.Context, answerID string, actor *models.JWTClaims) error
	StartAttempt(ctx context.Context, quizID, studentID string) (*models.QuizAttempt, error)
	SubmitAttempt(ctx context.Context, attemptID, studentID string, req service.SubmitAttemptRequest) (*service.AttemptResult, error)
	ListAttempts(ctx context.Context, quizID string, actor *models.JWTClaims) ([]models.QuizAttempt, error)
	Delete(ctx context.Context, quizID string, actor *models.JWTClaims) error
}

// QuizHandler exposes quiz and attempt endpoints.
type QuizHandler struct {
	quizzes quizService
}

// NewQuizHandler constructs QuizHandler.
func NewQuizHandler(quizzes quizService) *QuizHandler {
	return &QuizHandler{quizzes: quizzes}
}

// List godoc
// @Summary List course quizzes
// @Tags Quizzes
// @Produce json
// @Param id path string true "Course ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/quizzes [get]
func (h *QuizHandler) List(c *gin.Context) {
	quizzes, err := h.quizzes.ListByCourse(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quizzes, nil)
}

// Get godoc
// @Summary Get a quiz with questions
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id} [get]
func (h *QuizHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	quiz, err := h.quizzes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if claims.Role == models.RoleStudent {
		stripCorrectFlags(quiz)
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// Create godoc
// @Summary Create a quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Course ID"
// @Param payload body service.CreateQuizRequest true "Quiz payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/quizzes [post]
func (h *QuizHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quiz, err := h.quizzes.Create(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, quiz)
}

// Update godoc
// @Summary Update a quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body service.UpdateQuizRequest true "Quiz payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id} [put]
func (h *QuizHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	quiz, err := h.quizzes.Update(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quiz, nil)
}

// AddQuestion godoc
// @Summary Add a question to a quiz
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Quiz ID"
// @Param payload body service.CreateQuestionRequest true "Question payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /quizzes/{id}/questions [post]
func (h *QuizHandler) AddQuestion(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.quizzes.AddQuestion(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, question)
}

// UpdateQuestion godoc
// @Summary Update a question's text and points
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body service.UpdateQuestionRequest true "Question payload"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /questions/{id} [put]
func (h *QuizHandler) UpdateQuestion(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.UpdateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	question, err := h.quizzes.UpdateQuestion(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, question, nil)
}

// AddAnswer godoc
// @Summary Add an answer option to a question
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Question ID"
// @Param payload body service.CreateAnswerRequest true "Answer payload"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /questions/{id}/answers [post]
func (h *QuizHandler) AddAnswer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.CreateAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	answer, err := h.quizzes.AddAnswer(c.Request.Context(), c.Param("id"), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, answer)
}

// DeleteAnswer godoc
// @Summary Delete an answer option
// @Tags Quizzes
// @Produce json
// @Param id path string true "Answer ID"
// @Security BearerAuth
// @Success 204
// @Router /answers/{id} [delete]
func (h *QuizHandler) DeleteAnswer(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.quizzes.DeleteAnswer(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteQuestion godoc
// @Summary Delete a question
// @Tags Quizzes
// @Produce json
// @Param id path string true "Question ID"
// @Security BearerAuth
// @Success 204
// @Router /questions/{id} [delete]
func (h *QuizHandler) DeleteQuestion(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.quizzes.DeleteQuestion(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// ListAttempts godoc
// @Summary List a quiz's attempts
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /quizzes/{id}/attempts [get]
func (h *QuizHandler) ListAttempts(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	attempts, err := h.quizzes.ListAttempts(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, attempts, nil)
}

// StartAttempt godoc
// @Summary Start or resume a quiz attempt
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /quizzes/{id}/attempts [post]
func (h *QuizHandler) StartAttempt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	attempt, err := h.quizzes.StartAttempt(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, attempt)
}

// SubmitAttempt godoc
// @Summary Submit answers for an attempt
// @Tags Quizzes
// @Accept json
// @Produce json
// @Param id path string true "Attempt ID"
// @Param payload body service.SubmitAttemptRequest true "Selected answers"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /attempts/{id}/submit [put]
func (h *QuizHandler) SubmitAttempt(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req service.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.quizzes.SubmitAttempt(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete a quiz
// @Tags Quizzes
// @Produce json
// @Param id path string true "Quiz ID"
// @Security BearerAuth
// @Success 204
// @Router /quizzes/{id} [delete]
func (h *QuizHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.quizzes.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// stripCorrectFlags clears correctness markers before a quiz is shown to a
// student taking it.
func stripCorrectFlags(quiz *models.QuizDetail) {
	for i := range quiz.Questions {
		for j := range quiz.Questions[i].Answers {
			quiz.Questions[i].Answers[j].Correct = false
		}
	}
}
