package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/middleware"
	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

type quizServiceMock struct {
	getResp     *models.QuizDetail
	getErr      error
	startResp   *models.QuizAttempt
	startErr    error
	submitResp  *service.AttemptResult
	submitErr   error
	startCalled bool
}

func (m *quizServiceMock) ListByCourse(ctx context.Context, courseID string) ([]models.Quiz, error) {
	return nil, nil
}

func (m *quizServiceMock) Get(ctx context.Context, id string) (*models.QuizDetail, error) {
	return m.getResp, m.getErr
}

func (m *quizServiceMock) Create(ctx context.Context, courseID string, actor *models.JWTClaims, req service.CreateQuizRequest) (*models.Quiz, error) {
	return nil, appErrors.ErrForbidden
}

func (m *quizServiceMock) AddQuestion(ctx context.Context, quizID string, actor *models.JWTClaims, req service.CreateQuestionRequest) (*models.Question, error) {
	return nil, appErrors.ErrForbidden
}

func (m *quizServiceMock) Update(ctx context.Context, quizID string, actor *models.JWTClaims, req service.UpdateQuizRequest) (*models.Quiz, error) {
	return nil, appErrors.ErrForbidden
}

func (m *quizServiceMock) UpdateQuestion(ctx context.Context, questionID string, actor *models.JWTClaims, req service.UpdateQuestionRequest) (*models.Question, error) {
	return nil, appErrors.ErrForbidden
}

func (m *quizServiceMock) DeleteQuestion(ctx context.Context, questionID string, actor *models.JWTClaims) error {
	return nil
}

func (m *quizServiceMock) AddAnswer(ctx context.Context, questionID string, actor *models.JWTClaims, req service.CreateAnswerRequest) (*models.Answer, error) {
	return nil, appErrors.ErrForbidden
}

func (m *quizServiceMock) DeleteAnswer(ctx context.Context, answerID string, actor *models.JWTClaims) error {
	return nil
}

func (m *quizServiceMock) ListAttempts(ctx context.Context, quizID string, actor *models.JWTClaims) ([]models.QuizAttempt, error) {
	return nil, nil
}

func (m *quizServiceMock) StartAttempt(ctx context.Context, quizID, studentID string) (*models.QuizAttempt, error) {
	m.startCalled = true
	return m.startResp, m.startErr
}

func (m *quizServiceMock) SubmitAttempt(ctx context.Context, attemptID, studentID string, req service.SubmitAttemptRequest) (*service.AttemptResult, error) {
	return m.submitResp, m.submitErr
}

func (m *quizServiceMock) Delete(ctx context.Context, quizID string, actor *models.JWTClaims) error {
	return nil
}

func quizWithAnswers() *models.QuizDetail {
	return &models.QuizDetail{
		Quiz: models.Quiz{ID: "quiz-1", Title: "Checkpoint"},
		Questions: []models.QuestionDetail{
			{
				Question: models.Question{ID: "question-1", Type: models.QuestionMultipleChoice, Points: 1},
				Answers: []models.Answer{
					{ID: "a1", Text: "yes", Correct: true},
					{ID: "a2", Text: "no", Correct: false},
				},
			},
		},
	}
}

func TestQuizHandlerGetStripsAnswersForStudents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &quizServiceMock{getResp: quizWithAnswers()}
	handler := NewQuizHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/quizzes/quiz-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "quiz-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload, err := json.Marshal(envelope.Data)
	require.NoError(t, err)

	var quiz models.QuizDetail
	require.NoError(t, json.Unmarshal(payload, &quiz))
	require.Len(t, quiz.Questions, 1)
	for _, answer := range quiz.Questions[0].Answers {
		assert.False(t, answer.Correct)
	}
}

func TestQuizHandlerGetKeepsAnswersForInstructor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &quizServiceMock{getResp: quizWithAnswers()}
	handler := NewQuizHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/quizzes/quiz-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "quiz-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "instructor-1", Role: models.RoleInstructor})

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	payload, err := json.Marshal(envelope.Data)
	require.NoError(t, err)

	var quiz models.QuizDetail
	require.NoError(t, json.Unmarshal(payload, &quiz))
	require.Len(t, quiz.Questions, 1)
	assert.True(t, quiz.Questions[0].Answers[0].Correct)
}

func TestQuizHandlerStartAttemptCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &quizServiceMock{
		startResp: &models.QuizAttempt{ID: "attempt-1", QuizID: "quiz-1", StudentID: "student-1"},
	}
	handler := NewQuizHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/quizzes/quiz-1/attempts", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "quiz-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.StartAttempt(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.startCalled)
}

func TestQuizHandlerSubmitAttemptConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &quizServiceMock{submitErr: appErrors.ErrAttemptCompleted}
	handler := NewQuizHandler(mockSvc)

	payload, _ := json.Marshal(service.SubmitAttemptRequest{Answers: map[string]string{"question-1": "a1"}})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/attempts/attempt-1/submit", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "attempt-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.SubmitAttempt(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestQuizHandlerSubmitAttemptInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewQuizHandler(&quizServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/attempts/attempt-1/submit", bytes.NewBufferString(`{"answers":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "attempt-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.SubmitAttempt(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
