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
)

type enrollmentServiceMock struct {
	listResp     []models.EnrollmentDetail
	listErr      error
	enrollResp   *models.Enrollment
	enrollErr    error
	renewResp    *models.Enrollment
	renewErr     error
	lastFilter   models.EnrollmentFilter
	lastRenewal  service.RenewRequest
	enrollCalled bool
	renewCalled  bool
}

func (m *enrollmentServiceMock) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	m.lastFilter = filter
	return m.listResp, nil, m.listErr
}

func (m *enrollmentServiceMock) Get(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.Enrollment, error) {
	return nil, appErrors.ErrNotFound
}

func (m *enrollmentServiceMock) Enroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	m.enrollCalled = true
	return m.enrollResp, m.enrollErr
}

func (m *enrollmentServiceMock) Renew(ctx context.Context, enrollmentID, studentID string, req service.RenewRequest) (*models.Enrollment, error) {
	m.renewCalled = true
	m.lastRenewal = req
	return m.renewResp, m.renewErr
}

func (m *enrollmentServiceMock) Cancel(ctx context.Context, enrollmentID, studentID string) error {
	return nil
}

func (m *enrollmentServiceMock) RecalculateProgress(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	return nil, appErrors.ErrNotFound
}

func TestEnrollmentHandlerListPinsStudentFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments?studentId=other-student", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-1", mockSvc.lastFilter.StudentID)
}

func TestEnrollmentHandlerListAdminKeepsFilter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/enrollments?studentId=student-2", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "student-2", mockSvc.lastFilter.StudentID)
}

func TestEnrollmentHandlerEnrollRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses/course-1/enroll", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Enroll(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, mockSvc.enrollCalled)
}

func TestEnrollmentHandlerEnrollCreated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{
		enrollResp: &models.Enrollment{ID: "enrollment-1", StudentID: "student-1", CourseID: "course-1"},
	}
	handler := NewEnrollmentHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses/course-1/enroll", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Enroll(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.enrollCalled)
}

func TestEnrollmentHandlerRenewPassesDuration(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{
		renewResp: &models.Enrollment{ID: "enrollment-1"},
	}
	handler := NewEnrollmentHandler(mockSvc)

	payload, _ := json.Marshal(service.RenewRequest{Days: 30})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/enrollments/enrollment-1/renew", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enrollment-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Renew(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.renewCalled)
	assert.Equal(t, 30, mockSvc.lastRenewal.Days)
}

func TestEnrollmentHandlerRenewServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &enrollmentServiceMock{renewErr: appErrors.ErrConflict}
	handler := NewEnrollmentHandler(mockSvc)

	payload, _ := json.Marshal(service.RenewRequest{Days: 30})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPut, "/enrollments/enrollment-1/renew", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "enrollment-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: models.RoleStudent})

	handler.Renew(c)
	require.Equal(t, http.StatusConflict, w.Code)
}
