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

type courseServiceMock struct {
	listResp   []models.CourseDetail
	listErr    error
	getResp    *models.CourseDetail
	getHit     bool
	getErr     error
	createResp *models.Course
	createErr  error
	rateResp   float64
	rateErr    error
	lastFilter models.CourseFilter
	listCalled bool
	getCalled  bool
}

func (m *courseServiceMock) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	m.listCalled = true
	m.lastFilter = filter
	return m.listResp, nil, m.listErr
}

func (m *courseServiceMock) Get(ctx context.Context, id string) (*models.CourseDetail, bool, error) {
	m.getCalled = true
	return m.getResp, m.getHit, m.getErr
}

func (m *courseServiceMock) Create(ctx context.Context, instructorID string, req service.CreateCourseRequest) (*models.Course, error) {
	return m.createResp, m.createErr
}

func (m *courseServiceMock) Update(ctx context.Context, id string, actor *models.JWTClaims, req service.UpdateCourseRequest) (*models.Course, error) {
	return nil, appErrors.ErrNotFound
}

func (m *courseServiceMock) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	return nil
}

func (m *courseServiceMock) Rate(ctx context.Context, courseID, studentID string, req service.RateCourseRequest) (float64, error) {
	return m.rateResp, m.rateErr
}

func TestCourseHandlerListForcesPublishedForAnonymous(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &courseServiceMock{listResp: []models.CourseDetail{{Course: models.Course{ID: "course-1"}}}}
	handler := NewCourseHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/courses?published=false", nil)
	c.Request = req

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.listCalled)
	require.NotNil(t, mockSvc.lastFilter.Published)
	assert.True(t, *mockSvc.lastFilter.Published)
}

func TestCourseHandlerListKeepsFilterForInstructor(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &courseServiceMock{}
	handler := NewCourseHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/courses?published=false", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "instructor-1", Role: models.RoleInstructor})

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, mockSvc.lastFilter.Published)
	assert.False(t, *mockSvc.lastFilter.Published)
}

func TestCourseHandlerGetReportsCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &courseServiceMock{
		getResp: &models.CourseDetail{Course: models.Course{ID: "course-1", Title: "Go Basics"}},
		getHit:  true,
	}
	handler := NewCourseHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/courses/course-1", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "course-1"}}

	handler.Get(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Meta)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
}

func TestCourseHandlerCreateRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCourseHandler(&courseServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCourseHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCourseHandler(&courseServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/courses", bytes.NewBufferString(`{"title":"Go"`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "instructor-1", Role: models.RoleInstructor})

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCourseHandlerGetServiceError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &courseServiceMock{getErr: appErrors.ErrNotFound}
	handler := NewCourseHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/courses/missing", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	handler.Get(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.True(t, mockSvc.getCalled)
}
