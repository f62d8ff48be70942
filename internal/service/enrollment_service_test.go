package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockEnrollmentRepo struct {
	enrollments map[string]models.Enrollment
	active      map[string]models.Enrollment
	created     *models.Enrollment
	updated     *models.Enrollment
	activeCount int
	expired     []models.Enrollment
}

func activeKey(studentID, courseID string) string { return studentID + "/" + courseID }

func (m *mockEnrollmentRepo) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	if e, ok := m.enrollments[id]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) FindActive(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	if e, ok := m.active[activeKey(studentID, courseID)]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockEnrollmentRepo) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	return nil, 0, nil
}

func (m *mockEnrollmentRepo) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = "new-enrollment"
	}
	m.created = enrollment
	return nil
}

func (m *mockEnrollmentRepo) Update(ctx context.Context, enrollment *models.Enrollment) error {
	m.updated = enrollment
	if m.enrollments == nil {
		m.enrollments = make(map[string]models.Enrollment)
	}
	m.enrollments[enrollment.ID] = *enrollment
	return nil
}

func (m *mockEnrollmentRepo) TouchLastAccessed(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockEnrollmentRepo) DeactivateExpired(ctx context.Context, now time.Time) ([]models.Enrollment, error) {
	return m.expired, nil
}

func (m *mockEnrollmentRepo) CountActiveByCourse(ctx context.Context, courseID string) (int, error) {
	return m.activeCount, nil
}

type mockCourseReader struct {
	courses map[string]*models.CourseDetail
}

func (m *mockCourseReader) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	if c, ok := m.courses[id]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockPaymentChecker struct {
	paid   map[string]bool
	called bool
}

func (m *mockPaymentChecker) HasCompletedPayment(ctx context.Context, userID, courseID string) (bool, error) {
	m.called = true
	return m.paid[activeKey(userID, courseID)], nil
}

type mockProgressReader struct {
	total int
	done  int
}

func (m *mockProgressReader) CountLessons(ctx context.Context, courseID string) (int, error) {
	return m.total, nil
}

func (m *mockProgressReader) CountCompletedLessons(ctx context.Context, studentID, courseID string) (int, error) {
	return m.done, nil
}

type mockNotifier struct {
	notified []string
}

func (m *mockNotifier) Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string) {
	m.notified = append(m.notified, userID)
}

func newEnrollmentTestService(repo *mockEnrollmentRepo, courses *mockCourseReader, payments *mockPaymentChecker, at time.Time) (*EnrollmentService, *mockNotifier) {
	notifier := &mockNotifier{}
	svc := NewEnrollmentService(repo, courses, payments, &mockProgressReader{}, notifier, 30, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return at }
	return svc, notifier
}

func TestEnrollFreeCourseSkipsPayment(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"c1": {Course: models.Course{ID: "c1", Title: "Intro", Price: 0, Published: true, InstructorID: "i1"}},
	}}
	payments := &mockPaymentChecker{}
	svc, notifier := newEnrollmentTestService(repo, courses, payments, time.Now().UTC())

	enrollment, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.True(t, enrollment.Active)
	assert.Nil(t, enrollment.ExpiresAt)
	assert.Equal(t, models.SubscriptionUnlimited, enrollment.SubscriptionType)
	assert.False(t, payments.called, "free courses must never touch the payment ledger")
	assert.Len(t, notifier.notified, 2)
}

func TestEnrollPaidCourseRequiresCompletedPayment(t *testing.T) {
	repo := &mockEnrollmentRepo{}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"c1": {Course: models.Course{ID: "c1", Price: 49.99, Published: true, DurationDays: 30}},
	}}
	payments := &mockPaymentChecker{}
	svc, _ := newEnrollmentTestService(repo, courses, payments, time.Now().UTC())

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPaymentRequired.Code, appErr.Code)

	payments.paid = map[string]bool{activeKey("s1", "c1"): true}
	enrollment, err := svc.Enroll(context.Background(), "s1", "c1")
	require.NoError(t, err)
	require.NotNil(t, enrollment.ExpiresAt)
	assert.Equal(t, models.SubscriptionMonthly, enrollment.SubscriptionType)
}

func TestEnrollRejectsDuplicateAndClosedCourses(t *testing.T) {
	now := time.Now().UTC()
	past := now.Add(-time.Hour)
	repo := &mockEnrollmentRepo{active: map[string]models.Enrollment{
		activeKey("s1", "c1"): {ID: "e1", StudentID: "s1", CourseID: "c1", Active: true},
	}}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"c1": {Course: models.Course{ID: "c1", Published: true}},
		"c2": {Course: models.Course{ID: "c2", Published: true, EnrollmentDeadline: &past}},
		"c3": {Course: models.Course{ID: "c3", Published: false}},
	}}
	svc, _ := newEnrollmentTestService(repo, courses, &mockPaymentChecker{}, now)

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	assert.Equal(t, appErrors.ErrAlreadyEnrolled.Code, appErrors.FromError(err).Code)

	_, err = svc.Enroll(context.Background(), "s1", "c2")
	assert.Equal(t, appErrors.ErrEnrollmentClosed.Code, appErrors.FromError(err).Code)

	_, err = svc.Enroll(context.Background(), "s1", "c3")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEnrollRejectsFullCourse(t *testing.T) {
	repo := &mockEnrollmentRepo{activeCount: 2}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"c1": {Course: models.Course{ID: "c1", Published: true, MaxEnrollments: 2}},
	}}
	svc, _ := newEnrollmentTestService(repo, courses, &mockPaymentChecker{}, time.Now().UTC())

	_, err := svc.Enroll(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentClosed.Code, appErrors.FromError(err).Code)
}

func TestRenewStacksOnLiveEnrollment(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, 10)
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Active: true, ExpiresAt: &expiry},
	}}
	svc, _ := newEnrollmentTestService(repo, &mockCourseReader{}, &mockPaymentChecker{}, now)

	renewed, err := svc.Renew(context.Background(), "e1", "s1", RenewRequest{Days: 30})
	require.NoError(t, err)
	require.NotNil(t, renewed.ExpiresAt)
	assert.Equal(t, expiry.AddDate(0, 0, 30), *renewed.ExpiresAt)
	assert.True(t, renewed.Active)
	require.NotNil(t, renewed.RenewedAt)
	assert.Equal(t, now, *renewed.RenewedAt)
}

func TestRenewAfterExpiryRestartsFromNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	expiry := now.AddDate(0, 0, -5)
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Active: false, ExpiresAt: &expiry},
	}}
	svc, _ := newEnrollmentTestService(repo, &mockCourseReader{}, &mockPaymentChecker{}, now)

	renewed, err := svc.Renew(context.Background(), "e1", "s1", RenewRequest{Days: 30})
	require.NoError(t, err)
	require.NotNil(t, renewed.ExpiresAt)
	assert.Equal(t, now.AddDate(0, 0, 30), *renewed.ExpiresAt)
	assert.True(t, renewed.Active, "renewal after expiry must reactivate access")
}

func TestRenewRejectsUnlimitedEnrollment(t *testing.T) {
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Active: true},
	}}
	svc, _ := newEnrollmentTestService(repo, &mockCourseReader{}, &mockPaymentChecker{}, time.Now().UTC())

	_, err := svc.Renew(context.Background(), "e1", "s1", RenewRequest{Days: 30})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestRenewRejectsForeignEnrollment(t *testing.T) {
	expiry := time.Now().UTC().AddDate(0, 0, 10)
	repo := &mockEnrollmentRepo{enrollments: map[string]models.Enrollment{
		"e1": {ID: "e1", StudentID: "s1", CourseID: "c1", Active: true, ExpiresAt: &expiry},
	}}
	svc, _ := newEnrollmentTestService(repo, &mockCourseReader{}, &mockPaymentChecker{}, time.Now().UTC())

	_, err := svc.Renew(context.Background(), "e1", "s2", RenewRequest{Days: 30})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCheckAccessRejectsExpiredEnrollment(t *testing.T) {
	now := time.Now().UTC()
	expiry := now.Add(-time.Hour)
	repo := &mockEnrollmentRepo{active: map[string]models.Enrollment{
		activeKey("s1", "c1"): {ID: "e1", StudentID: "s1", CourseID: "c1", Active: true, ExpiresAt: &expiry},
	}}
	svc, _ := newEnrollmentTestService(repo, &mockCourseReader{}, &mockPaymentChecker{}, now)

	_, err := svc.CheckAccess(context.Background(), "s1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrEnrollmentExpired.Code, appErrors.FromError(err).Code)

	_, err = svc.CheckAccess(context.Background(), "s2", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestRecalculateProgressFlipsCompleted(t *testing.T) {
	repo := &mockEnrollmentRepo{active: map[string]models.Enrollment{
		activeKey("s1", "c1"): {ID: "e1", StudentID: "s1", CourseID: "c1", Active: true, Progress: 50},
	}}
	notifier := &mockNotifier{}
	svc := NewEnrollmentService(repo, &mockCourseReader{}, &mockPaymentChecker{}, &mockProgressReader{total: 4, done: 4}, notifier, 30, validator.New(), zap.NewNop())

	enrollment, err := svc.RecalculateProgress(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, float64(100), enrollment.Progress)
	assert.True(t, enrollment.Completed)
	assert.Len(t, notifier.notified, 1)
}

func TestSweepExpiredNotifiesStudents(t *testing.T) {
	repo := &mockEnrollmentRepo{expired: []models.Enrollment{
		{ID: "e1", StudentID: "s1"},
		{ID: "e2", StudentID: "s2"},
	}}
	svc, notifier := newEnrollmentTestService(repo, &mockCourseReader{}, &mockPaymentChecker{}, time.Now().UTC())

	count, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.ElementsMatch(t, []string{"s1", "s2"}, notifier.notified)
}
