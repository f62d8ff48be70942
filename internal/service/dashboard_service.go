package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/dto"
	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type dashboardStatsRepository interface {
	StudentStats(ctx context.Context, studentID string) (active, completed int, err error)
	InstructorStats(ctx context.Context, instructorID string) (courses, published, students int, revenue float64, err error)
	AdminStats(ctx context.Context) (users, pendingUsers, courses, enrollments, pendingPayments int, revenue float64, err error)
	RecentEnrollmentsByInstructor(ctx context.Context, instructorID string, limit int) ([]models.EnrollmentDetail, error)
}

type dashboardEnrollmentReader interface {
	ListExpiringBefore(ctx context.Context, studentID string, cutoff time.Time) ([]models.EnrollmentDetail, error)
}

type dashboardAttemptReader interface {
	ListAttemptsByStudent(ctx context.Context, studentID string, limit int) ([]models.QuizAttempt, error)
}

type dashboardNotificationReader interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
}

type dashboardCertificateReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error)
}

// DashboardService composes the role specific dashboard views.
type DashboardService struct {
	stats         dashboardStatsRepository
	enrollments   dashboardEnrollmentReader
	attempts      dashboardAttemptReader
	notifications dashboardNotificationReader
	certificates  dashboardCertificateReader
	metrics       *MetricsService
	logger        *zap.Logger
	now           func() time.Time
}

// NewDashboardService constructs a DashboardService instance.
func NewDashboardService(stats dashboardStatsRepository, enrollments dashboardEnrollmentReader, attempts dashboardAttemptReader, notifications dashboardNotificationReader, certificates dashboardCertificateReader, metrics *MetricsService, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		stats:         stats,
		enrollments:   enrollments,
		attempts:      attempts,
		notifications: notifications,
		certificates:  certificates,
		metrics:       metrics,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// StudentDashboard returns learning activity for one student. Sections that
// fail to load are logged and omitted rather than failing the whole view.
func (s *DashboardService) StudentDashboard(ctx context.Context, studentID string) (*dto.StudentDashboardResponse, error) {
	active, completed, err := s.stats.StudentStats(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student stats")
	}

	resp := &dto.StudentDashboardResponse{
		StudentID:         studentID,
		ActiveEnrollments: active,
		CompletedCourses:  completed,
		GeneratedAt:       s.now(),
	}

	cutoff := s.now().AddDate(0, 0, 7)
	if expiring, err := s.enrollments.ListExpiringBefore(ctx, studentID, cutoff); err != nil {
		s.logger.Warn("expiring enrollments load failed", zap.String("student_id", studentID), zap.Error(err))
	} else {
		resp.ExpiringSoon = expiring
	}

	if attempts, err := s.attempts.ListAttemptsByStudent(ctx, studentID, 5); err != nil {
		s.logger.Warn("recent attempts load failed", zap.String("student_id", studentID), zap.Error(err))
	} else {
		resp.RecentAttempts = attempts
	}

	if notifications, err := s.notifications.ListByUser(ctx, studentID, true, 10); err != nil {
		s.logger.Warn("notifications load failed", zap.String("student_id", studentID), zap.Error(err))
	} else {
		resp.Notifications = notifications
	}

	if certificates, err := s.certificates.ListByStudent(ctx, studentID); err != nil {
		s.logger.Warn("certificates load failed", zap.String("student_id", studentID), zap.Error(err))
	} else {
		resp.Certificates = certificates
	}

	return resp, nil
}

// InstructorDashboard returns teaching activity for one instructor.
func (s *DashboardService) InstructorDashboard(ctx context.Context, instructorID string) (*dto.InstructorDashboardResponse, error) {
	courses, published, students, revenue, err := s.stats.InstructorStats(ctx, instructorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load instructor stats")
	}

	resp := &dto.InstructorDashboardResponse{
		InstructorID:     instructorID,
		CourseCount:      courses,
		PublishedCourses: published,
		TotalStudents:    students,
		TotalRevenue:     revenue,
		GeneratedAt:      s.now(),
	}

	if recent, err := s.stats.RecentEnrollmentsByInstructor(ctx, instructorID, 10); err != nil {
		s.logger.Warn("recent enrollments load failed", zap.String("instructor_id", instructorID), zap.Error(err))
	} else {
		resp.RecentEnrollments = recent
	}

	return resp, nil
}

// AdminDashboard returns marketplace wide counters plus a runtime metrics
// snapshot.
func (s *DashboardService) AdminDashboard(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	users, pendingUsers, courses, enrollments, pendingPayments, revenue, err := s.stats.AdminStats(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load admin stats")
	}

	return &dto.AdminDashboardResponse{
		UserCount:        users,
		PendingApprovals: pendingUsers,
		CourseCount:      courses,
		EnrollmentCount:  enrollments,
		CompletedRevenue: revenue,
		PendingPayments:  pendingPayments,
		System:           s.metrics.Snapshot(),
		GeneratedAt:      s.now(),
	}, nil
}
