package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

const (
	analyticsCachePrefix = "analytics:courses:"
	analyticsWindowDays  = 30
)

type analyticsRepository interface {
	CourseEnrollmentStats(ctx context.Context, courseID string) (int, float64, error)
	DailyEnrollments(ctx context.Context, courseID string, since time.Time) ([]models.DailyEnrollments, error)
}

type analyticsCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

// AnalyticsService computes per-course enrollment and revenue analytics.
// Results are cached since the underlying aggregates scan whole tables.
type AnalyticsService struct {
	repo    analyticsRepository
	courses analyticsCourseReader
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
}

// NewAnalyticsService constructs an AnalyticsService instance.
func NewAnalyticsService(repo analyticsRepository, courses analyticsCourseReader, cache *CacheService, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		repo:    repo,
		courses: courses,
		cache:   cache,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CourseAnalytics returns the 30-day enrollment series plus totals for a
// course the actor owns. The second return reports a cache hit.
func (s *AnalyticsService) CourseAnalytics(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.CourseAnalytics, bool, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.Role != models.RoleAdmin && course.InstructorID != actor.UserID {
		return nil, false, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	cacheKey := analyticsCachePrefix + courseID
	if s.cache != nil {
		var cached models.CourseAnalytics
		if hit, err := s.cache.Get(ctx, cacheKey, &cached); err == nil && hit {
			return &cached, true, nil
		}
	}

	enrollments, revenue, err := s.repo.CourseEnrollmentStats(ctx, courseID)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute course stats")
	}
	since := s.now().AddDate(0, 0, -analyticsWindowDays)
	series, err := s.repo.DailyEnrollments(ctx, courseID, since)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute enrollment series")
	}

	analytics := &models.CourseAnalytics{
		CourseID:         courseID,
		TotalEnrollments: enrollments,
		TotalRevenue:     revenue,
		Enrollments:      series,
		GeneratedAt:      s.now(),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, analytics, 5*time.Minute); err != nil {
			s.logger.Warn("analytics cache set failed", zap.String("course_id", courseID), zap.Error(err))
		}
	}
	return analytics, false, nil
}

// InvalidateCourse drops the cached analytics for a course.
func (s *AnalyticsService) InvalidateCourse(ctx context.Context, courseID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, analyticsCachePrefix+courseID); err != nil {
		s.logger.Warn("analytics cache invalidate failed", zap.String("course_id", courseID), zap.Error(err))
	}
}
