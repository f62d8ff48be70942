package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	UpsertRating(ctx context.Context, rating *models.CourseRating) error
	RefreshAverageRating(ctx context.Context, courseID string) (float64, error)
}

type courseEnrollmentChecker interface {
	FindActive(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

type courseCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CreateCourseRequest holds the payload for creating a course.
type CreateCourseRequest struct {
	Title              string     `json:"title" validate:"required,max=200"`
	Description        string     `json:"description" validate:"omitempty,max=10000"`
	Thumbnail          string     `json:"thumbnail" validate:"omitempty,max=512"`
	Price              float64    `json:"price" validate:"gte=0"`
	MaxEnrollments     int        `json:"max_enrollments" validate:"gte=0"`
	EnrollmentDeadline *time.Time `json:"enrollment_deadline"`
	DurationDays       int        `json:"duration_days" validate:"gte=0"`
	Category           string     `json:"category" validate:"omitempty,max=100"`
	Level              string     `json:"level" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
}

// UpdateCourseRequest holds the payload for updating a course.
type UpdateCourseRequest struct {
	Title              *string    `json:"title" validate:"omitempty,max=200"`
	Description        *string    `json:"description" validate:"omitempty,max=10000"`
	Thumbnail          *string    `json:"thumbnail" validate:"omitempty,max=512"`
	Price              *float64   `json:"price" validate:"omitempty,gte=0"`
	Published          *bool      `json:"published"`
	MaxEnrollments     *int       `json:"max_enrollments" validate:"omitempty,gte=0"`
	EnrollmentDeadline *time.Time `json:"enrollment_deadline"`
	DurationDays       *int       `json:"duration_days" validate:"omitempty,gte=0"`
	Category           *string    `json:"category" validate:"omitempty,max=100"`
	Level              *string    `json:"level" validate:"omitempty,oneof=BEGINNER INTERMEDIATE ADVANCED"`
}

// RateCourseRequest holds a 1-5 star rating.
type RateCourseRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

const courseCachePrefix = "courses:"

// CourseService provides catalog management use cases.
type CourseService struct {
	repo        courseRepository
	enrollments courseEnrollmentChecker
	cache       courseCache
	cacheTTL    time.Duration
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewCourseService constructs a CourseService instance.
func NewCourseService(repo courseRepository, enrollments courseEnrollmentChecker, cache courseCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *CourseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &CourseService{repo: repo, enrollments: enrollments, cache: cache, cacheTTL: cacheTTL, validator: validate, logger: logger}
}

// List returns catalog courses matching the filter.
func (s *CourseService) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, *models.Pagination, error) {
	courses, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return courses, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a course detail, served from cache when possible. The second
// return value reports whether the cache satisfied the read.
func (s *CourseService) Get(ctx context.Context, id string) (*models.CourseDetail, bool, error) {
	cacheKey := courseCachePrefix + id
	if s.cache != nil {
		var cached models.CourseDetail
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return &cached, true, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("course cache read failed", zap.String("course_id", id), zap.Error(err))
		}
	}

	course, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, course, s.cacheTTL); err != nil {
			s.logger.Warn("course cache write failed", zap.String("course_id", id), zap.Error(err))
		}
	}
	return course, false, nil
}

// Create registers a new course owned by the instructor.
func (s *CourseService) Create(ctx context.Context, instructorID string, req CreateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	course := &models.Course{
		Title:              req.Title,
		Description:        req.Description,
		Thumbnail:          req.Thumbnail,
		Price:              req.Price,
		InstructorID:       instructorID,
		MaxEnrollments:     req.MaxEnrollments,
		EnrollmentDeadline: req.EnrollmentDeadline,
		DurationDays:       req.DurationDays,
		Category:           req.Category,
		Level:              req.Level,
	}
	if err := s.repo.Create(ctx, course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.invalidateCache(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("instructor_id", instructorID))
	return course, nil
}

// Update applies changes to a course. Only the owning instructor or an admin
// may update; the handler enforces role, this method enforces ownership.
func (s *CourseService) Update(ctx context.Context, id string, actor *models.JWTClaims, req UpdateCourseRequest) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}

	detail, _, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && detail.InstructorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}

	course := detail.Course
	if req.Title != nil {
		course.Title = *req.Title
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.Thumbnail != nil {
		course.Thumbnail = *req.Thumbnail
	}
	if req.Price != nil {
		course.Price = *req.Price
	}
	if req.Published != nil {
		course.Published = *req.Published
	}
	if req.MaxEnrollments != nil {
		course.MaxEnrollments = *req.MaxEnrollments
	}
	if req.EnrollmentDeadline != nil {
		course.EnrollmentDeadline = req.EnrollmentDeadline
	}
	if req.DurationDays != nil {
		course.DurationDays = *req.DurationDays
	}
	if req.Category != nil {
		course.Category = *req.Category
	}
	if req.Level != nil {
		course.Level = *req.Level
	}

	if err := s.repo.Update(ctx, &course); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update course")
	}
	s.invalidateCache(ctx)
	return &course, nil
}

// Delete removes a course. Ownership rules match Update.
func (s *CourseService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	detail, _, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleAdmin && detail.InstructorID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete course")
	}
	s.invalidateCache(ctx)
	s.logger.Info("course deleted", zap.String("course_id", id))
	return nil
}

// Rate records a student's rating. Only enrolled students may rate, and a
// repeat rating replaces the previous one.
func (s *CourseService) Rate(ctx context.Context, courseID, studentID string, req RateCourseRequest) (float64, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid rating payload")
	}

	if _, _, err := s.Get(ctx, courseID); err != nil {
		return 0, err
	}

	if _, err := s.enrollments.FindActive(ctx, studentID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, appErrors.Clone(appErrors.ErrForbidden, "only enrolled students can rate a course")
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	rating := &models.CourseRating{StudentID: studentID, CourseID: courseID, Rating: req.Rating}
	if err := s.repo.UpsertRating(ctx, rating); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store rating")
	}

	avg, err := s.repo.RefreshAverageRating(ctx, courseID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh course rating")
	}
	s.invalidateCache(ctx)
	return avg, nil
}

func (s *CourseService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, courseCachePrefix+"*"); err != nil {
		s.logger.Warn("course cache invalidation failed", zap.Error(err))
	}
}
