package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type enrollmentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Enrollment, error)
	FindActive(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error)
	Create(ctx context.Context, enrollment *models.Enrollment) error
	Update(ctx context.Context, enrollment *models.Enrollment) error
	TouchLastAccessed(ctx context.Context, id string, ts time.Time) error
	DeactivateExpired(ctx context.Context, now time.Time) ([]models.Enrollment, error)
	CountActiveByCourse(ctx context.Context, courseID string) (int, error)
}

type enrollmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type enrollmentPaymentChecker interface {
	HasCompletedPayment(ctx context.Context, userID, courseID string) (bool, error)
}

type enrollmentNotifier interface {
	Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string)
}

type enrollmentProgressReader interface {
	CountLessons(ctx context.Context, courseID string) (int, error)
	CountCompletedLessons(ctx context.Context, studentID, courseID string) (int, error)
}

// RenewRequest extends an enrollment by a number of days.
type RenewRequest struct {
	Days int `json:"days" validate:"omitempty,gte=1,lte=730"`
}

// EnrollmentService manages the enrollment lifecycle.
type EnrollmentService struct {
	repo             enrollmentRepository
	courses          enrollmentCourseReader
	payments         enrollmentPaymentChecker
	progress         enrollmentProgressReader
	notifier         enrollmentNotifier
	defaultRenewDays int
	validator        *validator.Validate
	logger           *zap.Logger
	now              func() time.Time
}

// NewEnrollmentService constructs an EnrollmentService instance.
func NewEnrollmentService(repo enrollmentRepository, courses enrollmentCourseReader, payments enrollmentPaymentChecker, progress enrollmentProgressReader, notifier enrollmentNotifier, defaultRenewDays int, validate *validator.Validate, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if defaultRenewDays <= 0 {
		defaultRenewDays = 30
	}
	return &EnrollmentService{
		repo:             repo,
		courses:          courses,
		payments:         payments,
		progress:         progress,
		notifier:         notifier,
		defaultRenewDays: defaultRenewDays,
		validator:        validate,
		logger:           logger,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// Enroll grants a student access to a course. Paid courses require a
// completed payment first; free courses enroll directly and never touch the
// payment ledger.
func (s *EnrollmentService) Enroll(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	now := s.now()
	if !course.Published {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
	}
	if !course.EnrollmentOpen(now) {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentClosed, "enrollment deadline has passed")
	}

	if _, err := s.repo.FindActive(ctx, studentID, courseID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrAlreadyEnrolled, "already enrolled in this course")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	if course.MaxEnrollments > 0 {
		count, err := s.repo.CountActiveByCourse(ctx, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		if count >= course.MaxEnrollments {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentClosed, "course is full")
		}
	}

	if !course.Free() {
		paid, err := s.payments.HasCompletedPayment(ctx, studentID, courseID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check payment")
		}
		if !paid {
			return nil, appErrors.Clone(appErrors.ErrPaymentRequired, "course requires payment before enrollment")
		}
	}

	enrollment := &models.Enrollment{
		StudentID:        studentID,
		CourseID:         courseID,
		EnrolledAt:       now,
		LastAccessed:     now,
		ExpiresAt:        course.ExpiryFor(now),
		SubscriptionType: subscriptionFor(course.DurationDays),
		Active:           true,
	}
	if err := s.repo.Create(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create enrollment")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, studentID, "Enrollment confirmed", fmt.Sprintf("You are now enrolled in %s.", course.Title), models.NotificationEnrollment, &enrollment.ID)
		s.notifier.Notify(ctx, course.InstructorID, "New student", fmt.Sprintf("A student enrolled in %s.", course.Title), models.NotificationEnrollment, &enrollment.ID)
	}
	s.logger.Info("student enrolled", zap.String("enrollment_id", enrollment.ID), zap.String("course_id", courseID))
	return enrollment, nil
}

// Renew extends an enrollment's access window. Extensions on a live
// enrollment stack on the current expiry; renewing after expiry restarts the
// window from now and reactivates access.
func (s *EnrollmentService) Renew(ctx context.Context, enrollmentID, studentID string, req RenewRequest) (*models.Enrollment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid renew payload")
	}
	days := req.Days
	if days <= 0 {
		days = s.defaultRenewDays
	}

	enrollment, err := s.getOwned(ctx, enrollmentID, studentID)
	if err != nil {
		return nil, err
	}
	if enrollment.ExpiresAt == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "unlimited enrollments cannot be renewed")
	}

	now := s.now()
	if enrollment.Expired(now) {
		expiry := now.AddDate(0, 0, days)
		enrollment.ExpiresAt = &expiry
	} else {
		expiry := enrollment.ExpiresAt.AddDate(0, 0, days)
		enrollment.ExpiresAt = &expiry
	}
	enrollment.Active = true
	enrollment.RenewedAt = &now

	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to renew enrollment")
	}

	if s.notifier != nil {
		s.notifier.Notify(ctx, studentID, "Subscription renewed", fmt.Sprintf("Access extended until %s.", enrollment.ExpiresAt.Format("2006-01-02")), models.NotificationEnrollment, &enrollment.ID)
	}
	return enrollment, nil
}

// Cancel deactivates an enrollment without deleting its history.
func (s *EnrollmentService) Cancel(ctx context.Context, enrollmentID, studentID string) error {
	enrollment, err := s.getOwned(ctx, enrollmentID, studentID)
	if err != nil {
		return err
	}
	if !enrollment.Active {
		return appErrors.Clone(appErrors.ErrConflict, "enrollment is already inactive")
	}
	enrollment.Active = false
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel enrollment")
	}
	return nil
}

// Get returns an enrollment visible to the actor. Students only see their
// own enrollments.
func (s *EnrollmentService) Get(ctx context.Context, enrollmentID string, actor *models.JWTClaims) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if actor.Role == models.RoleStudent && enrollment.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	return enrollment, nil
}

// List returns enrollment details matching the filter.
func (s *EnrollmentService) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, *models.Pagination, error) {
	enrollments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list enrollments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return enrollments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// CheckAccess verifies the student can open course material right now and
// records the access. Expired enrollments are rejected with a precondition
// failure so clients can offer renewal.
func (s *EnrollmentService) CheckAccess(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindActive(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	now := s.now()
	if enrollment.Expired(now) {
		return nil, appErrors.Clone(appErrors.ErrEnrollmentExpired, "enrollment has expired, renew to regain access")
	}

	if err := s.repo.TouchLastAccessed(ctx, enrollment.ID, now); err != nil {
		s.logger.Warn("failed to record course access", zap.String("enrollment_id", enrollment.ID), zap.Error(err))
	}
	return enrollment, nil
}

// RecalculateProgress refreshes the lesson completion ratio and flips the
// completed flag when every lesson is done.
func (s *EnrollmentService) RecalculateProgress(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindActive(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}

	total, err := s.progress.CountLessons(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count lessons")
	}
	if total == 0 {
		return enrollment, nil
	}
	done, err := s.progress.CountCompletedLessons(ctx, studentID, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed lessons")
	}

	enrollment.Progress = float64(done) / float64(total) * 100
	wasCompleted := enrollment.Completed
	enrollment.Completed = done >= total
	if err := s.repo.Update(ctx, enrollment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update progress")
	}

	if enrollment.Completed && !wasCompleted && s.notifier != nil {
		s.notifier.Notify(ctx, studentID, "Course completed", "Congratulations, you finished the course.", models.NotificationCertificate, &enrollment.ID)
	}
	return enrollment, nil
}

// SweepExpired deactivates lapsed enrollments and notifies affected students.
// Intended to run on a ticker from main.
func (s *EnrollmentService) SweepExpired(ctx context.Context) (int, error) {
	expired, err := s.repo.DeactivateExpired(ctx, s.now())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sweep enrollments")
	}
	for i := range expired {
		if s.notifier != nil {
			s.notifier.Notify(ctx, expired[i].StudentID, "Enrollment expired", "Your course access has expired. Renew your subscription to continue.", models.NotificationEnrollment, &expired[i].ID)
		}
	}
	if len(expired) > 0 {
		s.logger.Info("expired enrollments deactivated", zap.Int("count", len(expired)))
	}
	return len(expired), nil
}

func (s *EnrollmentService) getOwned(ctx context.Context, enrollmentID, studentID string) (*models.Enrollment, error) {
	enrollment, err := s.repo.FindByID(ctx, enrollmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "enrollment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollment")
	}
	if enrollment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "enrollment belongs to another student")
	}
	return enrollment, nil
}

func subscriptionFor(durationDays int) models.SubscriptionType {
	switch {
	case durationDays <= 0:
		return models.SubscriptionUnlimited
	case durationDays <= 31:
		return models.SubscriptionMonthly
	default:
		return models.SubscriptionYearly
	}
}
