package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

type assignmentRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error)
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
	FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.AssignmentSubmission, error)
	FindSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error)
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error)
	CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error
	GradeSubmission(ctx context.Context, id string, grade float64, feedback, gradedBy string, gradedAt time.Time) error
}

type assignmentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type assignmentAccessChecker interface {
	CheckAccess(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

type assignmentNotifier interface {
	Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string)
}

// CreateAssignmentRequest holds the payload for creating an assignment.
type CreateAssignmentRequest struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"required,max=10000"`
	DueDate     time.Time `json:"due_date" validate:"required"`
}

// SubmitAssignmentRequest carries a text answer; files arrive separately.
type SubmitAssignmentRequest struct {
	SubmissionText string `json:"submission_text" validate:"omitempty,max=100000"`
}

// GradeSubmissionRequest holds a grade with optional feedback.
type GradeSubmissionRequest struct {
	Grade    float64 `json:"grade" validate:"gte=0,lte=100"`
	Feedback string  `json:"feedback" validate:"omitempty,max=10000"`
}

// AssignmentService manages coursework and grading.
type AssignmentService struct {
	repo        assignmentRepository
	courses     assignmentCourseReader
	enrollments assignmentAccessChecker
	store       *storage.LocalStorage
	notifier    assignmentNotifier
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs an AssignmentService instance.
func NewAssignmentService(repo assignmentRepository, courses assignmentCourseReader, enrollments assignmentAccessChecker, store *storage.LocalStorage, notifier assignmentNotifier, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AssignmentService{
		repo:        repo,
		courses:     courses,
		enrollments: enrollments,
		store:       store,
		notifier:    notifier,
		validator:   validate,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// ListByCourse returns course assignments.
func (s *AssignmentService) ListByCourse(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.Assignment, error) {
	if actor.Role == models.RoleStudent {
		if _, err := s.enrollments.CheckAccess(ctx, actor.UserID, courseID); err != nil {
			return nil, err
		}
	}
	assignments, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Create registers a new assignment on a course owned by the actor.
func (s *AssignmentService) Create(ctx context.Context, courseID string, actor *models.JWTClaims, req CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}
	course, err := s.ownedCourse(ctx, courseID, actor)
	if err != nil {
		return nil, err
	}

	assignment := &models.Assignment{CourseID: courseID, Title: req.Title, Description: req.Description, DueDate: req.DueDate}
	if err := s.repo.Create(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.logger.Info("assignment created", zap.String("assignment_id", assignment.ID), zap.String("course_id", course.ID))
	return assignment, nil
}

// Submit records a student's answer. Late submissions past the due date are
// rejected; resubmission before grading replaces the previous answer.
func (s *AssignmentService) Submit(ctx context.Context, assignmentID, studentID string, req SubmitAssignmentRequest, filename string, file io.Reader) (*models.AssignmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	assignment, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if _, err := s.enrollments.CheckAccess(ctx, studentID, assignment.CourseID); err != nil {
		return nil, err
	}
	if s.now().After(assignment.DueDate) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "assignment due date has passed")
	}

	if existing, err := s.repo.FindSubmission(ctx, assignmentID, studentID); err == nil && existing.Grade != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "graded submissions cannot be replaced")
	} else if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check submission")
	}

	submission := &models.AssignmentSubmission{
		AssignmentID:   assignmentID,
		StudentID:      studentID,
		SubmissionText: req.SubmissionText,
	}
	if file != nil {
		relPath := filepath.Join("submissions", assignmentID, studentID+filepath.Ext(filename))
		stored, err := s.store.SaveStream(relPath, file)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission file")
		}
		submission.SubmissionFile = stored
	}
	if submission.SubmissionText == "" && submission.SubmissionFile == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "submission requires text or a file")
	}

	if err := s.repo.CreateSubmission(ctx, submission); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store submission")
	}
	return submission, nil
}

// ListSubmissions returns an assignment's submissions for its instructor.
func (s *AssignmentService) ListSubmissions(ctx context.Context, assignmentID string, actor *models.JWTClaims) ([]models.AssignmentSubmission, error) {
	assignment, err := s.repo.FindByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if _, err := s.ownedCourse(ctx, assignment.CourseID, actor); err != nil {
		return nil, err
	}
	submissions, err := s.repo.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return submissions, nil
}

// Grade stores a grade and notifies the student.
func (s *AssignmentService) Grade(ctx context.Context, submissionID string, actor *models.JWTClaims, req GradeSubmissionRequest) (*models.AssignmentSubmission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grade payload")
	}

	submission, err := s.repo.FindSubmissionByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	assignment, err := s.repo.FindByID(ctx, submission.AssignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if _, err := s.ownedCourse(ctx, assignment.CourseID, actor); err != nil {
		return nil, err
	}

	now := s.now()
	if err := s.repo.GradeSubmission(ctx, submissionID, req.Grade, req.Feedback, actor.UserID, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to grade submission")
	}
	submission.Grade = &req.Grade
	submission.Feedback = req.Feedback
	submission.GradedAt = &now
	submission.GradedBy = &actor.UserID

	if s.notifier != nil {
		s.notifier.Notify(ctx, submission.StudentID, "Assignment graded",
			fmt.Sprintf("%s was graded: %.1f", assignment.Title, req.Grade), models.NotificationGrade, &submission.ID)
	}
	return submission, nil
}

func (s *AssignmentService) ownedCourse(ctx context.Context, courseID string, actor *models.JWTClaims) (*models.CourseDetail, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.Role != models.RoleAdmin && course.InstructorID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return course, nil
}
