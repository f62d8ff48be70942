package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

type contentRepository interface {
	ListByCourse(ctx context.Context, courseID string) ([]models.Content, error)
	FindByID(ctx context.Context, id string) (*models.Content, error)
	Create(ctx context.Context, content *models.Content) error
	Update(ctx context.Context, content *models.Content) error
	Delete(ctx context.Context, id string) error
	ListLessonsByCourse(ctx context.Context, courseID string) ([]models.Lesson, error)
	FindLessonByID(ctx context.Context, id string) (*models.Lesson, error)
	CreateLesson(ctx context.Context, lesson *models.Lesson) error
	DeleteLesson(ctx context.Context, id string) error
	MarkLessonCompleted(ctx context.Context, completed *models.CompletedLesson) error
}

type contentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type contentAccessChecker interface {
	CheckAccess(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
	RecalculateProgress(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

// CreateContentRequest holds a content item's metadata.
type CreateContentRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	ContentType string `json:"content_type" validate:"required,oneof=VIDEO PDF TEXT ASSIGNMENT"`
	TextContent string `json:"text_content" validate:"omitempty,max=100000"`
	Position    int    `json:"position" validate:"gte=0"`
}

// UpdateContentRequest rewrites a content item's metadata. Stored files are
// replaced by deleting and re-uploading, never edited in place.
type UpdateContentRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	TextContent string `json:"text_content" validate:"omitempty,max=100000"`
	Position    int    `json:"position" validate:"gte=0"`
}

// CreateLessonRequest holds a lesson's metadata.
type CreateLessonRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"omitempty,max=5000"`
	Position    int    `json:"position" validate:"gte=0"`
}

// SignedDownload points at a stored file through a time-limited token.
type SignedDownload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// UploadLimits restricts accepted content uploads.
type UploadLimits struct {
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
}

// ContentService manages course material, lessons and completion marks.
type ContentService struct {
	repo        contentRepository
	courses     contentCourseReader
	enrollments contentAccessChecker
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	limits      UploadLimits
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewContentService constructs a ContentService instance.
func NewContentService(repo contentRepository, courses contentCourseReader, enrollments contentAccessChecker, store *storage.LocalStorage, signer *storage.SignedURLSigner, limits UploadLimits, validate *validator.Validate, logger *zap.Logger) *ContentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ContentService{repo: repo, courses: courses, enrollments: enrollments, store: store, signer: signer, limits: limits, validator: validate, logger: logger}
}

// ListByCourse returns the course's material. Students need a live
// enrollment; instructors and admins see their courses directly.
func (s *ContentService) ListByCourse(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.Content, error) {
	if err := s.checkViewAccess(ctx, courseID, actor); err != nil {
		return nil, err
	}
	contents, err := s.repo.ListByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list contents")
	}
	return contents, nil
}

// Create stores a content item, optionally with an uploaded file.
func (s *ContentService) Create(ctx context.Context, courseID string, actor *models.JWTClaims, req CreateContentRequest, filename string, file io.Reader, size int64) (*models.Content, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}
	if err := s.checkManageAccess(ctx, courseID, actor); err != nil {
		return nil, err
	}

	content := &models.Content{
		CourseID:    courseID,
		Title:       req.Title,
		ContentType: models.ContentType(req.ContentType),
		TextContent: req.TextContent,
		Position:    req.Position,
	}

	if file != nil {
		if s.limits.MaxFileSizeBytes > 0 && size > s.limits.MaxFileSizeBytes {
			return nil, appErrors.Clone(appErrors.ErrValidation, "uploaded file exceeds size limit")
		}
		relPath := filepath.Join("contents", courseID, uuid.NewString()+filepath.Ext(filename))
		stored, err := s.store.SaveStream(relPath, file)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store upload")
		}
		content.FilePath = stored
	}

	if err := s.repo.Create(ctx, content); err != nil {
		if content.FilePath != "" {
			if cleanupErr := s.store.Delete(content.FilePath); cleanupErr != nil {
				s.logger.Warn("failed to remove orphaned upload", zap.String("path", content.FilePath), zap.Error(cleanupErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create content")
	}
	return content, nil
}

// Update rewrites a content item's metadata.
func (s *ContentService) Update(ctx context.Context, contentID string, actor *models.JWTClaims, req UpdateContentRequest) (*models.Content, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}
	content, err := s.repo.FindByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}
	if err := s.checkManageAccess(ctx, content.CourseID, actor); err != nil {
		return nil, err
	}

	content.Title = req.Title
	content.TextContent = req.TextContent
	content.Position = req.Position
	if err := s.repo.Update(ctx, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update content")
	}
	return content, nil
}

// Delete removes a content item and its stored file.
func (s *ContentService) Delete(ctx context.Context, contentID string, actor *models.JWTClaims) error {
	content, err := s.repo.FindByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}
	if err := s.checkManageAccess(ctx, content.CourseID, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, contentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete content")
	}
	if content.FilePath != "" {
		if err := s.store.Delete(content.FilePath); err != nil {
			s.logger.Warn("failed to remove stored file", zap.String("path", content.FilePath), zap.Error(err))
		}
	}
	return nil
}

// SignedURL issues a short-lived download token for a content file.
func (s *ContentService) SignedURL(ctx context.Context, contentID string, actor *models.JWTClaims) (*SignedDownload, error) {
	content, err := s.repo.FindByID(ctx, contentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}
	if content.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "content has no attached file")
	}
	if err := s.checkViewAccess(ctx, content.CourseID, actor); err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(content.ID, content.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &SignedDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// OpenDownload resolves a signed token to a readable file.
func (s *ContentService) OpenDownload(token string) (io.ReadCloser, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "file no longer available")
	}
	return file, filepath.Base(relPath), nil
}

// ListLessons returns the course syllabus.
func (s *ContentService) ListLessons(ctx context.Context, courseID string, actor *models.JWTClaims) ([]models.Lesson, error) {
	if err := s.checkViewAccess(ctx, courseID, actor); err != nil {
		return nil, err
	}
	lessons, err := s.repo.ListLessonsByCourse(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lessons")
	}
	return lessons, nil
}

// CreateLesson appends a lesson to the course syllabus.
func (s *ContentService) CreateLesson(ctx context.Context, courseID string, actor *models.JWTClaims, req CreateLessonRequest) (*models.Lesson, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid lesson payload")
	}
	if err := s.checkManageAccess(ctx, courseID, actor); err != nil {
		return nil, err
	}
	lesson := &models.Lesson{CourseID: courseID, Title: req.Title, Description: req.Description, Position: req.Position}
	if err := s.repo.CreateLesson(ctx, lesson); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create lesson")
	}
	return lesson, nil
}

// CompleteLesson marks a lesson done for the student and refreshes progress.
func (s *ContentService) CompleteLesson(ctx context.Context, lessonID, studentID string) (*models.Enrollment, error) {
	lesson, err := s.repo.FindLessonByID(ctx, lessonID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "lesson not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load lesson")
	}

	if _, err := s.enrollments.CheckAccess(ctx, studentID, lesson.CourseID); err != nil {
		return nil, err
	}

	if err := s.repo.MarkLessonCompleted(ctx, &models.CompletedLesson{StudentID: studentID, LessonID: lessonID}); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark lesson completed")
	}

	enrollment, err := s.enrollments.RecalculateProgress(ctx, studentID, lesson.CourseID)
	if err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *ContentService) checkViewAccess(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	if actor.Role == models.RoleStudent {
		_, err := s.enrollments.CheckAccess(ctx, actor.UserID, courseID)
		return err
	}
	return s.checkManageAccess(ctx, courseID, actor)
}

func (s *ContentService) checkManageAccess(ctx context.Context, courseID string, actor *models.JWTClaims) error {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if !strings.EqualFold(course.InstructorID, actor.UserID) {
		return appErrors.Clone(appErrors.ErrForbidden, "course belongs to another instructor")
	}
	return nil
}
