package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/export"
	"github.com/coursehub/coursehub-api/pkg/storage"
)

type certificateRepository interface {
	FindByID(ctx context.Context, id string) (*models.CertificateDetail, error)
	FindByCode(ctx context.Context, code string) (*models.CertificateDetail, error)
	FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Certificate, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error)
	Create(ctx context.Context, certificate *models.Certificate) error
	UpdateFilePath(ctx context.Context, id, filePath string) error
	Verify(ctx context.Context, id, notes string) error
}

type certificateEnrollmentReader interface {
	FindActive(ctx context.Context, studentID, courseID string) (*models.Enrollment, error)
}

type certificateCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type certificateNotifier interface {
	Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string)
}

// CertificateService issues and verifies completion certificates. The PDF is
// rendered once at issue time and served through signed download tokens.
type CertificateService struct {
	repo        certificateRepository
	enrollments certificateEnrollmentReader
	courses     certificateCourseReader
	notifier    certificateNotifier
	renderer    *export.CertificatePDF
	store       *storage.LocalStorage
	signer      *storage.SignedURLSigner
	issuerName  string
	logger      *zap.Logger
}

// NewCertificateService constructs a CertificateService instance.
func NewCertificateService(repo certificateRepository, enrollments certificateEnrollmentReader, courses certificateCourseReader, notifier certificateNotifier, renderer *export.CertificatePDF, store *storage.LocalStorage, signer *storage.SignedURLSigner, issuerName string, logger *zap.Logger) *CertificateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = export.NewCertificatePDF()
	}
	if issuerName == "" {
		issuerName = "CourseHub"
	}
	return &CertificateService{
		repo:        repo,
		enrollments: enrollments,
		courses:     courses,
		notifier:    notifier,
		renderer:    renderer,
		store:       store,
		signer:      signer,
		issuerName:  issuerName,
		logger:      logger,
	}
}

// Issue creates a certificate for a completed enrollment. Issuing twice
// returns the existing certificate.
func (s *CertificateService) Issue(ctx context.Context, studentID, courseID, studentName string) (*models.Certificate, error) {
	enrollment, err := s.enrollments.FindActive(ctx, studentID, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not enrolled in this course")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrollment.Completed {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "course is not completed yet")
	}

	if existing, err := s.repo.FindByStudentAndCourse(ctx, studentID, courseID); err == nil {
		return existing, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check certificate")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	code, err := generateCertificateCode()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate certificate code")
	}

	certificate := &models.Certificate{
		StudentID: studentID,
		CourseID:  courseID,
		Code:      code,
		IssuedAt:  time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, certificate); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create certificate")
	}

	pdf, err := s.renderer.Render(export.CertificateData{
		CertificateCode: code,
		StudentName:     studentName,
		CourseTitle:     course.Title,
		InstructorName:  course.InstructorName,
		IssuerName:      s.issuerName,
		IssuedAt:        certificate.IssuedAt,
	})
	if err != nil {
		s.logger.Error("certificate pdf render failed", zap.String("certificate_id", certificate.ID), zap.Error(err))
		return certificate, nil
	}

	relPath := filepath.Join("certificates", certificate.ID+".pdf")
	if _, err := s.store.Save(relPath, pdf); err != nil {
		s.logger.Error("certificate pdf store failed", zap.String("certificate_id", certificate.ID), zap.Error(err))
		return certificate, nil
	}
	if err := s.repo.UpdateFilePath(ctx, certificate.ID, relPath); err != nil {
		s.logger.Warn("certificate file path update failed", zap.String("certificate_id", certificate.ID), zap.Error(err))
	}
	certificate.FilePath = relPath

	if s.notifier != nil {
		s.notifier.Notify(ctx, studentID, "Certificate issued", fmt.Sprintf("Your certificate for %s is ready.", course.Title), models.NotificationCertificate, &certificate.ID)
	}
	s.logger.Info("certificate issued", zap.String("certificate_id", certificate.ID), zap.String("code", code))
	return certificate, nil
}

// ListByStudent returns the student's certificates.
func (s *CertificateService) ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	certificates, err := s.repo.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certificates, nil
}

// VerifyByCode resolves a public verification code. No authentication is
// required; anyone holding the code may check it.
func (s *CertificateService) VerifyByCode(ctx context.Context, code string) (*models.CertificateDetail, error) {
	code = strings.TrimSpace(strings.ToUpper(code))
	if code == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "verification code required")
	}
	certificate, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify certificate")
	}
	return certificate, nil
}

// MarkVerified records the instructor's verification with optional notes.
func (s *CertificateService) MarkVerified(ctx context.Context, certificateID, notes string, actor *models.JWTClaims) error {
	certificate, err := s.repo.FindByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if actor.Role != models.RoleAdmin {
		course, err := s.courses.FindByID(ctx, certificate.CourseID)
		if err != nil || course.InstructorID != actor.UserID {
			return appErrors.Clone(appErrors.ErrForbidden, "only the course instructor can verify certificates")
		}
	}
	if err := s.repo.Verify(ctx, certificateID, notes); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify certificate")
	}
	return nil
}

// SignedURL issues a download token for the student's own certificate PDF.
func (s *CertificateService) SignedURL(ctx context.Context, certificateID string, actor *models.JWTClaims) (*SignedDownload, error) {
	certificate, err := s.repo.FindByID(ctx, certificateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if actor.Role == models.RoleStudent && certificate.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "certificate belongs to another student")
	}
	if certificate.FilePath == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate document not available")
	}

	token, expiresAt, err := s.signer.Generate(certificate.ID, certificate.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	return &SignedDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// OpenDownload resolves a signed token to the stored PDF.
func (s *CertificateService) OpenDownload(token string) (io.ReadCloser, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	file, err := s.store.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Clone(appErrors.ErrNotFound, "certificate document no longer available")
	}
	return file, filepath.Base(relPath), nil
}

// generateCertificateCode returns a short uppercase hex code, e.g.
// CERT-9F2A64D1C3B0.
func generateCertificateCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "CERT-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
