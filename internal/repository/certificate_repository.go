package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// CertificateRepository manages persistence for completion certificates.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs a CertificateRepository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

const certificateDetailQuery = `SELECT ct.id, ct.student_id, ct.course_id, ct.code, ct.issued_at, ct.verified, ct.instructor_notes, ct.file_path,
    u.username AS student_name, c.title AS course_title
    FROM certificates ct JOIN users u ON u.id = ct.student_id JOIN courses c ON c.id = ct.course_id`

// FindByID fetches a certificate detail by ID.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.CertificateDetail, error) {
	query := certificateDetailQuery + ` WHERE ct.id = $1`
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByCode fetches a certificate detail by its public verification code.
func (r *CertificateRepository) FindByCode(ctx context.Context, code string) (*models.CertificateDetail, error) {
	query := certificateDetailQuery + ` WHERE ct.code = $1`
	var detail models.CertificateDetail
	if err := r.db.GetContext(ctx, &detail, query, code); err != nil {
		return nil, err
	}
	return &detail, nil
}

// FindByStudentAndCourse returns the existing certificate for a completion, if any.
func (r *CertificateRepository) FindByStudentAndCourse(ctx context.Context, studentID, courseID string) (*models.Certificate, error) {
	const query = `SELECT id, student_id, course_id, code, issued_at, verified, instructor_notes, file_path FROM certificates
        WHERE student_id = $1 AND course_id = $2 LIMIT 1`
	var certificate models.Certificate
	if err := r.db.GetContext(ctx, &certificate, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return &certificate, nil
}

// ListByStudent returns a student's certificates, newest first.
func (r *CertificateRepository) ListByStudent(ctx context.Context, studentID string) ([]models.CertificateDetail, error) {
	query := certificateDetailQuery + ` WHERE ct.student_id = $1 ORDER BY ct.issued_at DESC`
	var certificates []models.CertificateDetail
	if err := r.db.SelectContext(ctx, &certificates, query, studentID); err != nil {
		return nil, fmt.Errorf("list certificates: %w", err)
	}
	return certificates, nil
}

// Create inserts a new certificate record.
func (r *CertificateRepository) Create(ctx context.Context, certificate *models.Certificate) error {
	if certificate.ID == "" {
		certificate.ID = uuid.NewString()
	}
	if certificate.IssuedAt.IsZero() {
		certificate.IssuedAt = time.Now().UTC()
	}
	const query = `INSERT INTO certificates (id, student_id, course_id, code, issued_at, verified, instructor_notes, file_path)
        VALUES (:id, :student_id, :course_id, :code, :issued_at, :verified, :instructor_notes, :file_path)`
	if _, err := r.db.NamedExecContext(ctx, query, certificate); err != nil {
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// UpdateFilePath stores the rendered PDF's relative path.
func (r *CertificateRepository) UpdateFilePath(ctx context.Context, id, filePath string) error {
	const query = `UPDATE certificates SET file_path = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, filePath); err != nil {
		return fmt.Errorf("update certificate file path: %w", err)
	}
	return nil
}

// Verify flags a certificate as instructor-verified with optional notes.
func (r *CertificateRepository) Verify(ctx context.Context, id, notes string) error {
	const query = `UPDATE certificates SET verified = TRUE, instructor_notes = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, notes); err != nil {
		return fmt.Errorf("verify certificate: %w", err)
	}
	return nil
}
