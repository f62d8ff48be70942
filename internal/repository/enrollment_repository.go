package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// EnrollmentRepository manages persistence for enrollments.
type EnrollmentRepository struct {
	db *sqlx.DB
}

// NewEnrollmentRepository constructs an EnrollmentRepository.
func NewEnrollmentRepository(db *sqlx.DB) *EnrollmentRepository {
	return &EnrollmentRepository{db: db}
}

const enrollmentColumns = `id, student_id, course_id, enrolled_at, completed, progress, last_accessed, expires_at, subscription_type, active, renewed_at`

// FindByID fetches an enrollment by ID.
func (r *EnrollmentRepository) FindByID(ctx context.Context, id string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE id = $1 LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find enrollment by id: %w", err)
	}
	return &enrollment, nil
}

// FindActive returns the active enrollment for a student and course, if any.
func (r *EnrollmentRepository) FindActive(ctx context.Context, studentID, courseID string) (*models.Enrollment, error) {
	query := fmt.Sprintf(`SELECT %s FROM enrollments WHERE student_id = $1 AND course_id = $2 AND active = TRUE LIMIT 1`, enrollmentColumns)
	var enrollment models.Enrollment
	if err := r.db.GetContext(ctx, &enrollment, query, studentID, courseID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active enrollment: %w", err)
	}
	return &enrollment, nil
}

// List returns enrollment details matching the provided filters.
func (r *EnrollmentRepository) List(ctx context.Context, filter models.EnrollmentFilter) ([]models.EnrollmentDetail, int, error) {
	base := `FROM enrollments e JOIN users u ON u.id = e.student_id JOIN courses c ON c.id = e.course_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("e.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("e.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("e.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Completed != nil {
		conditions = append(conditions, fmt.Sprintf("e.completed = $%d", len(args)+1))
		args = append(args, *filter.Completed)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"enrolled_at": "e.enrolled_at",
		"expires_at":  "e.expires_at",
		"progress":    "e.progress",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "e.enrolled_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.completed, e.progress, e.last_accessed,
        e.expires_at, e.subscription_type, e.active, e.renewed_at,
        u.username AS student_name, c.title AS course_title, c.price AS course_price
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list enrollments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count enrollments: %w", err)
	}
	return enrollments, total, nil
}

// Create inserts a new enrollment record.
func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *models.Enrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if enrollment.EnrolledAt.IsZero() {
		enrollment.EnrolledAt = now
	}
	if enrollment.LastAccessed.IsZero() {
		enrollment.LastAccessed = now
	}
	const query = `INSERT INTO enrollments (id, student_id, course_id, enrolled_at, completed, progress, last_accessed, expires_at, subscription_type, active, renewed_at)
        VALUES (:id, :student_id, :course_id, :enrolled_at, :completed, :progress, :last_accessed, :expires_at, :subscription_type, :active, :renewed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create enrollment: %w", err)
	}
	return nil
}

// Update persists mutable enrollment state.
func (r *EnrollmentRepository) Update(ctx context.Context, enrollment *models.Enrollment) error {
	const query = `UPDATE enrollments SET completed = :completed, progress = :progress, last_accessed = :last_accessed,
        expires_at = :expires_at, subscription_type = :subscription_type, active = :active, renewed_at = :renewed_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	return nil
}

// TouchLastAccessed records course material access.
func (r *EnrollmentRepository) TouchLastAccessed(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE enrollments SET last_accessed = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("touch enrollment: %w", err)
	}
	return nil
}

// DeactivateExpired flips active off for enrollments whose expiry has passed
// and returns the affected enrollments for notification fan-out.
func (r *EnrollmentRepository) DeactivateExpired(ctx context.Context, now time.Time) ([]models.Enrollment, error) {
	query := fmt.Sprintf(`UPDATE enrollments SET active = FALSE WHERE active = TRUE AND expires_at IS NOT NULL AND expires_at < $1 RETURNING %s`, enrollmentColumns)
	var expired []models.Enrollment
	if err := r.db.SelectContext(ctx, &expired, query, now); err != nil {
		return nil, fmt.Errorf("deactivate expired enrollments: %w", err)
	}
	return expired, nil
}

// CountActive returns the number of active enrollments platform-wide.
func (r *EnrollmentRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// CountActiveByCourse returns the number of active enrollments for a course.
func (r *EnrollmentRepository) CountActiveByCourse(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1 AND active = TRUE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count active enrollments: %w", err)
	}
	return count, nil
}

// ListExpiringBefore returns active enrollments that expire before the cutoff.
func (r *EnrollmentRepository) ListExpiringBefore(ctx context.Context, studentID string, cutoff time.Time) ([]models.EnrollmentDetail, error) {
	const query = `SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.completed, e.progress, e.last_accessed,
        e.expires_at, e.subscription_type, e.active, e.renewed_at,
        u.username AS student_name, c.title AS course_title, c.price AS course_price
        FROM enrollments e JOIN users u ON u.id = e.student_id JOIN courses c ON c.id = e.course_id
        WHERE e.student_id = $1 AND e.active = TRUE AND e.expires_at IS NOT NULL AND e.expires_at < $2
        ORDER BY e.expires_at ASC`
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, studentID, cutoff); err != nil {
		return nil, fmt.Errorf("list expiring enrollments: %w", err)
	}
	return enrollments, nil
}
