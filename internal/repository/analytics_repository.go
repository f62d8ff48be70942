package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// AnalyticsRepository runs the aggregate queries backing dashboards and
// course analytics.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs an AnalyticsRepository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// CourseEnrollmentStats returns total enrollments and completed revenue for
// a course.
func (r *AnalyticsRepository) CourseEnrollmentStats(ctx context.Context, courseID string) (int, float64, error) {
	const enrollQuery = `SELECT COUNT(*) FROM enrollments WHERE course_id = $1`
	var enrollments int
	if err := r.db.GetContext(ctx, &enrollments, enrollQuery, courseID); err != nil {
		return 0, 0, fmt.Errorf("count course enrollments: %w", err)
	}

	const revenueQuery = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE course_id = $1 AND status = $2`
	var revenue float64
	if err := r.db.GetContext(ctx, &revenue, revenueQuery, courseID, models.PaymentCompleted); err != nil {
		return 0, 0, fmt.Errorf("sum course revenue: %w", err)
	}
	return enrollments, revenue, nil
}

// DailyEnrollments returns the per-day enrollment counts for a course since
// the given time.
func (r *AnalyticsRepository) DailyEnrollments(ctx context.Context, courseID string, since time.Time) ([]models.DailyEnrollments, error) {
	const query = `SELECT TO_CHAR(enrolled_at::date, 'YYYY-MM-DD') AS date, COUNT(*) AS count
        FROM enrollments WHERE course_id = $1 AND enrolled_at >= $2
        GROUP BY enrolled_at::date ORDER BY enrolled_at::date ASC`
	var series []models.DailyEnrollments
	if err := r.db.SelectContext(ctx, &series, query, courseID, since); err != nil {
		return nil, fmt.Errorf("daily enrollments: %w", err)
	}
	return series, nil
}

// StudentStats returns active and completed enrollment counts for a student.
func (r *AnalyticsRepository) StudentStats(ctx context.Context, studentID string) (active, completed int, err error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE active = TRUE) AS active,
        COUNT(*) FILTER (WHERE completed = TRUE) AS completed
        FROM enrollments WHERE student_id = $1`
	row := struct {
		Active    int `db:"active"`
		Completed int `db:"completed"`
	}{}
	if err := r.db.GetContext(ctx, &row, query, studentID); err != nil {
		return 0, 0, fmt.Errorf("student stats: %w", err)
	}
	return row.Active, row.Completed, nil
}

// InstructorStats aggregates course, student and revenue figures across all
// of an instructor's courses.
func (r *AnalyticsRepository) InstructorStats(ctx context.Context, instructorID string) (courses, published, students int, revenue float64, err error) {
	const courseQuery = `SELECT COUNT(*) AS courses, COUNT(*) FILTER (WHERE published = TRUE) AS published FROM courses WHERE instructor_id = $1`
	courseRow := struct {
		Courses   int `db:"courses"`
		Published int `db:"published"`
	}{}
	if err := r.db.GetContext(ctx, &courseRow, courseQuery, instructorID); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("instructor course stats: %w", err)
	}

	const studentQuery = `SELECT COUNT(DISTINCT e.student_id) FROM enrollments e JOIN courses c ON c.id = e.course_id WHERE c.instructor_id = $1`
	if err := r.db.GetContext(ctx, &students, studentQuery, instructorID); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("instructor student count: %w", err)
	}

	const revenueQuery = `SELECT COALESCE(SUM(p.amount), 0) FROM payments p JOIN courses c ON c.id = p.course_id WHERE c.instructor_id = $1 AND p.status = $2`
	if err := r.db.GetContext(ctx, &revenue, revenueQuery, instructorID, models.PaymentCompleted); err != nil {
		return 0, 0, 0, 0, fmt.Errorf("instructor revenue: %w", err)
	}

	return courseRow.Courses, courseRow.Published, students, revenue, nil
}

// AdminStats aggregates marketplace-wide counters for the admin dashboard.
func (r *AnalyticsRepository) AdminStats(ctx context.Context) (users, pendingUsers, courses, enrollments, pendingPayments int, revenue float64, err error) {
	const userQuery = `SELECT COUNT(*) AS users, COUNT(*) FILTER (WHERE approved = FALSE AND role <> 'ADMIN') AS pending FROM users`
	userRow := struct {
		Users   int `db:"users"`
		Pending int `db:"pending"`
	}{}
	if err := r.db.GetContext(ctx, &userRow, userQuery); err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("admin user stats: %w", err)
	}

	const courseQuery = `SELECT COUNT(*) FROM courses`
	if err := r.db.GetContext(ctx, &courses, courseQuery); err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("admin course count: %w", err)
	}

	const enrollQuery = `SELECT COUNT(*) FROM enrollments`
	if err := r.db.GetContext(ctx, &enrollments, enrollQuery); err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("admin enrollment count: %w", err)
	}

	const paymentQuery = `SELECT COUNT(*) FILTER (WHERE status = $1) AS pending, COALESCE(SUM(amount) FILTER (WHERE status = $2), 0) AS revenue FROM payments`
	paymentRow := struct {
		Pending int     `db:"pending"`
		Revenue float64 `db:"revenue"`
	}{}
	if err := r.db.GetContext(ctx, &paymentRow, paymentQuery, models.PaymentPending, models.PaymentCompleted); err != nil {
		return 0, 0, 0, 0, 0, 0, fmt.Errorf("admin payment stats: %w", err)
	}

	return userRow.Users, userRow.Pending, courses, enrollments, paymentRow.Pending, paymentRow.Revenue, nil
}

// RecentEnrollmentsByInstructor returns recent enrollments across an
// instructor's courses.
func (r *AnalyticsRepository) RecentEnrollmentsByInstructor(ctx context.Context, instructorID string, limit int) ([]models.EnrollmentDetail, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT e.id, e.student_id, e.course_id, e.enrolled_at, e.completed, e.progress, e.last_accessed,
        e.expires_at, e.subscription_type, e.active, e.renewed_at,
        u.username AS student_name, c.title AS course_title, c.price AS course_price
        FROM enrollments e JOIN users u ON u.id = e.student_id JOIN courses c ON c.id = e.course_id
        WHERE c.instructor_id = $1 ORDER BY e.enrolled_at DESC LIMIT %d`, limit)
	var enrollments []models.EnrollmentDetail
	if err := r.db.SelectContext(ctx, &enrollments, query, instructorID); err != nil {
		return nil, fmt.Errorf("recent instructor enrollments: %w", err)
	}
	return enrollments, nil
}
