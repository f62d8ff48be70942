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

// CourseRepository manages persistence for courses and their ratings.
type CourseRepository struct {
	db *sqlx.DB
}

// NewCourseRepository constructs a CourseRepository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// List returns courses matching the provided filters.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.CourseDetail, int, error) {
	base := `FROM courses c JOIN users u ON u.id = c.instructor_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.InstructorID != "" {
		conditions = append(conditions, fmt.Sprintf("c.instructor_id = $%d", len(args)+1))
		args = append(args, filter.InstructorID)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("c.category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.Level != "" {
		conditions = append(conditions, fmt.Sprintf("c.level = $%d", len(args)+1))
		args = append(args, filter.Level)
	}
	if filter.Published != nil {
		conditions = append(conditions, fmt.Sprintf("c.published = $%d", len(args)+1))
		args = append(args, *filter.Published)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(c.title) LIKE $%d OR LOWER(c.description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"title":      "c.title",
		"price":      "c.price",
		"rating":     "c.rating",
		"created_at": "c.created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "c.created_at"
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

	query := fmt.Sprintf(`SELECT c.id, c.title, c.description, c.thumbnail, c.price, c.rating, c.instructor_id, c.published,
        c.max_enrollments, c.enrollment_deadline, c.duration_days, c.category, c.level, c.created_at, c.updated_at,
        u.username AS instructor_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.active = TRUE) AS enrollment_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var courses []models.CourseDetail
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}
	return courses, total, nil
}

// FindByID fetches a course detail by ID.
func (r *CourseRepository) FindByID(ctx context.Context, id string) (*models.CourseDetail, error) {
	const query = `SELECT c.id, c.title, c.description, c.thumbnail, c.price, c.rating, c.instructor_id, c.published,
        c.max_enrollments, c.enrollment_deadline, c.duration_days, c.category, c.level, c.created_at, c.updated_at,
        u.username AS instructor_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.course_id = c.id AND e.active = TRUE) AS enrollment_count
        FROM courses c JOIN users u ON u.id = c.instructor_id
        WHERE c.id = $1`
	var detail models.CourseDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create inserts a new course record.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	const query = `INSERT INTO courses (id, title, description, thumbnail, price, rating, instructor_id, published, max_enrollments, enrollment_deadline, duration_days, category, level, created_at, updated_at)
        VALUES (:id, :title, :description, :thumbnail, :price, :rating, :instructor_id, :published, :max_enrollments, :enrollment_deadline, :duration_days, :category, :level, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// Update modifies an existing course.
func (r *CourseRepository) Update(ctx context.Context, course *models.Course) error {
	course.UpdatedAt = time.Now().UTC()
	const query = `UPDATE courses SET title = :title, description = :description, thumbnail = :thumbnail, price = :price, published = :published,
        max_enrollments = :max_enrollments, enrollment_deadline = :enrollment_deadline, duration_days = :duration_days,
        category = :category, level = :level, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		return fmt.Errorf("update course: %w", err)
	}
	return nil
}

// Delete removes a course permanently.
func (r *CourseRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM courses WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	return nil
}

// UpsertRating records or replaces a student's rating for a course.
func (r *CourseRepository) UpsertRating(ctx context.Context, rating *models.CourseRating) error {
	if rating.ID == "" {
		rating.ID = uuid.NewString()
	}
	if rating.CreatedAt.IsZero() {
		rating.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO course_ratings (id, student_id, course_id, rating, created_at)
        VALUES (:id, :student_id, :course_id, :rating, :created_at)
        ON CONFLICT (student_id, course_id) DO UPDATE SET rating = EXCLUDED.rating`
	if _, err := r.db.NamedExecContext(ctx, query, rating); err != nil {
		return fmt.Errorf("upsert rating: %w", err)
	}
	return nil
}

// RefreshAverageRating recomputes and stores the course's average rating.
func (r *CourseRepository) RefreshAverageRating(ctx context.Context, courseID string) (float64, error) {
	const query = `UPDATE courses SET rating = COALESCE((SELECT AVG(rating) FROM course_ratings WHERE course_id = $1), 0), updated_at = $2 WHERE id = $1 RETURNING rating`
	var avg float64
	if err := r.db.GetContext(ctx, &avg, query, courseID, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return 0, err
		}
		return 0, fmt.Errorf("refresh average rating: %w", err)
	}
	return avg, nil
}
