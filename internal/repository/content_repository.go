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

// ContentRepository manages persistence for course content, lessons and
// lesson completion marks.
type ContentRepository struct {
	db *sqlx.DB
}

// NewContentRepository constructs a ContentRepository.
func NewContentRepository(db *sqlx.DB) *ContentRepository {
	return &ContentRepository{db: db}
}

const contentColumns = `id, course_id, title, content_type, file_path, text_content, position, created_at, updated_at`

// ListByCourse returns all content of a course ordered by position.
func (r *ContentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Content, error) {
	query := fmt.Sprintf(`SELECT %s FROM contents WHERE course_id = $1 ORDER BY position ASC`, contentColumns)
	var contents []models.Content
	if err := r.db.SelectContext(ctx, &contents, query, courseID); err != nil {
		return nil, fmt.Errorf("list contents: %w", err)
	}
	return contents, nil
}

// FindByID fetches a content item by ID.
func (r *ContentRepository) FindByID(ctx context.Context, id string) (*models.Content, error) {
	query := fmt.Sprintf(`SELECT %s FROM contents WHERE id = $1 LIMIT 1`, contentColumns)
	var content models.Content
	if err := r.db.GetContext(ctx, &content, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find content by id: %w", err)
	}
	return &content, nil
}

// Create inserts a new content item at the end of the course ordering.
func (r *ContentRepository) Create(ctx context.Context, content *models.Content) error {
	if content.ID == "" {
		content.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if content.CreatedAt.IsZero() {
		content.CreatedAt = now
	}
	content.UpdatedAt = now
	if content.Position == 0 {
		const posQuery = `SELECT COALESCE(MAX(position), 0) + 1 FROM contents WHERE course_id = $1`
		if err := r.db.GetContext(ctx, &content.Position, posQuery, content.CourseID); err != nil {
			return fmt.Errorf("next content position: %w", err)
		}
	}
	const query = `INSERT INTO contents (id, course_id, title, content_type, file_path, text_content, position, created_at, updated_at)
        VALUES (:id, :course_id, :title, :content_type, :file_path, :text_content, :position, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, content); err != nil {
		return fmt.Errorf("create content: %w", err)
	}
	return nil
}

// Update modifies an existing content item.
func (r *ContentRepository) Update(ctx context.Context, content *models.Content) error {
	content.UpdatedAt = time.Now().UTC()
	const query = `UPDATE contents SET title = :title, content_type = :content_type, file_path = :file_path, text_content = :text_content, position = :position, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, content); err != nil {
		return fmt.Errorf("update content: %w", err)
	}
	return nil
}

// Delete removes a content item permanently.
func (r *ContentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM contents WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	return nil
}

// ListLessonsByCourse returns course lessons ordered by position.
func (r *ContentRepository) ListLessonsByCourse(ctx context.Context, courseID string) ([]models.Lesson, error) {
	const query = `SELECT id, course_id, title, description, position, created_at, updated_at FROM lessons WHERE course_id = $1 ORDER BY position ASC`
	var lessons []models.Lesson
	if err := r.db.SelectContext(ctx, &lessons, query, courseID); err != nil {
		return nil, fmt.Errorf("list lessons: %w", err)
	}
	return lessons, nil
}

// FindLessonByID fetches a lesson by ID.
func (r *ContentRepository) FindLessonByID(ctx context.Context, id string) (*models.Lesson, error) {
	const query = `SELECT id, course_id, title, description, position, created_at, updated_at FROM lessons WHERE id = $1 LIMIT 1`
	var lesson models.Lesson
	if err := r.db.GetContext(ctx, &lesson, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find lesson by id: %w", err)
	}
	return &lesson, nil
}

// CreateLesson inserts a new lesson at the end of the course ordering.
func (r *ContentRepository) CreateLesson(ctx context.Context, lesson *models.Lesson) error {
	if lesson.ID == "" {
		lesson.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if lesson.CreatedAt.IsZero() {
		lesson.CreatedAt = now
	}
	lesson.UpdatedAt = now
	if lesson.Position == 0 {
		const posQuery = `SELECT COALESCE(MAX(position), 0) + 1 FROM lessons WHERE course_id = $1`
		if err := r.db.GetContext(ctx, &lesson.Position, posQuery, lesson.CourseID); err != nil {
			return fmt.Errorf("next lesson position: %w", err)
		}
	}
	const query = `INSERT INTO lessons (id, course_id, title, description, position, created_at, updated_at)
        VALUES (:id, :course_id, :title, :description, :position, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, lesson); err != nil {
		return fmt.Errorf("create lesson: %w", err)
	}
	return nil
}

// DeleteLesson removes a lesson permanently.
func (r *ContentRepository) DeleteLesson(ctx context.Context, id string) error {
	const query = `DELETE FROM lessons WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete lesson: %w", err)
	}
	return nil
}

// MarkLessonCompleted records a lesson completion; repeated marks are no-ops.
func (r *ContentRepository) MarkLessonCompleted(ctx context.Context, completed *models.CompletedLesson) error {
	if completed.ID == "" {
		completed.ID = uuid.NewString()
	}
	if completed.CompletedAt.IsZero() {
		completed.CompletedAt = time.Now().UTC()
	}
	const query = `INSERT INTO completed_lessons (id, student_id, lesson_id, completed_at)
        VALUES (:id, :student_id, :lesson_id, :completed_at)
        ON CONFLICT (student_id, lesson_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, completed); err != nil {
		return fmt.Errorf("mark lesson completed: %w", err)
	}
	return nil
}

// CountCompletedLessons returns how many lessons of a course the student finished.
func (r *ContentRepository) CountCompletedLessons(ctx context.Context, studentID, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM completed_lessons cl JOIN lessons l ON l.id = cl.lesson_id WHERE cl.student_id = $1 AND l.course_id = $2`
	var count int
	if err := r.db.GetContext(ctx, &count, query, studentID, courseID); err != nil {
		return 0, fmt.Errorf("count completed lessons: %w", err)
	}
	return count, nil
}

// CountLessons returns the number of lessons in a course.
func (r *ContentRepository) CountLessons(ctx context.Context, courseID string) (int, error) {
	const query = `SELECT COUNT(*) FROM lessons WHERE course_id = $1`
	var count int
	if err := r.db.GetContext(ctx, &count, query, courseID); err != nil {
		return 0, fmt.Errorf("count lessons: %w", err)
	}
	return count, nil
}
