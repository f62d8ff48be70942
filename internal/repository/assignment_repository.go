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

// AssignmentRepository manages persistence for assignments and submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs an AssignmentRepository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ListByCourse returns all assignments of a course ordered by due date.
func (r *AssignmentRepository) ListByCourse(ctx context.Context, courseID string) ([]models.Assignment, error) {
	const query = `SELECT id, course_id, title, description, due_date, created_at FROM assignments WHERE course_id = $1 ORDER BY due_date ASC`
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, courseID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// FindByID fetches an assignment by ID.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	const query = `SELECT id, course_id, title, description, due_date, created_at FROM assignments WHERE id = $1 LIMIT 1`
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment by id: %w", err)
	}
	return &assignment, nil
}

// Create inserts a new assignment.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignments (id, course_id, title, description, due_date, created_at)
        VALUES (:id, :course_id, :title, :description, :due_date, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// Delete removes an assignment permanently.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// FindSubmission returns a student's submission for an assignment, if any.
func (r *AssignmentRepository) FindSubmission(ctx context.Context, assignmentID, studentID string) (*models.AssignmentSubmission, error) {
	const query = `SELECT id, assignment_id, student_id, submission_file, submission_text, submitted_at, grade, feedback, graded_at, graded_by
        FROM assignment_submissions WHERE assignment_id = $1 AND student_id = $2 LIMIT 1`
	var submission models.AssignmentSubmission
	if err := r.db.GetContext(ctx, &submission, query, assignmentID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &submission, nil
}

// FindSubmissionByID fetches a submission by ID.
func (r *AssignmentRepository) FindSubmissionByID(ctx context.Context, id string) (*models.AssignmentSubmission, error) {
	const query = `SELECT id, assignment_id, student_id, submission_file, submission_text, submitted_at, grade, feedback, graded_at, graded_by
        FROM assignment_submissions WHERE id = $1 LIMIT 1`
	var submission models.AssignmentSubmission
	if err := r.db.GetContext(ctx, &submission, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by id: %w", err)
	}
	return &submission, nil
}

// ListSubmissions returns all submissions for an assignment.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.AssignmentSubmission, error) {
	const query = `SELECT id, assignment_id, student_id, submission_file, submission_text, submitted_at, grade, feedback, graded_at, graded_by
        FROM assignment_submissions WHERE assignment_id = $1 ORDER BY submitted_at ASC`
	var submissions []models.AssignmentSubmission
	if err := r.db.SelectContext(ctx, &submissions, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return submissions, nil
}

// CreateSubmission inserts or replaces a student's submission. Resubmitting
// before grading overwrites the previous answer and clears any stale grade.
func (r *AssignmentRepository) CreateSubmission(ctx context.Context, submission *models.AssignmentSubmission) error {
	if submission.ID == "" {
		submission.ID = uuid.NewString()
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}
	const query = `INSERT INTO assignment_submissions (id, assignment_id, student_id, submission_file, submission_text, submitted_at)
        VALUES (:id, :assignment_id, :student_id, :submission_file, :submission_text, :submitted_at)
        ON CONFLICT (assignment_id, student_id) DO UPDATE SET
        submission_file = EXCLUDED.submission_file, submission_text = EXCLUDED.submission_text, submitted_at = EXCLUDED.submitted_at,
        grade = NULL, feedback = '', graded_at = NULL, graded_by = NULL`
	if _, err := r.db.NamedExecContext(ctx, query, submission); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// GradeSubmission stores a grade and feedback on a submission.
func (r *AssignmentRepository) GradeSubmission(ctx context.Context, id string, grade float64, feedback, gradedBy string, gradedAt time.Time) error {
	const query = `UPDATE assignment_submissions SET grade = $2, feedback = $3, graded_by = $4, graded_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, grade, feedback, gradedBy, gradedAt); err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	return nil
}
