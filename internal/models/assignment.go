package models

import "time"

// Assignment is instructor-set coursework with a due date.
type Assignment struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description"`
	DueDate     time.Time `db:"due_date" json:"due_date"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// AssignmentSubmission is a student's answer awaiting or holding a grade.
type AssignmentSubmission struct {
	ID             string     `db:"id" json:"id"`
	AssignmentID   string     `db:"assignment_id" json:"assignment_id"`
	StudentID      string     `db:"student_id" json:"student_id"`
	SubmissionFile string     `db:"submission_file" json:"submission_file,omitempty"`
	SubmissionText string     `db:"submission_text" json:"submission_text,omitempty"`
	SubmittedAt    time.Time  `db:"submitted_at" json:"submitted_at"`
	Grade          *float64   `db:"grade" json:"grade,omitempty"`
	Feedback       string     `db:"feedback" json:"feedback,omitempty"`
	GradedAt       *time.Time `db:"graded_at" json:"graded_at,omitempty"`
	GradedBy       *string    `db:"graded_by" json:"graded_by,omitempty"`
}
