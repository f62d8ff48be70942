package models

import "time"

// ContentType categorises course content items.
type ContentType string

// Possible content types.
const (
	ContentVideo      ContentType = "VIDEO"
	ContentPDF        ContentType = "PDF"
	ContentText       ContentType = "TEXT"
	ContentAssignment ContentType = "ASSIGNMENT"
)

// Content is one ordered item of course material.
type Content struct {
	ID          string      `db:"id" json:"id"`
	CourseID    string      `db:"course_id" json:"course_id"`
	Title       string      `db:"title" json:"title"`
	ContentType ContentType `db:"content_type" json:"content_type"`
	FilePath    string      `db:"file_path" json:"file_path,omitempty"`
	TextContent string      `db:"text_content" json:"text_content,omitempty"`
	Position    int         `db:"position" json:"position"`
	CreatedAt   time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time   `db:"updated_at" json:"updated_at"`
}

// Lesson groups content into an ordered syllabus entry.
type Lesson struct {
	ID          string    `db:"id" json:"id"`
	CourseID    string    `db:"course_id" json:"course_id"`
	Title       string    `db:"title" json:"title"`
	Description string    `db:"description" json:"description,omitempty"`
	Position    int       `db:"position" json:"position"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// CompletedLesson marks a lesson as finished by a student.
type CompletedLesson struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	LessonID    string    `db:"lesson_id" json:"lesson_id"`
	CompletedAt time.Time `db:"completed_at" json:"completed_at"`
}
