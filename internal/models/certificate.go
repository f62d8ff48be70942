package models

import "time"

// Certificate is issued proof of course completion. The code is unique and
// publicly verifiable.
type Certificate struct {
	ID              string    `db:"id" json:"id"`
	StudentID       string    `db:"student_id" json:"student_id"`
	CourseID        string    `db:"course_id" json:"course_id"`
	Code            string    `db:"code" json:"code"`
	IssuedAt        time.Time `db:"issued_at" json:"issued_at"`
	Verified        bool      `db:"verified" json:"verified"`
	InstructorNotes string    `db:"instructor_notes" json:"instructor_notes,omitempty"`
	FilePath        string    `db:"file_path" json:"-"`
}

// CertificateDetail enriches a certificate with student and course names.
type CertificateDetail struct {
	Certificate
	StudentName string `db:"student_name" json:"student_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
}
