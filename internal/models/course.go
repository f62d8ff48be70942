package models

import "time"

// Course represents a published or draft course in the marketplace.
type Course struct {
	ID                 string     `db:"id" json:"id"`
	Title              string     `db:"title" json:"title"`
	Description        string     `db:"description" json:"description,omitempty"`
	Thumbnail          string     `db:"thumbnail" json:"thumbnail,omitempty"`
	Price              float64    `db:"price" json:"price"`
	Rating             float64    `db:"rating" json:"rating"`
	InstructorID       string     `db:"instructor_id" json:"instructor_id"`
	Published          bool       `db:"published" json:"published"`
	MaxEnrollments     int        `db:"max_enrollments" json:"max_enrollments"`
	EnrollmentDeadline *time.Time `db:"enrollment_deadline" json:"enrollment_deadline,omitempty"`
	DurationDays       int        `db:"duration_days" json:"duration_days"`
	Category           string     `db:"category" json:"category,omitempty"`
	Level              string     `db:"level" json:"level,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// Free reports whether enrollment requires payment.
func (c *Course) Free() bool {
	return c.Price == 0
}

// EnrollmentOpen reports whether the enrollment deadline has not passed.
// A nil deadline means enrollment is always open.
func (c *Course) EnrollmentOpen(now time.Time) bool {
	if c.EnrollmentDeadline == nil {
		return true
	}
	return now.Before(*c.EnrollmentDeadline)
}

// ExpiryFor computes the access expiry for an enrollment started at the
// given time. Courses with no duration grant unlimited access.
func (c *Course) ExpiryFor(enrolledAt time.Time) *time.Time {
	if c.DurationDays <= 0 {
		return nil
	}
	expiry := enrolledAt.AddDate(0, 0, c.DurationDays)
	return &expiry
}

// CourseDetail enriches Course with instructor and enrollment info.
type CourseDetail struct {
	Course
	InstructorName  string `db:"instructor_name" json:"instructor_name"`
	EnrollmentCount int    `db:"enrollment_count" json:"enrollment_count"`
}

// CourseFilter provides filters for listing courses.
type CourseFilter struct {
	InstructorID string
	Category     string
	Level        string
	Published    *bool
	Search       string
	Page         int
	PageSize     int
	SortBy       string
	SortOrder    string
}

// CourseRating stores a single 1-5 star rating; unique per student+course.
type CourseRating struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	CourseID  string    `db:"course_id" json:"course_id"`
	Rating    int       `db:"rating" json:"rating"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
