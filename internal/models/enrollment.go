package models

import "time"

// SubscriptionType describes how course access was granted.
type SubscriptionType string

// Possible subscription types.
const (
	SubscriptionUnlimited SubscriptionType = "UNLIMITED"
	SubscriptionMonthly   SubscriptionType = "MONTHLY"
	SubscriptionYearly    SubscriptionType = "YEARLY"
)

// Enrollment captures a student's access grant to a course.
type Enrollment struct {
	ID               string           `db:"id" json:"id"`
	StudentID        string           `db:"student_id" json:"student_id"`
	CourseID         string           `db:"course_id" json:"course_id"`
	EnrolledAt       time.Time        `db:"enrolled_at" json:"enrolled_at"`
	Completed        bool             `db:"completed" json:"completed"`
	Progress         float64          `db:"progress" json:"progress"`
	LastAccessed     time.Time        `db:"last_accessed" json:"last_accessed"`
	ExpiresAt        *time.Time       `db:"expires_at" json:"expires_at,omitempty"`
	SubscriptionType SubscriptionType `db:"subscription_type" json:"subscription_type"`
	Active           bool             `db:"active" json:"active"`
	RenewedAt        *time.Time       `db:"renewed_at" json:"renewed_at,omitempty"`
}

// Expired reports whether the enrollment's access window has passed.
// A nil expiry never expires.
func (e *Enrollment) Expired(now time.Time) bool {
	if e.ExpiresAt == nil {
		return false
	}
	return now.After(*e.ExpiresAt)
}

// DaysUntilExpiry returns the remaining whole days of access, nil for
// unlimited enrollments. Expired enrollments report zero.
func (e *Enrollment) DaysUntilExpiry(now time.Time) *int {
	if e.ExpiresAt == nil {
		return nil
	}
	days := int(e.ExpiresAt.Sub(now).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return &days
}

// HasAccess reports whether the student can currently open course material.
func (e *Enrollment) HasAccess(now time.Time) bool {
	return e.Active && !e.Expired(now)
}

// EnrollmentDetail enriches Enrollment with student and course info.
type EnrollmentDetail struct {
	Enrollment
	StudentName string  `db:"student_name" json:"student_name"`
	CourseTitle string  `db:"course_title" json:"course_title"`
	CoursePrice float64 `db:"course_price" json:"course_price"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	StudentID string
	CourseID  string
	Active    *bool
	Completed *bool
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
