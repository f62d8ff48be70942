package dto

import (
	"time"

	"github.com/coursehub/coursehub-api/internal/models"
)

// StudentDashboardResponse summarises a student's learning activity.
type StudentDashboardResponse struct {
	StudentID         string                     `json:"student_id"`
	ActiveEnrollments int                        `json:"active_enrollments"`
	CompletedCourses  int                        `json:"completed_courses"`
	ExpiringSoon      []models.EnrollmentDetail  `json:"expiring_soon,omitempty"`
	RecentAttempts    []models.QuizAttempt       `json:"recent_attempts,omitempty"`
	Notifications     []models.Notification      `json:"notifications,omitempty"`
	Certificates      []models.CertificateDetail `json:"certificates,omitempty"`
	GeneratedAt       time.Time                  `json:"generated_at"`
}

// InstructorDashboardResponse summarises an instructor's teaching activity.
type InstructorDashboardResponse struct {
	InstructorID      string                `json:"instructor_id"`
	CourseCount       int                   `json:"course_count"`
	PublishedCourses  int                   `json:"published_courses"`
	TotalStudents     int                   `json:"total_students"`
	TotalRevenue      float64               `json:"total_revenue"`
	RecentEnrollments []models.EnrollmentDetail `json:"recent_enrollments,omitempty"`
	GeneratedAt       time.Time             `json:"generated_at"`
}

// AdminDashboardResponse summarises marketplace health for administrators.
type AdminDashboardResponse struct {
	UserCount        int                  `json:"user_count"`
	PendingApprovals int                  `json:"pending_approvals"`
	CourseCount      int                  `json:"course_count"`
	EnrollmentCount  int                  `json:"enrollment_count"`
	CompletedRevenue float64              `json:"completed_revenue"`
	PendingPayments  int                  `json:"pending_payments"`
	System           models.SystemMetrics `json:"system"`
	GeneratedAt      time.Time            `json:"generated_at"`
}
