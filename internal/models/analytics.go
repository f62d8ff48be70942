package models

import "time"

// DailyEnrollments is one point of the 30-day enrollment series.
type DailyEnrollments struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// CourseAnalytics aggregates enrollment and revenue activity for a course.
type CourseAnalytics struct {
	CourseID         string             `json:"course_id"`
	TotalEnrollments int                `json:"total_enrollments"`
	TotalRevenue     float64            `json:"total_revenue"`
	Enrollments      []DailyEnrollments `json:"enrollments"`
	GeneratedAt      time.Time          `json:"generated_at"`
}

// SystemMetrics is a lightweight snapshot of runtime counters exposed to
// the admin dashboard.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
