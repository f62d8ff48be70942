package models

import "time"

// PaymentStatus tracks the lifecycle of an external transaction.
type PaymentStatus string

// Possible payment statuses.
const (
	PaymentPending   PaymentStatus = "PENDING"
	PaymentCompleted PaymentStatus = "COMPLETED"
	PaymentFailed    PaymentStatus = "FAILED"
)

// Payment records one checkout against the external provider. It is thin
// record-keeping around the provider's transaction, not a ledger.
type Payment struct {
	ID          string        `db:"id" json:"id"`
	UserID      string        `db:"user_id" json:"user_id"`
	CourseID    string        `db:"course_id" json:"course_id"`
	Amount      float64       `db:"amount" json:"amount"`
	ProviderRef string        `db:"provider_ref" json:"provider_ref,omitempty"`
	Method      string        `db:"method" json:"method"`
	Status      PaymentStatus `db:"status" json:"status"`
	Details     string        `db:"details" json:"details,omitempty"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentDetail enriches Payment with user and course context.
type PaymentDetail struct {
	Payment
	UserName    string `db:"user_name" json:"user_name"`
	CourseTitle string `db:"course_title" json:"course_title"`
}

// PaymentFilter provides filters for listing payments.
type PaymentFilter struct {
	UserID    string
	CourseID  string
	Status    PaymentStatus
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
