package models

import "time"

// NotificationType categorises inbox entries.
type NotificationType string

// Possible notification types.
const (
	NotificationEnrollment  NotificationType = "ENROLLMENT"
	NotificationPayment     NotificationType = "PAYMENT"
	NotificationContent     NotificationType = "CONTENT"
	NotificationCertificate NotificationType = "CERTIFICATE"
	NotificationGrade       NotificationType = "GRADE"
)

// Notification is one entry in a user's inbox.
type Notification struct {
	ID        string           `db:"id" json:"id"`
	UserID    string           `db:"user_id" json:"user_id"`
	Title     string           `db:"title" json:"title"`
	Message   string           `db:"message" json:"message"`
	Type      NotificationType `db:"type" json:"type"`
	RelatedID *string          `db:"related_id" json:"related_id,omitempty"`
	Read      bool             `db:"read" json:"read"`
	CreatedAt time.Time        `db:"created_at" json:"created_at"`
}

// ContactMessage is a direct user-to-user message.
type ContactMessage struct {
	ID          string    `db:"id" json:"id"`
	SenderID    string    `db:"sender_id" json:"sender_id"`
	RecipientID string    `db:"recipient_id" json:"recipient_id"`
	Subject     string    `db:"subject" json:"subject"`
	Message     string    `db:"message" json:"message"`
	Read        bool      `db:"read" json:"read"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
