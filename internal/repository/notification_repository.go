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

// NotificationRepository manages persistence for notifications and contact
// messages.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs a NotificationRepository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// ListByUser returns a user's notifications, newest first. Setting unreadOnly
// restricts the result to unread entries.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT id, user_id, title, message, type, related_id, read, created_at FROM notifications WHERE user_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// FindByID fetches a notification by ID.
func (r *NotificationRepository) FindByID(ctx context.Context, id string) (*models.Notification, error) {
	const query = `SELECT id, user_id, title, message, type, related_id, read, created_at FROM notifications WHERE id = $1 LIMIT 1`
	var notification models.Notification
	if err := r.db.GetContext(ctx, &notification, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find notification by id: %w", err)
	}
	return &notification, nil
}

// Create inserts a new notification.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO notifications (id, user_id, title, message, type, related_id, read, created_at)
        VALUES (:id, :user_id, :title, :message, :type, :related_id, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// MarkRead flags a notification as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	const query = `UPDATE notifications SET read = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}

// MarkAllRead flags all of a user's notifications as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) error {
	const query = `UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("mark all notifications read: %w", err)
	}
	return nil
}

// CountUnread returns the number of unread notifications for a user.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	const query = `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND read = FALSE`
	var count int
	if err := r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return count, nil
}

// CreateContactMessage inserts a direct message between users.
func (r *NotificationRepository) CreateContactMessage(ctx context.Context, msg *models.ContactMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO contact_messages (id, sender_id, recipient_id, subject, message, read, created_at)
        VALUES (:id, :sender_id, :recipient_id, :subject, :message, :read, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create contact message: %w", err)
	}
	return nil
}

// ListContactMessages returns messages received by a user, newest first.
func (r *NotificationRepository) ListContactMessages(ctx context.Context, recipientID string, limit int) ([]models.ContactMessage, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, sender_id, recipient_id, subject, message, read, created_at FROM contact_messages
        WHERE recipient_id = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var messages []models.ContactMessage
	if err := r.db.SelectContext(ctx, &messages, query, recipientID); err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	return messages, nil
}

// FindContactMessageByID fetches a contact message by ID.
func (r *NotificationRepository) FindContactMessageByID(ctx context.Context, id string) (*models.ContactMessage, error) {
	const query = `SELECT id, sender_id, recipient_id, subject, message, read, created_at FROM contact_messages WHERE id = $1 LIMIT 1`
	var msg models.ContactMessage
	if err := r.db.GetContext(ctx, &msg, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find contact message by id: %w", err)
	}
	return &msg, nil
}

// MarkContactMessageRead flags a contact message as read.
func (r *NotificationRepository) MarkContactMessageRead(ctx context.Context, id string) error {
	const query = `UPDATE contact_messages SET read = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark contact message read: %w", err)
	}
	return nil
}
