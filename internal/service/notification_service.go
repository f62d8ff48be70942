package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/jobs"
)

type notificationRepository interface {
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error)
	FindByID(ctx context.Context, id string) (*models.Notification, error)
	Create(ctx context.Context, notification *models.Notification) error
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context, userID string) error
	CountUnread(ctx context.Context, userID string) (int, error)
	CreateContactMessage(ctx context.Context, msg *models.ContactMessage) error
	ListContactMessages(ctx context.Context, recipientID string, limit int) ([]models.ContactMessage, error)
	FindContactMessageByID(ctx context.Context, id string) (*models.ContactMessage, error)
	MarkContactMessageRead(ctx context.Context, id string) error
}

// ContactMessageRequest holds a direct message payload.
type ContactMessageRequest struct {
	RecipientID string `json:"recipient_id" validate:"required"`
	Subject     string `json:"subject" validate:"required,max=200"`
	Message     string `json:"message" validate:"required,max=5000"`
}

// NotificationService delivers in-app notifications. Writes go through a
// background queue so request paths never block on fan-out.
type NotificationService struct {
	repo      notificationRepository
	queue     *jobs.Queue
	validator *validator.Validate
	logger    *zap.Logger
}

// NewNotificationService constructs a NotificationService and its delivery
// queue. Call Start before use and Stop on shutdown.
func NewNotificationService(repo notificationRepository, validate *validator.Validate, logger *zap.Logger, cfg jobs.QueueConfig) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &NotificationService{repo: repo, validator: validate, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("notifications", s.deliver, cfg)
	return s
}

// Start begins background delivery workers.
func (s *NotificationService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the delivery queue.
func (s *NotificationService) Stop() {
	s.queue.Stop()
}

// Notify enqueues a notification for asynchronous delivery. Failures are
// logged, never surfaced to the caller.
func (s *NotificationService) Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string) {
	job := jobs.Job{
		ID:   uuid.NewString(),
		Type: string(kind),
		Payload: &models.Notification{
			UserID:    userID,
			Title:     title,
			Message:   message,
			Type:      kind,
			RelatedID: relatedID,
		},
	}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("failed to enqueue notification", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *NotificationService) deliver(ctx context.Context, job jobs.Job) error {
	notification, ok := job.Payload.(*models.Notification)
	if !ok {
		s.logger.Error("notification job carried unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Create(ctx, notification)
}

// List returns a user's notifications.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]models.Notification, error) {
	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications for a user.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count notifications")
	}
	return count, nil
}

// MarkRead flags one of the user's notifications as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	notification, err := s.repo.FindByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "notification not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load notification")
	}
	if notification.UserID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "notification belongs to another user")
	}
	if err := s.repo.MarkRead(ctx, notificationID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notification read")
	}
	return nil
}

// MarkAllRead flags every unread notification of the user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	if err := s.repo.MarkAllRead(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark notifications read")
	}
	return nil
}

// SendContactMessage delivers a direct message and raises a notification for
// the recipient.
func (s *NotificationService) SendContactMessage(ctx context.Context, senderID string, req ContactMessageRequest) (*models.ContactMessage, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid contact message payload")
	}
	if req.RecipientID == senderID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "cannot message yourself")
	}

	msg := &models.ContactMessage{
		SenderID:    senderID,
		RecipientID: req.RecipientID,
		Subject:     req.Subject,
		Message:     req.Message,
	}
	if err := s.repo.CreateContactMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	s.Notify(ctx, req.RecipientID, "New message", req.Subject, models.NotificationContent, &msg.ID)
	return msg, nil
}

// MarkMessageRead flags one of the user's received messages as read.
func (s *NotificationService) MarkMessageRead(ctx context.Context, userID, messageID string) error {
	msg, err := s.repo.FindContactMessageByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	if msg.RecipientID != userID {
		return appErrors.Clone(appErrors.ErrForbidden, "message belongs to another user")
	}
	if err := s.repo.MarkContactMessageRead(ctx, messageID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark message read")
	}
	return nil
}

// ListContactMessages returns messages received by the user.
func (s *NotificationService) ListContactMessages(ctx context.Context, userID string, limit int) ([]models.ContactMessage, error) {
	messages, err := s.repo.ListContactMessages(ctx, userID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}
	return messages, nil
}
