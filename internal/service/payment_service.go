package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/payment"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type paymentRepository interface {
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	FindByProviderRef(ctx context.Context, ref string) (*models.Payment, error)
	List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error)
	Create(ctx context.Context, payment *models.Payment) error
	UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, details string, updatedAt time.Time) error
}

type paymentProvider interface {
	CreateSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error)
	GetSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error)
}

type paymentCourseReader interface {
	FindByID(ctx context.Context, id string) (*models.CourseDetail, error)
}

type paymentNotifier interface {
	Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string)
}

// CheckoutResponse returns the pending payment and the provider redirect.
type CheckoutResponse struct {
	Payment     *models.Payment `json:"payment"`
	CheckoutURL string          `json:"checkout_url"`
}

// PaymentConfig carries checkout redirect targets.
type PaymentConfig struct {
	SuccessURL string
	CancelURL  string
	Currency   string
}

// PaymentService manages checkout sessions and payment records. It never
// creates a record for free courses; free enrollment bypasses payments
// entirely.
type PaymentService struct {
	repo      paymentRepository
	provider  paymentProvider
	courses   paymentCourseReader
	notifier  paymentNotifier
	config    PaymentConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService constructs a PaymentService instance.
func NewPaymentService(repo paymentRepository, provider paymentProvider, courses paymentCourseReader, notifier paymentNotifier, config PaymentConfig, validate *validator.Validate, logger *zap.Logger) *PaymentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Currency == "" {
		config.Currency = "USD"
	}
	return &PaymentService{
		repo:      repo,
		provider:  provider,
		courses:   courses,
		notifier:  notifier,
		config:    config,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Checkout opens a provider session for a paid course and records a pending
// payment. Free courses are rejected; they enroll without payment.
func (s *PaymentService) Checkout(ctx context.Context, userID, courseID string) (*CheckoutResponse, error) {
	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Free() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "free courses do not require payment")
	}

	reference := uuid.NewString()
	session, err := s.provider.CreateSession(ctx, payment.CheckoutRequest{
		Reference:   reference,
		Amount:      course.Price,
		Currency:    s.config.Currency,
		Description: fmt.Sprintf("Enrollment: %s", course.Title),
		SuccessURL:  s.config.SuccessURL,
		CancelURL:   s.config.CancelURL,
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "checkout provider unavailable")
	}

	record := &models.Payment{
		UserID:      userID,
		CourseID:    courseID,
		Amount:      course.Price,
		ProviderRef: session.SessionID,
		Method:      "checkout",
		Status:      models.PaymentPending,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.logger.Info("checkout session opened", zap.String("payment_id", record.ID), zap.String("session_id", session.SessionID))
	return &CheckoutResponse{Payment: record, CheckoutURL: session.CheckoutURL}, nil
}

// Confirm reconciles a payment against the provider's session state. Called
// on the success redirect and safe to repeat; a settled payment stays settled.
func (s *PaymentService) Confirm(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	record, err := s.getOwned(ctx, paymentID, userID)
	if err != nil {
		return nil, err
	}
	if record.Status == models.PaymentCompleted {
		return record, nil
	}
	if record.Status == models.PaymentFailed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "payment already failed")
	}

	session, err := s.provider.GetSession(ctx, record.ProviderRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify payment with provider")
	}

	now := s.now()
	switch session.Status {
	case payment.SessionPaid:
		if err := s.repo.UpdateStatus(ctx, record.ID, models.PaymentCompleted, "provider confirmed", now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to settle payment")
		}
		record.Status = models.PaymentCompleted
		record.UpdatedAt = now
		if s.notifier != nil {
			s.notifier.Notify(ctx, userID, "Payment received", "Your payment was confirmed. You can now enroll.", models.NotificationPayment, &record.ID)
		}
	case payment.SessionExpired, payment.SessionCanceled:
		if err := s.repo.UpdateStatus(ctx, record.ID, models.PaymentFailed, "session "+session.Status, now); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update payment")
		}
		record.Status = models.PaymentFailed
		record.UpdatedAt = now
	default:
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment is still pending with the provider")
	}
	return record, nil
}

// Cancel marks a pending payment as failed after the cancel redirect.
func (s *PaymentService) Cancel(ctx context.Context, userID, paymentID string) (*models.Payment, error) {
	record, err := s.getOwned(ctx, paymentID, userID)
	if err != nil {
		return nil, err
	}
	if record.Status != models.PaymentPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending payments can be cancelled")
	}

	now := s.now()
	if err := s.repo.UpdateStatus(ctx, record.ID, models.PaymentFailed, "cancelled by user", now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel payment")
	}
	record.Status = models.PaymentFailed
	record.UpdatedAt = now
	return record, nil
}

// List returns payment details visible to the actor. Students are pinned to
// their own records.
func (s *PaymentService) List(ctx context.Context, actor *models.JWTClaims, filter models.PaymentFilter) ([]models.PaymentDetail, *models.Pagination, error) {
	if actor.Role == models.RoleStudent {
		filter.UserID = actor.UserID
	}
	payments, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return payments, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// HasCompletedPayment reports whether the user settled a payment for the
// course. Used by enrollment to gate paid courses.
func (s *PaymentService) HasCompletedPayment(ctx context.Context, userID, courseID string) (bool, error) {
	payments, _, err := s.repo.List(ctx, models.PaymentFilter{UserID: userID, CourseID: courseID, Status: models.PaymentCompleted, PageSize: 1})
	if err != nil {
		return false, err
	}
	return len(payments) > 0, nil
}

func (s *PaymentService) getOwned(ctx context.Context, paymentID, userID string) (*models.Payment, error) {
	record, err := s.repo.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "payment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if record.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another user")
	}
	return record, nil
}
