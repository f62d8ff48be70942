package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	"github.com/coursehub/coursehub-api/internal/payment"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockPaymentRepo struct {
	payments map[string]models.Payment
	listed   []models.PaymentDetail
	created  *models.Payment
	statuses map[string]models.PaymentStatus
}

func (m *mockPaymentRepo) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	if p, ok := m.payments[id]; ok {
		return &p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) FindByProviderRef(ctx context.Context, ref string) (*models.Payment, error) {
	for _, p := range m.payments {
		if p.ProviderRef == ref {
			return &p, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockPaymentRepo) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	var matched []models.PaymentDetail
	for _, d := range m.listed {
		if filter.UserID != "" && d.UserID != filter.UserID {
			continue
		}
		if filter.CourseID != "" && d.CourseID != filter.CourseID {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		matched = append(matched, d)
	}
	return matched, len(matched), nil
}

func (m *mockPaymentRepo) Create(ctx context.Context, p *models.Payment) error {
	if p.ID == "" {
		p.ID = "new-payment"
	}
	m.created = p
	return nil
}

func (m *mockPaymentRepo) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, details string, updatedAt time.Time) error {
	if m.statuses == nil {
		m.statuses = make(map[string]models.PaymentStatus)
	}
	m.statuses[id] = status
	if p, ok := m.payments[id]; ok {
		p.Status = status
		m.payments[id] = p
	}
	return nil
}

type mockProvider struct {
	sessions map[string]payment.CheckoutSession
	created  *payment.CheckoutRequest
}

func (m *mockProvider) CreateSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	m.created = &req
	return &payment.CheckoutSession{SessionID: "sess-1", CheckoutURL: "https://pay.example.com/sess-1", Status: payment.SessionOpen}, nil
}

func (m *mockProvider) GetSession(ctx context.Context, sessionID string) (*payment.CheckoutSession, error) {
	if s, ok := m.sessions[sessionID]; ok {
		return &s, nil
	}
	return nil, sql.ErrNoRows
}

func newPaymentTestService(repo *mockPaymentRepo, provider *mockProvider, courses *mockCourseReader) (*PaymentService, *mockNotifier) {
	notifier := &mockNotifier{}
	svc := NewPaymentService(repo, provider, courses, notifier, PaymentConfig{
		SuccessURL: "https://app.example.com/success",
		CancelURL:  "https://app.example.com/cancel",
	}, validator.New(), zap.NewNop())
	return svc, notifier
}

func TestCheckoutOpensSessionAndRecordsPending(t *testing.T) {
	repo := &mockPaymentRepo{}
	provider := &mockProvider{}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"c1": {Course: models.Course{ID: "c1", Title: "Go Basics", Price: 49.99}},
	}}
	svc, _ := newPaymentTestService(repo, provider, courses)

	resp, err := svc.Checkout(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example.com/sess-1", resp.CheckoutURL)
	assert.Equal(t, models.PaymentPending, resp.Payment.Status)
	assert.Equal(t, "sess-1", resp.Payment.ProviderRef)
	require.NotNil(t, provider.created)
	assert.Equal(t, 49.99, provider.created.Amount)
	assert.Equal(t, "USD", provider.created.Currency)
}

func TestCheckoutRejectsFreeCourse(t *testing.T) {
	repo := &mockPaymentRepo{}
	courses := &mockCourseReader{courses: map[string]*models.CourseDetail{
		"c1": {Course: models.Course{ID: "c1", Price: 0}},
	}}
	svc, _ := newPaymentTestService(repo, &mockProvider{}, courses)

	_, err := svc.Checkout(context.Background(), "u1", "c1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Nil(t, repo.created, "free courses must never create payment records")
}

func TestConfirmSettlesPaidSession(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", UserID: "u1", CourseID: "c1", ProviderRef: "sess-1", Status: models.PaymentPending},
	}}
	provider := &mockProvider{sessions: map[string]payment.CheckoutSession{
		"sess-1": {SessionID: "sess-1", Status: payment.SessionPaid},
	}}
	svc, notifier := newPaymentTestService(repo, provider, &mockCourseReader{})

	record, err := svc.Confirm(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, record.Status)
	assert.Equal(t, models.PaymentCompleted, repo.statuses["p1"])
	assert.Len(t, notifier.notified, 1)
}

func TestConfirmIsIdempotentForSettledPayment(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", UserID: "u1", Status: models.PaymentCompleted},
	}}
	svc, notifier := newPaymentTestService(repo, &mockProvider{}, &mockCourseReader{})

	record, err := svc.Confirm(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentCompleted, record.Status)
	assert.Empty(t, repo.statuses, "a settled payment must not be touched again")
	assert.Empty(t, notifier.notified)
}

func TestConfirmFailsExpiredSession(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", UserID: "u1", ProviderRef: "sess-1", Status: models.PaymentPending},
	}}
	provider := &mockProvider{sessions: map[string]payment.CheckoutSession{
		"sess-1": {SessionID: "sess-1", Status: payment.SessionExpired},
	}}
	svc, _ := newPaymentTestService(repo, provider, &mockCourseReader{})

	record, err := svc.Confirm(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, record.Status)
}

func TestConfirmStillOpenSessionReturnsPrecondition(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", UserID: "u1", ProviderRef: "sess-1", Status: models.PaymentPending},
	}}
	provider := &mockProvider{sessions: map[string]payment.CheckoutSession{
		"sess-1": {SessionID: "sess-1", Status: payment.SessionOpen},
	}}
	svc, _ := newPaymentTestService(repo, provider, &mockCourseReader{})

	_, err := svc.Confirm(context.Background(), "u1", "p1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestConfirmRejectsForeignPayment(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", UserID: "u1", Status: models.PaymentPending},
	}}
	svc, _ := newPaymentTestService(repo, &mockProvider{}, &mockCourseReader{})

	_, err := svc.Confirm(context.Background(), "u2", "p1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestCancelOnlyPendingPayments(t *testing.T) {
	repo := &mockPaymentRepo{payments: map[string]models.Payment{
		"p1": {ID: "p1", UserID: "u1", Status: models.PaymentPending},
		"p2": {ID: "p2", UserID: "u1", Status: models.PaymentCompleted},
	}}
	svc, _ := newPaymentTestService(repo, &mockProvider{}, &mockCourseReader{})

	record, err := svc.Cancel(context.Background(), "u1", "p1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentFailed, record.Status)

	_, err = svc.Cancel(context.Background(), "u1", "p2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestListPinsStudentsToOwnPayments(t *testing.T) {
	repo := &mockPaymentRepo{listed: []models.PaymentDetail{
		{Payment: models.Payment{ID: "p1", UserID: "u1"}},
		{Payment: models.Payment{ID: "p2", UserID: "u2"}},
	}}
	svc, _ := newPaymentTestService(repo, &mockProvider{}, &mockCourseReader{})

	payments, _, err := svc.List(context.Background(), &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}, models.PaymentFilter{UserID: "u2"})
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.Equal(t, "u1", payments[0].UserID)
}

func TestHasCompletedPayment(t *testing.T) {
	repo := &mockPaymentRepo{listed: []models.PaymentDetail{
		{Payment: models.Payment{ID: "p1", UserID: "u1", CourseID: "c1", Status: models.PaymentCompleted}},
	}}
	svc, _ := newPaymentTestService(repo, &mockProvider{}, &mockCourseReader{})

	paid, err := svc.HasCompletedPayment(context.Background(), "u1", "c1")
	require.NoError(t, err)
	assert.True(t, paid)

	paid, err = svc.HasCompletedPayment(context.Background(), "u1", "c2")
	require.NoError(t, err)
	assert.False(t, paid)
}
