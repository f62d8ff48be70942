package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/coursehub/coursehub-api/internal/models"
)

// PaymentRepository manages persistence for payment records.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs a PaymentRepository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

const paymentColumns = `id, user_id, course_id, amount, provider_ref, method, status, details, created_at, updated_at`

// FindByID fetches a payment by ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE id = $1 LIMIT 1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by id: %w", err)
	}
	return &payment, nil
}

// FindByProviderRef fetches a payment by the external provider's reference.
func (r *PaymentRepository) FindByProviderRef(ctx context.Context, ref string) (*models.Payment, error) {
	query := fmt.Sprintf(`SELECT %s FROM payments WHERE provider_ref = $1 LIMIT 1`, paymentColumns)
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, ref); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find payment by provider ref: %w", err)
	}
	return &payment, nil
}

// List returns payment details matching the provided filters.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.PaymentDetail, int, error) {
	base := `FROM payments p JOIN users u ON u.id = p.user_id JOIN courses c ON c.id = p.course_id`
	conditions := []string{"1=1"}
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("p.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.CourseID != "" {
		conditions = append(conditions, fmt.Sprintf("p.course_id = $%d", len(args)+1))
		args = append(args, filter.CourseID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	base = fmt.Sprintf("%s WHERE %s", base, strings.Join(conditions, " AND "))

	allowedSorts := map[string]string{
		"amount":     "p.amount",
		"created_at": "p.created_at",
		"updated_at": "p.updated_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "p.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.user_id, p.course_id, p.amount, p.provider_ref, p.method, p.status, p.details, p.created_at, p.updated_at,
        u.username AS user_name, c.title AS course_title
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base, column, order, size, offset)

	var payments []models.PaymentDetail
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// Create inserts a new payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if payment.CreatedAt.IsZero() {
		payment.CreatedAt = now
	}
	payment.UpdatedAt = now
	const query = `INSERT INTO payments (id, user_id, course_id, amount, provider_ref, method, status, details, created_at, updated_at)
        VALUES (:id, :user_id, :course_id, :amount, :provider_ref, :method, :status, :details, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// UpdateStatus transitions a payment to a new status.
func (r *PaymentRepository) UpdateStatus(ctx context.Context, id string, status models.PaymentStatus, details string, updatedAt time.Time) error {
	const query = `UPDATE payments SET status = $2, details = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, details, updatedAt); err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	return nil
}

// SumCompletedByCourse returns the completed revenue for a course.
func (r *PaymentRepository) SumCompletedByCourse(ctx context.Context, courseID string) (float64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM payments WHERE course_id = $1 AND status = $2`
	var total float64
	if err := r.db.GetContext(ctx, &total, query, courseID, models.PaymentCompleted); err != nil {
		return 0, fmt.Errorf("sum completed payments: %w", err)
	}
	return total, nil
}
