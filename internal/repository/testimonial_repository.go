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

// TestimonialRepository manages persistence for testimonials.
type TestimonialRepository struct {
	db *sqlx.DB
}

// NewTestimonialRepository constructs a TestimonialRepository.
func NewTestimonialRepository(db *sqlx.DB) *TestimonialRepository {
	return &TestimonialRepository{db: db}
}

// ListApproved returns publicly visible testimonials, newest first.
func (r *TestimonialRepository) ListApproved(ctx context.Context, limit int) ([]models.TestimonialDetail, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT t.id, t.user_id, t.content, t.rating, t.approved, t.created_at, u.username AS user_name
        FROM testimonials t JOIN users u ON u.id = t.user_id
        WHERE t.approved = TRUE ORDER BY t.created_at DESC LIMIT %d`, limit)
	var testimonials []models.TestimonialDetail
	if err := r.db.SelectContext(ctx, &testimonials, query); err != nil {
		return nil, fmt.Errorf("list approved testimonials: %w", err)
	}
	return testimonials, nil
}

// ListPending returns testimonials awaiting moderation.
func (r *TestimonialRepository) ListPending(ctx context.Context) ([]models.TestimonialDetail, error) {
	const query = `SELECT t.id, t.user_id, t.content, t.rating, t.approved, t.created_at, u.username AS user_name
        FROM testimonials t JOIN users u ON u.id = t.user_id
        WHERE t.approved = FALSE ORDER BY t.created_at ASC`
	var testimonials []models.TestimonialDetail
	if err := r.db.SelectContext(ctx, &testimonials, query); err != nil {
		return nil, fmt.Errorf("list pending testimonials: %w", err)
	}
	return testimonials, nil
}

// FindByID fetches a testimonial by ID.
func (r *TestimonialRepository) FindByID(ctx context.Context, id string) (*models.Testimonial, error) {
	const query = `SELECT id, user_id, content, rating, approved, created_at FROM testimonials WHERE id = $1 LIMIT 1`
	var testimonial models.Testimonial
	if err := r.db.GetContext(ctx, &testimonial, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find testimonial by id: %w", err)
	}
	return &testimonial, nil
}

// Create inserts a new testimonial pending moderation.
func (r *TestimonialRepository) Create(ctx context.Context, testimonial *models.Testimonial) error {
	if testimonial.ID == "" {
		testimonial.ID = uuid.NewString()
	}
	if testimonial.CreatedAt.IsZero() {
		testimonial.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO testimonials (id, user_id, content, rating, approved, created_at)
        VALUES (:id, :user_id, :content, :rating, :approved, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, testimonial); err != nil {
		return fmt.Errorf("create testimonial: %w", err)
	}
	return nil
}

// Approve makes a testimonial publicly visible.
func (r *TestimonialRepository) Approve(ctx context.Context, id string) error {
	const query = `UPDATE testimonials SET approved = TRUE WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("approve testimonial: %w", err)
	}
	return nil
}

// Delete removes a testimonial permanently.
func (r *TestimonialRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM testimonials WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete testimonial: %w", err)
	}
	return nil
}
