package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type testimonialRepository interface {
	ListApproved(ctx context.Context, limit int) ([]models.TestimonialDetail, error)
	ListPending(ctx context.Context) ([]models.TestimonialDetail, error)
	FindByID(ctx context.Context, id string) (*models.Testimonial, error)
	Create(ctx context.Context, testimonial *models.Testimonial) error
	Approve(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// CreateTestimonialRequest holds user feedback awaiting moderation.
type CreateTestimonialRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
}

// TestimonialService manages public testimonials with admin moderation.
type TestimonialService struct {
	repo      testimonialRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTestimonialService constructs a TestimonialService instance.
func NewTestimonialService(repo testimonialRepository, validate *validator.Validate, logger *zap.Logger) *TestimonialService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &TestimonialService{repo: repo, validator: validate, logger: logger}
}

// ListApproved returns published testimonials for the public landing page.
func (s *TestimonialService) ListApproved(ctx context.Context, limit int) ([]models.TestimonialDetail, error) {
	testimonials, err := s.repo.ListApproved(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list testimonials")
	}
	return testimonials, nil
}

// ListPending returns testimonials awaiting moderation.
func (s *TestimonialService) ListPending(ctx context.Context) ([]models.TestimonialDetail, error) {
	testimonials, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending testimonials")
	}
	return testimonials, nil
}

// Create stores a testimonial in unapproved state.
func (s *TestimonialService) Create(ctx context.Context, userID string, req CreateTestimonialRequest) (*models.Testimonial, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid testimonial payload")
	}
	testimonial := &models.Testimonial{UserID: userID, Content: req.Content, Rating: req.Rating}
	if err := s.repo.Create(ctx, testimonial); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create testimonial")
	}
	return testimonial, nil
}

// Approve publishes a pending testimonial.
func (s *TestimonialService) Approve(ctx context.Context, id string) (*models.Testimonial, error) {
	testimonial, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "testimonial not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load testimonial")
	}
	if testimonial.Approved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "testimonial is already approved")
	}
	if err := s.repo.Approve(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve testimonial")
	}
	testimonial.Approved = true
	s.logger.Info("testimonial approved", zap.String("testimonial_id", id))
	return testimonial, nil
}

// Delete removes a testimonial. Owners delete their own; admins delete any.
func (s *TestimonialService) Delete(ctx context.Context, id string, actor *models.JWTClaims) error {
	testimonial, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "testimonial not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load testimonial")
	}
	if actor.Role != models.RoleAdmin && testimonial.UserID != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "testimonial belongs to another user")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete testimonial")
	}
	return nil
}
