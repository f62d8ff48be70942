package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	Approve(ctx context.Context, id, approvedBy string, approvedAt time.Time) error
	Revoke(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type userNotifier interface {
	Notify(ctx context.Context, userID, title, message string, kind models.NotificationType, relatedID *string)
}

// UpdateProfileRequest holds mutable profile fields.
type UpdateProfileRequest struct {
	Username   string `json:"username" validate:"omitempty,min=3,max=64"`
	Bio        string `json:"bio" validate:"omitempty,max=2000"`
	Phone      string `json:"phone" validate:"omitempty,max=20"`
	ProfilePic string `json:"profile_pic" validate:"omitempty,max=512"`
}

// UserService provides account management use cases.
type UserService struct {
	repo      userRepository
	notifier  userNotifier
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService constructs a UserService instance.
func NewUserService(repo userRepository, notifier userNotifier, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{repo: repo, notifier: notifier, validator: validate, logger: logger}
}

// List returns users matching the filter with pagination metadata.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) ([]models.User, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return users, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a single user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// UpdateProfile applies profile changes to the given user.
func (s *UserService) UpdateProfile(ctx context.Context, id string, req UpdateProfileRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid profile payload")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Username != "" {
		user.Username = req.Username
	}
	if req.Bio != "" {
		user.Bio = req.Bio
	}
	if req.Phone != "" {
		user.Phone = req.Phone
	}
	if req.ProfilePic != "" {
		user.ProfilePic = req.ProfilePic
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update profile")
	}
	return user, nil
}

// Approve marks a pending account as approved and notifies the owner.
func (s *UserService) Approve(ctx context.Context, id, approvedBy string) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Approved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "account is already approved")
	}

	now := time.Now().UTC()
	if err := s.repo.Approve(ctx, id, approvedBy, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve account")
	}
	user.Approved = true
	user.ApprovedAt = &now
	user.ApprovedBy = &approvedBy

	if s.notifier != nil {
		s.notifier.Notify(ctx, user.ID, "Account approved", "Your account has been approved. You can now log in.", models.NotificationEnrollment, nil)
	}
	s.logger.Info("account approved", zap.String("user_id", id), zap.String("approved_by", approvedBy))
	return user, nil
}

// RevokeApproval withdraws approval from an account. Admin accounts cannot
// be revoked.
func (s *UserService) RevokeApproval(ctx context.Context, id string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "admin accounts cannot be revoked")
	}
	if err := s.repo.Revoke(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to revoke approval")
	}
	s.logger.Info("account approval revoked", zap.String("user_id", id))
	return nil
}

// Delete removes a user account permanently.
func (s *UserService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	s.logger.Info("account deleted", zap.String("user_id", id))
	return nil
}
