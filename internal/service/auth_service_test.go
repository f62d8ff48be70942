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
	"golang.org/x/crypto/bcrypt"

	"github.com/coursehub/coursehub-api/internal/models"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
)

type mockAuthRepo struct {
	users         map[string]models.User
	byEmail       map[string]string
	exists        bool
	created       *models.User
	refreshTokens map[string]models.RefreshToken
	revoked       []string
	revokedAll    []string
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if id, ok := m.byEmail[email]; ok {
		u := m.users[id]
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) ExistsByEmailOrUsername(ctx context.Context, email, username string) (bool, error) {
	return m.exists, nil
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "new-user"
	}
	m.created = user
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	u, ok := m.users[id]
	if !ok {
		return sql.ErrNoRows
	}
	u.PasswordHash = passwordHash
	m.users[id] = u
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedAll = append(m.revokedAll, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]models.RefreshToken)
	}
	m.refreshTokens[token.Token] = *token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return &t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revoked = append(m.revoked, id)
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "coursehub-test",
	}
}

func hashPassword(t *testing.T, plain string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestAuthServiceRegisterStartsUnapproved(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	user, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "newstudent",
		Email:    "student@example.com",
		Password: "secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, user.Role)
	assert.False(t, user.Approved, "new accounts must wait for admin approval")
	assert.NotEqual(t, "secret123", user.PasswordHash)
}

func TestAuthServiceRegisterRejectsDuplicate(t *testing.T) {
	repo := &mockAuthRepo{exists: true}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "taken",
		Email:    "taken@example.com",
		Password: "secret123",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginApprovedUser(t *testing.T) {
	repo := &mockAuthRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Username: "jane", Email: "jane@example.com", Role: models.RoleStudent, Approved: true, PasswordHash: hashPassword(t, "secret123")},
		},
		byEmail: map[string]string{"jane@example.com": "u1"},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.ID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestAuthServiceLoginRejectsUnapprovedUser(t *testing.T) {
	repo := &mockAuthRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "pending@example.com", Role: models.RoleInstructor, Approved: false, PasswordHash: hashPassword(t, "secret123")},
		},
		byEmail: map[string]string{"pending@example.com": "u1"},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "pending@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAccountNotApproved.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginAdminBypassesApproval(t *testing.T) {
	repo := &mockAuthRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "admin@example.com", Role: models.RoleAdmin, Approved: false, PasswordHash: hashPassword(t, "secret123")},
		},
		byEmail: map[string]string{"admin@example.com": "u1"},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	repo := &mockAuthRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "jane@example.com", Role: models.RoleStudent, Approved: true, PasswordHash: hashPassword(t, "secret123")},
		},
		byEmail: map[string]string{"jane@example.com": "u1"},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "jane@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshRotatesToken(t *testing.T) {
	repo := &mockAuthRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Email: "jane@example.com", Role: models.RoleStudent, Approved: true},
		},
		refreshTokens: map[string]models.RefreshToken{
			"old-token": {ID: "rt1", UserID: "u1", Token: "old-token", ExpiresAt: time.Now().UTC().Add(time.Hour)},
		},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Contains(t, repo.revoked, "rt1", "the used refresh token must be revoked")
}

func TestAuthServiceRefreshRejectsExpiredToken(t *testing.T) {
	repo := &mockAuthRepo{
		refreshTokens: map[string]models.RefreshToken{
			"stale": {ID: "rt1", UserID: "u1", Token: "stale", ExpiresAt: time.Now().UTC().Add(-time.Hour)},
		},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "stale"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceChangePasswordRevokesSessions(t *testing.T) {
	repo := &mockAuthRepo{
		users: map[string]models.User{
			"u1": {ID: "u1", Role: models.RoleStudent, Approved: true, PasswordHash: hashPassword(t, "oldpass")},
		},
	}
	svc := NewAuthService(repo, validator.New(), zap.NewNop(), testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "newpass123"})
	require.NoError(t, err)
	assert.Contains(t, repo.revokedAll, "u1")

	err = svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "oldpass", NewPassword: "another123"})
	require.Error(t, err, "old password no longer matches after the change")
}
