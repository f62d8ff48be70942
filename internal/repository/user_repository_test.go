package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/coursehub/coursehub-api/internal/models"
)

func newUserRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "approved", "approved_at", "approved_by", "bio", "phone", "profile_pic", "last_login", "created_at", "updated_at"}).
		AddRow("usr-1", "alice", "alice@example.com", "hash", models.RoleStudent, true, nil, nil, "", "", "", nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE email").
		WithArgs("alice@example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "alice@example.com")
	require.NoError(t, err)
	require.Equal(t, "usr-1", user.ID)
	require.Equal(t, models.RoleStudent, user.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryApprove(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	approvedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET approved = TRUE, approved_at = $2, approved_by = $3, updated_at = $2 WHERE id = $1")).
		WithArgs("usr-1", approvedAt, "adm-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Approve(context.Background(), "usr-1", "adm-1", approvedAt))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryExistsByEmailOrUsername(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("SELECT 1 FROM users WHERE email").
		WithArgs("bob@example.com", "bob").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}))

	exists, err := repo.ExistsByEmailOrUsername(context.Background(), "bob@example.com", "bob")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListFiltersByRole(t *testing.T) {
	db, mock, cleanup := newUserRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	role := models.RoleInstructor
	rows := sqlmock.NewRows([]string{"id", "username", "email", "password_hash", "role", "approved", "approved_at", "approved_by", "bio", "phone", "profile_pic", "last_login", "created_at", "updated_at"}).
		AddRow("usr-2", "carol", "carol@example.com", "hash", role, true, nil, nil, "", "", "", nil, now, now)
	mock.ExpectQuery("SELECT (.+) FROM users WHERE 1=1 AND role").
		WithArgs(role).
		WillReturnRows(rows)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE 1=1 AND role`).
		WithArgs(role).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	users, total, err := repo.List(context.Background(), models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}
